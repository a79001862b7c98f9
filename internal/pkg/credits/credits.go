package credits

import (
	"strconv"
	"strings"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/cache"
	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
)

// The provider has no balance endpoint, so operators maintain a gauge of
// the remaining prepaid credits: either a cache key updated by a billing
// cron, or a plain env var. When neither is set the low-credit check is
// simply skipped.
const gaugeKey = "replicate:credits_remaining"

const defaultThreshold = 10

// Gauge reports the remaining provider credits, if known.
type Gauge interface {
	Remaining() (float64, bool)
}

// CacheGauge reads the operator-maintained gauge from the cache server,
// falling back to the REPLICATE_CREDITS_REMAINING env var.
type CacheGauge struct{}

func (CacheGauge) Remaining() (float64, bool) {
	if val, err := cache.Get(gaugeKey); err == nil {
		if remaining, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return remaining, true
		}
	}
	if raw := strings.TrimSpace(env.GetEnv("REPLICATE_CREDITS_REMAINING", "")); raw != "" {
		if remaining, err := strconv.ParseFloat(raw, 64); err == nil {
			return remaining, true
		}
	}
	return 0, false
}

// Threshold returns the credit level below which the low-credit alert fires.
func Threshold() float64 {
	raw := strings.TrimSpace(env.GetEnv("CREDIT_ALERT_THRESHOLD", ""))
	if raw == "" {
		return defaultThreshold
	}
	threshold, err := strconv.ParseFloat(raw, 64)
	if err != nil || threshold < 0 {
		return defaultThreshold
	}
	return threshold
}
