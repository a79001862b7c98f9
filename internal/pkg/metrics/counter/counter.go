package counter

import (
	"context"
	"strconv"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/cache"
)

const outcomesKey = "transcription:counters:outcomes"

// AddOutcome increments the running counter for a transcription outcome
// (succeeded, timeout, job_failed, ...) in Redis.
func AddOutcome(outcome string) error {
	return cache.GetClient().HIncrBy(context.Background(), outcomesKey, outcome, 1).Err()
}

// Snapshot returns the accumulated outcome counters.
func Snapshot() (map[string]int64, error) {
	data, err := cache.GetClient().HGetAll(context.Background(), outcomesKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(data))
	for outcome, raw := range data {
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		out[outcome] = count
	}
	return out, nil
}
