package quota

import "strings"

// Tier is the subscription level gating transcription limits.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
	TierVIP     Tier = "vip"
)

// monthlyLimits maps tiers to allowed transcriptions per month.
var monthlyLimits = map[Tier]int{
	TierFree:    2,
	TierPro:     30,
	TierPremium: 100,
	TierVIP:     300,
}

// Only the free tier carries a ceiling across the whole account history.
const freeLifetimeLimit = 5

// Normalize maps a raw tier string onto a known tier.
// Unknown or empty values fall back to free.
func Normalize(raw string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierPro:
		return TierPro
	case TierPremium:
		return TierPremium
	case TierVIP:
		return TierVIP
	default:
		return TierFree
	}
}

// MonthlyLimit returns the per-month transcription allowance for a tier.
func MonthlyLimit(t Tier) int {
	if limit, ok := monthlyLimits[t]; ok {
		return limit
	}
	return monthlyLimits[TierFree]
}

// LifetimeLimit returns the lifetime allowance for a tier and whether the
// tier defines one.
func LifetimeLimit(t Tier) (int, bool) {
	if t == TierFree {
		return freeLifetimeLimit, true
	}
	return 0, false
}

// Decision is the outcome of a quota check.
type Decision int

const (
	Allow Decision = iota
	DenyLifetime
	DenyMonthly
)

// Result carries the decision plus the limit that produced a denial,
// for use in the error message shown to the user.
type Result struct {
	Decision Decision
	Tier     Tier
	Limit    int
}

// Check gates a transcription request on the caller's tier and usage
// counters. The lifetime ceiling is checked before the monthly one, so a
// free account that exhausted its lifetime allowance is denied as such even
// in a fresh month.
func Check(rawTier string, usedThisMonth, usedLifetime int) Result {
	tier := Normalize(rawTier)

	if lifetime, ok := LifetimeLimit(tier); ok && usedLifetime >= lifetime {
		return Result{Decision: DenyLifetime, Tier: tier, Limit: lifetime}
	}

	if limit := MonthlyLimit(tier); usedThisMonth >= limit {
		return Result{Decision: DenyMonthly, Tier: tier, Limit: limit}
	}

	return Result{Decision: Allow, Tier: tier}
}
