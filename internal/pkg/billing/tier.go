package billing

import "github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/quota"

// Pledge thresholds in cents. A patron is granted the highest tier whose
// threshold their currently entitled amount reaches.
const (
	proPledgeCents     = 300
	premiumPledgeCents = 900
	vipPledgeCents     = 2500
)

// isEntitlingStatus reports whether a Patreon patron status grants paid
// access. Declined and former patrons fall back to the free tier.
func isEntitlingStatus(status string) bool {
	return status == "active_patron"
}

// TierForPledge maps a patron status and entitled pledge amount to a
// subscription tier.
func TierForPledge(patronStatus string, entitledCents int) quota.Tier {
	if !isEntitlingStatus(patronStatus) {
		return quota.TierFree
	}
	switch {
	case entitledCents >= vipPledgeCents:
		return quota.TierVIP
	case entitledCents >= premiumPledgeCents:
		return quota.TierPremium
	case entitledCents >= proPledgeCents:
		return quota.TierPro
	default:
		return quota.TierFree
	}
}
