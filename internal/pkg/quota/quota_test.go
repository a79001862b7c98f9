package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TierFree, Normalize(""))
	assert.Equal(t, TierFree, Normalize("free"))
	assert.Equal(t, TierFree, Normalize("enterprise"))
	assert.Equal(t, TierPro, Normalize("Pro"))
	assert.Equal(t, TierPremium, Normalize(" PREMIUM "))
	assert.Equal(t, TierVIP, Normalize("vip"))
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		tier          string
		usedThisMonth int
		usedLifetime  int
		want          Decision
		wantLimit     int
	}{
		{
			name: "free tier under all limits",
			tier: "free", usedThisMonth: 1, usedLifetime: 1,
			want: Allow,
		},
		{
			name: "free tier at monthly limit",
			tier: "free", usedThisMonth: 2, usedLifetime: 2,
			want: DenyMonthly, wantLimit: 2,
		},
		{
			name: "free tier lifetime limit wins over monthly",
			tier: "free", usedThisMonth: 2, usedLifetime: 5,
			want: DenyLifetime, wantLimit: 5,
		},
		{
			name: "free tier lifetime limit in a fresh month",
			tier: "free", usedThisMonth: 0, usedLifetime: 7,
			want: DenyLifetime, wantLimit: 5,
		},
		{
			name: "pro tier has no lifetime ceiling",
			tier: "pro", usedThisMonth: 0, usedLifetime: 500,
			want: Allow,
		},
		{
			name: "pro tier at monthly limit",
			tier: "pro", usedThisMonth: 30, usedLifetime: 30,
			want: DenyMonthly, wantLimit: 30,
		},
		{
			name: "vip tier under limit",
			tier: "VIP", usedThisMonth: 299, usedLifetime: 5000,
			want: Allow,
		},
		{
			name: "unknown tier falls back to free limits",
			tier: "platinum", usedThisMonth: 2, usedLifetime: 2,
			want: DenyMonthly, wantLimit: 2,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Check(tc.tier, tc.usedThisMonth, tc.usedLifetime)
			assert.Equal(t, tc.want, got.Decision)
			if tc.want != Allow {
				assert.Equal(t, tc.wantLimit, got.Limit)
			}
		})
	}
}

func TestLifetimeLimitOnlyOnFree(t *testing.T) {
	t.Parallel()

	_, ok := LifetimeLimit(TierFree)
	assert.True(t, ok)

	for _, tier := range []Tier{TierPro, TierPremium, TierVIP} {
		_, ok := LifetimeLimit(tier)
		assert.False(t, ok, "tier %s should not define a lifetime limit", tier)
	}
}
