package pricing

import (
	"testing"

	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/stretchr/testify/assert"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name           string
		policyTier     policy.Tier
		stressTier     policy.Tier
		pricingTier    policy.Tier
		addOn          float64
		allIn          float64
		recommendation Recommendation
	}{
		{"clean A", policy.TierA, policy.TierA, policy.TierA, 0, 0.0925, RecommendApprove},
		{"A stressed to B", policy.TierA, policy.TierB, policy.TierB, 25, 0.0975, RecommendApproveWithConditions},
		{"B stressed to D", policy.TierB, policy.TierD, policy.TierD, 50, 0.13, RecommendDecline},
		{"C with better stress tier", policy.TierC, policy.TierB, policy.TierC, 0, 0.1125, RecommendRefer},
		{"missing stress tier", policy.TierB, "", policy.TierB, 0, 0.1, RecommendApproveWithConditions},
		{"unknown tier prices as D", "Z", policy.TierA, policy.TierD, 0, 0.125, RecommendDecline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Price(tt.policyTier, tt.stressTier, DefaultConfig())

			assert.Equal(t, tt.pricingTier, q.PricingTier)
			assert.Equal(t, tt.addOn, q.StressAddOnBps)
			assert.InDelta(t, tt.allIn, q.AllInRate, 1e-9)
			assert.Equal(t, tt.recommendation, q.Recommendation)
			assert.NotEmpty(t, q.Rationale)
		})
	}
}

func TestPrice_FeesFollowPricingTier(t *testing.T) {
	q := Price(policy.TierA, policy.TierC, DefaultConfig())

	assert.Equal(t, 0.01, q.OriginationFeePct)
	assert.Equal(t, 375.0, q.SpreadBps)
	assert.Contains(t, q.Rationale, "priced at stressed tier")
}

func TestPrice_CustomBaseRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseRate = 0.05

	q := Price(policy.TierA, policy.TierA, cfg)

	assert.InDelta(t, 0.0675, q.AllInRate, 1e-9)
}
