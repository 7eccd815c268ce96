// Package pricing turns risk tiers into a loan quote.
package pricing

import (
	"fmt"

	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/pkg/formulas"
)

// Recommendation is the credit action suggested by the quote.
type Recommendation string

const (
	RecommendApprove               Recommendation = "approve"
	RecommendApproveWithConditions Recommendation = "approve_with_conditions"
	RecommendRefer                 Recommendation = "refer"
	RecommendDecline               Recommendation = "decline"
)

// Config is the pricing grid.
type Config struct {
	BaseRate          float64                 `json:"baseRate"`
	SpreadBps         map[policy.Tier]float64 `json:"spreadBps"`
	StressAddOnBps    float64                 `json:"stressAddOnBps"`
	OriginationFeePct map[policy.Tier]float64 `json:"originationFeePct"`
}

// DefaultConfig returns the standard grid over a 7.50% base rate.
func DefaultConfig() Config {
	return Config{
		BaseRate: 0.075,
		SpreadBps: map[policy.Tier]float64{
			policy.TierA: 175,
			policy.TierB: 250,
			policy.TierC: 375,
			policy.TierD: 500,
		},
		StressAddOnBps: 25,
		OriginationFeePct: map[policy.Tier]float64{
			policy.TierA: 0.005,
			policy.TierB: 0.0075,
			policy.TierC: 0.01,
			policy.TierD: 0.015,
		},
	}
}

// Quote is the priced outcome for a deal.
type Quote struct {
	PolicyTier        policy.Tier    `json:"policyTier" msgpack:"policyTier"`
	StressTier        policy.Tier    `json:"stressTier" msgpack:"stressTier"`
	PricingTier       policy.Tier    `json:"pricingTier" msgpack:"pricingTier"`
	BaseRate          float64        `json:"baseRate" msgpack:"baseRate"`
	SpreadBps         float64        `json:"spreadBps" msgpack:"spreadBps"`
	StressAddOnBps    float64        `json:"stressAddOnBps" msgpack:"stressAddOnBps"`
	AllInRate         float64        `json:"allInRate" msgpack:"allInRate"`
	OriginationFeePct float64        `json:"originationFeePct" msgpack:"originationFeePct"`
	Recommendation    Recommendation `json:"recommendation" msgpack:"recommendation"`
	Rationale         []string       `json:"rationale" msgpack:"rationale"`
}

// Price quotes a deal from its policy tier and its worst stressed tier.
// The spread is keyed by the worse of the two; each notch the stressed tier
// sits below the policy tier adds StressAddOnBps. Always returns a quote.
func Price(policyTier, stressTier policy.Tier, cfg Config) Quote {
	if stressTier == "" {
		stressTier = policyTier
	}
	pricingTier := policy.Worse(normalize(policyTier), normalize(stressTier))

	notches := normalize(stressTier).Rank() - normalize(policyTier).Rank()
	if notches < 0 {
		notches = 0
	}

	q := Quote{
		PolicyTier:        policyTier,
		StressTier:        stressTier,
		PricingTier:       pricingTier,
		BaseRate:          cfg.BaseRate,
		SpreadBps:         cfg.SpreadBps[pricingTier],
		StressAddOnBps:    float64(notches) * cfg.StressAddOnBps,
		OriginationFeePct: cfg.OriginationFeePct[pricingTier],
		Recommendation:    recommend(pricingTier),
	}
	q.AllInRate = formulas.RoundTo(q.BaseRate+(q.SpreadBps+q.StressAddOnBps)/10_000, 6)

	q.Rationale = []string{fmt.Sprintf("tier %s spread of %.0f bps over %.2f%% base", pricingTier, q.SpreadBps, q.BaseRate*100)}
	if notches > 0 {
		q.Rationale = append(q.Rationale, fmt.Sprintf("stress deteriorates %s to %s: %d notch add-on of %.0f bps", policyTier, stressTier, notches, q.StressAddOnBps))
	}
	if pricingTier != normalize(policyTier) {
		q.Rationale = append(q.Rationale, "priced at stressed tier")
	}
	return q
}

func normalize(t policy.Tier) policy.Tier {
	switch t {
	case policy.TierA, policy.TierB, policy.TierC, policy.TierD:
		return t
	default:
		return policy.TierD
	}
}

func recommend(t policy.Tier) Recommendation {
	switch t {
	case policy.TierA:
		return RecommendApprove
	case policy.TierB:
		return RecommendApproveWithConditions
	case policy.TierC:
		return RecommendRefer
	default:
		return RecommendDecline
	}
}
