// Package policy evaluates credit snapshots against product policies,
// classifies threshold breaches and assigns a risk tier.
package policy

import (
	"fmt"
	"sort"

	"github.com/aristath/underwriter/internal/modules/metrics"
)

// Product identifies a loan product with its own credit policy.
type Product string

const (
	ProductSBA7a                Product = "sba_7a"
	ProductConventionalTerm     Product = "conventional_term"
	ProductEquipment            Product = "equipment"
	ProductCommercialRealEstate Product = "commercial_real_estate"
	ProductLineOfCredit         Product = "line_of_credit"
)

// DefaultMinorBreachBand is the largest deviation still classed as minor.
const DefaultMinorBreachBand = 0.15

// Threshold bounds one metric. Either bound may be absent.
type Threshold struct {
	Metric  string   `json:"metric" yaml:"metric" msgpack:"metric"`
	Minimum *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty" msgpack:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty" msgpack:"maximum,omitempty"`
}

// Definition is a versioned product policy.
type Definition struct {
	Product         Product     `json:"product" msgpack:"product"`
	Version         string      `json:"version" msgpack:"version"`
	Thresholds      []Threshold `json:"thresholds" msgpack:"thresholds"`
	MinorBreachBand float64     `json:"minorBreachBand" msgpack:"minorBreachBand"`
}

// VersionTag identifies the policy a result was produced under, e.g. "sba_7a@2024.1".
func (d Definition) VersionTag() string {
	return fmt.Sprintf("%s@%s", d.Product, d.Version)
}

func atLeast(v float64) Threshold { return Threshold{Minimum: &v} }
func atMost(v float64) Threshold { return Threshold{Maximum: &v} }

func bound(metric string, t Threshold) Threshold {
	t.Metric = metric
	return t
}

var definitions = map[Product]Definition{
	ProductSBA7a: {
		Product: ProductSBA7a,
		Version: "2024.1",
		Thresholds: []Threshold{
			bound(metrics.MetricDSCR, atLeast(1.25)),
			bound(metrics.MetricDebtToEBITDA, atMost(4.0)),
			bound(metrics.MetricCurrentRatio, atLeast(1.0)),
			bound(metrics.MetricDebtToEquity, atMost(4.0)),
		},
	},
	ProductConventionalTerm: {
		Product: ProductConventionalTerm,
		Version: "2024.1",
		Thresholds: []Threshold{
			bound(metrics.MetricDSCR, atLeast(1.25)),
			bound(metrics.MetricDebtToEBITDA, atMost(3.5)),
			bound(metrics.MetricCurrentRatio, atLeast(1.2)),
			bound(metrics.MetricFixedCharge, atLeast(1.15)),
		},
	},
	ProductEquipment: {
		Product: ProductEquipment,
		Version: "2024.1",
		Thresholds: []Threshold{
			bound(metrics.MetricDSCR, atLeast(1.20)),
			bound(metrics.MetricDebtToEBITDA, atMost(4.0)),
			bound(metrics.MetricCurrentRatio, atLeast(1.0)),
		},
	},
	ProductCommercialRealEstate: {
		Product: ProductCommercialRealEstate,
		Version: "2024.1",
		Thresholds: []Threshold{
			bound(metrics.MetricDSCR, atLeast(1.25)),
			bound(metrics.MetricLoanToValue, atMost(0.75)),
			bound(metrics.MetricDebtToEquity, atMost(3.0)),
		},
	},
	ProductLineOfCredit: {
		Product: ProductLineOfCredit,
		Version: "2024.1",
		Thresholds: []Threshold{
			bound(metrics.MetricCurrentRatio, atLeast(1.25)),
			bound(metrics.MetricQuickRatio, atLeast(1.0)),
			bound(metrics.MetricDebtToEquity, atMost(3.0)),
			bound(metrics.MetricDSO, atMost(60)),
			bound(metrics.MetricInterestCoverage, atLeast(2.0)),
		},
	},
}

// Lookup returns a copy of the built-in definition for a product.
func Lookup(product Product) (Definition, bool) {
	def, ok := definitions[product]
	if !ok {
		return Definition{}, false
	}
	return copyDefinition(def), true
}

// Products lists the known products in sorted order.
func Products() []Product {
	out := make([]Product, 0, len(definitions))
	for p := range definitions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func copyDefinition(def Definition) Definition {
	out := def
	out.Thresholds = make([]Threshold, len(def.Thresholds))
	for i, t := range def.Thresholds {
		out.Thresholds[i] = copyThreshold(t)
	}
	if out.MinorBreachBand == 0 {
		out.MinorBreachBand = DefaultMinorBreachBand
	}
	return out
}

func copyThreshold(t Threshold) Threshold {
	out := Threshold{Metric: t.Metric}
	if t.Minimum != nil {
		v := *t.Minimum
		out.Minimum = &v
	}
	if t.Maximum != nil {
		v := *t.Maximum
		out.Maximum = &v
	}
	return out
}
