package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/aristath/underwriter/internal/modules/snapshot"
)

// Severity classifies a breach by how far the metric sits past its bound.
type Severity string

const (
	SeverityMinor  Severity = "minor"
	SeveritySevere Severity = "severe"
)

// Tier is the ordinal risk classification, A best and D worst.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Rank orders tiers: A is 0, D is 3. Unknown tiers rank worst.
func (t Tier) Rank() int {
	switch t {
	case TierA:
		return 0
	case TierB:
		return 1
	case TierC:
		return 2
	default:
		return 3
	}
}

// Worse returns the riskier of two tiers.
func Worse(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Breach is one metric found outside its threshold.
type Breach struct {
	Metric      string    `json:"metric" msgpack:"metric"`
	Threshold   Threshold `json:"threshold" msgpack:"threshold"`
	ActualValue float64   `json:"actualValue" msgpack:"actualValue"`
	Severity    Severity  `json:"severity" msgpack:"severity"`
	Deviation   float64   `json:"deviation" msgpack:"deviation"`
}

// Result is the outcome of evaluating one snapshot against one policy.
type Result struct {
	Product          Product            `json:"product" msgpack:"product"`
	PolicyVersion    string             `json:"policyVersion" msgpack:"policyVersion"`
	Passed           bool               `json:"passed" msgpack:"passed"`
	FailedMetrics    []string           `json:"failedMetrics" msgpack:"failedMetrics"`
	Breaches         []Breach           `json:"breaches" msgpack:"breaches"`
	Warnings         []string           `json:"warnings" msgpack:"warnings"`
	MetricsEvaluated map[string]float64 `json:"metricsEvaluated" msgpack:"metricsEvaluated"`
	Tier             Tier               `json:"tier" msgpack:"tier"`
}

// ConfigOverride is bank-specific tuning layered over a product policy.
type ConfigOverride struct {
	Thresholds      []Threshold `json:"thresholds,omitempty" yaml:"thresholds,omitempty" msgpack:"thresholds,omitempty"`
	MinorBreachBand *float64    `json:"minorBreachBand,omitempty" yaml:"minorBreachBand,omitempty" msgpack:"minorBreachBand,omitempty"`
}

// Resolve returns the effective policy for a product. Unknown products fall
// back to the conventional term policy with a warning. Override thresholds
// replace a built-in threshold for the same metric or are appended.
func Resolve(product Product, override *ConfigOverride) (Definition, []string) {
	var warnings []string

	def, ok := Lookup(product)
	if !ok {
		def, _ = Lookup(ProductConventionalTerm)
		warnings = append(warnings, fmt.Sprintf("unknown product %q: evaluated against %s policy", product, ProductConventionalTerm))
	}

	if override == nil {
		return def, warnings
	}

	for _, t := range override.Thresholds {
		if t.Metric == "" {
			continue
		}
		replaced := false
		for i := range def.Thresholds {
			if def.Thresholds[i].Metric == t.Metric {
				def.Thresholds[i] = copyThreshold(t)
				replaced = true
				break
			}
		}
		if !replaced {
			def.Thresholds = append(def.Thresholds, copyThreshold(t))
		}
	}
	if override.MinorBreachBand != nil && *override.MinorBreachBand >= 0 {
		def.MinorBreachBand = *override.MinorBreachBand
	}
	def.Version = def.Version + "+override." + overrideDigest(override)
	return def, warnings
}

// EvaluatePolicy checks a snapshot's metrics against a product policy.
// Metrics the snapshot lacks produce warnings, never breaches.
func EvaluatePolicy(snap *snapshot.CreditSnapshot, product Product, override *ConfigOverride) Result {
	def, warnings := Resolve(product, override)

	var values map[string]*float64
	if snap != nil {
		values = snap.MetricValues()
	} else {
		warnings = append(warnings, "no snapshot supplied for policy evaluation")
	}

	res := Evaluate(def, values)
	res.Product = product
	res.Warnings = append(append([]string{}, warnings...), res.Warnings...)
	return res
}

// Evaluate checks metric values against an already resolved definition.
func Evaluate(def Definition, values map[string]*float64) Result {
	res := Result{
		Product:          def.Product,
		PolicyVersion:    def.VersionTag(),
		FailedMetrics:    []string{},
		Breaches:         []Breach{},
		Warnings:         []string{},
		MetricsEvaluated: map[string]float64{},
	}

	for _, t := range def.Thresholds {
		v, ok := values[t.Metric]
		if !ok || v == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s unavailable for policy evaluation", t.Metric))
			continue
		}
		actual := *v
		res.MetricsEvaluated[t.Metric] = actual

		deviation, breached := deviationFrom(t, actual)
		if !breached {
			continue
		}
		severity := SeveritySevere
		if deviation <= def.MinorBreachBand {
			severity = SeverityMinor
		}
		res.Breaches = append(res.Breaches, Breach{
			Metric:      t.Metric,
			Threshold:   copyThreshold(t),
			ActualValue: actual,
			Severity:    severity,
			Deviation:   deviation,
		})
		res.FailedMetrics = append(res.FailedMetrics, t.Metric)
	}

	sort.Strings(res.FailedMetrics)
	res.Passed = len(res.Breaches) == 0
	res.Tier = AssignTier(res.Breaches)
	return res
}

// deviationFrom returns the fractional distance past a bound. A zero bound
// has no scale, so the absolute distance is used instead.
func deviationFrom(t Threshold, actual float64) (float64, bool) {
	if t.Minimum != nil && actual < *t.Minimum {
		return relative(*t.Minimum-actual, *t.Minimum), true
	}
	if t.Maximum != nil && actual > *t.Maximum {
		return relative(actual-*t.Maximum, *t.Maximum), true
	}
	return 0, false
}

func relative(distance, bound float64) float64 {
	if bound == 0 {
		return distance
	}
	return distance / math.Abs(bound)
}

// AssignTier maps breaches to a tier: none is A, two or more severe is D,
// one severe or three or more minor is C, anything else is B.
func AssignTier(breaches []Breach) Tier {
	if len(breaches) == 0 {
		return TierA
	}
	severe, minor := 0, 0
	for _, b := range breaches {
		if b.Severity == SeveritySevere {
			severe++
		} else {
			minor++
		}
	}
	switch {
	case severe >= 2:
		return TierD
	case severe >= 1 || minor >= 3:
		return TierC
	default:
		return TierB
	}
}

func overrideDigest(o *ConfigOverride) string {
	data, err := json.Marshal(o)
	if err != nil {
		return "invalid"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:4])
}
