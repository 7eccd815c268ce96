// Package lens reviews a credit snapshot through a business-model specific
// lens: each lens names the metrics that matter for that kind of borrower and
// the benchmark each should clear.
package lens

import (
	"fmt"
	"sort"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/snapshot"
)

// Benchmark is a lens expectation for one metric.
type Benchmark struct {
	Metric  string   `json:"metric" msgpack:"metric"`
	Floor   *float64 `json:"floor,omitempty" msgpack:"floor,omitempty"`
	Ceiling *float64 `json:"ceiling,omitempty" msgpack:"ceiling,omitempty"`
}

// Finding is one observation made by a lens.
type Finding struct {
	Metric  string  `json:"metric" msgpack:"metric"`
	Value   float64 `json:"value" msgpack:"value"`
	Message string  `json:"message" msgpack:"message"`
}

// Analysis is the output of a lens review.
type Analysis struct {
	Lens            domain.BusinessModel `json:"lens" msgpack:"lens"`
	Highlights      []Finding            `json:"highlights" msgpack:"highlights"`
	Concerns        []Finding            `json:"concerns" msgpack:"concerns"`
	MetricsReviewed map[string]*float64  `json:"metricsReviewed" msgpack:"metricsReviewed"`
	Notes           []string             `json:"notes" msgpack:"notes"`
}

func floor(metric string, v float64) Benchmark   { return Benchmark{Metric: metric, Floor: &v} }
func ceiling(metric string, v float64) Benchmark { return Benchmark{Metric: metric, Ceiling: &v} }

var lenses = map[domain.BusinessModel][]Benchmark{
	domain.BusinessModelGeneral: {
		floor(metrics.MetricDSCR, 1.25),
		ceiling(metrics.MetricDebtToEBITDA, 3.5),
		floor(metrics.MetricEBITDAMargin, 0.10),
		floor(metrics.MetricCurrentRatio, 1.2),
	},
	domain.BusinessModelSaaS: {
		floor(metrics.MetricRecurringRevenue, 0.70),
		floor(metrics.MetricGrossMargin, 0.65),
		ceiling(metrics.MetricDSO, 60),
		floor(metrics.MetricDSCR, 1.25),
	},
	domain.BusinessModelManufacturing: {
		floor(metrics.MetricInventoryTurnover, 4),
		floor(metrics.MetricGrossMargin, 0.25),
		floor(metrics.MetricFixedCharge, 1.2),
		floor(metrics.MetricCurrentRatio, 1.3),
	},
	domain.BusinessModelRetail: {
		floor(metrics.MetricInventoryTurnover, 6),
		ceiling(metrics.MetricRentToRevenue, 0.10),
		floor(metrics.MetricGrossMargin, 0.30),
		floor(metrics.MetricQuickRatio, 0.5),
	},
	domain.BusinessModelServices: {
		ceiling(metrics.MetricDSO, 45),
		floor(metrics.MetricEBITDAMargin, 0.12),
		ceiling(metrics.MetricRentToRevenue, 0.08),
		floor(metrics.MetricCurrentRatio, 1.2),
	},
	domain.BusinessModelRealEstate: {
		ceiling(metrics.MetricLoanToValue, 0.75),
		floor(metrics.MetricDSCR, 1.25),
		ceiling(metrics.MetricDebtToEquity, 3.0),
	},
}

// Benchmarks returns the benchmarks applied for a business model. Unknown
// models use the general lens.
func Benchmarks(model domain.BusinessModel) (domain.BusinessModel, []Benchmark) {
	if b, ok := lenses[model]; ok {
		return model, append([]Benchmark(nil), b...)
	}
	return domain.BusinessModelGeneral, append([]Benchmark(nil), lenses[domain.BusinessModelGeneral]...)
}

// Analyze reviews the snapshot through the lens for its business model.
func Analyze(snap *snapshot.CreditSnapshot) Analysis {
	out := Analysis{
		Lens:            domain.BusinessModelGeneral,
		Highlights:      []Finding{},
		Concerns:        []Finding{},
		MetricsReviewed: map[string]*float64{},
		Notes:           []string{},
	}
	if snap == nil {
		out.Notes = append(out.Notes, "no snapshot to analyze")
		return out
	}

	lens, benchmarks := Benchmarks(snap.BusinessModel)
	out.Lens = lens
	if lens != snap.BusinessModel {
		out.Notes = append(out.Notes, fmt.Sprintf("no lens for business model %q: general lens applied", snap.BusinessModel))
	}

	for _, b := range benchmarks {
		v := snap.Metric(b.Metric)
		out.MetricsReviewed[b.Metric] = v
		if v == nil {
			out.Notes = append(out.Notes, fmt.Sprintf("%s not available for lens review", b.Metric))
			continue
		}

		percent := snap.Metrics[b.Metric].IsPercent
		label := labelFor(snap, b.Metric)
		switch {
		case b.Floor != nil && *v < *b.Floor:
			out.Concerns = append(out.Concerns, Finding{b.Metric, *v,
				fmt.Sprintf("%s of %s is below the %s floor", label, format(*v, percent), format(*b.Floor, percent))})
		case b.Ceiling != nil && *v > *b.Ceiling:
			out.Concerns = append(out.Concerns, Finding{b.Metric, *v,
				fmt.Sprintf("%s of %s is above the %s ceiling", label, format(*v, percent), format(*b.Ceiling, percent))})
		case b.Floor != nil:
			out.Highlights = append(out.Highlights, Finding{b.Metric, *v,
				fmt.Sprintf("%s of %s clears the %s floor", label, format(*v, percent), format(*b.Floor, percent))})
		default:
			out.Highlights = append(out.Highlights, Finding{b.Metric, *v,
				fmt.Sprintf("%s of %s is within the %s ceiling", label, format(*v, percent), format(*b.Ceiling, percent))})
		}
	}

	sort.Strings(out.Notes)
	return out
}

func labelFor(snap *snapshot.CreditSnapshot, id string) string {
	if mv, ok := snap.Metrics[id]; ok && mv.Label != "" {
		return mv.Label
	}
	return id
}

func format(v float64, percent bool) string {
	if percent {
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return fmt.Sprintf("%.2f", v)
}
