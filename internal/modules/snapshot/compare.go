package snapshot

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Default comparator tolerances.
const (
	DefaultAbsoluteTolerance = 0.01
	DefaultPercentTolerance  = 0.001
)

// Tolerance bounds what counts as an unchanged numeric metric.
type Tolerance struct {
	Absolute float64 `json:"absoluteTolerance"`
	Percent  float64 `json:"percentTolerance"`
}

// DefaultTolerance returns the comparator defaults.
func DefaultTolerance() Tolerance {
	return Tolerance{Absolute: DefaultAbsoluteTolerance, Percent: DefaultPercentTolerance}
}

// ChangeStatus classifies one compared key.
type ChangeStatus string

const (
	StatusAdded     ChangeStatus = "added"
	StatusRemoved   ChangeStatus = "removed"
	StatusChanged   ChangeStatus = "changed"
	StatusUnchanged ChangeStatus = "unchanged"
)

// MetricDelta is the comparison of one metric key.
type MetricDelta struct {
	Key          string       `json:"key"`
	Before       *float64     `json:"before"`
	After        *float64     `json:"after"`
	Delta        *float64     `json:"delta"`
	PercentDelta *float64     `json:"percentDelta"`
	Status       ChangeStatus `json:"status"`
}

// ComparisonSummary counts deltas by status and tracks the largest deltas seen.
type ComparisonSummary struct {
	Total            int     `json:"total"`
	Added            int     `json:"added"`
	Removed          int     `json:"removed"`
	Changed          int     `json:"changed"`
	Unchanged        int     `json:"unchanged"`
	MaxAbsoluteDelta float64 `json:"maxAbsoluteDelta"`
	MaxPercentDelta  float64 `json:"maxPercentDelta"`
}

// ComparisonResult is the outcome of CompareSnapshotMetrics.
type ComparisonResult struct {
	Deltas  []MetricDelta     `json:"deltas"`
	Summary ComparisonSummary `json:"summary"`
}

// Identical reports whether nothing was added, removed or changed.
func (r ComparisonResult) Identical() bool {
	return r.Summary.Added == 0 && r.Summary.Removed == 0 && r.Summary.Changed == 0
}

// CompareSnapshotMetrics diffs two metric sets over the union of their keys.
// A numeric pair is unchanged when it is within either tolerance, so it is
// changed only when it exceeds both. A nil tol uses the defaults. Neither
// input is modified.
func CompareSnapshotMetrics(before, after map[string]*float64, tol *Tolerance) ComparisonResult {
	t := DefaultTolerance()
	if tol != nil {
		t = *tol
	}

	keys := make([]string, 0, len(before)+len(after))
	for k := range before {
		keys = append(keys, k)
	}
	for k := range after {
		if _, ok := before[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := ComparisonResult{Deltas: make([]MetricDelta, 0, len(keys))}
	absDeltas := []float64{0}
	pctDeltas := []float64{0}

	for _, k := range keys {
		b, inBefore := before[k]
		a, inAfter := after[k]
		d := MetricDelta{Key: k, Before: clone(b), After: clone(a)}

		switch {
		case !inBefore:
			d.Status = StatusAdded
			result.Summary.Added++
		case !inAfter:
			d.Status = StatusRemoved
			result.Summary.Removed++
		case b == nil && a == nil:
			d.Status = StatusUnchanged
			result.Summary.Unchanged++
		case b == nil || a == nil:
			// One-sided: the delta is the move from (or to) nothing
			var delta float64
			if b == nil {
				delta = *a
			} else {
				delta = -*b
			}
			d.Delta = &delta
			d.Status = StatusChanged
			result.Summary.Changed++
			absDeltas = append(absDeltas, math.Abs(delta))
		default:
			delta := *a - *b
			d.Delta = &delta
			absDelta := math.Abs(delta)
			absDeltas = append(absDeltas, absDelta)

			withinPercent := delta == 0
			if *b != 0 {
				pct := absDelta / math.Abs(*b)
				d.PercentDelta = &pct
				pctDeltas = append(pctDeltas, pct)
				withinPercent = pct <= t.Percent
			}

			if absDelta <= t.Absolute || withinPercent {
				d.Status = StatusUnchanged
				result.Summary.Unchanged++
			} else {
				d.Status = StatusChanged
				result.Summary.Changed++
			}
		}

		result.Deltas = append(result.Deltas, d)
	}

	result.Summary.Total = len(keys)
	result.Summary.MaxAbsoluteDelta = floats.Max(absDeltas)
	result.Summary.MaxPercentDelta = floats.Max(pctDeltas)
	return result
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
