// Package audit makes underwriting runs reproducible: a canonical snapshot
// hash, immutable audit records, replay verification, and off-site archiving.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/vmihailenco/msgpack/v5"
)

// HashFormatVersion prefixes every snapshot hash. Bump it whenever the
// canonical encoding changes.
const HashFormatVersion = "uwsnap.v1"

// HashInput is everything a snapshot hash covers.
type HashInput struct {
	Facts           []domain.Fact           `msgpack:"facts"`
	FinancialModel  domain.FinancialModel   `msgpack:"financialModel"`
	Metrics         map[string]*float64     `msgpack:"metrics"`
	RegistryVersion metrics.RegistryBinding `msgpack:"registry_version"`
	PolicyVersion   string                  `msgpack:"policy_version"`
}

// ComputeSnapshotHash returns "<format version>:<sha256 hex>" over the
// canonical msgpack encoding of the input. Fact order, period order, map
// iteration order and negative zero do not affect the result.
func ComputeSnapshotHash(in HashInput) (string, error) {
	canonical := canonicalInput{
		Facts:           canonicalFacts(in.Facts),
		FinancialModel:  canonicalModel(in.FinancialModel),
		Metrics:         canonicalMetrics(in.Metrics),
		RegistryVersion: in.RegistryVersion,
		PolicyVersion:   in.PolicyVersion,
	}

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(canonical); err != nil {
		return "", fmt.Errorf("failed to encode snapshot hash input: %w", err)
	}

	sum := sha256.Sum256(append([]byte(HashFormatVersion+"\x00"), buf.Bytes()...))
	return HashFormatVersion + ":" + hex.EncodeToString(sum[:]), nil
}

// The canonical form holds no maps: every keyed collection is a slice
// sorted by key, so the encoded bytes never depend on map iteration.
type canonicalInput struct {
	Facts           []domain.Fact           `msgpack:"facts"`
	FinancialModel  canonicalFinancials     `msgpack:"financialModel"`
	Metrics         []canonicalMetric       `msgpack:"metrics"`
	RegistryVersion metrics.RegistryBinding `msgpack:"registry_version"`
	PolicyVersion   string                  `msgpack:"policy_version"`
}

type canonicalFinancials struct {
	BorrowerID    string               `msgpack:"borrowerId"`
	BusinessModel domain.BusinessModel `msgpack:"businessModel"`
	Periods       []canonicalPeriod    `msgpack:"periods"`
}

type canonicalPeriod struct {
	PeriodID     string            `msgpack:"periodId"`
	PeriodEnd    time.Time         `msgpack:"periodEnd"`
	Type         domain.PeriodType `msgpack:"type"`
	Income       []canonicalValue  `msgpack:"income"`
	Balance      []canonicalValue  `msgpack:"balance"`
	Cashflow     []canonicalValue  `msgpack:"cashflow"`
	QualityFlags []string          `msgpack:"qualityFlags"`
}

type canonicalValue struct {
	Key   string  `msgpack:"k"`
	Value float64 `msgpack:"v"`
}

type canonicalMetric struct {
	Key   string   `msgpack:"k"`
	Value *float64 `msgpack:"v"`
}

func canonicalFacts(in []domain.Fact) []domain.Fact {
	out := make([]domain.Fact, len(in))
	for i, f := range in {
		f.Value = normalizeZero(f.Value)
		f.PeriodEnd = f.PeriodEnd.UTC()
		out[i] = f
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case !a.PeriodEnd.Equal(b.PeriodEnd):
			return a.PeriodEnd.Before(b.PeriodEnd)
		case a.PeriodType != b.PeriodType:
			return a.PeriodType < b.PeriodType
		case a.Statement != b.Statement:
			return a.Statement < b.Statement
		case a.Key != b.Key:
			return a.Key < b.Key
		case a.Value != b.Value:
			return a.Value < b.Value
		default:
			return a.Source < b.Source
		}
	})
	return out
}

func canonicalModel(m domain.FinancialModel) canonicalFinancials {
	sorted := m.SortedByEnd()
	out := canonicalFinancials{
		BorrowerID:    m.BorrowerID,
		BusinessModel: m.BusinessModel,
		Periods:       make([]canonicalPeriod, len(sorted)),
	}
	for i, p := range sorted {
		flags := append([]string{}, p.QualityFlags...)
		sort.Strings(flags)
		out.Periods[i] = canonicalPeriod{
			PeriodID:     p.PeriodID,
			PeriodEnd:    p.PeriodEnd.UTC(),
			Type:         p.Type,
			Income:       canonicalValues(p.Income),
			Balance:      canonicalValues(p.Balance),
			Cashflow:     canonicalValues(p.Cashflow),
			QualityFlags: flags,
		}
	}
	return out
}

func canonicalValues(m map[string]float64) []canonicalValue {
	out := make([]canonicalValue, 0, len(m))
	for k, v := range m {
		out = append(out, canonicalValue{Key: k, Value: normalizeZero(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func canonicalMetrics(in map[string]*float64) []canonicalMetric {
	out := make([]canonicalMetric, 0, len(in))
	for k, v := range in {
		m := canonicalMetric{Key: k}
		if v != nil {
			n := normalizeZero(*v)
			m.Value = &n
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func normalizeZero(v float64) float64 {
	if v == 0 {
		return 0
	}
	return v
}
