package audit

import (
	"math"
	"strings"
	"testing"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/metrics"
	testutil "github.com/aristath/underwriter/internal/testing"
	"github.com/aristath/underwriter/pkg/formulas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseHashInput() HashInput {
	return HashInput{
		Facts:          testutil.NewBorrowerFacts(),
		FinancialModel: testutil.NewBorrowerFixture(),
		Metrics: map[string]*float64{
			metrics.MetricDSCR:         formulas.Ptr(3.07),
			metrics.MetricCurrentRatio: formulas.Ptr(2),
			"quick_ratio":              nil,
		},
		RegistryVersion: metrics.SeedRegistry().Binding(),
		PolicyVersion:   "sba_7a@2024.1",
	}
}

func TestComputeSnapshotHash_Format(t *testing.T) {
	hash, err := ComputeSnapshotHash(baseHashInput())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(hash, HashFormatVersion+":"))
	assert.Len(t, strings.TrimPrefix(hash, HashFormatVersion+":"), 64)
}

func TestComputeSnapshotHash_Deterministic(t *testing.T) {
	a, err := ComputeSnapshotHash(baseHashInput())
	require.NoError(t, err)
	b, err := ComputeSnapshotHash(baseHashInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeSnapshotHash_StableAcrossMapIteration(t *testing.T) {
	want, err := ComputeSnapshotHash(baseHashInput())
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		got, err := ComputeSnapshotHash(baseHashInput())
		require.NoError(t, err)
		require.Equal(t, want, got, "iteration %d", i)
	}
}

func TestComputeSnapshotHash_RebuiltMapsHashEqual(t *testing.T) {
	want, err := ComputeSnapshotHash(baseHashInput())
	require.NoError(t, err)

	in := baseHashInput()
	for i := range in.FinancialModel.Periods {
		p := &in.FinancialModel.Periods[i]
		p.Income = p.Clone().Income
		p.Balance = p.Clone().Balance
		p.Cashflow = p.Clone().Cashflow
	}
	rebuilt := make(map[string]*float64, len(in.Metrics))
	for k, v := range in.Metrics {
		rebuilt[k] = v
	}
	in.Metrics = rebuilt

	got, err := ComputeSnapshotHash(in)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestComputeSnapshotHash_OrderIndependent(t *testing.T) {
	want, err := ComputeSnapshotHash(baseHashInput())
	require.NoError(t, err)

	in := baseHashInput()
	for i, j := 0, len(in.Facts)-1; i < j; i, j = i+1, j-1 {
		in.Facts[i], in.Facts[j] = in.Facts[j], in.Facts[i]
	}
	periods := in.FinancialModel.Periods
	for i, j := 0, len(periods)-1; i < j; i, j = i+1, j-1 {
		periods[i], periods[j] = periods[j], periods[i]
	}

	got, err := ComputeSnapshotHash(in)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestComputeSnapshotHash_NegativeZero(t *testing.T) {
	pos := baseHashInput()
	pos.Metrics["zero"] = formulas.Ptr(0)
	neg := baseHashInput()
	neg.Metrics["zero"] = formulas.Ptr(math.Copysign(0, -1))

	a, err := ComputeSnapshotHash(pos)
	require.NoError(t, err)
	b, err := ComputeSnapshotHash(neg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestComputeSnapshotHash_SensitiveToInputs(t *testing.T) {
	base, err := ComputeSnapshotHash(baseHashInput())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*HashInput)
	}{
		{"metric value", func(in *HashInput) { in.Metrics[metrics.MetricDSCR] = formulas.Ptr(3.08) }},
		{"null metric", func(in *HashInput) { in.Metrics[metrics.MetricDSCR] = nil }},
		{"policy version", func(in *HashInput) { in.PolicyVersion = "sba_7a@2025.1" }},
		{"registry binding", func(in *HashInput) { in.RegistryVersion.VersionID = "other" }},
		{"fact value", func(in *HashInput) { in.Facts[0].Value++ }},
		{"business model", func(in *HashInput) { in.FinancialModel.BusinessModel = domain.BusinessModelSaaS }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseHashInput()
			tt.mutate(&in)
			got, err := ComputeSnapshotHash(in)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}
