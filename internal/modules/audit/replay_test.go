package audit

import (
	"context"
	"testing"

	"github.com/aristath/underwriter/internal/database"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/aristath/underwriter/internal/modules/underwriting"
	testutil "github.com/aristath/underwriter/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_Reproduces(t *testing.T) {
	rec := newFixtureRecord(t, fixtureInput(), recordTime)

	verdict, err := Replay(rec, metrics.SeedRegistry(), nil)
	require.NoError(t, err)

	assert.Equal(t, rec.ID, verdict.RecordID)
	assert.True(t, verdict.HashMatch)
	assert.True(t, verdict.OutcomeMatch)
	assert.True(t, verdict.Comparison.Identical())
	assert.True(t, verdict.Reproduced)
	assert.Equal(t, rec.SnapshotHash, verdict.ReplayHash)
}

func TestReplay_RegistryMismatch(t *testing.T) {
	rec := newFixtureRecord(t, fixtureInput(), recordTime)

	draft, err := metrics.NewDraft("other", metrics.SeedDefinitions()[:2], recordTime)
	require.NoError(t, err)

	_, err = Replay(rec, metrics.NewRegistry(draft), nil)
	assert.ErrorIs(t, err, ErrRegistryMismatch)
}

func TestVerifyReplay_DetectsDrift(t *testing.T) {
	in := fixtureInput()
	rec := newFixtureRecord(t, in, recordTime)

	drifted := in
	drifted.Model = testutil.NewBorrowerFixture()
	drifted.Model.Periods[0].Income["ebitda"] = 300000

	verdict, err := VerifyReplay(rec, underwriting.RunFullUnderwrite(drifted), nil)
	require.NoError(t, err)

	assert.False(t, verdict.HashMatch)
	assert.False(t, verdict.Comparison.Identical())
	assert.False(t, verdict.Reproduced)
	assert.Positive(t, verdict.Comparison.Summary.Changed)
}

func TestVerifyReplay_OutcomeFlip(t *testing.T) {
	in := fixtureInput()
	rec := newFixtureRecord(t, in, recordTime)

	failing := in
	failing.Options.Strategy = snapshot.StrategySpecificPeriod
	failing.Options.PeriodID = "FY1990"

	verdict, err := VerifyReplay(rec, underwriting.RunFullUnderwrite(failing), nil)
	require.NoError(t, err)
	assert.False(t, verdict.OutcomeMatch)
	assert.False(t, verdict.Reproduced)
}

func TestResolveRegistry(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()

	draft, err := metrics.NewDraft("v2", metrics.SeedDefinitions(), recordTime)
	require.NoError(t, err)
	require.NoError(t, store.CreateDraft(ctx, draft))
	published, err := metrics.Publish(ctx, store, draft.ID, recordTime)
	require.NoError(t, err)
	binding := metrics.NewRegistry(*published).Binding()

	t.Run("seed", func(t *testing.T) {
		reg, err := ResolveRegistry(ctx, nil, metrics.SeedRegistry().Binding())
		require.NoError(t, err)
		assert.Equal(t, metrics.SeedVersionID, reg.Binding().VersionID)
	})

	t.Run("stored version", func(t *testing.T) {
		reg, err := ResolveRegistry(ctx, store, binding)
		require.NoError(t, err)
		assert.Equal(t, binding, reg.Binding())
	})

	t.Run("content hash mismatch", func(t *testing.T) {
		_, err := ResolveRegistry(ctx, store, metrics.RegistryBinding{VersionID: binding.VersionID, ContentHash: "tampered"})
		assert.ErrorIs(t, err, ErrRegistryMismatch)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := ResolveRegistry(ctx, store, metrics.RegistryBinding{VersionID: "missing"})
		assert.ErrorContains(t, err, "not found")
	})
}

func TestResolveRegistry_RejectsEditedStoredEntries(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t, database.NameRegistry)
	store := metrics.NewRepository(db.Conn(), zerolog.Nop())

	draft, err := metrics.NewDraft("v2", metrics.SeedDefinitions(), recordTime)
	require.NoError(t, err)
	require.NoError(t, store.CreateDraft(ctx, draft))
	published, err := metrics.Publish(ctx, store, draft.ID, recordTime)
	require.NoError(t, err)
	binding := metrics.NewRegistry(*published).Binding()

	_, err = ResolveRegistry(ctx, store, binding)
	require.NoError(t, err)

	_, err = db.Conn().ExecContext(ctx, `
		UPDATE registry_entries
		SET definition_json = replace(definition_json, '"cash_flow_available / debt_service"', '"cash_flow_available / debt_service * 2"')
		WHERE version_id = ? AND metric_key = ?
	`, draft.ID, metrics.MetricDSCR)
	require.NoError(t, err)

	_, err = ResolveRegistry(ctx, store, binding)
	assert.ErrorIs(t, err, ErrRegistryMismatch)
	assert.True(t, metrics.HasCode(err, metrics.CodeContentMismatch))
}
