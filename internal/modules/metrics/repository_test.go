package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/underwriter/internal/database"
	testutil "github.com/aristath/underwriter/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	db := testutil.NewTestDB(t, database.NameRegistry)
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_DraftRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	draft, err := NewDraft("roundtrip", SeedDefinitions(), publishTime)
	require.NoError(t, err)
	require.NoError(t, repo.CreateDraft(ctx, draft))

	loaded, err := repo.GetVersion(ctx, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, StatusDraft, loaded.Status)
	assert.Nil(t, loaded.PublishedAt)
	assert.Len(t, loaded.Entries, len(SeedDefinitions()))
	assert.Equal(t, ComputeContentHash(draft.Entries), ComputeContentHash(loaded.Entries))
}

func TestRepository_GetVersionMissing(t *testing.T) {
	loaded, err := newTestRepository(t).GetVersion(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRepository_PublishAndLoad(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	reg, err := Load(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, SeedVersionID, reg.Binding().VersionID)

	draft, err := NewDraft("published", SeedDefinitions()[:3], publishTime)
	require.NoError(t, err)
	require.NoError(t, repo.CreateDraft(ctx, draft))

	published, err := Publish(ctx, repo, draft.ID, publishTime.Add(time.Minute))
	require.NoError(t, err)

	reg, err = Load(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, reg.Binding().VersionID)
	assert.Equal(t, published.ContentHash, reg.Binding().ContentHash)

	_, err = Publish(ctx, repo, draft.ID, publishTime.Add(2*time.Minute))
	assert.True(t, HasCode(err, CodeImmutable))
}

func TestRepository_CompareAndSwapOnlyFromDraft(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	draft, err := NewDraft("cas", SeedDefinitions()[:1], publishTime)
	require.NoError(t, err)
	require.NoError(t, repo.CreateDraft(ctx, draft))

	ok, err := repo.CompareAndSwapStatus(ctx, draft.ID, StatusDraft, StatusPublished, "h", publishTime)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSwapStatus(ctx, draft.ID, StatusDraft, StatusPublished, "h2", publishTime)
	require.NoError(t, err)
	assert.False(t, ok)
}

func publishSeedVersion(t *testing.T, repo *Repository) RegistryVersion {
	t.Helper()
	ctx := context.Background()

	draft, err := NewDraft("edited", SeedDefinitions(), publishTime)
	require.NoError(t, err)
	require.NoError(t, repo.CreateDraft(ctx, draft))
	published, err := Publish(ctx, repo, draft.ID, publishTime.Add(time.Minute))
	require.NoError(t, err)
	return *published
}

func TestRepository_LoadRejectsEditedEntries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	published := publishSeedVersion(t, repo)

	_, err := repo.db.ExecContext(ctx, `
		UPDATE registry_entries
		SET definition_json = ?
		WHERE version_id = ? AND metric_key = ?
	`, `{"id":"dscr","label":"Debt Service Coverage","expr":"cash_flow_available / debt_service * 2","precision":2,"requiredFacts":["cash_flow_available","debt_service"],"applicableTo":null,"version":1}`,
		published.ID, MetricDSCR)
	require.NoError(t, err)

	loaded, err := repo.GetVersion(ctx, published.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, HasCode(VerifyContent(*loaded), CodeContentMismatch))

	_, err = Load(ctx, repo)
	assert.True(t, HasCode(err, CodeContentMismatch))
}

func TestRepository_UndecodableEntryIsError(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	published := publishSeedVersion(t, repo)

	_, err := repo.db.ExecContext(ctx, `
		UPDATE registry_entries
		SET definition_json = '{not json'
		WHERE version_id = ? AND metric_key = ?
	`, published.ID, MetricDSCR)
	require.NoError(t, err)

	_, err = repo.GetVersion(ctx, published.ID)
	assert.ErrorContains(t, err, MetricDSCR)

	_, err = Load(ctx, repo)
	assert.Error(t, err)
}

func TestVerifyContent(t *testing.T) {
	published := SeedRegistry().Version()
	assert.NoError(t, VerifyContent(published))

	edited := published
	edited.Entries = edited.Entries[1:]
	assert.True(t, HasCode(VerifyContent(edited), CodeContentMismatch))

	draft := edited
	draft.Status = StatusDraft
	assert.NoError(t, VerifyContent(draft))
}
