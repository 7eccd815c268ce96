package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/underwriter/internal/database"
	"github.com/rs/zerolog"
)

// Repository is the SQLite-backed registry Store (registry.db).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new registry repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "metric_registry").Logger(),
	}
}

// CreateDraft inserts a draft version and its entries in one transaction.
func (r *Repository) CreateDraft(ctx context.Context, version RegistryVersion) error {
	if version.Status != StatusDraft {
		return fmt.Errorf("registry version %s is not a draft", version.ID)
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO registry_versions (id, label, status, created_at)
			VALUES (?, ?, ?, ?)
		`, version.ID, version.Label, string(StatusDraft), version.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert registry version %s: %w", version.ID, err)
		}

		for _, entry := range version.Entries {
			definitionJSON, err := json.Marshal(entry.Definition)
			if err != nil {
				return fmt.Errorf("failed to encode metric %s: %w", entry.MetricKey, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO registry_entries (version_id, metric_key, definition_json)
				VALUES (?, ?, ?)
			`, version.ID, entry.MetricKey, string(definitionJSON))
			if err != nil {
				return fmt.Errorf("failed to insert metric %s: %w", entry.MetricKey, err)
			}
		}
		return nil
	})
}

// GetVersion loads a version and its entries. Returns nil, nil if not found.
func (r *Repository) GetVersion(ctx context.Context, id string) (*RegistryVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, label, status, content_hash, created_at, published_at
		FROM registry_versions
		WHERE id = ?
	`, id)
	return r.scanVersion(ctx, row)
}

// LatestPublished loads the most recently published version. Returns nil, nil if none.
func (r *Repository) LatestPublished(ctx context.Context) (*RegistryVersion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, label, status, content_hash, created_at, published_at
		FROM registry_versions
		WHERE status = ?
		ORDER BY published_at DESC, created_at DESC, id DESC
		LIMIT 1
	`, string(StatusPublished))
	return r.scanVersion(ctx, row)
}

// CompareAndSwapStatus performs the guarded status flip as a single UPDATE.
func (r *Repository) CompareAndSwapStatus(ctx context.Context, id string, from, to VersionStatus, contentHash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE registry_versions
		SET status = ?, content_hash = ?, published_at = ?
		WHERE id = ? AND status = ?
	`, string(to), contentHash, at.Unix(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update registry version %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for %s: %w", id, err)
	}
	if affected == 0 {
		r.log.Warn().Str("version_id", id).Msg("Registry status swap lost")
		return false, nil
	}

	r.log.Info().
		Str("version_id", id).
		Str("status", string(to)).
		Str("content_hash", contentHash).
		Msg("Registry version status changed")
	return true, nil
}

func (r *Repository) scanVersion(ctx context.Context, row *sql.Row) (*RegistryVersion, error) {
	var (
		v           RegistryVersion
		status      string
		contentHash sql.NullString
		createdAt   int64
		publishedAt sql.NullInt64
	)
	err := row.Scan(&v.ID, &v.Label, &status, &contentHash, &createdAt, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan registry version: %w", err)
	}

	v.Status = VersionStatus(status)
	v.ContentHash = contentHash.String
	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	if publishedAt.Valid {
		t := time.Unix(publishedAt.Int64, 0).UTC()
		v.PublishedAt = &t
	}

	entries, err := r.loadEntries(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	v.Entries = entries
	return &v, nil
}

func (r *Repository) loadEntries(ctx context.Context, versionID string) ([]RegistryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT metric_key, definition_json
		FROM registry_entries
		WHERE version_id = ?
		ORDER BY metric_key
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for %s: %w", versionID, err)
	}
	defer rows.Close()

	entries := make([]RegistryEntry, 0)
	for rows.Next() {
		var key, definitionJSON string
		if err := rows.Scan(&key, &definitionJSON); err != nil {
			return nil, fmt.Errorf("failed to scan entry for %s: %w", versionID, err)
		}
		var def MetricDefinition
		if err := json.Unmarshal([]byte(definitionJSON), &def); err != nil {
			return nil, fmt.Errorf("failed to decode metric %s in %s: %w", key, versionID, err)
		}
		entries = append(entries, RegistryEntry{MetricKey: key, Definition: def})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries for %s: %w", versionID, err)
	}
	return entries, nil
}
