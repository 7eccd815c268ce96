package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when an audit record does not exist.
var ErrNotFound = errors.New("audit record not found")

// Repository stores audit records in audit.db. Records are insert-only.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new audit repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "audit").Logger(),
	}
}

// Save inserts a record. Saving the same id twice is an error.
func (r *Repository) Save(ctx context.Context, rec Record) error {
	var tier sql.NullString
	if rec.Tier != "" {
		tier = sql.NullString{String: string(rec.Tier), Valid: true}
	}
	complete := 0
	if rec.PipelineComplete {
		complete = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			id, deal_id, snapshot_hash, registry_version_id, registry_content_hash,
			policy_product, policy_version, pipeline_complete, tier, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.DealID, rec.SnapshotHash, rec.Registry.VersionID, rec.Registry.ContentHash,
		string(rec.PolicyProduct), rec.PolicyVersion, complete, tier, rec.Payload, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", rec.ID, err)
	}

	r.log.Debug().
		Str("id", rec.ID).
		Str("deal_id", rec.DealID).
		Str("snapshot_hash", rec.SnapshotHash).
		Msg("Audit record saved")
	return nil
}

// Get loads a record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, selectRecord+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load audit record %s: %w", id, err)
	}
	return rec, nil
}

// ListByDeal returns a deal's records, oldest first.
func (r *Repository) ListByDeal(ctx context.Context, dealID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+` WHERE deal_id = ? ORDER BY created_at ASC, id ASC`, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records for %s: %w", dealID, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

// FindByHash returns records whose snapshot hash matches.
func (r *Repository) FindByHash(ctx context.Context, hash string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+` WHERE snapshot_hash = ? ORDER BY created_at ASC, id ASC`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records by hash: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const selectRecord = `
	SELECT id, deal_id, snapshot_hash, registry_version_id, registry_content_hash,
	       policy_product, policy_version, pipeline_complete, tier, payload, created_at
	FROM audit_records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec       Record
		product   string
		complete  int
		tier      sql.NullString
		createdAt int64
	)
	err := s.Scan(
		&rec.ID, &rec.DealID, &rec.SnapshotHash, &rec.Registry.VersionID, &rec.Registry.ContentHash,
		&product, &rec.PolicyVersion, &complete, &tier, &rec.Payload, &createdAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.PolicyProduct = policy.Product(product)
	rec.PipelineComplete = complete == 1
	if tier.Valid {
		rec.Tier = policy.Tier(tier.String)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, nil
}

