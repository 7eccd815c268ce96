package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists registry versions. Implementations must make
// CompareAndSwapStatus atomic: it succeeds only if the stored status still
// equals from.
type Store interface {
	CreateDraft(ctx context.Context, version RegistryVersion) error
	// GetVersion returns nil, nil when the version does not exist.
	GetVersion(ctx context.Context, id string) (*RegistryVersion, error)
	// LatestPublished returns nil, nil when nothing has been published.
	LatestPublished(ctx context.Context) (*RegistryVersion, error)
	CompareAndSwapStatus(ctx context.Context, id string, from, to VersionStatus, contentHash string, at time.Time) (bool, error)
}

// ErrorCode classifies registry failures.
type ErrorCode string

const (
	CodeVersionNotFound ErrorCode = "version_not_found"
	CodeNoEntries       ErrorCode = "no_entries"
	CodeImmutable       ErrorCode = "REGISTRY_IMMUTABLE"
	CodePublishFailed   ErrorCode = "publish_failed"
	CodeDuplicateMetric ErrorCode = "duplicate_metric"
	CodeContentMismatch ErrorCode = "content_mismatch"
)

// RegistryError is the typed failure returned by registry operations.
type RegistryError struct {
	Code      ErrorCode
	VersionID string
	Err       error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registry %s (%s): %v", e.Code, e.VersionID, e.Err)
	}
	return fmt.Sprintf("registry %s (%s)", e.Code, e.VersionID)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is a RegistryError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var regErr *RegistryError
	return errors.As(err, &regErr) && regErr.Code == code
}

// VerifyContent checks that a published version's entries still hash to the
// content hash recorded when it was published. Drafts have no hash to check.
func VerifyContent(version RegistryVersion) error {
	if version.Status != StatusPublished {
		return nil
	}
	if got := ComputeContentHash(version.Entries); got != version.ContentHash {
		return &RegistryError{
			Code:      CodeContentMismatch,
			VersionID: version.ID,
			Err:       fmt.Errorf("published hash %s, entries hash to %s", version.ContentHash, got),
		}
	}
	return nil
}

// NewDraft builds a draft version from definitions. Metric ids must be unique.
func NewDraft(label string, defs []MetricDefinition, now time.Time) (RegistryVersion, error) {
	id := uuid.New().String()
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.ID] {
			return RegistryVersion{}, &RegistryError{
				Code:      CodeDuplicateMetric,
				VersionID: id,
				Err:       fmt.Errorf("metric %q defined more than once", d.ID),
			}
		}
		seen[d.ID] = true
	}

	return RegistryVersion{
		ID:        id,
		Label:     label,
		Status:    StatusDraft,
		CreatedAt: now.UTC(),
		Entries:   entriesFor(defs),
	}, nil
}

// Publish freezes a draft version: it computes the content hash and flips the
// status to published through the store's compare-and-swap. Every failure is
// a *RegistryError.
func Publish(ctx context.Context, store Store, versionID string, now time.Time) (*RegistryVersion, error) {
	version, err := store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, &RegistryError{Code: CodePublishFailed, VersionID: versionID, Err: err}
	}
	if version == nil {
		return nil, &RegistryError{Code: CodeVersionNotFound, VersionID: versionID}
	}
	if version.Status != StatusDraft {
		return nil, &RegistryError{Code: CodeImmutable, VersionID: versionID}
	}
	if len(version.Entries) == 0 {
		return nil, &RegistryError{Code: CodeNoEntries, VersionID: versionID}
	}

	hash := ComputeContentHash(version.Entries)
	publishedAt := now.UTC()

	swapped, err := store.CompareAndSwapStatus(ctx, versionID, StatusDraft, StatusPublished, hash, publishedAt)
	if err != nil {
		return nil, &RegistryError{Code: CodePublishFailed, VersionID: versionID, Err: err}
	}
	if !swapped {
		return nil, &RegistryError{
			Code:      CodePublishFailed,
			VersionID: versionID,
			Err:       errors.New("version left draft status concurrently"),
		}
	}

	published := *version
	published.Status = StatusPublished
	published.ContentHash = hash
	published.PublishedAt = &publishedAt
	return &published, nil
}

// Load resolves the active registry: the most recently published version.
// A nil store, or a store with nothing published, yields the seed registry.
func Load(ctx context.Context, store Store) (Registry, error) {
	if store == nil {
		return SeedRegistry(), nil
	}

	version, err := store.LatestPublished(ctx)
	if err != nil {
		return Registry{}, fmt.Errorf("failed to load published registry: %w", err)
	}
	if version == nil || len(version.Entries) == 0 {
		return SeedRegistry(), nil
	}
	if err := VerifyContent(*version); err != nil {
		return Registry{}, err
	}

	return NewRegistry(*version), nil
}
