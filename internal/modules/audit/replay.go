package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/aristath/underwriter/internal/modules/underwriting"
)

// ErrRegistryMismatch is returned when a replay is attempted against a
// registry other than the one the record was computed with.
var ErrRegistryMismatch = errors.New("registry does not match audit record binding")

// ReplayVerdict says whether re-running a recorded computation reproduced it.
type ReplayVerdict struct {
	RecordID     string                    `json:"recordId"`
	OriginalHash string                    `json:"originalHash"`
	ReplayHash   string                    `json:"replayHash"`
	HashMatch    bool                      `json:"hashMatch"`
	OutcomeMatch bool                      `json:"outcomeMatch"`
	Comparison   snapshot.ComparisonResult `json:"comparison"`
	Reproduced   bool                      `json:"reproduced"`
}

// VerifyReplay compares a fresh outcome against a record: the snapshot hash
// is recomputed and the stored metrics are diffed with the comparator.
func VerifyReplay(rec Record, outcome underwriting.Outcome, tol *snapshot.Tolerance) (ReplayVerdict, error) {
	payload, err := rec.DecodePayload()
	if err != nil {
		return ReplayVerdict{}, err
	}

	hash, hi, err := HashOutcome(payload.Facts, payload.Input, outcome)
	if err != nil {
		return ReplayVerdict{}, err
	}

	v := ReplayVerdict{
		RecordID:     rec.ID,
		OriginalHash: rec.SnapshotHash,
		ReplayHash:   hash,
		HashMatch:    hash == rec.SnapshotHash,
		OutcomeMatch: outcome.Complete() == rec.PipelineComplete,
		Comparison:   snapshot.CompareSnapshotMetrics(payload.Metrics, hi.Metrics, tol),
	}
	v.Reproduced = v.HashMatch && v.OutcomeMatch && v.Comparison.Identical()
	return v, nil
}

// Replay re-runs a recorded computation against the registry it was bound to.
func Replay(rec Record, reg metrics.Registry, tol *snapshot.Tolerance) (ReplayVerdict, error) {
	if reg.Binding() != rec.Registry {
		return ReplayVerdict{}, fmt.Errorf("%w: record %s, registry %s", ErrRegistryMismatch, rec.Registry.VersionID, reg.Binding().VersionID)
	}

	payload, err := rec.DecodePayload()
	if err != nil {
		return ReplayVerdict{}, err
	}

	in := payload.Input
	in.Options.Registry = reg
	return VerifyReplay(rec, underwriting.RunFullUnderwrite(in), tol)
}

// ResolveRegistry loads the registry a record is bound to: the seed registry
// for seed bindings, otherwise the stored version.
func ResolveRegistry(ctx context.Context, store metrics.Store, binding metrics.RegistryBinding) (metrics.Registry, error) {
	if binding.VersionID == metrics.SeedVersionID {
		seed := metrics.SeedRegistry()
		if seed.Binding() != binding {
			return metrics.Registry{}, fmt.Errorf("%w: seed content hash changed", ErrRegistryMismatch)
		}
		return seed, nil
	}
	if store == nil {
		return metrics.Registry{}, fmt.Errorf("no registry store to resolve version %s", binding.VersionID)
	}

	version, err := store.GetVersion(ctx, binding.VersionID)
	if err != nil {
		return metrics.Registry{}, fmt.Errorf("failed to load registry version %s: %w", binding.VersionID, err)
	}
	if version == nil {
		return metrics.Registry{}, fmt.Errorf("registry version %s not found", binding.VersionID)
	}
	if version.Status != metrics.StatusPublished {
		return metrics.Registry{}, fmt.Errorf("%w: version %s is not published", ErrRegistryMismatch, binding.VersionID)
	}
	if err := metrics.VerifyContent(*version); err != nil {
		return metrics.Registry{}, fmt.Errorf("%w: %w", ErrRegistryMismatch, err)
	}

	reg := metrics.NewRegistry(*version)
	if reg.Binding() != binding {
		return metrics.Registry{}, fmt.Errorf("%w: version %s", ErrRegistryMismatch, binding.VersionID)
	}
	return reg, nil
}
