package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/rs/zerolog"
)

// RegistrySink receives the freshly loaded active registry
type RegistrySink interface {
	Registry() metrics.Registry
	SetRegistry(reg metrics.Registry)
}

// RefreshRegistryJob reloads the most recently published registry version so
// computations pick up newly published definitions without a restart.
type RefreshRegistryJob struct {
	log     zerolog.Logger
	store   metrics.Store
	sink    RegistrySink
	timeout time.Duration
}

// NewRefreshRegistryJob creates a new RefreshRegistryJob
func NewRefreshRegistryJob(store metrics.Store, sink RegistrySink, log zerolog.Logger) *RefreshRegistryJob {
	return &RefreshRegistryJob{
		log:     log.With().Str("job", "refresh_registry").Logger(),
		store:   store,
		sink:    sink,
		timeout: 30 * time.Second,
	}
}

// Name returns the job name
func (j *RefreshRegistryJob) Name() string {
	return "refresh_registry"
}

// Run executes the refresh
func (j *RefreshRegistryJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	reg, err := metrics.Load(ctx, j.store)
	if err != nil {
		return fmt.Errorf("failed to refresh registry: %w", err)
	}

	current := j.sink.Registry()
	if !current.IsZero() && current.Binding() == reg.Binding() {
		j.log.Debug().Str("version_id", reg.Binding().VersionID).Msg("Registry unchanged")
		return nil
	}

	j.sink.SetRegistry(reg)
	j.log.Info().
		Str("version_id", reg.Binding().VersionID).
		Str("content_hash", reg.Binding().ContentHash).
		Int("metrics", len(reg.IDs())).
		Msg("Active registry updated")
	return nil
}
