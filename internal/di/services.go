package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/underwriter/internal/config"
	"github.com/aristath/underwriter/internal/modules/audit"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/underwriting"
	"github.com/aristath/underwriter/internal/server"
	"github.com/rs/zerolog"
)

// InitializeServices loads the active registry, policy overrides and the
// optional audit archiver
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := metrics.Load(ctx, container.RegistryRepo)
	if err != nil {
		return fmt.Errorf("failed to load metric registry: %w", err)
	}
	container.Registry = server.NewRegistryHolder(reg)
	log.Info().
		Str("version_id", reg.Binding().VersionID).
		Int("metrics", len(reg.IDs())).
		Msg("Metric registry loaded")

	container.Overrides = map[policy.Product]policy.ConfigOverride{}
	if cfg.PolicyOverridesPath != "" {
		overrides, err := policy.LoadOverrides(cfg.PolicyOverridesPath)
		if err != nil {
			return fmt.Errorf("failed to load policy overrides: %w", err)
		}
		if overrides != nil {
			container.Overrides = overrides
		}
		log.Info().
			Str("path", cfg.PolicyOverridesPath).
			Int("products", len(container.Overrides)).
			Msg("Policy overrides loaded")
	}

	container.Underwriter = underwriting.NewService(log)

	archiver, err := audit.NewS3Archiver(ctx, cfg.Archive.ToArchiveConfig(), log)
	switch {
	case errors.Is(err, audit.ErrArchiveDisabled):
		log.Info().Msg("Audit archive disabled (AUDIT_S3_BUCKET not set)")
	case err != nil:
		return fmt.Errorf("failed to initialize audit archive: %w", err)
	default:
		container.Archiver = archiver
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Audit archive enabled")
	}

	return nil
}
