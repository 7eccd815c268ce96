package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/underwriter/internal/config"
	"github.com/aristath/underwriter/internal/database"
	"github.com/aristath/underwriter/internal/modules/audit"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. registry.db - Metric registry versions and entries
	registryDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "registry.db"),
		Profile: database.ProfileStandard,
		Name:    database.NameRegistry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry database: %w", err)
	}
	container.RegistryDB = registryDB

	// 2. audit.db - Immutable underwriting audit trail
	auditDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "audit.db"),
		Profile: database.ProfileLedger,
		Name:    database.NameAudit,
	})
	if err != nil {
		registryDB.Close()
		return nil, fmt.Errorf("failed to initialize audit database: %w", err)
	}
	container.AuditDB = auditDB

	for _, db := range []*database.DB{registryDB, auditDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

// InitializeRepositories creates the store-backed repositories
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.RegistryDB == nil || container.AuditDB == nil {
		return fmt.Errorf("databases not initialized")
	}
	container.RegistryRepo = metrics.NewRepository(container.RegistryDB.Conn(), log)
	container.AuditRepo = audit.NewRepository(container.AuditDB.Conn(), log)
	return nil
}
