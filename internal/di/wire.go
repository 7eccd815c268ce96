// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/underwriter/internal/config"
	"github.com/aristath/underwriter/internal/server"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
// 4. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, jobs, nil
}

// ServerConfig builds the HTTP server dependencies from the container
func (c *Container) ServerConfig(cfg *config.Config, log zerolog.Logger) server.Config {
	return server.Config{
		Log:         log,
		RegistryDB:  c.RegistryDB,
		AuditDB:     c.AuditDB,
		Config:      cfg,
		Registry:    c.Registry,
		Store:       c.RegistryRepo,
		Audit:       c.AuditRepo,
		Archiver:    c.Archiver,
		Underwriter: c.Underwriter,
		Overrides:   c.Overrides,
	}
}
