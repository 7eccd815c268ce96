package di

import (
	"fmt"

	"github.com/aristath/underwriter/internal/config"
	"github.com/aristath/underwriter/internal/scheduler"
	"github.com/rs/zerolog"
)

// checkDatabasesSchedule runs the integrity check nightly
const checkDatabasesSchedule = "30 3 * * *"

// RegisterJobs creates the background jobs and schedules them
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)

	jobs := &JobInstances{
		RefreshRegistry: scheduler.NewRefreshRegistryJob(container.RegistryRepo, container.Registry, log),
		CheckDatabases:  scheduler.NewCheckDatabasesJob(log, container.RegistryDB, container.AuditDB),
	}

	if cfg.RegistryRefreshSchedule != "" {
		if err := container.Scheduler.AddJob(cfg.RegistryRefreshSchedule, jobs.RefreshRegistry); err != nil {
			return nil, fmt.Errorf("failed to schedule registry refresh: %w", err)
		}
	}
	if err := container.Scheduler.AddJob(checkDatabasesSchedule, jobs.CheckDatabases); err != nil {
		return nil, fmt.Errorf("failed to schedule database check: %w", err)
	}

	return jobs, nil
}
