package di

import (
	"github.com/aristath/underwriter/internal/database"
	"github.com/aristath/underwriter/internal/modules/audit"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/underwriting"
	"github.com/aristath/underwriter/internal/scheduler"
	"github.com/aristath/underwriter/internal/server"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	RegistryDB *database.DB // metric registry versions (standard profile)
	AuditDB    *database.DB // append-only audit trail (ledger profile)

	// Repositories
	RegistryRepo *metrics.Repository
	AuditRepo    *audit.Repository

	// Services
	Registry    *server.RegistryHolder
	Underwriter *underwriting.Service
	Archiver    *audit.Archiver // nil when AUDIT_S3_BUCKET is unset
	Overrides   map[policy.Product]policy.ConfigOverride

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	RefreshRegistry *scheduler.RefreshRegistryJob
	CheckDatabases  *scheduler.CheckDatabasesJob
}

// Close closes every open database
func (c *Container) Close() {
	if c.RegistryDB != nil {
		c.RegistryDB.Close()
	}
	if c.AuditDB != nil {
		c.AuditDB.Close()
	}
}
