package di

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/underwriter/internal/config"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:                 t.TempDir(),
		Port:                    8080,
		PricingBaseRate:         0.075,
		RegistryRefreshSchedule: "@every 5m",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.FileExists(t, filepath.Join(cfg.DataDir, "registry.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "audit.db"))
	assert.NotNil(t, container.RegistryRepo)
	assert.NotNil(t, container.AuditRepo)
	assert.NotNil(t, container.Underwriter)
	assert.Nil(t, container.Archiver)
	assert.Empty(t, container.Overrides)
	assert.Equal(t, metrics.SeedVersionID, container.Registry.Registry().Binding().VersionID)

	require.NotNil(t, jobs)
	assert.Equal(t, 2, container.Scheduler.Entries())
	assert.NoError(t, jobs.CheckDatabases.Run())
	assert.NoError(t, jobs.RefreshRegistry.Run())

	srvCfg := container.ServerConfig(cfg, zerolog.Nop())
	assert.Same(t, container.Registry, srvCfg.Registry)
	assert.Same(t, container.AuditRepo, srvCfg.Audit)
}

func TestWire_PolicyOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.RegistryRefreshSchedule = ""
	cfg.PolicyOverridesPath = filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(cfg.PolicyOverridesPath, []byte(`
products:
  sba_7a:
    minorBreachBand: 0.2
`), 0o644))

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	require.Contains(t, container.Overrides, policy.ProductSBA7a)
	assert.InDelta(t, 0.2, *container.Overrides[policy.ProductSBA7a].MinorBreachBand, 1e-12)
	assert.Equal(t, 1, container.Scheduler.Entries())
}

func TestWire_BadOverridesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyOverridesPath = filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(cfg.PolicyOverridesPath, []byte("products: [nope"), 0o644))

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "policy overrides")
}
