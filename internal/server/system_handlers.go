package server

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/underwriter/internal/database"
	"github.com/aristath/underwriter/internal/modules/metrics"
)

// SystemStatusResponse reports process, host and storage health
type SystemStatusResponse struct {
	Status         string                  `json:"status"`
	UptimeSeconds  int64                   `json:"uptimeSeconds"`
	CPUPercent     float64                 `json:"cpuPercent"`
	MemoryPercent  float64                 `json:"memoryPercent"`
	DiskPercent    float64                 `json:"diskPercent"`
	Databases      map[string]string       `json:"databases"`
	Registry       metrics.RegistryBinding `json:"registry"`
	ArchiveEnabled bool                    `json:"archiveEnabled"`
}

// handleSystemStatus handles GET /api/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.getSystemStats()

	resp := SystemStatusResponse{
		Status:         "healthy",
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		CPUPercent:     cpuPercent,
		MemoryPercent:  memPercent,
		DiskPercent:    s.getDiskUsage(),
		Databases:      map[string]string{},
		Registry:       s.registry.Registry().Binding(),
		ArchiveEnabled: s.archiver != nil,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, db := range []*database.DB{s.registryDB, s.auditDB} {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			resp.Databases[db.Name()] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Databases[db.Name()] = "ok"
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// getSystemStats samples CPU over a short window and reads memory usage
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// getDiskUsage reports usage of the volume holding the data directory
func (s *Server) getDiskUsage() float64 {
	if s.cfg == nil || s.cfg.DataDir == "" {
		return 0
	}
	usage, err := disk.Usage(s.cfg.DataDir)
	if err != nil {
		s.log.Warn().Err(err).Str("dir", s.cfg.DataDir).Msg("Failed to get disk usage")
		return 0
	}
	return usage.UsedPercent
}
