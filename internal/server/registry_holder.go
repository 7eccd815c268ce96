package server

import (
	"sync"

	"github.com/aristath/underwriter/internal/modules/metrics"
)

// RegistryHolder keeps the active metric registry. Each request takes one
// Registry value and uses it for the whole computation.
type RegistryHolder struct {
	mu  sync.RWMutex
	reg metrics.Registry
}

// NewRegistryHolder creates a holder with an initial registry
func NewRegistryHolder(reg metrics.Registry) *RegistryHolder {
	return &RegistryHolder{reg: reg}
}

// Registry returns the active registry
func (h *RegistryHolder) Registry() metrics.Registry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reg
}

// SetRegistry swaps the active registry
func (h *RegistryHolder) SetRegistry(reg metrics.Registry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reg = reg
}
