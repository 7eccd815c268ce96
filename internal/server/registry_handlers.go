package server

import (
	"errors"
	"net/http"

	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/go-chi/chi/v5"
)

type activeRegistryResponse struct {
	Binding metrics.RegistryBinding `json:"binding"`
	Version metrics.RegistryVersion `json:"version"`
}

// handleActiveRegistry returns the registry version computations currently use
// GET /api/registry/active
func (s *Server) handleActiveRegistry(w http.ResponseWriter, r *http.Request) {
	reg := s.registry.Registry()
	s.writeJSON(w, http.StatusOK, activeRegistryResponse{
		Binding: reg.Binding(),
		Version: reg.Version(),
	})
}

type createVersionRequest struct {
	Label       string                     `json:"label"`
	Definitions []metrics.MetricDefinition `json:"definitions"`
}

// handleCreateRegistryVersion stores a new draft version
// POST /api/registry/versions
func (s *Server) handleCreateRegistryVersion(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "registry store not configured")
		return
	}

	var req createVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	draft, err := metrics.NewDraft(req.Label, req.Definitions, s.now())
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	if err := s.store.CreateDraft(r.Context(), draft); err != nil {
		s.log.Error().Err(err).Msg("Failed to create registry draft")
		s.writeError(w, http.StatusInternalServerError, "failed to create draft")
		return
	}

	s.log.Info().Str("version_id", draft.ID).Str("label", draft.Label).Msg("Registry draft created")
	s.writeJSON(w, http.StatusCreated, draft)
}

// handlePublishRegistryVersion publishes a draft and makes it active
// POST /api/registry/versions/{id}/publish
func (s *Server) handlePublishRegistryVersion(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "registry store not configured")
		return
	}

	published, err := metrics.Publish(r.Context(), s.store, chi.URLParam(r, "id"), s.now())
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}

	reg := metrics.NewRegistry(*published)
	s.registry.SetRegistry(reg)
	s.log.Info().
		Str("version_id", published.ID).
		Str("content_hash", published.ContentHash).
		Msg("Registry version published")
	s.writeJSON(w, http.StatusOK, published)
}

func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	var regErr *metrics.RegistryError
	if !errors.As(err, &regErr) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch regErr.Code {
	case metrics.CodeVersionNotFound:
		status = http.StatusNotFound
	case metrics.CodeImmutable, metrics.CodePublishFailed, metrics.CodeContentMismatch:
		status = http.StatusConflict
	case metrics.CodeNoEntries, metrics.CodeDuplicateMetric:
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, map[string]string{
		"error": regErr.Error(),
		"code":  string(regErr.Code),
	})
}
