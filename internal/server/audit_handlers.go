package server

import (
	"errors"
	"net/http"

	"github.com/aristath/underwriter/internal/modules/audit"
	"github.com/go-chi/chi/v5"
)

type auditRecordResponse struct {
	Record  audit.Record  `json:"record"`
	Payload audit.Payload `json:"payload"`
}

// handleGetAuditRecord returns one audit record with its decoded payload
// GET /api/audit/{id}
func (s *Server) handleGetAuditRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadAuditRecord(w, r)
	if !ok {
		return
	}

	payload, err := rec.DecodePayload()
	if err != nil {
		s.log.Error().Err(err).Str("record_id", rec.ID).Msg("Corrupt audit payload")
		s.writeError(w, http.StatusInternalServerError, "failed to decode audit payload")
		return
	}
	s.writeJSON(w, http.StatusOK, auditRecordResponse{Record: rec, Payload: payload})
}

// handleListAuditRecords lists a deal's audit records, oldest first
// GET /api/audit/deals/{dealID}
func (s *Server) handleListAuditRecords(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}

	records, err := s.audit.ListByDeal(r.Context(), chi.URLParam(r, "dealID"))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list audit records")
		s.writeError(w, http.StatusInternalServerError, "failed to list audit records")
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleReplayAuditRecord re-runs a recorded computation against its bound
// registry version and reports whether it reproduced
// POST /api/audit/{id}/replay
func (s *Server) handleReplayAuditRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadAuditRecord(w, r)
	if !ok {
		return
	}

	reg, err := audit.ResolveRegistry(r.Context(), s.store, rec.Registry)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audit.ErrRegistryMismatch) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err.Error())
		return
	}

	tol := s.cfg.Tolerance()
	verdict, err := audit.Replay(rec, reg, &tol)
	if err != nil {
		s.log.Error().Err(err).Str("record_id", rec.ID).Msg("Replay failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !verdict.Reproduced {
		s.log.Warn().
			Str("record_id", rec.ID).
			Str("original_hash", verdict.OriginalHash).
			Str("replay_hash", verdict.ReplayHash).
			Msg("Replay did not reproduce audit record")
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) loadAuditRecord(w http.ResponseWriter, r *http.Request) (audit.Record, bool) {
	if s.audit == nil {
		s.writeError(w, http.StatusServiceUnavailable, "audit store not configured")
		return audit.Record{}, false
	}

	rec, err := s.audit.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, audit.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return audit.Record{}, false
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load audit record")
		s.writeError(w, http.StatusInternalServerError, "failed to load audit record")
		return audit.Record{}, false
	}
	return rec, true
}
