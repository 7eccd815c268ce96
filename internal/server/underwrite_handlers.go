package server

import (
	"errors"
	"net/http"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/audit"
	"github.com/aristath/underwriter/internal/modules/debt"
	"github.com/aristath/underwriter/internal/modules/financials"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/pricing"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/aristath/underwriter/internal/modules/stress"
	"github.com/aristath/underwriter/internal/modules/underwriting"
)

var errNoFinancials = errors.New("either facts or model is required")

// financialsRequest carries a borrower's financials: raw facts, which are
// built into a model, or an already built model.
type financialsRequest struct {
	BusinessModel domain.BusinessModel   `json:"businessModel"`
	Facts         []domain.Fact          `json:"facts,omitempty"`
	Model         *domain.FinancialModel `json:"model,omitempty"`
}

func (f financialsRequest) model() (domain.FinancialModel, error) {
	switch {
	case len(f.Facts) > 0:
		bm := f.BusinessModel
		if bm == "" {
			bm = domain.BusinessModelGeneral
		}
		return financials.Build(f.Facts, bm), nil
	case f.Model != nil:
		return *f.Model, nil
	default:
		return domain.FinancialModel{}, errNoFinancials
	}
}

type underwriteRequest struct {
	financialsRequest
	DealID    string                 `json:"dealId"`
	Options   snapshot.Options       `json:"options"`
	Product   policy.Product         `json:"product"`
	Override  *policy.ConfigOverride `json:"override,omitempty"`
	Scenarios []stress.Scenario      `json:"scenarios,omitempty"`
	Pricing   *pricing.Config        `json:"pricing,omitempty"`
}

type underwriteResponse struct {
	RecordID         string                `json:"recordId,omitempty"`
	SnapshotHash     string                `json:"snapshotHash"`
	ArchiveKey       string                `json:"archiveKey,omitempty"`
	PipelineComplete bool                  `json:"pipelineComplete"`
	Result           *underwriting.Result  `json:"result,omitempty"`
	Failure          *underwriting.Failure `json:"failure,omitempty"`
}

// handleUnderwrite runs the full pipeline and records it in the audit trail
// POST /api/underwrite
func (s *Server) handleUnderwrite(w http.ResponseWriter, r *http.Request) {
	var req underwriteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DealID == "" {
		s.writeError(w, http.StatusBadRequest, "dealId is required")
		return
	}
	model, err := req.model()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := underwriting.Input{
		DealID:    req.DealID,
		Model:     model,
		Options:   req.Options,
		Product:   req.Product,
		Override:  s.resolveOverride(req.Product, req.Override),
		Scenarios: req.Scenarios,
		Pricing:   req.Pricing,
	}
	in.Options.Registry = s.registry.Registry()
	if in.Pricing == nil && s.cfg != nil {
		cfg := s.cfg.Pricing()
		in.Pricing = &cfg
	}

	outcome := s.underwriter.Underwrite(in)

	rec, err := audit.NewRecord(req.Facts, in, outcome, s.now())
	if err != nil {
		s.log.Error().Err(err).Str("deal_id", req.DealID).Msg("Failed to build audit record")
		s.writeError(w, http.StatusInternalServerError, "failed to build audit record")
		return
	}

	resp := underwriteResponse{
		SnapshotHash:     rec.SnapshotHash,
		PipelineComplete: outcome.Complete(),
	}

	if s.audit != nil {
		if err := s.audit.Save(r.Context(), rec); err != nil {
			s.log.Error().Err(err).Str("deal_id", req.DealID).Msg("Failed to save audit record")
			s.writeError(w, http.StatusInternalServerError, "failed to save audit record")
			return
		}
		resp.RecordID = rec.ID
	}

	if s.archiver != nil {
		key, err := s.archiver.Archive(r.Context(), rec)
		if err != nil {
			// The local audit trail is authoritative; a failed upload does not fail the request
			s.log.Warn().Err(err).Str("record_id", rec.ID).Msg("Failed to archive audit record")
		} else {
			resp.ArchiveKey = key
		}
	}

	status := http.StatusOK
	switch o := outcome.(type) {
	case *underwriting.Result:
		resp.Result = o
	case *underwriting.Failure:
		resp.Failure = o
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, resp)
}

// resolveOverride picks the request override, then the configured file
// override for the product, and applies the configured minor breach band.
func (s *Server) resolveOverride(product policy.Product, requested *policy.ConfigOverride) *policy.ConfigOverride {
	var out *policy.ConfigOverride
	if requested != nil {
		o := *requested
		out = &o
	} else if o, ok := s.overrides[product]; ok {
		out = &o
	}

	if s.cfg != nil && s.cfg.PolicyMinorBreachBand != nil {
		if out == nil {
			out = &policy.ConfigOverride{}
		}
		if out.MinorBreachBand == nil {
			band := *s.cfg.PolicyMinorBreachBand
			out.MinorBreachBand = &band
		}
	}
	return out
}

type debtServiceRequest struct {
	Instruments []debt.Instrument `json:"instruments"`
	PeriodType  domain.PeriodType `json:"periodType,omitempty"`
}

type debtServiceResponse struct {
	Portfolio debt.PortfolioServiceResult `json:"portfolio"`
	Aligned   *debt.AlignedDebtService    `json:"aligned,omitempty"`
}

// handleDebtService computes portfolio debt service for a set of instruments
// POST /api/debt/service
func (s *Server) handleDebtService(w http.ResponseWriter, r *http.Request) {
	var req debtServiceRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := debtServiceResponse{Portfolio: debt.ComputeDebtPortfolioService(req.Instruments)}
	if req.PeriodType != "" {
		aligned := debt.AlignDebtServiceToPeriod(resp.Portfolio, req.PeriodType)
		resp.Aligned = &aligned
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type policyEvaluateRequest struct {
	financialsRequest
	Options  snapshot.Options       `json:"options"`
	Product  policy.Product         `json:"product"`
	Override *policy.ConfigOverride `json:"override,omitempty"`
}

type policyEvaluateResponse struct {
	Snapshot *snapshot.CreditSnapshot `json:"snapshot"`
	Policy   policy.Result            `json:"policy"`
}

// handlePolicyEvaluate builds a snapshot and evaluates it against a product policy
// POST /api/policy/evaluate
func (s *Server) handlePolicyEvaluate(w http.ResponseWriter, r *http.Request) {
	var req policyEvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := req.model()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := req.Options
	opts.Registry = s.registry.Registry()
	snap := snapshot.Build(model, opts)
	if snap == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "no analysis period found")
		return
	}

	s.writeJSON(w, http.StatusOK, policyEvaluateResponse{
		Snapshot: snap,
		Policy:   policy.EvaluatePolicy(snap, req.Product, s.resolveOverride(req.Product, req.Override)),
	})
}

type compareRequest struct {
	Before    map[string]*float64 `json:"before"`
	After     map[string]*float64 `json:"after"`
	Tolerance *snapshot.Tolerance `json:"tolerance,omitempty"`
}

// handleCompareSnapshots diffs two metric sets
// POST /api/snapshots/compare
func (s *Server) handleCompareSnapshots(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tol := req.Tolerance
	if tol == nil && s.cfg != nil {
		t := s.cfg.Tolerance()
		tol = &t
	}
	s.writeJSON(w, http.StatusOK, snapshot.CompareSnapshotMetrics(req.Before, req.After, tol))
}
