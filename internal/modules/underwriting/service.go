package underwriting

import (
	"time"

	"github.com/rs/zerolog"
)

// Service runs the pipeline with stage tracing. Logging never changes the
// outcome: Service.Underwrite and RunFullUnderwrite return equal values.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new underwriting service.
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("component", "underwriting_service").Logger(),
	}
}

// Underwrite runs the full pipeline for one deal.
func (s *Service) Underwrite(in Input) Outcome {
	start := time.Now()
	last := start

	s.log.Debug().
		Str("deal_id", in.DealID).
		Str("product", string(in.Product)).
		Int("periods", len(in.Model.Periods)).
		Int("instruments", len(in.Options.Instruments)).
		Msg("Starting underwriting run")

	outcome := run(in, defaultStages, func(stage Stage) {
		now := time.Now()
		s.log.Debug().
			Str("deal_id", in.DealID).
			Str("stage", string(stage)).
			Dur("elapsed", now.Sub(last)).
			Msg("Stage complete")
		last = now
	})

	switch o := outcome.(type) {
	case *Result:
		s.log.Info().
			Str("deal_id", in.DealID).
			Str("period", o.Snapshot.PeriodID).
			Str("tier", string(o.Policy.Tier)).
			Str("stress_tier", string(o.Stress.WorstTier)).
			Str("recommendation", string(o.Pricing.Recommendation)).
			Dur("duration", time.Since(start)).
			Msg("Underwriting complete")
	case *Failure:
		s.log.Warn().
			Str("deal_id", in.DealID).
			Str("failed_at", string(o.FailedAt)).
			Str("reason", o.Reason).
			Msg("Underwriting halted")
	}
	return outcome
}
