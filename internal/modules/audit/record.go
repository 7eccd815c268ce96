package audit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/underwriting"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Payload is what a record stores to replay a run.
type Payload struct {
	Input    underwriting.Input  `msgpack:"input"`
	Facts    []domain.Fact       `msgpack:"facts"`
	Metrics  map[string]*float64 `msgpack:"metrics"`
	FailedAt underwriting.Stage  `msgpack:"failedAt,omitempty"`
	Reason   string              `msgpack:"reason,omitempty"`
}

// Record is one immutable audit trail entry.
type Record struct {
	ID               string                  `json:"id" msgpack:"id"`
	DealID           string                  `json:"dealId" msgpack:"dealId"`
	SnapshotHash     string                  `json:"snapshotHash" msgpack:"snapshotHash"`
	Registry         metrics.RegistryBinding `json:"registry" msgpack:"registry"`
	PolicyProduct    policy.Product          `json:"policyProduct" msgpack:"policyProduct"`
	PolicyVersion    string                  `json:"policyVersion" msgpack:"policyVersion"`
	PipelineComplete bool                    `json:"pipelineComplete" msgpack:"pipelineComplete"`
	Tier             policy.Tier             `json:"tier,omitempty" msgpack:"tier,omitempty"`
	Payload          []byte                  `json:"-" msgpack:"payload"`
	CreatedAt        time.Time               `json:"createdAt" msgpack:"createdAt"`
}

// DecodePayload unpacks the stored payload.
func (r Record) DecodePayload() (Payload, error) {
	var p Payload
	if err := msgpack.Unmarshal(r.Payload, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode audit payload for %s: %w", r.ID, err)
	}
	return p, nil
}

// HashOutcome computes the snapshot hash input and hash for a run.
func HashOutcome(facts []domain.Fact, in underwriting.Input, outcome underwriting.Outcome) (string, HashInput, error) {
	hi := HashInput{
		Facts:          facts,
		FinancialModel: in.Model,
		Metrics:        map[string]*float64{},
	}

	if res, ok := outcome.(*underwriting.Result); ok && res.Snapshot != nil {
		hi.Metrics = res.Snapshot.MetricValues()
		hi.RegistryVersion = res.Snapshot.Registry
		hi.PolicyVersion = res.Policy.PolicyVersion
	} else {
		reg := in.Options.Registry
		if reg.IsZero() {
			reg = metrics.SeedRegistry()
		}
		def, _ := policy.Resolve(in.Product, in.Override)
		hi.RegistryVersion = reg.Binding()
		hi.PolicyVersion = def.VersionTag()
	}

	hash, err := ComputeSnapshotHash(hi)
	if err != nil {
		return "", HashInput{}, err
	}
	return hash, hi, nil
}

// NewRecord builds the audit record for a completed or failed run.
func NewRecord(facts []domain.Fact, in underwriting.Input, outcome underwriting.Outcome, now time.Time) (Record, error) {
	hash, hi, err := HashOutcome(facts, in, outcome)
	if err != nil {
		return Record{}, err
	}

	payload := Payload{Input: in, Facts: facts, Metrics: hi.Metrics}
	rec := Record{
		ID:            uuid.New().String(),
		DealID:        in.DealID,
		SnapshotHash:  hash,
		Registry:      hi.RegistryVersion,
		PolicyProduct: in.Product,
		PolicyVersion: hi.PolicyVersion,
		CreatedAt:     now.UTC(),
	}

	switch o := outcome.(type) {
	case *underwriting.Result:
		rec.PipelineComplete = true
		rec.Tier = o.Policy.Tier
	case *underwriting.Failure:
		payload.FailedAt = o.FailedAt
		payload.Reason = o.Reason
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(payload); err != nil {
		return Record{}, fmt.Errorf("failed to encode audit payload: %w", err)
	}
	rec.Payload = buf.Bytes()
	return rec, nil
}
