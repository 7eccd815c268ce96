package metrics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/pkg/formulas"
)

// VersionStatus is the lifecycle state of a registry version.
// The only transition is draft -> published.
type VersionStatus string

const (
	StatusDraft     VersionStatus = "draft"
	StatusPublished VersionStatus = "published"
)

// SeedVersionID identifies the built-in fallback registry.
const SeedVersionID = "seed"

// RegistryEntry pairs a metric key with its definition inside a version.
type RegistryEntry struct {
	MetricKey  string           `json:"metricKey" msgpack:"metricKey"`
	Definition MetricDefinition `json:"definition" msgpack:"definition"`
}

// RegistryVersion is one versioned set of metric definitions.
type RegistryVersion struct {
	ID          string          `json:"id" msgpack:"id"`
	Label       string          `json:"label" msgpack:"label"`
	Status      VersionStatus   `json:"status" msgpack:"status"`
	ContentHash string          `json:"contentHash,omitempty" msgpack:"contentHash,omitempty"`
	CreatedAt   time.Time       `json:"createdAt" msgpack:"createdAt"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty" msgpack:"publishedAt,omitempty"`
	Entries     []RegistryEntry `json:"entries" msgpack:"entries"`
}

// RegistryBinding records which published version a computation used.
type RegistryBinding struct {
	VersionID   string `json:"versionId" msgpack:"versionId"`
	ContentHash string `json:"contentHash" msgpack:"contentHash"`
}

// ComputeContentHash hashes (metricKey, definitionJSON) pairs sorted by key.
// Entry order in the input does not affect the result.
func ComputeContentHash(entries []RegistryEntry) string {
	sorted := append([]RegistryEntry{}, entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MetricKey < sorted[j].MetricKey
	})

	h := sha256.New()
	for _, e := range sorted {
		// MetricDefinition only holds strings, ints, bools and slices; Marshal cannot fail
		definitionJSON, _ := json.Marshal(e.Definition)
		h.Write([]byte(e.MetricKey))
		h.Write([]byte{0})
		h.Write(definitionJSON)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Registry is a read-only, loaded registry version. It is an explicit value:
// load it once per computation and pass it down.
type Registry struct {
	version     RegistryVersion
	definitions map[string]MetricDefinition
}

// NewRegistry indexes a version's entries by metric key.
func NewRegistry(version RegistryVersion) Registry {
	defs := make(map[string]MetricDefinition, len(version.Entries))
	entries := make([]RegistryEntry, len(version.Entries))
	for i, e := range version.Entries {
		defs[e.MetricKey] = e.Definition
		entries[i] = e
	}
	version.Entries = entries
	return Registry{version: version, definitions: defs}
}

// SeedRegistry returns the built-in registry. It is deterministic: no
// timestamps, stable content hash.
func SeedRegistry() Registry {
	entries := entriesFor(SeedDefinitions())
	return NewRegistry(RegistryVersion{
		ID:          SeedVersionID,
		Label:       "built-in seed",
		Status:      StatusPublished,
		ContentHash: ComputeContentHash(entries),
		Entries:     entries,
	})
}

// Get returns a metric definition by id.
func (r Registry) Get(id string) (MetricDefinition, bool) {
	d, ok := r.definitions[id]
	return d, ok
}

// IDs returns every metric id, sorted.
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r.definitions))
	for id := range r.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Version returns the underlying registry version (entries copied).
func (r Registry) Version() RegistryVersion {
	v := r.version
	v.Entries = append([]RegistryEntry{}, r.version.Entries...)
	return v
}

// Binding returns the version binding to record alongside a computation.
func (r Registry) Binding() RegistryBinding {
	return RegistryBinding{VersionID: r.version.ID, ContentHash: r.version.ContentHash}
}

// IsZero reports whether the registry was never loaded.
func (r Registry) IsZero() bool {
	return r.definitions == nil
}

// MetricValue is the evaluated value of one metric.
type MetricValue struct {
	ID            string   `json:"id" msgpack:"id"`
	Label         string   `json:"label" msgpack:"label"`
	Value         *float64 `json:"value" msgpack:"value"`
	IsPercent     bool     `json:"isPercent,omitempty" msgpack:"isPercent,omitempty"`
	MissingInputs []string `json:"missingInputs,omitempty" msgpack:"missingInputs,omitempty"`
}

// MissingMetricInput is the sentinel missing input reported for unknown metric ids.
func MissingMetricInput(id string) string {
	return "metric:" + id
}

// EvaluateMetric evaluates a single metric by id. Unknown ids never fail:
// they come back null with a sentinel missing input.
func EvaluateMetric(reg Registry, id string, facts formulas.Facts) MetricValue {
	def, ok := reg.Get(id)
	if !ok {
		return MetricValue{ID: id, Label: id, MissingInputs: []string{MissingMetricInput(id)}}
	}
	return evaluate(def, facts)
}

// EvaluateAll evaluates every metric applicable to the business model.
func EvaluateAll(reg Registry, facts formulas.Facts, model domain.BusinessModel) map[string]MetricValue {
	out := make(map[string]MetricValue, len(reg.definitions))
	for _, id := range reg.IDs() {
		def := reg.definitions[id]
		if !def.AppliesTo(model) {
			continue
		}
		out[id] = evaluate(def, facts)
	}
	return out
}

func evaluate(def MetricDefinition, facts formulas.Facts) MetricValue {
	res := formulas.Evaluate(def.Expr, facts)

	missing := append([]string{}, res.MissingInputs...)
	for _, key := range def.RequiredFacts {
		v, ok := facts[key]
		if (!ok || v == nil || !formulas.IsFinite(*v)) && !contains(missing, key) {
			missing = append(missing, key)
		}
	}

	mv := MetricValue{
		ID:        def.ID,
		Label:     def.Label,
		IsPercent: def.IsPercent,
	}
	if len(missing) > 0 {
		mv.MissingInputs = missing
	}
	// A missing required fact voids the metric even if the formula could be computed
	if res.Value != nil && len(missing) == 0 {
		rounded := formulas.RoundTo(*res.Value, def.Precision)
		mv.Value = &rounded
	}
	return mv
}

func entriesFor(defs []MetricDefinition) []RegistryEntry {
	entries := make([]RegistryEntry, 0, len(defs))
	for _, d := range defs {
		entries = append(entries, RegistryEntry{MetricKey: d.ID, Definition: d})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].MetricKey < entries[j].MetricKey
	})
	return entries
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
