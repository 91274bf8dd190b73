// Package mapping maps messy financial statement line-item labels onto the
// canonical metric vocabulary using embedding similarity, and partitions the
// matches into confidence bands.
package mapping

// Candidate is one source label with its best canonical target, produced
// once per mapping pass and not mutated afterward.
type Candidate struct {
	Source  string
	Target  string // empty when no target met the similarity threshold
	Matched bool
	Score   float64
}

// Mapping is an accepted (target, confidence) pair for one source label.
type Mapping struct {
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
}

// Result partitions all candidates of one mapping request into four disjoint
// confidence groups. Every submitted label appears in exactly one group.
type Result struct {
	RequestID        string             `json:"request_id"`
	HighConfidence   map[string]Mapping `json:"high_confidence"`
	MediumConfidence map[string]Mapping `json:"medium_confidence"`
	LowConfidence    map[string]Mapping `json:"low_confidence"`
	RequiresManual   []string           `json:"requires_manual"`
	// Suggestions holds lexical hints for requires_manual labels, keyed by label.
	Suggestions map[string][]string `json:"suggestions,omitempty"`
	// Method records which inference path dominated this batch. Observability
	// only; never used for correctness.
	Method    string `json:"method"`
	QueryTime int64  `json:"query_time_ms"`
}

// Method tag values.
const (
	MethodRemote = "remote_ai"
	MethodLocal  = "local_ai"
	MethodCache  = "cache"
	MethodNone   = "none"
)

// State is a mapping pipeline phase.
type State string

const (
	StateIdle             State = "IDLE"
	StateEmbeddingSources State = "EMBEDDING_SOURCES"
	StateEmbeddingTargets State = "EMBEDDING_TARGETS"
	StateMatching         State = "MATCHING"
	StateClassifying      State = "CLASSIFYING"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// Thresholds are the confidence band cut-offs.
type Thresholds struct {
	High   float64
	Medium float64
	Low    float64
}
