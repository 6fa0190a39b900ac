package domain

type SourceKind string

const (
	SourceSemantic SourceKind = "semantic"
	SourceLexical  SourceKind = "lexical"
)

type SearchFilter struct {
	Category string
}

// Candidate is a single retrieval hit as returned by one search source.
// Immutable once returned by an adapter.
type Candidate struct {
	ID         string     `json:"id"`
	Source     SourceKind `json:"source"`
	RawScore   float64    `json:"raw_score"`
	Text       string     `json:"text"`
	Filename   string     `json:"filename"`
	Category   string     `json:"category"`
	ChunkIndex int        `json:"chunk_index"`
}

// FusedCandidate is the merged view of one retrieval unit across both sources.
// RerankScore is set only after a successful rerank pass; ordering authority is
// RerankScore when present, FusedScore otherwise.
type FusedCandidate struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Filename      string   `json:"filename"`
	Category      string   `json:"category"`
	ChunkIndex    int      `json:"chunk_index"`
	FusedScore    float64  `json:"fused_score"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
	LexicalScore  *float64 `json:"lexical_score,omitempty"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
	DualSource    bool     `json:"dual_source"`
}

type ContentDomain string

const (
	DomainFinancial ContentDomain = "financial"
	DomainLegal     ContentDomain = "legal"
	DomainTechnical ContentDomain = "technical"
	DomainAcademic  ContentDomain = "academic"
	DomainGeneric   ContentDomain = "generic"
)

// DomainLabel is recomputed per query, never persisted.
type DomainLabel struct {
	Domain     ContentDomain `json:"domain"`
	Confidence float64       `json:"confidence"`
}

// PromptStrategy maps a content domain to a prompt template and a context
// budget. Read-only at query time.
type PromptStrategy struct {
	Domain          ContentDomain
	Template        string
	MaxContextChars int
}

type PipelineTimings struct {
	SemanticMs float64 `json:"semantic_ms"`
	LexicalMs  float64 `json:"lexical_ms"`
	RerankMs   float64 `json:"rerank_ms"`
}

// PipelineResult is the outcome of one query execution. DegradedSource names
// the search source that failed when the pipeline proceeded with the survivor.
type PipelineResult struct {
	Prompt         string           `json:"prompt"`
	Answer         string           `json:"answer,omitempty"`
	RankedSources  []FusedCandidate `json:"ranked_sources"`
	Domain         DomainLabel      `json:"domain"`
	RerankerUsed   bool             `json:"reranker_used"`
	DegradedSource SourceKind       `json:"degraded_source,omitempty"`
	Timings        PipelineTimings  `json:"timings"`
}
