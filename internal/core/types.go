package core

import "time"

const (
	ReadrName      = "READR"
	ReadrUserAgent = "READR-Companion/0.1"
	ReadrVersion   = "0.1.0"
)

// AgentName identifies one of the registered reasoning roles.
type AgentName string

const (
	AgentReader   AgentName = "reader"
	AgentContext  AgentName = "context"
	AgentAnalysis AgentName = "analysis"
)

// SynthesisOrder is the fixed order in which agent evidence is combined:
// text first, then external grounding, then interpretation.
var SynthesisOrder = []AgentName{AgentReader, AgentContext, AgentAnalysis}

// AnalysisFocus biases query-term derivation toward a reading goal.
type AnalysisFocus string

const (
	FocusGeneral    AnalysisFocus = "general"
	FocusHistorical AnalysisFocus = "historical"
	FocusCharacter  AnalysisFocus = "character"
	FocusSymbolism  AnalysisFocus = "symbolism"
	FocusThemes     AnalysisFocus = "themes"
)

// Document is an immutable uploaded text.
type Document struct {
	ID    string
	Title string
	Text  string
}

// Chunk is a contiguous slice of a document with positional metadata.
// Chunks for a document are ordered by SequenceIndex and collectively
// cover the full document span; neighbours may overlap by the configured
// boundary width.
type Chunk struct {
	ID            string
	DocumentID    string
	Text          string
	StartOffset   int
	EndOffset     int
	TokenSize     int
	SequenceIndex int
	Embedding     []float32
}

// Snippet is an externally retrieved piece of context, owned by the
// retriever cache.
type Snippet struct {
	SourceID  string
	Query     string
	Title     string
	Text      string
	URL       string
	FetchedAt time.Time
	Relevance float32
	TokenSize int
}

// ContextBundle is the per-query evidence selection. It is created fresh
// by the assembler and never shared across concurrent queries.
type ContextBundle struct {
	Chunks     []Chunk
	Snippets   []Snippet
	TokensUsed int
}

// ChunkIDs returns the ids of the bundled chunks, in bundle order.
func (b ContextBundle) ChunkIDs() []string {
	ids := make([]string, 0, len(b.Chunks))
	for _, c := range b.Chunks {
		ids = append(ids, c.ID)
	}
	return ids
}

type AgentStatus string

const (
	StatusOK       AgentStatus = "ok"
	StatusTimedOut AgentStatus = "timed_out"
	StatusFailed   AgentStatus = "failed"
)

// AgentResult is the outcome of one agent invocation. A timed out or
// failed agent carries empty text.
type AgentResult struct {
	Agent        AgentName
	Status       AgentStatus
	Text         string
	EvidenceRefs []string
	Err          string
}

// Turn is one completed question/answer exchange.
type Turn struct {
	ID           string
	SessionID    string
	Query        string
	Answer       string
	AgentResults []AgentResult
	// DegradedAgents lists agents that did not complete; the UI renders a
	// reduced-confidence indicator from this.
	DegradedAgents []AgentName
	// ExternalDegraded is set when the retriever served stale or no
	// external context.
	ExternalDegraded bool
	CreatedAt        time.Time
	TokenSize        int
}

// EvidenceRefs returns the union of all agent evidence refs in synthesis
// order, deduplicated, preserving first occurrence.
func (t Turn) EvidenceRefs() []string {
	seen := make(map[string]struct{})
	var refs []string
	for _, name := range SynthesisOrder {
		for _, r := range t.AgentResults {
			if r.Agent != name {
				continue
			}
			for _, ref := range r.EvidenceRefs {
				if _, ok := seen[ref]; ok {
					continue
				}
				seen[ref] = struct{}{}
				refs = append(refs, ref)
			}
		}
	}
	return refs
}

// ReadingPosition is the single mutable per-session reading marker.
type ReadingPosition struct {
	DocumentID string
	Fraction   float64
}

// BuildState reports embedding-index build progress for a document.
type BuildState string

const (
	BuildPending  BuildState = "pending"
	BuildRunning  BuildState = "building"
	BuildReady    BuildState = "ready"
	BuildFailed   BuildState = "failed"
)

type BuildStatus struct {
	DocumentID   string
	State        BuildState
	ChunkCount   int
	FailedChunks []string
	Err          string
}
