package assembler

import (
	"context"
	"fmt"
	"sort"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/internal/index"
	"github.com/sandevgo/readr/internal/retriever"
	"github.com/sandevgo/readr/pkg/log"
)

// windowRadius is how many sequence neighbours on each side of the
// reading position are force-included in the bundle.
const windowRadius = 1

type Config struct {
	// BudgetTokens is the hard ceiling for bundled evidence. At least one
	// chunk is always kept, even when it alone exceeds the budget.
	BudgetTokens int
	// TopK is how many chunks similarity search contributes.
	TopK int
	// SnippetLimit caps external snippets in the bundle.
	SnippetLimit int
}

func DefaultConfig() Config {
	return Config{BudgetTokens: 3000, TopK: 5, SnippetLimit: 6}
}

// Request describes one evidence-selection run.
type Request struct {
	DocumentID string
	Title      string
	Query      string
	Focus      core.AnalysisFocus
	// Position, when set for this document, forces the chunks around the
	// reader's place into the bundle.
	Position *core.ReadingPosition
}

// Assembly is the selected evidence plus the external degradation flag
// the synthesizer surfaces to the user.
type Assembly struct {
	Bundle           core.ContextBundle
	ExternalDegraded bool
}

// Assembler turns a question into a token-budgeted evidence bundle:
// similar chunks from the index, the reading window, and external
// snippets.
type Assembler struct {
	embedder core.Embedder
	index    *index.Index
	ret      *retriever.Retriever
	cfg      Config
}

func New(embedder core.Embedder, ix *index.Index, ret *retriever.Retriever, cfg Config) *Assembler {
	return &Assembler{embedder: embedder, index: ix, ret: ret, cfg: cfg}
}

// Assemble selects evidence for a query. The result is deterministic for
// a fixed index and cache state: chunks appear in sequence order,
// snippets in descending relevance, and the token budget is never
// exceeded beyond the single guaranteed chunk.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Assembly, error) {
	if req.Query == "" {
		return Assembly{}, core.InputErrorf("query must not be empty")
	}
	if a.index.Count(req.DocumentID) == 0 {
		return Assembly{}, fmt.Errorf("document %q: %w", req.DocumentID, core.ErrNotFound)
	}

	vector, err := a.embedder.Embed(ctx, req.Query)
	if err != nil {
		return Assembly{}, fmt.Errorf("%w: embed query: %v", core.ErrRetrievalUnavailable, err)
	}

	forced := a.windowChunks(req)
	scored := a.index.Query(req.DocumentID, vector, a.cfg.TopK)

	chunks := a.selectChunks(forced, scored)

	terms := DeriveTerms(req.Query, req.Title, req.Focus)
	fetched := a.ret.FetchAll(ctx, terms, a.cfg.SnippetLimit)

	bundle := a.pack(ctx, chunks, fetched.Snippets)
	return Assembly{Bundle: bundle, ExternalDegraded: fetched.Degraded}, nil
}

// windowChunks maps the reading fraction onto the document span and
// returns every chunk overlapping the resulting window. Nil when no
// position applies.
func (a *Assembler) windowChunks(req Request) []core.Chunk {
	if req.Position == nil || req.Position.DocumentID != req.DocumentID {
		return nil
	}
	start, end, ok := a.index.DocumentSpan(req.DocumentID)
	if !ok {
		return nil
	}
	offset := start + int(req.Position.Fraction*float64(end-start))
	anchor := a.index.Neighborhood(req.DocumentID, offset, windowRadius)
	if len(anchor) == 0 {
		return nil
	}
	// Overlapping neighbours outside the anchor sequence are pulled in
	// too, so the window is covered with no gaps.
	return a.index.WindowChunks(req.DocumentID, anchor[0].StartOffset, anchor[len(anchor)-1].EndOffset)
}

// selectChunks unions the forced window with the similarity results,
// window first, and returns the union in sequence order. Forced chunks
// survive budget packing ahead of similarity hits.
func (a *Assembler) selectChunks(forced []core.Chunk, scored []index.Scored) []core.Chunk {
	seen := make(map[string]struct{})
	var out []core.Chunk

	for _, c := range forced {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	for _, s := range scored {
		if _, dup := seen[s.Chunk.ID]; dup {
			continue
		}
		seen[s.Chunk.ID] = struct{}{}
		out = append(out, s.Chunk)
	}
	return out
}

// pack applies the token budget: chunks in selection priority order,
// then snippets in relevance order. The first chunk is always kept.
func (a *Assembler) pack(ctx context.Context, chunks []core.Chunk, snippets []core.Snippet) core.ContextBundle {
	var bundle core.ContextBundle

	for i, c := range chunks {
		if i > 0 && bundle.TokensUsed+c.TokenSize > a.cfg.BudgetTokens {
			continue
		}
		bundle.Chunks = append(bundle.Chunks, c)
		bundle.TokensUsed += c.TokenSize
	}

	for _, s := range snippets {
		if bundle.TokensUsed+s.TokenSize > a.cfg.BudgetTokens {
			continue
		}
		bundle.Snippets = append(bundle.Snippets, s)
		bundle.TokensUsed += s.TokenSize
	}

	sort.Slice(bundle.Chunks, func(i, j int) bool {
		return bundle.Chunks[i].SequenceIndex < bundle.Chunks[j].SequenceIndex
	})

	log.FromCtx(ctx).Debug().
		Int("chunks", len(bundle.Chunks)).
		Int("snippets", len(bundle.Snippets)).
		Int("tokens", bundle.TokensUsed).
		Msg("context bundle assembled")

	return bundle
}
