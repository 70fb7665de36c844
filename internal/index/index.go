package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/log"
)

// Scored pairs a chunk with its similarity to a query vector.
type Scored struct {
	Chunk core.Chunk
	Score float32
}

// Index is the in-memory embedding index. Reads are lock-free under the
// read lock; writes are serialized. An optional ChunkStore receives
// write-through copies of embedded chunks.
type Index struct {
	mu       sync.RWMutex
	embedder core.Embedder
	store    core.ChunkStore // may be nil
	docs     map[string][]core.Chunk
}

func New(embedder core.Embedder, store core.ChunkStore) *Index {
	return &Index{
		embedder: embedder,
		store:    store,
		docs:     make(map[string][]core.Chunk),
	}
}

// Add embeds and stores the given chunks. Idempotent per chunk id:
// re-adding overwrites. If some embeddings fail, the successes are kept
// and a PartialAddError names exactly the failed chunk ids.
func (ix *Index) Add(ctx context.Context, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var (
		embedded  []core.Chunk
		failedIDs []string
		cause     error
	)

	for _, c := range chunks {
		vec, err := ix.embedder.Embed(ctx, c.Text)
		if err != nil {
			failedIDs = append(failedIDs, c.ID)
			cause = err
			continue
		}
		c.Embedding = vec
		embedded = append(embedded, c)
	}

	if len(embedded) > 0 {
		ix.insert(embedded)
		if ix.store != nil {
			if err := ix.store.SaveChunks(ctx, embedded); err != nil {
				log.FromCtx(ctx).Warn().Err(err).Msg("chunk write-through failed")
			}
		}
	}

	if len(failedIDs) == len(chunks) {
		return fmt.Errorf("%w: %v", core.ErrRetrievalUnavailable, cause)
	}
	if len(failedIDs) > 0 {
		return core.NewPartialAddError(failedIDs, cause)
	}
	return nil
}

func (ix *Index) insert(chunks []core.Chunk) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, c := range chunks {
		existing := ix.docs[c.DocumentID]
		replaced := false
		for i := range existing {
			if existing[i].ID == c.ID {
				existing[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
		ix.docs[c.DocumentID] = existing
	}

	for docID := range ix.docs {
		sort.Slice(ix.docs[docID], func(a, b int) bool {
			return ix.docs[docID][a].SequenceIndex < ix.docs[docID][b].SequenceIndex
		})
	}
}

// Restore loads previously persisted chunks without re-embedding.
func (ix *Index) Restore(ctx context.Context, documentID string) error {
	if ix.store == nil {
		return nil
	}
	chunks, err := ix.store.LoadChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("restore chunks: %w", err)
	}
	ix.insert(chunks)
	return nil
}

// Query returns the k chunks of the document most similar to the vector,
// highest score first, ties broken by ascending sequence index.
func (ix *Index) Query(documentID string, vector []float32, k int) []Scored {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	chunks := ix.docs[documentID]
	scored := make([]Scored, 0, len(chunks))
	for _, c := range chunks {
		scored = append(scored, Scored{Chunk: c, Score: cosine(vector, c.Embedding)})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].Score != scored[b].Score {
			return scored[a].Score > scored[b].Score
		}
		return scored[a].Chunk.SequenceIndex < scored[b].Chunk.SequenceIndex
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}

// WindowChunks returns all chunks whose offset range intersects
// [start, end), in sequence order.
func (ix *Index) WindowChunks(documentID string, start, end int) []core.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []core.Chunk
	for _, c := range ix.docs[documentID] {
		if c.StartOffset < end && c.EndOffset > start {
			out = append(out, c)
		}
	}
	return out
}

// Neighborhood returns the chunk covering the byte offset plus radius
// sequence neighbours on each side, in sequence order. An offset past
// the last chunk anchors on the last chunk.
func (ix *Index) Neighborhood(documentID string, offset, radius int) []core.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	chunks := ix.docs[documentID]
	if len(chunks) == 0 {
		return nil
	}

	anchor := len(chunks) - 1
	for i, c := range chunks {
		if offset < c.EndOffset {
			anchor = i
			break
		}
	}

	lo := anchor - radius
	if lo < 0 {
		lo = 0
	}
	hi := anchor + radius + 1
	if hi > len(chunks) {
		hi = len(chunks)
	}

	out := make([]core.Chunk, hi-lo)
	copy(out, chunks[lo:hi])
	return out
}

// DocumentSpan returns the [min, max) offset range covered by a
// document's chunks.
func (ix *Index) DocumentSpan(documentID string) (start, end int, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	chunks := ix.docs[documentID]
	if len(chunks) == 0 {
		return 0, 0, false
	}
	start, end = chunks[0].StartOffset, chunks[0].EndOffset
	for _, c := range chunks[1:] {
		if c.StartOffset < start {
			start = c.StartOffset
		}
		if c.EndOffset > end {
			end = c.EndOffset
		}
	}
	return start, end, true
}

// Count reports how many chunks are indexed for a document.
func (ix *Index) Count(documentID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs[documentID])
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
