package index

import (
	"context"
	"errors"
	"testing"

	"github.com/sandevgo/readr/internal/core"
)

// fakeEmbedder maps known texts to fixed vectors and fails on demand.
type fakeEmbedder struct {
	vectors map[string][]float32
	failOn  map[string]bool
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn[text] {
		return nil, errors.New("embedding backend down")
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func chunk(id string, seq int, text string) core.Chunk {
	return core.Chunk{
		ID:            id,
		DocumentID:    "doc1",
		Text:          text,
		SequenceIndex: seq,
		StartOffset:   seq * 10,
		EndOffset:     seq*10 + 10,
	}
}

func TestIndex_AddAndQuery(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
		"gamma": {0.9, 0.1, 0},
	}}
	ix := New(emb, nil)

	err := ix.Add(context.Background(), []core.Chunk{
		chunk("c0", 0, "alpha"),
		chunk("c1", 1, "beta"),
		chunk("c2", 2, "gamma"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ix.Query("doc1", []float32{1, 0, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Chunk.ID != "c0" {
		t.Errorf("top result = %s, want c0", got[0].Chunk.ID)
	}
	if got[1].Chunk.ID != "c2" {
		t.Errorf("second result = %s, want c2", got[1].Chunk.ID)
	}
}

func TestIndex_TieBreakBySequence(t *testing.T) {
	// Identical vectors: ranking must fall back to ascending sequence.
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"same1": {1, 0, 0},
		"same2": {1, 0, 0},
	}}
	ix := New(emb, nil)

	if err := ix.Add(context.Background(), []core.Chunk{
		chunk("c5", 5, "same2"),
		chunk("c2", 2, "same1"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ix.Query("doc1", []float32{1, 0, 0}, 2)
	if got[0].Chunk.SequenceIndex != 2 || got[1].Chunk.SequenceIndex != 5 {
		t.Errorf("tie not broken by sequence index: got %d then %d",
			got[0].Chunk.SequenceIndex, got[1].Chunk.SequenceIndex)
	}
}

func TestIndex_AddIdempotent(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
	}}
	ix := New(emb, nil)

	chunks := []core.Chunk{chunk("c0", 0, "alpha"), chunk("c1", 1, "beta")}
	if err := ix.Add(context.Background(), chunks); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := ix.Add(context.Background(), chunks); err != nil {
		t.Fatalf("second add: %v", err)
	}

	if n := ix.Count("doc1"); n != 2 {
		t.Errorf("count = %d after double add, want 2", n)
	}
	got := ix.Query("doc1", []float32{1, 0, 0}, 2)
	if got[0].Chunk.ID != "c0" || got[1].Chunk.ID != "c1" {
		t.Errorf("ranking changed after re-add: %s, %s", got[0].Chunk.ID, got[1].Chunk.ID)
	}
}

func TestIndex_PartialAddFailure(t *testing.T) {
	emb := &fakeEmbedder{
		vectors: map[string][]float32{"alpha": {1, 0, 0}},
		failOn:  map[string]bool{"beta": true, "gamma": true},
	}
	ix := New(emb, nil)

	err := ix.Add(context.Background(), []core.Chunk{
		chunk("c0", 0, "alpha"),
		chunk("c1", 1, "beta"),
		chunk("c2", 2, "gamma"),
	})

	var partial *core.PartialAddError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialAddError", err)
	}
	if len(partial.FailedIDs) != 2 || partial.FailedIDs[0] != "c1" || partial.FailedIDs[1] != "c2" {
		t.Errorf("failed ids = %v, want [c1 c2]", partial.FailedIDs)
	}
	// Successful chunk must not be dropped.
	if n := ix.Count("doc1"); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestIndex_AllEmbeddingsFail(t *testing.T) {
	emb := &fakeEmbedder{failOn: map[string]bool{"alpha": true}}
	ix := New(emb, nil)

	err := ix.Add(context.Background(), []core.Chunk{chunk("c0", 0, "alpha")})
	if !errors.Is(err, core.ErrRetrievalUnavailable) {
		t.Errorf("err = %v, want ErrRetrievalUnavailable", err)
	}
}

// fakeChunkStore serves a fixed set of persisted chunks per document.
type fakeChunkStore struct {
	chunks map[string][]core.Chunk
	err    error
}

func (f *fakeChunkStore) SaveChunks(_ context.Context, chunks []core.Chunk) error { return nil }

func (f *fakeChunkStore) LoadChunks(_ context.Context, documentID string) ([]core.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[documentID], nil
}

func TestIndex_Restore(t *testing.T) {
	c0, c1 := chunk("c0", 0, "alpha"), chunk("c1", 1, "beta")
	c0.Embedding = []float32{1, 0, 0}
	c1.Embedding = []float32{0, 1, 0}
	store := &fakeChunkStore{chunks: map[string][]core.Chunk{"doc1": {c1, c0}}}

	emb := &fakeEmbedder{}
	ix := New(emb, store)

	if err := ix.Restore(context.Background(), "doc1"); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("restore embedded %d chunks, want 0", emb.calls)
	}
	if n := ix.Count("doc1"); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	// Persisted embeddings must be queryable straight away.
	got := ix.Query("doc1", []float32{0, 1, 0}, 1)
	if len(got) != 1 || got[0].Chunk.ID != "c1" {
		t.Errorf("query after restore = %+v, want c1", got)
	}
}

func TestIndex_RestoreStoreFailure(t *testing.T) {
	store := &fakeChunkStore{err: errors.New("db offline")}
	ix := New(&fakeEmbedder{}, store)

	if err := ix.Restore(context.Background(), "doc1"); err == nil {
		t.Error("store failure must surface from Restore")
	}
	if n := ix.Count("doc1"); n != 0 {
		t.Errorf("count = %d after failed restore, want 0", n)
	}
}

func TestIndex_Neighborhood(t *testing.T) {
	emb := &fakeEmbedder{}
	ix := New(emb, nil)
	if err := ix.Add(context.Background(), []core.Chunk{
		chunk("c0", 0, "a"), // offsets [0,10)
		chunk("c1", 1, "b"), // offsets [10,20)
		chunk("c2", 2, "c"), // offsets [20,30)
		chunk("c3", 3, "d"), // offsets [30,40)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		offset  int
		radius  int
		wantIDs []string
	}{
		{name: "middle", offset: 15, radius: 1, wantIDs: []string{"c0", "c1", "c2"}},
		{name: "start_clamped", offset: 0, radius: 1, wantIDs: []string{"c0", "c1"}},
		{name: "past_end_anchors_last", offset: 500, radius: 1, wantIDs: []string{"c2", "c3"}},
		{name: "zero_radius", offset: 25, radius: 0, wantIDs: []string{"c2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Neighborhood("doc1", tt.offset, tt.radius)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d chunks, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("chunk %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestIndex_WindowChunks(t *testing.T) {
	emb := &fakeEmbedder{}
	ix := New(emb, nil)
	if err := ix.Add(context.Background(), []core.Chunk{
		chunk("c0", 0, "a"), // offsets [0,10)
		chunk("c1", 1, "b"), // offsets [10,20)
		chunk("c2", 2, "c"), // offsets [20,30)
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name       string
		start, end int
		wantIDs    []string
	}{
		{name: "middle", start: 12, end: 18, wantIDs: []string{"c1"}},
		{name: "spanning", start: 5, end: 25, wantIDs: []string{"c0", "c1", "c2"}},
		{name: "boundary_exclusive", start: 10, end: 20, wantIDs: []string{"c1"}},
		{name: "outside", start: 100, end: 200, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.WindowChunks("doc1", tt.start, tt.end)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d chunks, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("chunk %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}
