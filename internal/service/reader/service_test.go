package reader

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/readr/internal/agents"
	"github.com/sandevgo/readr/internal/assembler"
	"github.com/sandevgo/readr/internal/chunker"
	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/internal/index"
	"github.com/sandevgo/readr/internal/retriever"
	"github.com/sandevgo/readr/internal/session"
)

type fakeEmbedder struct{ fail bool }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	// Cheap deterministic vector from the text length.
	return []float32{float32(len(text)), 1, 0}, nil
}

type fakeCompleter struct{}

func (fakeCompleter) Complete(_ context.Context, _, block, query string, _ []core.Turn) (string, error) {
	return "answer to " + query, nil
}

type emptySource struct{}

func (emptySource) Name() string { return "empty" }
func (emptySource) Search(context.Context, string) ([]core.Snippet, error) {
	return nil, nil
}

func newTestService(emb core.Embedder) *Service {
	ix := index.New(emb, nil)
	ret := retriever.New(retriever.NewCache(time.Minute, 16), nil, emptySource{})
	asm := assembler.New(emb, ix, ret, assembler.DefaultConfig())
	orch := agents.NewOrchestrator(fakeCompleter{}, time.Second, 2*time.Second)
	syn := agents.NewSynthesizer(fakeCompleter{})
	sessions := session.NewManager(session.DefaultLimits(), nil)
	return NewService(chunker.DefaultConfig(), ix, asm, orch, syn, sessions)
}

func waitReady(t *testing.T, s *Service, docID string) core.BuildStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := s.Status(docID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if st.State == core.BuildReady || st.State == core.BuildFailed {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("build did not finish in time")
	return core.BuildStatus{}
}

const testText = "Call me Ishmael. Some years ago I went to sea. " +
	"It was a damp, drizzly November in my soul. " +
	"I thought I would sail about a little and see the watery part of the world."

func TestLoadDocumentAndAsk(t *testing.T) {
	s := newTestService(&fakeEmbedder{})

	st, err := s.LoadDocument(context.Background(), core.Document{ID: "moby", Title: "Moby Dick", Text: testText})
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if st.State != core.BuildPending {
		t.Errorf("initial state = %s, want pending", st.State)
	}

	final := waitReady(t, s, "moby")
	if final.State != core.BuildReady {
		t.Fatalf("final state = %s (%s)", final.State, final.Err)
	}
	if final.ChunkCount == 0 {
		t.Error("ready document should report its chunk count")
	}

	turn, err := s.Ask(context.Background(), AskRequest{
		SessionID:  "reader-1",
		DocumentID: "moby",
		Query:      "who narrates?",
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(turn.Answer, "who narrates?") {
		t.Errorf("answer = %q", turn.Answer)
	}
	if turn.SessionID != "reader-1" || turn.ID == "" {
		t.Errorf("turn not recorded in session: %+v", turn)
	}
	if len(turn.AgentResults) != 3 {
		t.Errorf("got %d agent results, want 3", len(turn.AgentResults))
	}

	history := s.Session(context.Background(), "reader-1").History()
	if len(history) != 1 {
		t.Errorf("history length = %d, want 1", len(history))
	}
}

func TestLoadDocument_InputErrors(t *testing.T) {
	s := newTestService(&fakeEmbedder{})

	if _, err := s.LoadDocument(context.Background(), core.Document{ID: "x"}); !core.IsInputError(err) {
		t.Errorf("empty text: err = %v, want input error", err)
	}
}

func TestLoadDocument_GeneratesID(t *testing.T) {
	s := newTestService(&fakeEmbedder{})

	st, err := s.LoadDocument(context.Background(), core.Document{Text: testText})
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if st.DocumentID == "" {
		t.Error("missing generated document id")
	}
}

func TestBuildFailure(t *testing.T) {
	s := newTestService(&fakeEmbedder{fail: true})

	if _, err := s.LoadDocument(context.Background(), core.Document{ID: "bad", Text: testText}); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	st := waitReady(t, s, "bad")
	if st.State != core.BuildFailed {
		t.Fatalf("state = %s, want failed", st.State)
	}
	if st.Err == "" {
		t.Error("failed build should carry the error")
	}

	_, err := s.Ask(context.Background(), AskRequest{DocumentID: "bad", Query: "q"})
	if !core.IsInputError(err) {
		t.Errorf("ask against failed build: err = %v, want input error", err)
	}
}

func TestAsk_UnknownDocument(t *testing.T) {
	s := newTestService(&fakeEmbedder{})

	_, err := s.Ask(context.Background(), AskRequest{DocumentID: "ghost", Query: "q"})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	if _, err := s.Status("ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Status err = %v, want ErrNotFound", err)
	}
}

func TestSetPosition(t *testing.T) {
	s := newTestService(&fakeEmbedder{})
	if _, err := s.LoadDocument(context.Background(), core.Document{ID: "moby", Text: testText}); err != nil {
		t.Fatal(err)
	}
	waitReady(t, s, "moby")

	if err := s.SetPosition(context.Background(), "reader-1", "moby", 0.5); err != nil {
		t.Fatalf("SetPosition: %v", err)
	}
	if err := s.SetPosition(context.Background(), "reader-1", "moby", 1.5); !core.IsInputError(err) {
		t.Errorf("out of range: err = %v, want input error", err)
	}
	if err := s.SetPosition(context.Background(), "reader-1", "ghost", 0.5); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown doc: err = %v, want ErrNotFound", err)
	}
}

// stubChunkStore serves persisted chunks and discards writes.
type stubChunkStore struct{ chunks map[string][]core.Chunk }

func (stubChunkStore) SaveChunks(context.Context, []core.Chunk) error { return nil }

func (s stubChunkStore) LoadChunks(_ context.Context, documentID string) ([]core.Chunk, error) {
	return s.chunks[documentID], nil
}

func TestLoadDocument_WarmStart(t *testing.T) {
	persisted := []core.Chunk{
		{ID: "moby-0", DocumentID: "moby", Text: "Call me Ishmael.", StartOffset: 0, EndOffset: 16, TokenSize: 5, SequenceIndex: 0, Embedding: []float32{16, 1, 0}},
		{ID: "moby-1", DocumentID: "moby", Text: "Some years ago I went to sea.", StartOffset: 17, EndOffset: 46, TokenSize: 8, SequenceIndex: 1, Embedding: []float32{29, 1, 0}},
	}
	store := stubChunkStore{chunks: map[string][]core.Chunk{"moby": persisted}}

	// A failing embedder proves no build runs for a restored document.
	emb := &fakeEmbedder{fail: true}
	ix := index.New(emb, store)
	ret := retriever.New(retriever.NewCache(time.Minute, 16), nil, emptySource{})
	asm := assembler.New(emb, ix, ret, assembler.DefaultConfig())
	orch := agents.NewOrchestrator(fakeCompleter{}, time.Second, 2*time.Second)
	syn := agents.NewSynthesizer(fakeCompleter{})
	sessions := session.NewManager(session.DefaultLimits(), nil)
	s := NewService(chunker.DefaultConfig(), ix, asm, orch, syn, sessions)

	st, err := s.LoadDocument(context.Background(), core.Document{ID: "moby", Title: "Moby Dick", Text: testText})
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if st.State != core.BuildReady {
		t.Fatalf("state = %s, want ready straight from the store", st.State)
	}
	if st.ChunkCount != 2 {
		t.Errorf("chunk count = %d, want 2", st.ChunkCount)
	}
}

func TestAsk_ReadingModeForcesWindow(t *testing.T) {
	emb := &fakeEmbedder{}
	ix := index.New(emb, nil)
	ret := retriever.New(retriever.NewCache(time.Minute, 16), nil, emptySource{})
	asm := assembler.New(emb, ix, ret, assembler.Config{BudgetTokens: 3000, TopK: 1, SnippetLimit: 0})
	orch := agents.NewOrchestrator(fakeCompleter{}, time.Second, 2*time.Second)
	syn := agents.NewSynthesizer(fakeCompleter{})
	sessions := session.NewManager(session.DefaultLimits(), nil)
	s := NewService(chunker.Config{MaxTokens: 8}, ix, asm, orch, syn, sessions)

	text := strings.Repeat("The whale surfaces again. ", 20)
	if _, err := s.LoadDocument(context.Background(), core.Document{ID: "moby", Text: text}); err != nil {
		t.Fatal(err)
	}
	if st := waitReady(t, s, "moby"); st.State != core.BuildReady {
		t.Fatalf("state = %s (%s)", st.State, st.Err)
	}
	if err := s.SetPosition(context.Background(), "reader-1", "moby", 0.5); err != nil {
		t.Fatal(err)
	}

	plain, err := s.Ask(context.Background(), AskRequest{SessionID: "reader-1", DocumentID: "moby", Query: "what happens?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	windowed, err := s.Ask(context.Background(), AskRequest{SessionID: "reader-1", DocumentID: "moby", Query: "what happens?", ReadingMode: true})
	if err != nil {
		t.Fatalf("Ask with reading mode: %v", err)
	}

	if got := len(plain.EvidenceRefs()); got != 1 {
		t.Fatalf("without reading mode: %d chunks bundled, want just the similarity hit", got)
	}
	if got := len(windowed.EvidenceRefs()); got < 3 {
		t.Errorf("reading mode bundled %d chunks, want the chunks around the position too", got)
	}
}

func TestCurrentWindow(t *testing.T) {
	s := newTestService(&fakeEmbedder{})
	if _, err := s.LoadDocument(context.Background(), core.Document{ID: "moby", Text: testText}); err != nil {
		t.Fatal(err)
	}
	waitReady(t, s, "moby")

	if _, _, err := s.CurrentWindow("reader-1", "moby"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("window before any position: err = %v, want ErrNotFound", err)
	}

	if err := s.SetPosition(context.Background(), "reader-1", "moby", 0.5); err != nil {
		t.Fatal(err)
	}

	start, end, err := s.CurrentWindow("reader-1", "moby")
	if err != nil {
		t.Fatalf("CurrentWindow: %v", err)
	}
	if start >= end {
		t.Fatalf("window [%d, %d) is empty", start, end)
	}

	// The window midpoint sits at half the document, give or take the
	// neighbouring chunks included on each side.
	mid := (start + end) / 2
	half := len(testText) / 2
	slack := end - start
	if mid < half-slack || mid > half+slack {
		t.Errorf("window [%d, %d) midpoint %d too far from %d", start, end, mid, half)
	}
}
