package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sandevgo/readr/internal/agents"
	"github.com/sandevgo/readr/internal/assembler"
	"github.com/sandevgo/readr/internal/chunker"
	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/internal/index"
	"github.com/sandevgo/readr/internal/session"
	"github.com/sandevgo/readr/pkg/log"
)

// Service is the reading companion itself: it owns documents, their
// index builds, and the ask pipeline.
type Service struct {
	chunkCfg     chunker.Config
	index        *index.Index
	assembler    *assembler.Assembler
	orchestrator *agents.Orchestrator
	synthesizer  *agents.Synthesizer
	sessions     *session.Manager

	mu       sync.Mutex
	docs     map[string]core.Document
	statuses map[string]core.BuildStatus
}

func NewService(chunkCfg chunker.Config, ix *index.Index, asm *assembler.Assembler, orch *agents.Orchestrator, syn *agents.Synthesizer, sessions *session.Manager) *Service {
	return &Service{
		chunkCfg:     chunkCfg,
		index:        ix,
		assembler:    asm,
		orchestrator: orch,
		synthesizer:  syn,
		sessions:     sessions,
		docs:         make(map[string]core.Document),
		statuses:     make(map[string]core.BuildStatus),
	}
}

// LoadDocument registers a document and starts its index build in the
// background. The returned status is the initial pending state; poll
// Status for completion. An empty id gets a generated one; a known id
// with persisted chunks is restored and reported ready immediately.
func (s *Service) LoadDocument(ctx context.Context, doc core.Document) (core.BuildStatus, error) {
	if doc.Text == "" {
		return core.BuildStatus{}, core.InputErrorf("document text must not be empty")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	} else if st, ok := s.restore(ctx, doc); ok {
		return st, nil
	}

	chunks, err := chunker.Chunk(doc, s.chunkCfg)
	if err != nil {
		return core.BuildStatus{}, err
	}

	status := core.BuildStatus{DocumentID: doc.ID, State: core.BuildPending, ChunkCount: len(chunks)}

	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.statuses[doc.ID] = status
	s.mu.Unlock()

	// The build outlives the upload request.
	go s.build(context.WithoutCancel(ctx), doc.ID, chunks)

	return status, nil
}

// restore warm-starts a known document from the chunk store, skipping
// the embedding build. Reports false when nothing was persisted.
func (s *Service) restore(ctx context.Context, doc core.Document) (core.BuildStatus, bool) {
	if err := s.index.Restore(ctx, doc.ID); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("document", doc.ID).Msg("index restore failed")
		return core.BuildStatus{}, false
	}
	n := s.index.Count(doc.ID)
	if n == 0 {
		return core.BuildStatus{}, false
	}

	status := core.BuildStatus{DocumentID: doc.ID, State: core.BuildReady, ChunkCount: n}
	s.mu.Lock()
	s.docs[doc.ID] = doc
	s.statuses[doc.ID] = status
	s.mu.Unlock()

	log.FromCtx(ctx).Info().Str("document", doc.ID).Int("chunks", n).Msg("document restored from store")
	return status, true
}

func (s *Service) build(ctx context.Context, documentID string, chunks []core.Chunk) {
	logger := log.FromCtx(ctx).With().Str("document", documentID).Logger()

	s.setState(documentID, func(st *core.BuildStatus) { st.State = core.BuildRunning })

	err := s.index.Add(ctx, chunks)

	var partial *core.PartialAddError
	switch {
	case err == nil:
		s.setState(documentID, func(st *core.BuildStatus) {
			st.State = core.BuildReady
			st.ChunkCount = s.index.Count(documentID)
		})
		logger.Info().Int("chunks", len(chunks)).Msg("document indexed")
	case errors.As(err, &partial):
		// Usable, just incomplete.
		s.setState(documentID, func(st *core.BuildStatus) {
			st.State = core.BuildReady
			st.ChunkCount = s.index.Count(documentID)
			st.FailedChunks = partial.FailedIDs
			st.Err = err.Error()
		})
		logger.Warn().Err(err).Msg("document indexed with failed chunks")
	default:
		s.setState(documentID, func(st *core.BuildStatus) {
			st.State = core.BuildFailed
			st.Err = err.Error()
		})
		logger.Error().Err(err).Msg("document index build failed")
	}
}

func (s *Service) setState(documentID string, update func(*core.BuildStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statuses[documentID]
	update(&st)
	s.statuses[documentID] = st
}

// Status reports build progress for a document.
func (s *Service) Status(documentID string) (core.BuildStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[documentID]
	if !ok {
		return core.BuildStatus{}, fmt.Errorf("document %q: %w", documentID, core.ErrNotFound)
	}
	return st, nil
}

// AskRequest is one question against a loaded document.
type AskRequest struct {
	SessionID  string
	DocumentID string
	Query      string
	Focus      core.AnalysisFocus
	// ReadingMode forces the chunks around the session's reading position
	// into the evidence bundle.
	ReadingMode bool
}

// Ask runs the full pipeline for one question: evidence assembly, the
// agent fan-out, synthesis, and recording the turn in the session.
func (s *Service) Ask(ctx context.Context, req AskRequest) (core.Turn, error) {
	if req.Query == "" {
		return core.Turn{}, core.InputErrorf("query must not be empty")
	}

	s.mu.Lock()
	doc, ok := s.docs[req.DocumentID]
	st := s.statuses[req.DocumentID]
	s.mu.Unlock()
	if !ok {
		return core.Turn{}, fmt.Errorf("document %q: %w", req.DocumentID, core.ErrNotFound)
	}
	if st.State != core.BuildReady {
		return core.Turn{}, core.InputErrorf("document %q is not ready (state %s)", req.DocumentID, st.State)
	}

	conv := s.sessions.Get(ctx, req.SessionID)
	history := conv.History()

	var pos *core.ReadingPosition
	if req.ReadingMode {
		pos = conv.Position()
	}

	res, err := s.assembler.Assemble(ctx, assembler.Request{
		DocumentID: req.DocumentID,
		Title:      doc.Title,
		Query:      req.Query,
		Focus:      req.Focus,
		Position:   pos,
	})
	if err != nil {
		return core.Turn{}, err
	}

	results := s.orchestrator.Run(ctx, req.Query, res.Bundle, history)
	turn := s.synthesizer.Synthesize(ctx, req.Query, results, res.ExternalDegraded, history)

	return conv.Append(ctx, turn), nil
}

// SetPosition updates where a session's reader is in a document.
func (s *Service) SetPosition(ctx context.Context, sessionID, documentID string, fraction float64) error {
	s.mu.Lock()
	_, ok := s.docs[documentID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("document %q: %w", documentID, core.ErrNotFound)
	}
	return s.sessions.Get(ctx, sessionID).SetPosition(documentID, fraction)
}

// CurrentWindow maps a session's reading position onto the document's
// offset span and returns the byte range the reader is looking at.
func (s *Service) CurrentWindow(sessionID, documentID string) (start, end int, err error) {
	conv, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return 0, 0, fmt.Errorf("session %q: %w", sessionID, core.ErrNotFound)
	}
	pos := conv.Position()
	if pos == nil || pos.DocumentID != documentID {
		return 0, 0, fmt.Errorf("no reading position for document %q: %w", documentID, core.ErrNotFound)
	}

	spanStart, spanEnd, ok := s.index.DocumentSpan(documentID)
	if !ok {
		return 0, 0, fmt.Errorf("document %q: %w", documentID, core.ErrNotFound)
	}

	offset := spanStart + int(pos.Fraction*float64(spanEnd-spanStart))
	window := s.index.Neighborhood(documentID, offset, 1)
	if len(window) == 0 {
		return 0, 0, fmt.Errorf("document %q has no chunks: %w", documentID, core.ErrNotFound)
	}
	return window[0].StartOffset, window[len(window)-1].EndOffset, nil
}

// Session exposes the conversation for a session id, creating it on
// first use.
func (s *Service) Session(ctx context.Context, id string) *session.Conversation {
	return s.sessions.Get(ctx, id)
}
