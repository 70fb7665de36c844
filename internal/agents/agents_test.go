package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/readr/internal/core"
)

type completerFunc func(ctx context.Context, instructions, block, query string, history []core.Turn) (string, error)

func (f completerFunc) Complete(ctx context.Context, instructions, block, query string, history []core.Turn) (string, error) {
	return f(ctx, instructions, block, query, history)
}

func testBundle() core.ContextBundle {
	return core.ContextBundle{
		Chunks: []core.Chunk{
			{ID: "doc:0", Text: "Call me Ishmael.", SequenceIndex: 0},
		},
		Snippets: []core.Snippet{
			{SourceID: "wikipedia", Title: "Moby-Dick", Text: "An 1851 novel."},
		},
	}
}

func echoCompleter(ctx context.Context, instructions, block, query string, _ []core.Turn) (string, error) {
	return "answer from " + instructions[:20], nil
}

func TestOrchestrator_AllComplete(t *testing.T) {
	o := NewOrchestrator(completerFunc(echoCompleter), time.Second, 2*time.Second)

	results := o.Run(context.Background(), "who narrates?", testBundle(), nil)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range core.SynthesisOrder {
		if results[i].Agent != want {
			t.Errorf("results[%d].Agent = %s, want %s", i, results[i].Agent, want)
		}
		if results[i].Status != core.StatusOK {
			t.Errorf("%s status = %s, want ok", want, results[i].Status)
		}
	}
}

func TestOrchestrator_EvidenceRefs(t *testing.T) {
	o := NewOrchestrator(completerFunc(echoCompleter), time.Second, 2*time.Second)

	results := o.Run(context.Background(), "q", testBundle(), nil)

	byAgent := map[core.AgentName]core.AgentResult{}
	for _, r := range results {
		byAgent[r.Agent] = r
	}

	if refs := byAgent[core.AgentReader].EvidenceRefs; len(refs) != 1 || refs[0] != "doc:0" {
		t.Errorf("reader refs = %v", refs)
	}
	if refs := byAgent[core.AgentContext].EvidenceRefs; len(refs) != 1 || refs[0] != "wikipedia:Moby-Dick" {
		t.Errorf("context refs = %v", refs)
	}
	if refs := byAgent[core.AgentAnalysis].EvidenceRefs; len(refs) != 2 {
		t.Errorf("analysis refs = %v, want both", refs)
	}
}

func TestOrchestrator_SlowAgentTimesOut(t *testing.T) {
	slow := completerFunc(func(ctx context.Context, instructions, _, _ string, _ []core.Turn) (string, error) {
		if strings.Contains(instructions, "literary-analysis") {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast answer", nil
	})
	o := NewOrchestrator(slow, 30*time.Millisecond, time.Second)

	results := o.Run(context.Background(), "q", testBundle(), nil)

	if results[0].Status != core.StatusOK || results[1].Status != core.StatusOK {
		t.Errorf("fast agents should complete: %+v", results[:2])
	}
	if results[2].Status != core.StatusTimedOut {
		t.Errorf("analysis status = %s, want timed_out", results[2].Status)
	}
	if results[2].Text != "" {
		t.Errorf("timed out agent must carry empty text, got %q", results[2].Text)
	}
}

func TestOrchestrator_GlobalDeadline(t *testing.T) {
	stuck := completerFunc(func(ctx context.Context, _, _, _ string, _ []core.Turn) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	o := NewOrchestrator(stuck, time.Minute, 50*time.Millisecond)

	start := time.Now()
	results := o.Run(context.Background(), "q", testBundle(), nil)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Run blocked %v past the global deadline", elapsed)
	}

	for _, r := range results {
		if r.Status != core.StatusTimedOut {
			t.Errorf("%s status = %s, want timed_out", r.Agent, r.Status)
		}
	}
}

func TestOrchestrator_FailedAgentDoesNotAbortOthers(t *testing.T) {
	flaky := completerFunc(func(_ context.Context, instructions, _, _ string, _ []core.Turn) (string, error) {
		if strings.Contains(instructions, "background-context") {
			return "", errors.New("upstream 500")
		}
		return "fine", nil
	})
	o := NewOrchestrator(flaky, time.Second, 2*time.Second)

	results := o.Run(context.Background(), "q", testBundle(), nil)

	if results[1].Status != core.StatusFailed {
		t.Errorf("context status = %s, want failed", results[1].Status)
	}
	if results[0].Status != core.StatusOK || results[2].Status != core.StatusOK {
		t.Errorf("other agents should still complete: %+v", results)
	}
}

func TestSynthesizer_CombinesInOrder(t *testing.T) {
	var gotBlock string
	s := NewSynthesizer(completerFunc(func(_ context.Context, _, block, _ string, _ []core.Turn) (string, error) {
		gotBlock = block
		return "synthesized", nil
	}))

	// Deliberately out of order on input.
	results := []core.AgentResult{
		{Agent: core.AgentAnalysis, Status: core.StatusOK, Text: "analysis says"},
		{Agent: core.AgentReader, Status: core.StatusOK, Text: "reader says"},
		{Agent: core.AgentContext, Status: core.StatusTimedOut},
	}

	turn := s.Synthesize(context.Background(), "q", results, true, nil)

	if turn.Answer != "synthesized" {
		t.Errorf("answer = %q", turn.Answer)
	}
	readerAt := strings.Index(gotBlock, "reader says")
	analysisAt := strings.Index(gotBlock, "analysis says")
	if readerAt < 0 || analysisAt < 0 || readerAt > analysisAt {
		t.Errorf("findings not in synthesis order:\n%s", gotBlock)
	}
	if len(turn.DegradedAgents) != 1 || turn.DegradedAgents[0] != core.AgentContext {
		t.Errorf("DegradedAgents = %v", turn.DegradedAgents)
	}
	if !turn.ExternalDegraded {
		t.Error("ExternalDegraded flag dropped")
	}
}

func TestSynthesizer_NoCompletedAgents(t *testing.T) {
	called := false
	s := NewSynthesizer(completerFunc(func(_ context.Context, _, _, _ string, _ []core.Turn) (string, error) {
		called = true
		return "", nil
	}))

	results := []core.AgentResult{
		{Agent: core.AgentReader, Status: core.StatusTimedOut},
		{Agent: core.AgentContext, Status: core.StatusFailed},
		{Agent: core.AgentAnalysis, Status: core.StatusTimedOut},
	}

	turn := s.Synthesize(context.Background(), "q", results, false, nil)

	if called {
		t.Error("model must not be called when no agent completed")
	}
	if turn.Answer != insufficientEvidenceAnswer {
		t.Errorf("answer = %q", turn.Answer)
	}
	if len(turn.DegradedAgents) != 3 {
		t.Errorf("DegradedAgents = %v, want all three", turn.DegradedAgents)
	}
}

func TestSynthesizer_CompletionFailureFallsBackToFindings(t *testing.T) {
	s := NewSynthesizer(completerFunc(func(_ context.Context, _, _, _ string, _ []core.Turn) (string, error) {
		return "", errors.New("model offline")
	}))

	results := []core.AgentResult{
		{Agent: core.AgentReader, Status: core.StatusOK, Text: "the narrator is Ishmael"},
	}

	turn := s.Synthesize(context.Background(), "q", results, false, nil)
	if !strings.Contains(turn.Answer, "the narrator is Ishmael") {
		t.Errorf("fallback answer lost the findings: %q", turn.Answer)
	}
}
