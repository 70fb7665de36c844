package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/readr/internal/chunker"
	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/log"
)

const synthesisInstructions = `You are the voice of a reading companion.
Combine the specialist findings below into one coherent, conversational
answer to the reader's question. Keep the citations the specialists
used. If the specialists disagree, prefer what the passage itself
supports. Do not mention the specialists or this process.`

const insufficientEvidenceAnswer = "I couldn't gather enough evidence to answer that " +
	"right now. The reasoning agents did not complete in time; please try again."

// Synthesizer folds agent results into a single Turn. Specialist
// findings are combined in the fixed synthesis order so answers stay
// grounded in the text before interpretation.
type Synthesizer struct {
	completer core.Completer
}

func NewSynthesizer(completer core.Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Synthesize produces the turn for one answered question. Agents that
// did not complete are listed in DegradedAgents; if none completed, a
// fixed insufficient-evidence answer is returned without calling the
// model.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []core.AgentResult, externalDegraded bool, history []core.Turn) core.Turn {
	turn := core.Turn{
		Query:            query,
		AgentResults:     results,
		ExternalDegraded: externalDegraded,
		CreatedAt:        time.Now(),
	}

	ordered := orderResults(results)
	var sections []string
	for _, r := range ordered {
		if r.Status != core.StatusOK {
			turn.DegradedAgents = append(turn.DegradedAgents, r.Agent)
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s findings\n%s", r.Agent, r.Text))
	}

	if len(sections) == 0 {
		turn.Answer = insufficientEvidenceAnswer
		turn.TokenSize = chunker.CountTokens(turn.Query + turn.Answer)
		return turn
	}

	block := strings.Join(sections, "\n\n")
	answer, err := s.completer.Complete(ctx, synthesisInstructions, block, query, history)
	if err != nil {
		// The findings themselves are still an answer, just unpolished.
		log.FromCtx(ctx).Warn().Err(err).Msg("synthesis completion failed, returning raw findings")
		answer = block
	}

	turn.Answer = answer
	turn.TokenSize = chunker.CountTokens(turn.Query + turn.Answer)
	return turn
}

// orderResults returns the results arranged in synthesis order,
// dropping nothing.
func orderResults(results []core.AgentResult) []core.AgentResult {
	out := make([]core.AgentResult, 0, len(results))
	for _, name := range core.SynthesisOrder {
		for _, r := range results {
			if r.Agent == name {
				out = append(out, r)
			}
		}
	}
	return out
}
