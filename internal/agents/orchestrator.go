package agents

import (
	"context"
	"errors"
	"time"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/log"
)

// Orchestrator fans the agent roster out in parallel over one evidence
// bundle. Every run gets a fresh set of goroutines; agents never share
// mutable state.
type Orchestrator struct {
	completer      core.Completer
	agents         []Spec
	agentTimeout   time.Duration
	globalDeadline time.Duration
}

func NewOrchestrator(completer core.Completer, agentTimeout, globalDeadline time.Duration) *Orchestrator {
	return &Orchestrator{
		completer:      completer,
		agents:         Registry(),
		agentTimeout:   agentTimeout,
		globalDeadline: globalDeadline,
	}
}

// Run executes all agents concurrently and returns one result per agent
// in roster order. An agent that misses its own timeout or the global
// deadline is reported as timed out, never retried. A failed or timed
// out agent does not abort the others.
func (o *Orchestrator) Run(ctx context.Context, query string, bundle core.ContextBundle, history []core.Turn) []core.AgentResult {
	gctx, cancel := context.WithTimeout(ctx, o.globalDeadline)
	defer cancel()

	channels := make([]chan core.AgentResult, len(o.agents))
	for i, spec := range o.agents {
		channels[i] = make(chan core.AgentResult, 1)
		go func(spec Spec, out chan<- core.AgentResult) {
			out <- o.runOne(gctx, spec, query, bundle, history)
		}(spec, channels[i])
	}

	results := make([]core.AgentResult, len(o.agents))
	for i, spec := range o.agents {
		select {
		case r := <-channels[i]:
			results[i] = r
		case <-gctx.Done():
			// Drain without blocking in case the agent raced the deadline.
			select {
			case r := <-channels[i]:
				results[i] = r
			default:
				results[i] = core.AgentResult{
					Agent:  spec.Name,
					Status: core.StatusTimedOut,
					Err:    "global deadline exceeded",
				}
			}
		}
	}
	return results
}

func (o *Orchestrator) runOne(ctx context.Context, spec Spec, query string, bundle core.ContextBundle, history []core.Turn) core.AgentResult {
	actx, cancel := context.WithTimeout(ctx, o.agentTimeout)
	defer cancel()

	block, refs := spec.buildContext(bundle)

	started := time.Now()
	text, err := o.completer.Complete(actx, spec.Instructions, block, query, history)
	logger := log.FromCtx(ctx).With().
		Str("agent", string(spec.Name)).
		Dur("elapsed", time.Since(started)).
		Logger()

	if err != nil {
		status := core.StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			status = core.StatusTimedOut
		}
		logger.Warn().Err(err).Str("status", string(status)).Msg("agent did not complete")
		return core.AgentResult{Agent: spec.Name, Status: status, Err: err.Error()}
	}

	logger.Debug().Msg("agent completed")
	return core.AgentResult{
		Agent:        spec.Name,
		Status:       core.StatusOK,
		Text:         text,
		EvidenceRefs: refs,
	}
}
