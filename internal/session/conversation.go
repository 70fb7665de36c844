package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/log"
)

// Limits bound how much conversation history a session retains.
type Limits struct {
	MaxTurns  int
	MaxTokens int
}

func DefaultLimits() Limits {
	return Limits{MaxTurns: 20, MaxTokens: 8000}
}

// Conversation is one session's history and reading position. Appends
// are serialized; readers get copies.
type Conversation struct {
	mu       sync.Mutex
	id       string
	turns    []core.Turn
	limits   Limits
	position *core.ReadingPosition
	store    core.TurnStore // may be nil
}

func (c *Conversation) ID() string { return c.id }

// Append records a completed turn, assigning it an id, and evicts the
// oldest turns until the history fits the limits again. The newest turn
// is never evicted.
func (c *Conversation) Append(ctx context.Context, turn core.Turn) core.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn.ID = uuid.NewString()
	turn.SessionID = c.id
	c.turns = append(c.turns, turn)
	c.evict()

	if c.store != nil {
		if err := c.store.AppendTurn(ctx, turn); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("session", c.id).Msg("turn write-through failed")
		}
	}
	return turn
}

func (c *Conversation) evict() {
	for len(c.turns) > c.limits.MaxTurns {
		c.turns = c.turns[1:]
	}
	for len(c.turns) > 1 && c.totalTokens() > c.limits.MaxTokens {
		c.turns = c.turns[1:]
	}
}

func (c *Conversation) totalTokens() int {
	total := 0
	for _, t := range c.turns {
		total += t.TokenSize
	}
	return total
}

// History returns a copy of the retained turns, oldest first.
func (c *Conversation) History() []core.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]core.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Restore loads persisted turns into an empty conversation.
func (c *Conversation) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.turns) > 0 {
		return nil
	}

	turns, err := c.store.RecentTurns(ctx, c.id, c.limits.MaxTurns)
	if err != nil {
		return err
	}
	c.turns = turns
	c.evict()
	return nil
}
