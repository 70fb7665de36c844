package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/pkg/log"
)

// Manager hands out conversations keyed by session id. Unknown ids get a
// fresh conversation; an empty id gets a generated one.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Conversation
	limits   Limits
	store    core.TurnStore // may be nil
}

func NewManager(limits Limits, store core.TurnStore) *Manager {
	return &Manager{
		sessions: make(map[string]*Conversation),
		limits:   limits,
		store:    store,
	}
}

// Get returns the conversation for a session id, creating it on first
// use. A freshly created conversation restores its history from the
// turn store when one is configured.
func (m *Manager) Get(ctx context.Context, id string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if c, ok := m.sessions[id]; ok {
		return c
	}

	c := &Conversation{id: id, limits: m.limits, store: m.store}
	if err := c.Restore(ctx); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("session", id).Msg("session restore failed")
	}
	m.sessions[id] = c
	return c
}

// Lookup returns an existing conversation without creating one.
func (m *Manager) Lookup(id string) (*Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	return c, ok
}
