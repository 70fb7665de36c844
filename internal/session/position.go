package session

import (
	"github.com/sandevgo/readr/internal/core"
)

// SetPosition records where the reader is in a document as a fraction of
// its length. A session holds at most one position; setting it for a new
// document replaces the old one.
func (c *Conversation) SetPosition(documentID string, fraction float64) error {
	if documentID == "" {
		return core.InputErrorf("document id must not be empty")
	}
	if fraction < 0 || fraction > 1 {
		return core.InputErrorf("reading position must be between 0 and 1, got %v", fraction)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = &core.ReadingPosition{DocumentID: documentID, Fraction: fraction}
	return nil
}

// Position returns a copy of the current reading position, or nil when
// none has been set.
func (c *Conversation) Position() *core.ReadingPosition {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.position == nil {
		return nil
	}
	p := *c.position
	return &p
}
