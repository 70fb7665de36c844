package core

import "context"

// ChunkStore is the optional persistent backing for the embedding index.
// The in-memory index writes through on add and can warm-start from it.
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []Chunk) error
	LoadChunks(ctx context.Context, documentID string) ([]Chunk, error)
}

// SnippetStore is the optional persistent backing for the retriever cache.
type SnippetStore interface {
	SaveSnippets(ctx context.Context, key string, snippets []Snippet) error
	LoadSnippets(ctx context.Context, key string) ([]Snippet, error)
}

// TurnStore is an append-only log of completed turns.
type TurnStore interface {
	AppendTurn(ctx context.Context, turn Turn) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}
