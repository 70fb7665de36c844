package core

import "context"

// Embedder is the external embedding capability. Vectors are fixed-length
// for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer is the external reasoning capability. The caller's context
// carries the per-call deadline.
type Completer interface {
	Complete(ctx context.Context, instructions, contextBlock, query string, history []Turn) (string, error)
}

// KnowledgeSource is a best-effort external source of contextual snippets.
type KnowledgeSource interface {
	Name() string
	Search(ctx context.Context, term string) ([]Snippet, error)
}
