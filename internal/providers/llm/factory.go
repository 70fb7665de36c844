package llm

import (
	"context"

	"github.com/sandevgo/readr/internal/config"
	"github.com/sandevgo/readr/pkg/log"
)

// NewProvider builds the reasoning + embedding provider from config.
// Both capabilities ride the same OpenAI-compatible endpoint.
func NewProvider(ctx context.Context, cfg *config.OpenAIConfig) *OpenAI {
	log.FromCtx(ctx).Info().
		Str("base_url", cfg.BaseURL).
		Str("model", cfg.Model).
		Str("embedding_model", cfg.EmbeddingModel).
		Msg("starting llm provider")

	return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.EmbeddingModel)
}
