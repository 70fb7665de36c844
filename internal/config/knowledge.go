package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/readr/pkg/log"
)

type KnowledgeConfig struct {
	WikipediaBaseURL string `env:"READR_WIKIPEDIA_URL" envDefault:"https://en.wikipedia.org"`
	// GoogleBooksAPIKey enables the Google Books source when set.
	GoogleBooksAPIKey string `env:"GOOGLE_BOOKS_API_KEY"`
	GoogleBooksURL    string `env:"READR_GOOGLE_BOOKS_URL" envDefault:"https://www.googleapis.com"`
	MaxResults        int    `env:"READR_KNOWLEDGE_MAX_RESULTS" envDefault:"3"`
}

func NewKnowledgeConfig(ctx context.Context) *KnowledgeConfig {
	c := &KnowledgeConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Knowledge config")
	}
	return c
}
