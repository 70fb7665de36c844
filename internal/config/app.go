package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/readr/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"READR_RUNTIME_PATH" envDefault:".readr"`

	// HTTP API
	ListenAddr string `env:"READR_LISTEN_ADDR" envDefault:":8080"`

	// Chunking
	ChunkMaxTokens     int `env:"READR_CHUNK_MAX_TOKENS" envDefault:"400"`
	ChunkOverlapTokens int `env:"READR_CHUNK_OVERLAP_TOKENS" envDefault:"50"`

	// Context assembly
	ContextBudgetTokens int `env:"READR_CONTEXT_BUDGET_TOKENS" envDefault:"3000"`
	RetrievalTopK       int `env:"READR_RETRIEVAL_TOP_K" envDefault:"5"`
	SnippetsPerQuery    int `env:"READR_SNIPPETS_PER_QUERY" envDefault:"3"`

	// Conversation bounds
	HistoryMaxTurns  int `env:"READR_HISTORY_MAX_TURNS" envDefault:"20"`
	HistoryMaxTokens int `env:"READR_HISTORY_MAX_TOKENS" envDefault:"8000"`

	// Orchestration deadlines. The global deadline is deliberately shorter
	// than the sum of per-agent timeouts.
	AgentTimeout   time.Duration `env:"READR_AGENT_TIMEOUT" envDefault:"30s"`
	GlobalDeadline time.Duration `env:"READR_GLOBAL_DEADLINE" envDefault:"45s"`

	// Snippet cache
	CacheTTL      time.Duration `env:"READR_CACHE_TTL" envDefault:"15m"`
	CacheCapacity int           `env:"READR_CACHE_CAPACITY" envDefault:"256"`

	// Optional sqlite backing store for chunks, snippets and turns.
	PersistDB bool `env:"READR_PERSIST" envDefault:"false"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "readr.db")
}
