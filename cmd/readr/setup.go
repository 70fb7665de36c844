package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/readr/internal/agents"
	"github.com/sandevgo/readr/internal/assembler"
	"github.com/sandevgo/readr/internal/chunker"
	"github.com/sandevgo/readr/internal/config"
	"github.com/sandevgo/readr/internal/core"
	"github.com/sandevgo/readr/internal/index"
	"github.com/sandevgo/readr/internal/providers/knowledge"
	"github.com/sandevgo/readr/internal/providers/llm"
	"github.com/sandevgo/readr/internal/retriever"
	"github.com/sandevgo/readr/internal/service/reader"
	"github.com/sandevgo/readr/internal/session"
	storage "github.com/sandevgo/readr/internal/storage/sqlite"
	"github.com/sandevgo/readr/pkg/log"
	"github.com/sandevgo/readr/pkg/srv"
)

// app wires the whole pipeline once and hands the pieces to whichever
// command is running.
type app struct {
	cfg      *config.AppConfig
	reader   *reader.Service
	services []srv.Service
}

func newApp(ctx context.Context) *app {
	logger := log.FromCtx(ctx)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	openaiCfg := config.NewOpenAIConfig(ctx)
	knowCfg := config.NewKnowledgeConfig(ctx)

	var services []srv.Service

	// 2. Optional persistent storage
	var (
		chunkStore   core.ChunkStore
		snippetStore core.SnippetStore
		turnStore    core.TurnStore
	)
	if appCfg.PersistDB {
		db, err := storage.NewDB(ctx, appCfg.GetDatabasePath())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize storage")
		}
		services = append(services, srv.NewCleanup(db.Close))
		chunkStore = storage.NewChunkRepo(db)
		snippetStore = storage.NewSnippetRepo(db)
		turnStore = storage.NewTurnRepo(db)
	}

	// 3. LLM provider (completions and embeddings)
	provider := llm.NewProvider(ctx, openaiCfg)

	// 4. Embedding index
	ix := index.New(provider, chunkStore)

	// 5. Knowledge sources and the caching retriever
	sources := []core.KnowledgeSource{
		knowledge.NewWikipedia(knowCfg.WikipediaBaseURL, knowCfg.MaxResults),
	}
	if knowCfg.GoogleBooksAPIKey != "" {
		sources = append(sources, knowledge.NewGoogleBooks(knowCfg.GoogleBooksURL, knowCfg.GoogleBooksAPIKey, knowCfg.MaxResults))
	}
	cache := retriever.NewCache(appCfg.CacheTTL, appCfg.CacheCapacity)
	ret := retriever.New(cache, snippetStore, sources...)

	// 6. Context assembly
	asm := assembler.New(provider, ix, ret, assembler.Config{
		BudgetTokens: appCfg.ContextBudgetTokens,
		TopK:         appCfg.RetrievalTopK,
		SnippetLimit: appCfg.SnippetsPerQuery * len(sources),
	})

	// 7. Agent orchestration
	orch := agents.NewOrchestrator(provider, appCfg.AgentTimeout, appCfg.GlobalDeadline)
	syn := agents.NewSynthesizer(provider)

	// 8. Sessions
	sessions := session.NewManager(session.Limits{
		MaxTurns:  appCfg.HistoryMaxTurns,
		MaxTokens: appCfg.HistoryMaxTokens,
	}, turnStore)

	chunkCfg := chunker.Config{
		MaxTokens:     appCfg.ChunkMaxTokens,
		OverlapTokens: appCfg.ChunkOverlapTokens,
	}

	svc := reader.NewService(chunkCfg, ix, asm, orch, syn, sessions)

	return &app{cfg: appCfg, reader: svc, services: services}
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
