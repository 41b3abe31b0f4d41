package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	"github.com/saleswire/server/internal/agent/catalog"
	"github.com/saleswire/server/internal/agent/engine"
	"github.com/saleswire/server/internal/agent/llm"
	"github.com/saleswire/server/internal/agent/model"
	"github.com/saleswire/server/internal/agent/querygraph"
	"github.com/saleswire/server/internal/agent/repo"
	"github.com/saleswire/server/internal/agent/retrieval"
	"github.com/saleswire/server/internal/agent/sqlexec"
	"github.com/saleswire/server/internal/core"
	"github.com/saleswire/server/internal/transport/botframework"
	logx "github.com/saleswire/server/pkg/logger"
	pkgredis "github.com/saleswire/server/pkg/redis"
)

// AppConfig defines every configurable parameter of the binary, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`

	// Infrastructure
	Redis     pkgredis.Config
	Warehouse sqlexec.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Router    model.RouterModelConfig
	Narrator  model.NarratorModelConfig
	Embedding model.EmbeddingConfig
	Dialogue  model.DialogueConfig
	Engine    model.EngineConfig

	// Webhook transport
	Serve botframework.Config
}

// loadConfig reads .env when present, parses the environment and boots the
// logger.
func loadConfig() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
	return &cfg, nil
}

// app bundles the wired collaborators behind one engine instance.
type app struct {
	registry  *catalog.Registry
	engine    *engine.Engine
	states    model.StateStore
	deduper   repo.Deduper
	executor  *sqlexec.Executor
	rdb       *redis.Client
	memory    *repo.MemoryStateStore
	memDedupe *repo.MemoryDeduper
}

// buildApp constructs the full collaborator graph: catalog, state store,
// chat models, retrieval index, warehouse connection and the engine. The
// retrieval index embeds every catalog question up front, so Gemini must be
// reachable here.
func buildApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	registry, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	dialogueTTL, err := time.ParseDuration(cfg.Dialogue.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid DIALOGUE_TTL %q: %w", cfg.Dialogue.TTL, err)
	}
	embedCacheTTL, err := time.ParseDuration(cfg.Embedding.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_CACHE_TTL %q: %w", cfg.Embedding.CacheTTL, err)
	}

	a := &app{registry: registry}

	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New()
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.rdb = rdb
		a.states = repo.NewRedisStateStore(rdb, dialogueTTL)
		a.deduper = repo.NewRedisDeduper(rdb, cfg.Serve.DedupeTTL)
		logx.Info().Msg("Dialogue state on Redis")
	} else {
		a.memory = repo.NewMemoryStateStore(dialogueTTL)
		a.states = a.memory
		a.memDedupe = repo.NewMemoryDeduper(cfg.Serve.DedupeTTL)
		a.deduper = a.memDedupe
		logx.Info().Msg("Dialogue state in memory; restarts forget conversations")
	}

	models, err := llm.NewChatModels(ctx, llm.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		RouterCfg:   &cfg.Router,
		NarratorCfg: &cfg.Narrator,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	var embedder retrieval.Embedder = retrieval.NewGeminiEmbedder(models.Client, cfg.Embedding.Model)
	if a.rdb != nil {
		embedder = retrieval.NewCachedEmbedder(embedder, a.rdb, cfg.Embedding.Model, embedCacheTTL)
	}

	retriever, err := retrieval.NewRetriever(ctx, registry, llm.NewFamilyClassifier(models), embedder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build retrieval index: %w", err)
	}

	executor, err := sqlexec.Open(ctx, cfg.Warehouse)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}
	a.executor = executor

	eng, err := engine.New(engine.Config{
		States:    a.states,
		Retriever: retriever,
		Executor:  executor,
		Intent:    llm.NewIntentClassifier(models),
		Analyzer:  llm.NewContextClassifier(models),
		Extractor: llm.NewExtractor(models),
		Narrator:  llm.NewResultNarrator(models),
		Resolver:  querygraph.NewResolver(registry),
		Dialogue:  cfg.Dialogue,
		Keywords:  cfg.Engine,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = eng

	logx.Info().Int("templates", registry.Len()).Msg("Agent ready")
	return a, nil
}

// Close releases infrastructure handles.
func (a *app) Close() {
	if a.executor != nil {
		_ = a.executor.Close()
	}
	if a.memory != nil {
		a.memory.Stop()
	}
	if a.memDedupe != nil {
		a.memDedupe.Stop()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
