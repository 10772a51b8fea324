// PathPilot is the career guidance conversation orchestration service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PathPilotApp/PathPilot/internal/api"
	"github.com/PathPilotApp/PathPilot/internal/evaluation"
	"github.com/PathPilotApp/PathPilot/internal/flow"
	"github.com/PathPilotApp/PathPilot/internal/genai"
	"github.com/PathPilotApp/PathPilot/internal/objectives"
	"github.com/PathPilotApp/PathPilot/internal/promptcache"
	"github.com/PathPilotApp/PathPilot/internal/store"
	"github.com/PathPilotApp/PathPilot/internal/util"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds environment configuration (PATHPILOT_ prefix).
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	StoreDriver     string        `envconfig:"STORE_DRIVER" default:"memory"` // memory | sqlite | postgres | redis
	StoreDSN        string        `envconfig:"STORE_DSN"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL"` // redis only; zero means no expiry
	Model           string        `envconfig:"MODEL"`
	EvalTimeout     time.Duration `envconfig:"EVAL_TIMEOUT" default:"10s"`
	PromptCacheTTL  time.Duration `envconfig:"PROMPT_CACHE_TTL" default:"5m"`
	DefinitionsFile string        `envconfig:"DEFINITIONS_FILE"`
}

func main() {
	initializeLogger()

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	var cfg Config
	if err := envconfig.Process("pathpilot", &cfg); err != nil {
		slog.Error("Failed to process environment configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("PathPilot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("PathPilot exited successfully")
}

func run(cfg Config) error {
	registry := objectives.NewRegistry()
	if cfg.DefinitionsFile != "" {
		if err := registry.LoadDefinitions(cfg.DefinitionsFile); err != nil {
			return fmt.Errorf("failed to load objective definitions: %w", err)
		}
	}

	sessions, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			slog.Warn("Failed to close session store", "error", closeErr)
		}
	}()

	client := buildGenAIClient(cfg)
	engine := evaluation.NewEngine(client, evaluation.WithTimeout(cfg.EvalTimeout))
	cache := promptcache.New(registry, promptcache.WithTTL(cfg.PromptCacheTTL))
	legacy := flow.NewLegacyFlowManager()
	orchestrator := flow.NewOrchestrator(sessions, cache, engine, legacy)

	server := api.NewServer(orchestrator, api.WithAddr(cfg.Addr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping PathPilot",
		"addr", cfg.Addr,
		"storeDriver", cfg.StoreDriver,
		"hasGenAI", client != nil,
		"definitionsFile", cfg.DefinitionsFile)
	return server.Run(ctx)
}

// buildStore selects the session store backend by driver name.
func buildStore(cfg Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		slog.Info("Using in-memory session store")
		return store.NewInMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(store.WithDSN(cfg.StoreDSN))
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(cfg.StoreDSN))
	case "redis":
		return store.NewRedisStore(store.WithDSN(cfg.StoreDSN), store.WithTTL(cfg.SessionTTL))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// buildGenAIClient creates the evaluation capability client. A missing API
// key is not fatal: the orchestrator degrades to the legacy flow manager
// when evaluation is unavailable.
func buildGenAIClient(cfg Config) genai.ClientInterface {
	opts := []genai.Option{genai.WithTimeout(cfg.EvalTimeout)}
	if cfg.Model != "" {
		opts = append(opts, genai.WithModel(cfg.Model))
	}
	client, err := genai.NewClient(opts...)
	if err != nil {
		slog.Warn("GenAI client unavailable, objective evaluation disabled", "error", err)
		return nil
	}
	return client
}

// initializeLogger sets up structured logging.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("PATHPILOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
