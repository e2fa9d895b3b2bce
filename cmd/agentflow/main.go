package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rendis/agentflow/internal/agents"
	"github.com/rendis/agentflow/internal/engine"
	"github.com/rendis/agentflow/internal/logging"
	"github.com/rendis/agentflow/internal/scheduler"
	"github.com/rendis/agentflow/internal/store"
	"github.com/rendis/agentflow/internal/streaming"
	"github.com/rendis/agentflow/internal/validation"
	"github.com/rendis/agentflow/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "agentflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	// Stdout carries the MCP stdio transport, so logs go to stderr.
	logger := slog.New(logging.NewCorrelationHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel()}),
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	orch, err := engine.NewOrchestrator(engine.Config{
		Concurrency: cfg.Concurrency,
		Hub:         streaming.NewMemoryHub(),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	defer orch.Close()

	for _, a := range agents.Builtins() {
		recorded, _ := agents.WithMemory(a, 50)
		if err := orch.RegisterAgent(recorded); err != nil {
			return fmt.Errorf("register builtin agent: %w", err)
		}
	}
	for name, def := range engine.ReferenceWorkflows() {
		if err := orch.RegisterWorkflow(name, def); err != nil {
			return fmt.Errorf("register starter workflow %s: %w", name, err)
		}
	}

	if err := loadDefinitions(ctx, st, orch, logger); err != nil {
		return err
	}

	if cfg.Scheduler {
		sched := scheduler.NewScheduler(st, orch, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Error("scheduler shutdown failed", "error", err)
			}
		}()
	}

	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	srv := mcp.NewAgentflowServer(mcp.ServerDeps{
		Orchestrator: orch,
		Store:        st,
		Validator:    validator,
		Logger:       logger,
	})

	logger.Info("agentflow serving on stdio",
		"db", cfg.DBPath,
		"concurrency", cfg.Concurrency,
		"scheduler", cfg.Scheduler,
	)

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("agentflow stopped")
	return nil
}

// loadDefinitions registers persisted workflow definitions with the orchestrator.
func loadDefinitions(ctx context.Context, st store.Store, orch *engine.Orchestrator, logger *slog.Logger) error {
	defs, err := st.ListDefinitions(ctx, store.DefinitionFilter{})
	if err != nil {
		return fmt.Errorf("list stored definitions: %w", err)
	}
	for _, stored := range defs {
		def := stored.Definition
		if err := orch.RegisterWorkflow(stored.Name, &def); err != nil {
			logger.Warn("skipping invalid stored definition",
				"workflow", stored.Name,
				"error", err,
			)
			continue
		}
	}
	if len(defs) > 0 {
		logger.Info("loaded stored definitions", "count", len(defs))
	}
	return nil
}
