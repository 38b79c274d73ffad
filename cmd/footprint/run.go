package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/footprint/config"
	"github.com/mohammad-safakhou/footprint/internal/agent"
	"github.com/mohammad-safakhou/footprint/internal/crawler"
	"github.com/mohammad-safakhou/footprint/internal/dashboard"
	"github.com/mohammad-safakhou/footprint/internal/knowledge"
	"github.com/mohammad-safakhou/footprint/internal/orchestrator"
	"github.com/mohammad-safakhou/footprint/internal/registry"
	"github.com/mohammad-safakhou/footprint/internal/store"
	"github.com/mohammad-safakhou/footprint/internal/telemetry"
	"github.com/mohammad-safakhou/footprint/internal/workspace"
	"github.com/mohammad-safakhou/footprint/provider"
)

func runCMD() *cobra.Command {
	var cfgPath string

	var run = &cobra.Command{
		Use:   "run",
		Short: "Start an interactive discovery session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.New(os.Stderr, "[ORCH] ", log.LstdFlags)

			var metrics *telemetry.Telemetry
			if cfg.Telemetry.Enabled {
				metrics = telemetry.New(prometheus.DefaultRegisterer)
			}

			kv, err := store.New(ctx, cfg.Storage, cfg.General.UserDir(), cfg.General.UserID)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			reg, err := registry.New(ctx, kv)
			if err != nil {
				return fmt.Errorf("failed to open link registry: %w", err)
			}
			ws, err := workspace.NewStore(ctx, kv)
			if err != nil {
				return fmt.Errorf("failed to open workspace: %w", err)
			}

			profile, err := loadProfile(cfg.General.ProfilePath())
			if err != nil {
				return err
			}

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return fmt.Errorf("failed to create llm provider: %w", err)
			}
			stages := orchestrator.Stages{
				Query:      agent.New(agent.KindQueryHandler, llm),
				Clarify:    agent.New(agent.KindClarifier, llm),
				ToolSelect: agent.New(agent.KindToolSelector, llm),
				Retrieve:   agent.New(agent.KindInfoRetriever, llm),
			}

			var backend crawler.Backend
			if cfg.Crawler.BackendURL != "" {
				backend = crawler.NewHTTPBackend(cfg.Crawler.BackendURL, cfg.Crawler.Timeout)
			} else {
				backend = crawler.NewLocalBackend(cfg.Crawler.Timeout, cfg.Crawler.MaxChars, cfg.Crawler.MaxLinks)
				logger.Printf("no crawl backend configured, using local headless browser")
			}
			exec := crawler.NewExecutor(reg, kv, backend,
				log.New(os.Stderr, "[CRAWL] ", log.LstdFlags), metrics)

			var kb knowledge.Store
			if cfg.Storage.Postgres.Enabled() {
				db, err := sql.Open("postgres", cfg.Storage.Postgres.DSN())
				if err != nil {
					return fmt.Errorf("failed to open postgres: %w", err)
				}
				defer db.Close()
				if err := db.PingContext(ctx); err != nil {
					return fmt.Errorf("failed to reach postgres: %w", err)
				}
				kb = knowledge.NewPostgresStore(db, cfg.General.UserID)
			} else {
				kb = knowledge.NewFileStore(kv)
			}

			var pub orchestrator.Publisher
			if cfg.Dashboard.Enabled {
				srv := dashboard.New(log.New(os.Stderr, "[HTTP] ", log.LstdFlags))
				srv.Publish(workspace.Snapshot{Links: ws.Links()})
				go func() {
					if err := srv.Start(ctx, cfg.Dashboard.Addr); err != nil {
						logger.Printf("dashboard stopped: %v", err)
					}
				}()
				pub = srv
			}

			orch := orchestrator.New(orchestrator.Options{
				Stages:    stages,
				Workspace: ws,
				Registry:  reg,
				Cache:     kv,
				Executor:  exec,
				Knowledge: kb,
				Publisher: pub,
				Logger:    logger,
				Metrics:   metrics,
				Profile:   profile,
				Out:       os.Stdout,
			})
			return orch.Loop(ctx, os.Stdin)
		},
	}
	run.Flags().StringVar(&cfgPath, "config", "", "path to config file")
	return run
}

// loadProfile reads the subject's profile. A session without a profile has
// nothing to match identities against, so a missing file is an error.
func loadProfile(path string) (json.RawMessage, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	if !json.Valid(blob) {
		return nil, fmt.Errorf("profile %s is not valid JSON", path)
	}
	return json.RawMessage(blob), nil
}
