package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/footprint/config"
	"github.com/mohammad-safakhou/footprint/internal/dashboard"
	"github.com/mohammad-safakhou/footprint/internal/store"
	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var addr string

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over the saved workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if addr == "" {
				addr = cfg.Dashboard.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			kv, err := store.New(ctx, cfg.Storage, cfg.General.UserDir(), cfg.General.UserID)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			ws, err := workspace.NewStore(ctx, kv)
			if err != nil {
				return fmt.Errorf("failed to open workspace: %w", err)
			}

			srv := dashboard.New(log.New(os.Stderr, "[HTTP] ", log.LstdFlags))
			srv.Publish(workspace.Snapshot{Links: ws.Links()})
			return srv.Start(ctx, addr)
		},
	}
	serve.Flags().StringVar(&cfgPath, "config", "", "path to config file")
	serve.Flags().StringVar(&addr, "addr", "", "listen address (defaults to dashboard.addr)")
	return serve
}
