package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/footprint/config"
	"github.com/mohammad-safakhou/footprint/internal/knowledge"
	"github.com/mohammad-safakhou/footprint/internal/store"
)

func searchCMD() *cobra.Command {
	var cfgPath string
	var limit int

	var search = &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			ctx := context.Background()

			var kb knowledge.Store
			if cfg.Storage.Postgres.Enabled() {
				db, err := sql.Open("postgres", cfg.Storage.Postgres.DSN())
				if err != nil {
					return fmt.Errorf("failed to open postgres: %w", err)
				}
				defer db.Close()
				kb = knowledge.NewPostgresStore(db, cfg.General.UserID)
			} else {
				kv, err := store.New(ctx, cfg.Storage, cfg.General.UserDir(), cfg.General.UserID)
				if err != nil {
					return fmt.Errorf("failed to open storage: %w", err)
				}
				kb = knowledge.NewFileStore(kv)
			}

			entries, err := kb.List(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("knowledge base is empty")
				return nil
			}

			idx, err := knowledge.NewIndex(entries)
			if err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%.3f  %s  [%s]\n", h.Score, h.URL, h.Platform)
			}
			return nil
		},
	}
	search.Flags().StringVar(&cfgPath, "config", "", "path to config file")
	search.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	return search
}
