package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/floodsim/internal/api"
	"github.com/talgya/floodsim/internal/persistence"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over a read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			port, _ := cmd.Flags().GetInt("port")
			rateLimit, _ := cmd.Flags().GetInt("rate-limit")

			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &api.Server{DB: db, Port: port, RateLimit: rateLimit}
			if err := srv.ListenAndServe(); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("db", "data/floodsim.db", "SQLite database with stored runs")
	cmd.Flags().Int("port", 8080, "HTTP port")
	cmd.Flags().Int("rate-limit", 600, "Requests per client per minute (0 disables)")

	return cmd
}
