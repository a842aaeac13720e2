package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/persistence"
	"github.com/talgya/floodsim/internal/record"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Look up recorded values of a stored run",
		Long: `Look up recorded values of a stored run.

Without --run, lists the stored runs. With --year, prints a single value;
without it, prints the attribute over every recorded year.

Examples:
  floodsim query
  floodsim query --run <id> --attr damage --agent 12 --year 40
  floodsim query --run <id> --attr trust --agent 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetString("run")
			attrName, _ := cmd.Flags().GetString("attr")
			agent, _ := cmd.Flags().GetUint64("agent")
			year, _ := cmd.Flags().GetInt("year")

			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if runID == "" {
				runs, err := db.Runs()
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs stored.")
					return nil
				}
				for _, r := range runs {
					age := r.CreatedAt
					if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
						age = humanize.Time(t)
					}
					fmt.Fprintf(out, "%s  %-8s  %s households  %d/%d years  seed %d  %s\n",
						r.ID, r.Status, humanize.Comma(int64(r.Households)), r.LastYear+1, r.Years, r.Seed, age)
				}
				return nil
			}

			attr, err := record.ParseAttribute(attrName)
			if err != nil {
				return err
			}
			if agent == 0 {
				return fmt.Errorf("--agent is required")
			}
			id := agents.HouseholdID(agent)

			if cmd.Flags().Changed("year") {
				v, err := db.Value(runID, attr, id, year)
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]any{"attr": attr, "agent": agent, "year": year, "value": v})
				}
				fmt.Fprintln(out, formatValue(attr, v))
				return nil
			}

			points, err := db.Series(runID, attr, id)
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(points)
			}
			for _, p := range points {
				fmt.Fprintf(out, "%4d  %s\n", p.Year, formatValue(attr, p.Value))
			}
			return nil
		},
	}

	cmd.Flags().String("db", "data/floodsim.db", "SQLite database with stored runs")
	cmd.Flags().String("run", "", "Run id (lists runs when empty)")
	cmd.Flags().String("attr", "damage", "Attribute: damage, awareness, fear, trust, perception, status")
	cmd.Flags().Uint64("agent", 0, "Household id (1-based)")
	cmd.Flags().Int("year", 0, "Simulation year (prints the whole series when omitted)")

	return cmd
}

// formatValue renders status ordinals by name.
func formatValue(attr record.Attribute, v float64) string {
	if attr == record.AttrStatus {
		return agents.Status(v).String()
	}
	return humanize.FtoaWithDigits(v, 6)
}
