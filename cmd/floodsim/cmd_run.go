package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/config"
	"github.com/talgya/floodsim/internal/engine"
	"github.com/talgya/floodsim/internal/flood"
	"github.com/talgya/floodsim/internal/logging"
	"github.com/talgya/floodsim/internal/persistence"
	"github.com/talgya/floodsim/internal/roster"
)

// runSummary is printed when a run ends.
type runSummary struct {
	RunID      string  `json:"run_id"`
	Households int     `json:"households"`
	Years      int     `json:"years"`
	Rows       int     `json:"rows"`
	FloodYears int     `json:"flood_years"`
	Warnings   int     `json:"warnings"`
	Displaced  int     `json:"displaced"`
	MeanDamage float64 `json:"mean_damage"`
	Elapsed    string  `json:"elapsed"`
	DB         string  `json:"db,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Run a simulation for the configured number of years.

Households come from a roster CSV or are spawned synthetically. Floods come
from an event calendar with one ASCII grid per event, or are generated from
simplex noise over the roster extent.

Examples:
  floodsim run --households 5000 --years 50
  floodsim run --roster roster.csv --calendar events.csv --grids 'maps/event_%d.asc'
  floodsim run --config floodsim.yaml --db data/floodsim.db`,
		RunE: runSimulation,
	}

	cmd.Flags().String("config", "", "YAML configuration file")
	cmd.Flags().String("roster", "", "Household roster CSV")
	cmd.Flags().Int("households", 1000, "Synthetic households to spawn when no roster is given")
	cmd.Flags().Float64("extent", 0.1, "Side of the square synthetic households are spawned in")
	cmd.Flags().String("save-roster", "", "Write the roster used to this CSV path")
	cmd.Flags().String("calendar", "", "Flood event calendar CSV (EventID,Year,InterarrivalTime)")
	cmd.Flags().String("grids", "", "fmt pattern of the per-event ASCII grids, e.g. maps/event_%d.asc")
	cmd.Flags().Int("initial-year", 0, "First calendar year mapped to simulation year 0")
	cmd.Flags().Float64("return-period", 5, "Mean years between synthetic flood years")
	cmd.Flags().String("db", "data/floodsim.db", "SQLite database for results (empty disables storage)")
	cmd.Flags().Int("workers", 0, "Worker goroutines per phase (0 = GOMAXPROCS)")
	cmd.Flags().Int64("seed", 0, "Random seed (overrides config)")
	cmd.Flags().Int("years", 0, "Years to simulate (overrides config)")

	return cmd
}

func runSimulation(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("log-level") && cfg.Logging.Level != "" {
		format, _ := cmd.Flags().GetString("log-format")
		slog.SetDefault(logging.NewLogger(cfg.Logging.Level, format, os.Stderr))
	}

	records, err := loadRoster(cmd, cfg.Seed)
	if err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("save-roster"); path != "" {
		if err := roster.WriteFile(path, records); err != nil {
			return fmt.Errorf("failed to save roster: %w", err)
		}
	}

	floods, err := loadFloods(cmd, cfg, records)
	if err != nil {
		return err
	}

	sim, err := engine.NewSimulation(cfg, records, floods)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	dbPath, _ := cmd.Flags().GetString("db")
	var db *persistence.DB
	if dbPath != "" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = persistence.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		configYAML, err := cfg.Marshal()
		if err != nil {
			return err
		}
		run := persistence.Run{
			ID:         runID,
			Seed:       cfg.Seed,
			Years:      cfg.Years,
			Households: len(sim.Households),
			ConfigYAML: configYAML,
		}
		if err := db.CreateRun(run, sim.Households); err != nil {
			return fmt.Errorf("failed to store run: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("run started", "run", runID, "households", len(sim.Households), "years", cfg.Years, "seed", cfg.Seed)
	start := time.Now()

	runErr := sim.Run(ctx, func(year int, st engine.YearStats) error {
		if db == nil {
			return nil
		}
		return db.SaveYear(runID, sim.Records.Year(year), st)
	})

	if db != nil {
		status := persistence.RunComplete
		if runErr != nil {
			status = persistence.RunFailed
		}
		if err := db.FinishRun(runID, status); err != nil {
			slog.Error("failed to mark run", "run", runID, "error", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", runID, runErr)
	}

	summary := summarize(sim, runID, time.Since(start))
	if db != nil {
		summary.DB = dbPath
	}
	return printSummary(cmd, summary, jsonOut)
}

func loadRunConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("years") {
		cfg.Years, _ = cmd.Flags().GetInt("years")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	return cfg, nil
}

func loadRoster(cmd *cobra.Command, seed int64) ([]agents.Record, error) {
	if path, _ := cmd.Flags().GetString("roster"); path != "" {
		records, err := roster.ReadFile(path)
		if err != nil {
			return nil, err
		}
		slog.Info("roster loaded", "path", path, "households", len(records))
		return records, nil
	}

	count, _ := cmd.Flags().GetInt("households")
	extent, _ := cmd.Flags().GetFloat64("extent")
	if count < 0 {
		return nil, &config.ConfigurationError{Field: "households", Reason: fmt.Sprintf("must be non-negative, got %d", count)}
	}
	records := agents.NewSpawner(agents.DefaultSpawnConfig(seed)).SpawnRoster(count, agents.Bounds{MaxX: extent, MaxY: extent})
	slog.Info("roster spawned", "households", len(records), "extent", extent)
	return records, nil
}

func loadFloods(cmd *cobra.Command, cfg config.Config, records []agents.Record) (flood.Source, error) {
	calendar, _ := cmd.Flags().GetString("calendar")
	grids, _ := cmd.Flags().GetString("grids")
	if calendar != "" {
		if grids == "" {
			return nil, &config.ConfigurationError{Field: "grids", Reason: "required with --calendar"}
		}
		initial, _ := cmd.Flags().GetInt("initial-year")
		table, err := flood.LoadTable(calendar, grids, initial, cfg.Years)
		if err != nil {
			return nil, err
		}
		return table, nil
	}

	b := rosterBounds(records)
	gen := flood.DefaultGenConfig(b.MinX, b.MinY, b.MaxX, b.MaxY)
	gen.Seed = cfg.Seed
	gen.Years = cfg.Years
	gen.ReturnPeriod, _ = cmd.Flags().GetFloat64("return-period")
	table := flood.Generate(gen)
	slog.Info("synthetic floods generated", "events", table.Len(), "flood_years", len(table.Years()))
	return table, nil
}

// rosterBounds returns the extent of the roster, padded so that edge
// households fall inside the hazard grid.
func rosterBounds(records []agents.Record) agents.Bounds {
	if len(records) == 0 {
		return agents.Bounds{MaxX: 1, MaxY: 1}
	}
	b := agents.Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, r := range records {
		b.MinX = math.Min(b.MinX, r.Position.X)
		b.MinY = math.Min(b.MinY, r.Position.Y)
		b.MaxX = math.Max(b.MaxX, r.Position.X)
		b.MaxY = math.Max(b.MaxY, r.Position.Y)
	}
	pad := math.Max(math.Max(b.MaxX-b.MinX, b.MaxY-b.MinY)*0.01, 1e-6)
	b.MinX -= pad
	b.MinY -= pad
	b.MaxX += pad
	b.MaxY += pad
	return b
}

func summarize(sim *engine.Simulation, runID string, elapsed time.Duration) runSummary {
	s := runSummary{
		RunID:      runID,
		Households: len(sim.Households),
		Years:      len(sim.History),
		Rows:       sim.Records.Len(),
		Elapsed:    elapsed.Round(time.Millisecond).String(),
	}
	for _, st := range sim.History {
		if st.FloodEvents > 0 {
			s.FloodYears++
		}
		if st.Warned {
			s.Warnings++
		}
	}
	if n := len(sim.History); n > 0 {
		last := sim.History[n-1]
		s.Displaced = last.Displaced
		s.MeanDamage = last.MeanDamage
	}
	return s
}

func printSummary(cmd *cobra.Command, s runSummary, jsonOut bool) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(out).Encode(s)
	}

	fmt.Fprintf(out, "Run %s\n", s.RunID)
	fmt.Fprintf(out, "  households:  %s\n", humanize.Comma(int64(s.Households)))
	fmt.Fprintf(out, "  years:       %d (%d with floods, %d warnings)\n", s.Years, s.FloodYears, s.Warnings)
	fmt.Fprintf(out, "  records:     %s\n", humanize.Comma(int64(s.Rows)))
	fmt.Fprintf(out, "  displaced:   %s\n", humanize.Comma(int64(s.Displaced)))
	fmt.Fprintf(out, "  mean damage: %s\n", humanize.FtoaWithDigits(s.MeanDamage, 4))
	fmt.Fprintf(out, "  elapsed:     %s\n", s.Elapsed)
	if s.DB != "" {
		size := "unknown size"
		if info, err := os.Stat(s.DB); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		fmt.Fprintf(out, "  stored in:   %s (%s)\n", s.DB, size)
	}
	return nil
}
