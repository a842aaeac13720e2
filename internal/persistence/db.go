// Package persistence provides SQLite-based run storage: the roster, the
// per-year record table and the yearly summaries of every run.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	_ "modernc.org/sqlite"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/engine"
	"github.com/talgya/floodsim/internal/record"
)

// ErrNotFound is returned when a run, year or household has no stored row.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Run describes one stored simulation run.
type Run struct {
	ID         string `json:"id"`
	Seed       int64  `json:"seed"`
	Years      int    `json:"years"`
	Households int    `json:"households"`
	Status     string `json:"status"`
	LastYear   int    `json:"last_year"`
	CreatedAt  string `json:"created_at"`
	ConfigYAML string `json:"config_yaml"`
}

// Point is one year of a household's attribute series.
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Column names follow the json tags of the stored types.
	conn.Mapper = reflectx.NewMapperFunc("json", strings.ToLower)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		years INTEGER NOT NULL,
		households INTEGER NOT NULL,
		status TEXT NOT NULL,
		last_year INTEGER NOT NULL DEFAULT -1,
		created_at TEXT NOT NULL,
		config_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS households (
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		income REAL NOT NULL,
		flood_prone INTEGER NOT NULL,
		PRIMARY KEY (run_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		damage REAL NOT NULL,
		awareness REAL NOT NULL,
		fear REAL NOT NULL,
		trust REAL NOT NULL,
		perception REAL NOT NULL,
		status INTEGER NOT NULL,
		PRIMARY KEY (run_id, year, agent_id)
	);

	CREATE TABLE IF NOT EXISTS year_stats (
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		warned INTEGER NOT NULL,
		flood_events INTEGER NOT NULL,
		households INTEGER NOT NULL,
		normal INTEGER NOT NULL,
		evacuated INTEGER NOT NULL,
		displaced INTEGER NOT NULL,
		flooded INTEGER NOT NULL,
		prepared INTEGER NOT NULL,
		recovered INTEGER NOT NULL,
		mean_damage REAL NOT NULL,
		max_damage REAL NOT NULL,
		mean_awareness REAL NOT NULL,
		mean_fear REAL NOT NULL,
		mean_trust REAL NOT NULL,
		mean_perception REAL NOT NULL,
		PRIMARY KEY (run_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_agent ON snapshots(run_id, agent_id, year);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun registers a new run and its initial roster.
func (db *DB) CreateRun(run Run, households []*agents.Household) error {
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	run.LastYear = -1

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExec(`INSERT INTO runs
		(id, seed, years, households, status, last_year, created_at, config_yaml)
		VALUES (:id, :seed, :years, :households, :status, :last_year, :created_at, :config_yaml)`, run)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO households
		(run_id, agent_id, x, y, income, flood_prone)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, h := range households {
		p := h.Position()
		_, err := stmt.Exec(run.ID, int64(h.ID), p.X, p.Y, h.Income, boolInt(h.FloodProne))
		if err != nil {
			return fmt.Errorf("insert household %d: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

// SaveYear appends one recorded year and its summary.
func (db *DB) SaveYear(runID string, rows []record.Row, stats engine.YearStats) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO snapshots
		(run_id, year, agent_id, damage, awareness, fear, trust, perception, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			runID, r.Year, int64(r.AgentID),
			r.Damage, r.Awareness, r.Fear, r.Trust, r.Perception,
			int64(r.Status),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot %d/%d: %w", r.Year, r.AgentID, err)
		}
	}

	_, err = tx.Exec(`INSERT INTO year_stats
		(run_id, year, warned, flood_events, households, normal, evacuated, displaced,
		 flooded, prepared, recovered, mean_damage, max_damage, mean_awareness,
		 mean_fear, mean_trust, mean_perception)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, stats.Year, boolInt(stats.Warned), stats.FloodEvents, stats.Households,
		stats.Normal, stats.Evacuated, stats.Displaced, stats.Flooded, stats.Prepared,
		stats.Recovered, stats.MeanDamage, stats.MaxDamage, stats.MeanAwareness,
		stats.MeanFear, stats.MeanTrust, stats.MeanPerception,
	)
	if err != nil {
		return fmt.Errorf("insert stats %d: %w", stats.Year, err)
	}

	if _, err := tx.Exec("UPDATE runs SET last_year = ? WHERE id = ?", stats.Year, runID); err != nil {
		return err
	}

	return tx.Commit()
}

// FinishRun marks a run as complete or failed.
func (db *DB) FinishRun(runID, status string) error {
	res, err := db.conn.Exec("UPDATE runs SET status = ? WHERE id = ?", status, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	slog.Info("run finished", "run", runID, "status", status)
	return nil
}

// Runs returns every stored run, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT id, seed, years, households, status, last_year, created_at, config_yaml FROM runs ORDER BY created_at DESC, id",
	)
	return runs, err
}

// GetRun returns one run.
func (db *DB) GetRun(runID string) (Run, error) {
	var run Run
	err := db.conn.Get(&run,
		"SELECT id, seed, years, households, status, last_year, created_at, config_yaml FROM runs WHERE id = ?",
		runID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return run, err
}

// Value is the point lookup by (attribute, agent, year) within a run.
func (db *DB) Value(runID string, attr record.Attribute, agent agents.HouseholdID, year int) (float64, error) {
	col, err := column(attr)
	if err != nil {
		return 0, err
	}
	var v float64
	err = db.conn.Get(&v,
		"SELECT "+col+" FROM snapshots WHERE run_id = ? AND agent_id = ? AND year = ?",
		runID, int64(agent), year,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s of agent %d in year %d: %w", attr, agent, year, ErrNotFound)
	}
	return v, err
}

// Series returns attr for agent over every stored year of the run, ascending.
func (db *DB) Series(runID string, attr record.Attribute, agent agents.HouseholdID) ([]Point, error) {
	col, err := column(attr)
	if err != nil {
		return nil, err
	}
	var points []Point
	err = db.conn.Select(&points,
		"SELECT year, "+col+" AS value FROM snapshots WHERE run_id = ? AND agent_id = ? ORDER BY year",
		runID, int64(agent),
	)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("agent %d: %w", agent, ErrNotFound)
	}
	return points, nil
}

// Year returns every household's row for one year, ordered by agent.
func (db *DB) Year(runID string, year int) ([]record.Row, error) {
	var rows []record.Row
	err := db.conn.Select(&rows,
		`SELECT year, agent_id, damage, awareness, fear, trust, perception, status
		FROM snapshots WHERE run_id = ? AND year = ? ORDER BY agent_id`,
		runID, year,
	)
	return rows, err
}

// Stats returns the yearly summaries of a run, ascending by year.
func (db *DB) Stats(runID string) ([]engine.YearStats, error) {
	var stats []engine.YearStats
	err := db.conn.Select(&stats,
		`SELECT year, warned, flood_events, households, normal, evacuated, displaced,
			flooded, prepared, recovered, mean_damage, max_damage, mean_awareness,
			mean_fear, mean_trust, mean_perception
		FROM year_stats WHERE run_id = ? ORDER BY year`,
		runID,
	)
	return stats, err
}

// column maps an attribute to its snapshots column. Only known attributes
// reach the query text.
func column(attr record.Attribute) (string, error) {
	a, err := record.ParseAttribute(string(attr))
	if err != nil {
		return "", err
	}
	return string(a), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
