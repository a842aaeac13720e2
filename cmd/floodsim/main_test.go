package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/spatial"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("expected version in output, got %q", out)
	}
}

func TestRunThenQuery(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--json", "--households", "60", "--years", "4", "--seed", "9", "--db", dbPath, "--workers", "2")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	var summary runSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out, err)
	}
	if summary.Households != 60 || summary.Years != 4 || summary.Rows != 240 {
		t.Errorf("unexpected summary %+v", summary)
	}

	out, err = execute(t, "query", "--db", dbPath, "--run", summary.RunID, "--attr", "status", "--agent", "3", "--year", "0")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := strings.TrimSpace(out); got != "normal" && got != "evacuated" && got != "displaced" {
		t.Errorf("expected a status name, got %q", got)
	}

	out, err = execute(t, "query", "--json", "--db", dbPath, "--run", summary.RunID, "--attr", "trust", "--agent", "3")
	if err != nil {
		t.Fatalf("query series: %v", err)
	}
	var points []map[string]float64
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("decode series %q: %v", out, err)
	}
	if len(points) != 4 {
		t.Errorf("expected 4 points, got %d", len(points))
	}

	out, err = execute(t, "query", "--db", dbPath)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if !strings.Contains(out, summary.RunID) || !strings.Contains(out, "complete") {
		t.Errorf("expected completed run in listing, got %q", out)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	_, err := execute(t, "run", "--db", "", "--households", "5", "--years", "0")
	if err == nil || !strings.Contains(err.Error(), "years") {
		t.Errorf("expected years configuration error, got %v", err)
	}
}

func TestQueryRequiresAgent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	if _, err := execute(t, "query", "--db", dbPath, "--run", "x", "--attr", "damage"); err == nil {
		t.Error("expected error without --agent")
	}
}

func TestRosterBoundsPadsExtent(t *testing.T) {
	b := rosterBounds([]agents.Record{
		{Position: spatial.Position{X: 0, Y: 1}},
		{Position: spatial.Position{X: 2, Y: 3}},
	})
	if !(b.MinX < 0 && b.MinY < 1 && b.MaxX > 2 && b.MaxY > 3) {
		t.Errorf("expected padded bounds, got %+v", b)
	}

	empty := rosterBounds(nil)
	if empty.MaxX <= empty.MinX {
		t.Errorf("expected non-empty bounds, got %+v", empty)
	}
}
