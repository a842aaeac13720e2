package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/engine"
	"github.com/talgya/floodsim/internal/persistence"
	"github.com/talgya/floodsim/internal/record"
	"github.com/talgya/floodsim/internal/spatial"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hs := agents.NewHouseholds([]agents.Record{
		{Position: spatial.Position{X: 1, Y: 1}, Income: 5, Awareness: 0.5, Fear: 0.4, Trust: 0.5},
		{Position: spatial.Position{X: 2, Y: 2}, Income: 8, Awareness: 0.1, Fear: 0.2, Trust: 0.9},
	})
	if err := db.CreateRun(persistence.Run{ID: "r1", Seed: 1, Years: 2, Households: 2}, hs); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	for year := 0; year < 2; year++ {
		hs[0].Damage = 0.25 * float64(year+1)
		rows := []record.Row{record.Snapshot(year, hs[0]), record.Snapshot(year, hs[1])}
		if err := db.SaveYear("r1", rows, engine.YearStats{Year: year, Households: 2}); err != nil {
			t.Fatalf("SaveYear: %v", err)
		}
	}
	return &Server{DB: db}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := testServer(t).Handler()

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/runs", http.StatusOK},
		{"/api/v1/runs/r1", http.StatusOK},
		{"/api/v1/runs/nope", http.StatusNotFound},
		{"/api/v1/runs/r1/stats", http.StatusOK},
		{"/api/v1/runs/nope/stats", http.StatusNotFound},
		{"/api/v1/runs/r1/value?attr=damage&agent=1&year=1", http.StatusOK},
		{"/api/v1/runs/r1/value?attr=income&agent=1&year=1", http.StatusBadRequest},
		{"/api/v1/runs/r1/value?attr=damage&agent=x&year=1", http.StatusBadRequest},
		{"/api/v1/runs/r1/value?attr=damage&agent=1&year=9", http.StatusNotFound},
		{"/api/v1/runs/r1/years/0", http.StatusOK},
		{"/api/v1/runs/r1/years/5", http.StatusNotFound},
		{"/api/v1/runs/r1/agents/2?attr=trust", http.StatusOK},
		{"/api/v1/runs/r1/agents/9", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := get(t, h, tt.path); rec.Code != tt.code {
			t.Errorf("GET %s = %d, want %d (%s)", tt.path, rec.Code, tt.code, rec.Body.String())
		}
	}
}

func TestValueResponse(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/api/v1/runs/r1/value?attr=damage&agent=1&year=1")

	var body struct {
		Value float64 `json:"value"`
		Year  int     `json:"year"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Value != 0.5 || body.Year != 1 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestSeriesDefaultsToDamage(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/api/v1/runs/r1/agents/1")

	var body struct {
		Attr   string              `json:"attr"`
		Series []persistence.Point `json:"series"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Attr != "damage" || len(body.Series) != 2 || body.Series[0].Value != 0.25 {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestYearRowsCarryStatusNames(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/api/v1/runs/r1/years/0")

	var rows []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 || rows[0]["status"] != "normal" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestCORS(t *testing.T) {
	h := testServer(t).Handler()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Error("expected allowed origin to be echoed")
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request in the window should be limited")
	}
	if !rl.Allow("b") {
		t.Error("other clients have their own budget")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Errorf("RetryAfter = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("budget should reset after the window")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := testServer(t)
	s.RateLimit = 1
	h := s.Handler()

	if rec := get(t, h, "/api/v1/runs"); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := get(t, h, "/api/v1/runs")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}
