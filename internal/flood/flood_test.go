package flood

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/floodsim/internal/spatial"
)

// constSample covers every position with a fixed intensity.
type constSample float64

func (c constSample) IntensityAt(spatial.Position) (float64, bool) { return float64(c), true }

// emptySample covers nothing.
type emptySample struct{}

func (emptySample) IntensityAt(spatial.Position) (float64, bool) { return 0, false }

func TestRasterIndexNorthUp(t *testing.T) {
	// 2 rows x 3 cols, top-left at (0, 20), 10-unit cells.
	r, err := NewRaster(0, 20, 10, 10, 2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	if err != nil {
		t.Fatalf("NewRaster: %v", err)
	}

	tests := []struct {
		p    spatial.Position
		want float64
		ok   bool
	}{
		{spatial.Position{X: 5, Y: 15}, 1, true},
		{spatial.Position{X: 25, Y: 15}, 3, true},
		{spatial.Position{X: 15, Y: 5}, 5, true},
		{spatial.Position{X: 0, Y: 20}, 1, true},
		{spatial.Position{X: -1, Y: 5}, 0, false},
		{spatial.Position{X: 30, Y: 5}, 0, false},
		{spatial.Position{X: 5, Y: 21}, 0, false},
		{spatial.Position{X: 5, Y: 0}, 0, false},
	}
	for _, tt := range tests {
		got, ok := r.IntensityAt(tt.p)
		if ok != tt.ok || got != tt.want {
			t.Errorf("IntensityAt(%v) = (%f, %t), want (%f, %t)", tt.p, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRasterNoDataAndNaNAreAbsent(t *testing.T) {
	r, _ := NewRaster(0, 2, 1, 1, 1, 2, []float64{math.NaN(), -9999})
	r.NoData, r.HasNoData = -9999, true

	if _, ok := r.IntensityAt(spatial.Position{X: 0.5, Y: 1.5}); ok {
		t.Error("NaN cell should be absent")
	}
	if _, ok := r.IntensityAt(spatial.Position{X: 1.5, Y: 1.5}); ok {
		t.Error("nodata cell should be absent")
	}
}

func TestNewRasterRejectsBadShape(t *testing.T) {
	if _, err := NewRaster(0, 0, 1, 1, 2, 2, []float64{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := NewRaster(0, 0, 0, 1, 1, 1, []float64{1}); err == nil {
		t.Error("expected error for zero cell width")
	}
}

func TestCombinedTakesMaximumOfPresent(t *testing.T) {
	table := NewTable()
	table.Add(Event{ID: 1, Year: 3, Sample: constSample(120)})
	table.Add(Event{ID: 2, Year: 3, Sample: emptySample{}})
	table.Add(Event{ID: 3, Year: 3, Sample: constSample(480)})

	got := Combined(table, 3, spatial.Position{})
	if got != 480 {
		t.Errorf("expected 480, got %f", got)
	}
}

func TestCombinedAllAbsentIsZero(t *testing.T) {
	table := NewTable()
	table.Add(Event{ID: 1, Year: 0, Sample: emptySample{}})

	got := Combined(table, 0, spatial.Position{X: 1, Y: 1})
	if got != 0 || math.IsNaN(got) {
		t.Errorf("expected numeric 0, got %f", got)
	}
	if got := Combined(table, 7, spatial.Position{}); got != 0 {
		t.Errorf("year without events should give 0, got %f", got)
	}
}

func TestCombinedNaNRasterNeverLeaks(t *testing.T) {
	r, _ := NewRaster(0, 1, 1, 1, 1, 1, []float64{math.NaN()})
	table := NewTable()
	table.Add(Event{ID: 1, Year: 0, Sample: r})
	table.Add(Event{ID: 2, Year: 0, Sample: constSample(-5)})

	if got := Combined(table, 0, spatial.Position{X: 0.5, Y: 0.5}); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
}

func TestTableQueries(t *testing.T) {
	table := NewTable()
	table.Add(Event{ID: 1, Year: 5, Sample: constSample(1)})
	table.Add(Event{ID: 2, Year: 2, Sample: constSample(1)})
	table.Add(Event{ID: 3, Year: 5, Sample: constSample(1)})

	if !table.HasEvent(5) || table.HasEvent(4) {
		t.Error("HasEvent mismatch")
	}
	if n := len(table.EventsFor(5)); n != 2 {
		t.Errorf("expected 2 events in year 5, got %d", n)
	}
	years := table.Years()
	if len(years) != 2 || years[0] != 2 || years[1] != 5 {
		t.Errorf("expected years [2 5], got %v", years)
	}
	if table.Len() != 3 {
		t.Errorf("expected 3 events, got %d", table.Len())
	}
}

func TestReadCalendar(t *testing.T) {
	in := "EventID,Year,InterarrivalTime\n12,3,1.5\n40,7,4\n"
	entries, err := ReadCalendar(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCalendar: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0] != (CalendarEntry{EventID: 12, Year: 3, InterarrivalTime: 1.5}) {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
}

func TestReadCalendarMissingColumn(t *testing.T) {
	if _, err := ReadCalendar(strings.NewReader("Year\n3\n")); err == nil {
		t.Error("expected error for missing EventID column")
	}
}

func TestReadASCIIGrid(t *testing.T) {
	in := `ncols 3
nrows 2
xllcorner 100
yllcorner 50
cellsize 10
NODATA_value -9999
1 2 3
4 -9999 6
`
	r, err := ReadASCIIGrid(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadASCIIGrid: %v", err)
	}
	if r.Rows != 2 || r.Cols != 3 {
		t.Fatalf("unexpected shape %dx%d", r.Rows, r.Cols)
	}
	if r.OriginX != 100 || r.OriginY != 70 {
		t.Errorf("expected origin (100,70), got (%f,%f)", r.OriginX, r.OriginY)
	}
	if v, ok := r.IntensityAt(spatial.Position{X: 125, Y: 65}); !ok || v != 3 {
		t.Errorf("expected 3 at top-right, got %f (%t)", v, ok)
	}
	if _, ok := r.IntensityAt(spatial.Position{X: 115, Y: 55}); ok {
		t.Error("nodata cell should be absent")
	}
}

func TestReadASCIIGridRejectsBadShape(t *testing.T) {
	for _, shape := range []string{
		"ncols 4000000000\nnrows 4000000000\n",
		"ncols 0\nnrows 2\n",
		"ncols -3\nnrows 2\n",
	} {
		in := shape + "xllcorner 0\nyllcorner 0\ncellsize 1\n1\n"
		if _, err := ReadASCIIGrid(strings.NewReader(in)); err == nil {
			t.Errorf("expected error for header %q", shape)
		}
	}
}

func TestLoadTableFiltersAndRekeys(t *testing.T) {
	dir := t.TempDir()
	calendar := "EventID,Year,InterarrivalTime\n1,1999,0\n2,2001,2\n3,2001,0\n4,2050,49\n"
	writeFile(t, filepath.Join(dir, "calendar.csv"), calendar)

	grid := "ncols 1\nnrows 1\nxllcorner 0\nyllcorner 0\ncellsize 1\n%s\n"
	writeFile(t, filepath.Join(dir, "hazard_0002.asc"), strings.Replace(grid, "%s", "250", 1))
	writeFile(t, filepath.Join(dir, "hazard_0003.asc"), strings.Replace(grid, "%s", "400", 1))

	table, err := LoadTable(filepath.Join(dir, "calendar.csv"), filepath.Join(dir, "hazard_%04d.asc"), 2000, 10)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 events in window, got %d", table.Len())
	}
	if !table.HasEvent(1) {
		t.Fatal("expected events re-keyed to year 1")
	}
	if got := Combined(table, 1, spatial.Position{X: 0.5, Y: 0.5}); got != 400 {
		t.Errorf("expected combined 400, got %f", got)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := DefaultGenConfig(0, 0, 10, 10)
	cfg.Years = 40
	cfg.Rows, cfg.Cols = 16, 16

	a := Generate(cfg)
	b := Generate(cfg)

	if a.Len() == 0 {
		t.Fatal("expected some events over 40 years with a 5-year return period")
	}
	if a.Len() != b.Len() {
		t.Fatalf("event counts differ: %d vs %d", a.Len(), b.Len())
	}
	for _, year := range a.Years() {
		for x := 0.25; x < 10; x += 1.5 {
			p := spatial.Position{X: x, Y: 10 - x}
			if ca, cb := Combined(a, year, p), Combined(b, year, p); ca != cb {
				t.Fatalf("year %d at %v: %f vs %f", year, p, ca, cb)
			}
		}
	}
}

func TestGenerateDepthsBounded(t *testing.T) {
	cfg := DefaultGenConfig(0, 0, 10, 10)
	cfg.Years = 20
	cfg.ReturnPeriod = 1
	table := Generate(cfg)

	if len(table.Years()) != 20 {
		t.Errorf("return period 1 should flood every year, got %d flood years", len(table.Years()))
	}
	for _, year := range table.Years() {
		for _, e := range table.EventsFor(year) {
			r := e.Sample.(*Raster)
			for _, v := range r.Data {
				if math.IsNaN(v) {
					continue
				}
				if v <= 0 || v > cfg.PeakDepth {
					t.Fatalf("depth %f outside (0, %f]", v, cfg.PeakDepth)
				}
			}
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
