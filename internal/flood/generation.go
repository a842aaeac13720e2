// Synthetic hazard generation using layered simplex noise.
// Produces a reproducible event table for demos and tests when no hazard
// calendar is available.
package flood

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds synthetic flood generation parameters.
type GenConfig struct {
	Seed  int64
	Years int // Simulation years 0..Years-1 are considered

	// ReturnPeriod is the mean number of years between flood years.
	ReturnPeriod float64
	// MaxEventsPerYear caps the events drawn in one flood year.
	MaxEventsPerYear int

	// Raster extent and resolution.
	MinX, MinY, MaxX, MaxY float64
	Rows, Cols             int

	// PeakDepth is the depth (mm) at the wettest cell.
	PeakDepth float64
	// WetLevel is the normalized noise value below which a cell stays dry (no coverage).
	WetLevel float64
	// Frequency is the base noise frequency in cycles per domain unit.
	Frequency float64
}

// DefaultGenConfig returns a configuration covering the given extent.
func DefaultGenConfig(minX, minY, maxX, maxY float64) GenConfig {
	return GenConfig{
		Seed:             42,
		Years:            100,
		ReturnPeriod:     5,
		MaxEventsPerYear: 2,
		MinX:             minX,
		MinY:             minY,
		MaxX:             maxX,
		MaxY:             maxY,
		Rows:             64,
		Cols:             64,
		PeakDepth:        1200,
		WetLevel:         0.45,
		Frequency:        4 / math.Max(maxX-minX, maxY-minY),
	}
}

// Generate creates a synthetic event table. The same config always yields
// the same table.
func Generate(cfg GenConfig) *Table {
	rng := rand.New(rand.NewSource(cfg.Seed + 500))
	table := NewTable()

	if cfg.Years <= 0 || cfg.Rows <= 0 || cfg.Cols <= 0 {
		return table
	}

	pYear := 1.0
	if cfg.ReturnPeriod > 1 {
		pYear = 1 / cfg.ReturnPeriod
	}
	maxEvents := max(cfg.MaxEventsPerYear, 1)

	cellW := (cfg.MaxX - cfg.MinX) / float64(cfg.Cols)
	cellH := (cfg.MaxY - cfg.MinY) / float64(cfg.Rows)
	if !(cellW > 0) || !(cellH > 0) {
		return table
	}

	nextID := 1
	lastFlood := -1
	for year := 0; year < cfg.Years; year++ {
		if rng.Float64() >= pYear {
			continue
		}
		interarrival := 0.0
		if lastFlood >= 0 {
			interarrival = float64(year - lastFlood)
		}
		lastFlood = year

		n := 1 + rng.Intn(maxEvents)
		for i := 0; i < n; i++ {
			noise := opensimplex.NewNormalized(cfg.Seed + int64(nextID)*7919)
			table.Add(Event{
				ID:               nextID,
				Year:             year,
				InterarrivalTime: interarrival,
				Sample:           hazardRaster(cfg, noise, cellW, cellH),
			})
			nextID++
		}
	}
	return table
}

// hazardRaster renders one event's depth field. Dry cells carry NaN so they
// read as "no coverage".
func hazardRaster(cfg GenConfig, noise opensimplex.Noise, cellW, cellH float64) *Raster {
	data := make([]float64, cfg.Rows*cfg.Cols)
	wet := math.Min(math.Max(cfg.WetLevel, 0), 0.99)

	for row := 0; row < cfg.Rows; row++ {
		y := cfg.MaxY - (float64(row)+0.5)*cellH
		for col := 0; col < cfg.Cols; col++ {
			x := cfg.MinX + (float64(col)+0.5)*cellW

			n := octaveNoise(noise, x, y, 3, cfg.Frequency, 0.5)
			if n <= wet {
				data[row*cfg.Cols+col] = math.NaN()
				continue
			}
			data[row*cfg.Cols+col] = cfg.PeakDepth * (n - wet) / (1 - wet)
		}
	}

	return &Raster{
		OriginX:    cfg.MinX,
		OriginY:    cfg.MaxY,
		CellWidth:  cellW,
		CellHeight: cellH,
		Rows:       cfg.Rows,
		Cols:       cfg.Cols,
		Data:       data,
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
