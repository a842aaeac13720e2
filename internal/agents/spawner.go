// Roster spawning creates a synthetic initial population when no roster
// file is supplied.
package agents

import (
	"math"
	"math/rand"

	"github.com/talgya/floodsim/internal/spatial"
)

// Bounds is the rectangle households are placed in.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// SpawnConfig controls synthetic roster generation.
type SpawnConfig struct {
	Seed int64

	// IncomeAlpha is the Pareto shape; larger values give a flatter distribution.
	IncomeAlpha float64

	// FloodProneShare marks the westernmost share of the extent as flood-prone.
	FloodProneShare float64
}

// DefaultSpawnConfig returns the reference roster distribution.
func DefaultSpawnConfig(seed int64) SpawnConfig {
	return SpawnConfig{
		Seed:            seed,
		IncomeAlpha:     0.5,
		FloodProneShare: 0.3,
	}
}

// Spawner creates roster records.
type Spawner struct {
	cfg SpawnConfig
	rng *rand.Rand
}

// NewSpawner creates a spawner. Its stream is independent of the run stream,
// so spawning never shifts simulation draws.
func NewSpawner(cfg SpawnConfig) *Spawner {
	return &Spawner{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed + 300)),
	}
}

// SpawnRoster creates count records inside b.
func (s *Spawner) SpawnRoster(count int, b Bounds) []Record {
	roster := make([]Record, 0, count)
	width := b.MaxX - b.MinX

	for i := 0; i < count; i++ {
		pos := spatial.Position{
			X: b.MinX + s.rng.Float64()*width,
			Y: b.MinY + s.rng.Float64()*(b.MaxY-b.MinY),
		}

		floodProne := false
		if width > 0 {
			floodProne = (pos.X-b.MinX)/width < s.cfg.FloodProneShare
		}

		roster = append(roster, Record{
			Position:   pos,
			Income:     s.paretoIncome(),
			FloodProne: floodProne,
			Awareness:  s.rng.Float64(),
			Fear:       s.rng.Float64(),
			Trust:      s.rng.Float64(),
		})
	}
	return roster
}

// paretoIncome draws from a Lomax (Pareto II) distribution with shape IncomeAlpha.
func (s *Spawner) paretoIncome() float64 {
	alpha := s.cfg.IncomeAlpha
	if alpha <= 0 {
		alpha = 0.5
	}
	u := s.rng.Float64()
	return math.Pow(1-u, -1/alpha) - 1
}
