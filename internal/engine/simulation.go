// Simulation ties households, hazards and warnings together and runs one
// simulated year at a time.
package engine

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/config"
	"github.com/talgya/floodsim/internal/entropy"
	"github.com/talgya/floodsim/internal/flood"
	"github.com/talgya/floodsim/internal/record"
	"github.com/talgya/floodsim/internal/spatial"
	"github.com/talgya/floodsim/internal/warning"
)

// Simulation holds the complete run state.
type Simulation struct {
	Config      config.Config
	Rules       agents.Rules
	Households  []*agents.Household // Households[i].ID == i+1
	Index       *spatial.Index
	Floods      flood.Source
	Broadcaster *warning.Broadcaster
	Records     *record.Table
	Stream      *entropy.Stream

	// Neighbor lists by household index. Positions and radius are fixed for
	// the run, so they are resolved once.
	neighbors [][]int
	workers   int

	LastYear int // Most recent year processed, -1 before the first
	History  []YearStats
}

// NewSimulation validates the configuration and builds the initial state.
// All configuration errors surface here, before any year runs.
func NewSimulation(cfg config.Config, roster []agents.Record, floods flood.Source) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := agents.ValidateRoster(roster); err != nil {
		return nil, err
	}
	if floods == nil {
		floods = flood.NewTable()
	}

	index, err := spatial.NewIndex(cfg.Domain.Size, cfg.Domain.NeighborRadius)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "domain.size", Reason: err.Error()}
	}

	households := agents.NewHouseholds(roster)
	for _, h := range households {
		if err := index.Add(uint64(h.ID), h.Position()); err != nil {
			return nil, fmt.Errorf("register household: %w", err)
		}
	}

	neighbors := make([][]int, len(households))
	for i, h := range households {
		ids, err := index.Neighbors(uint64(h.ID), cfg.Domain.NeighborRadius)
		if err != nil {
			return nil, fmt.Errorf("resolve neighbors: %w", err)
		}
		idx := make([]int, len(ids))
		for j, id := range ids {
			idx[j] = int(id) - 1
		}
		neighbors[i] = idx
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	sim := &Simulation{
		Config:      cfg,
		Rules:       agents.RulesFromConfig(cfg.Household),
		Households:  households,
		Index:       index,
		Floods:      floods,
		Broadcaster: warning.NewBroadcaster(cfg.Warning.FalseAlarmRate, cfg.Warning.FalseNegativeRate, floods),
		Records:     record.NewTable(),
		Stream:      entropy.NewStream(cfg.Seed),
		neighbors:   neighbors,
		workers:     workers,
		LastYear:    -1,
	}

	slog.Info("simulation ready",
		"households", len(households),
		"years", cfg.Years,
		"neighbor_radius", cfg.Domain.NeighborRadius,
		"isolated", sim.isolatedCount(),
		"workers", workers,
		"displacement", cfg.Household.Displacement,
	)
	return sim, nil
}

// Neighbors returns the household indices within the contagion radius of household i.
func (s *Simulation) Neighbors(i int) []int {
	return s.neighbors[i]
}

// StepYear runs every phase of one year and records the result.
// Each phase completes for all households before the next begins.
// Years must increase; a year at or before LastYear is rejected untouched.
func (s *Simulation) StepYear(year int) (YearStats, error) {
	if year <= s.LastYear {
		return YearStats{}, fmt.Errorf("step year %d after %d: %w", year, s.LastYear, record.ErrYearRecorded)
	}
	r := s.Rules
	hs := s.Households

	s.forEach(year, "init", func(i int) { hs[i].InitStep() })

	warned := s.Broadcaster.Emit(year, s.Stream)
	if warned {
		s.forEach(year, "warning", func(i int) { hs[i].ReceiveEarlyWarning(r) })

		views := s.views()
		s.forEach(year, "contagion", func(i int) { hs[i].CheckNeighbours(s.neighborViews(i, views)) })
	}

	events := len(s.Floods.EventsFor(year))
	if s.Floods.HasEvent(year) {
		s.forEach(year, "flood", func(i int) {
			hs[i].ReceiveFlood(flood.Combined(s.Floods, year, hs[i].Position()), r)
		})

		if r.Probabilistic {
			// Draw sequentially in ID order so results do not depend on worker count.
			z := make([]float64, len(hs))
			for i := range z {
				z[i] = s.Stream.Normal(0, 1)
			}
			s.forEach(year, "displacement", func(i int) { hs[i].DisplaceByPerception(z[i], r) })
		}
	}

	s.forEach(year, "recovery", func(i int) {
		if hs[i].RepairsThisYear() {
			hs[i].FixDamage(r)
		}
	})
	if r.MutualAid > 0 {
		views := s.views()
		s.forEach(year, "aid", func(i int) { hs[i].ReceiveAid(s.neighborViews(i, views), r) })
	}
	views := s.views()
	s.forEach(year, "sentiments", func(i int) { hs[i].UpdateSentiments(s.neighborViews(i, views)) })

	rows := make([]record.Row, len(hs))
	for i, h := range hs {
		rows[i] = record.Snapshot(year, h)
	}
	if err := s.Records.Append(year, rows); err != nil {
		return YearStats{}, fmt.Errorf("record year %d: %w", year, err)
	}

	stats := s.collectStats(year, warned, events)
	s.History = append(s.History, stats)
	s.LastYear = year
	return stats, nil
}

// views captures every household's neighbor-visible state at a phase barrier.
func (s *Simulation) views() []agents.View {
	out := make([]agents.View, len(s.Households))
	for i, h := range s.Households {
		out[i] = h.View()
	}
	return out
}

func (s *Simulation) neighborViews(i int, views []agents.View) []agents.View {
	idx := s.neighbors[i]
	if len(idx) == 0 {
		return nil
	}
	out := make([]agents.View, len(idx))
	for j, n := range idx {
		out[j] = views[n]
	}
	return out
}

func (s *Simulation) isolatedCount() int {
	n := 0
	for _, nb := range s.neighbors {
		if len(nb) == 0 {
			n++
		}
	}
	return n
}
