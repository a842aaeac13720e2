// Package engine provides the yearly simulation loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Engine drives the simulation forward one year at a time.
type Engine struct {
	Year    int // Next year to run
	Horizon int // Years 0..Horizon-1 are run

	running atomic.Bool

	// Callbacks populated during setup.
	OnYear    func(year int) error              // Runs the year
	OnYearEnd func(year int, s YearStats) error // After the year is recorded
}

// NewEngine creates an engine for years 0..horizon-1.
func NewEngine(horizon int) *Engine {
	return &Engine{Horizon: horizon}
}

// Run steps every remaining year. It returns early when ctx is cancelled,
// Stop is called, or a callback fails.
func (e *Engine) Run(ctx context.Context, stats func(year int) YearStats) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "year", e.Year, "horizon", e.Horizon)

	for e.running.Load() && e.Year < e.Horizon {
		if err := ctx.Err(); err != nil {
			return err
		}
		year := e.Year
		if e.OnYear != nil {
			if err := e.OnYear(year); err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}
		}
		if e.OnYearEnd != nil {
			var s YearStats
			if stats != nil {
				s = stats(year)
			}
			if err := e.OnYearEnd(year, s); err != nil {
				return fmt.Errorf("year %d: %w", year, err)
			}
		}
		e.Year++
	}

	slog.Info("simulation engine stopped", "year", e.Year)
	return nil
}

// Stop halts the loop after the current year. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run executes the configured number of years. onYear, if non-nil, is called
// after each year is recorded.
func (s *Simulation) Run(ctx context.Context, onYear func(year int, stats YearStats) error) error {
	eng := NewEngine(s.Config.Years)
	eng.Year = s.LastYear + 1

	var last YearStats
	eng.OnYear = func(year int) error {
		st, err := s.StepYear(year)
		if err != nil {
			return err
		}
		last = st
		st.Log()
		return nil
	}
	if onYear != nil {
		eng.OnYearEnd = onYear
	}
	return eng.Run(ctx, func(int) YearStats { return last })
}

// forEach applies fn to every household index, split across the worker pool.
// It returns once every household has finished the phase.
func (s *Simulation) forEach(year int, phase string, fn func(i int)) {
	n := len(s.Households)
	workers := s.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if workers == 1 || n < 2*workers {
		for i := 0; i < n; i++ {
			fn(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		chunk := (n + workers - 1) / workers
		for lo := 0; lo < n; lo += chunk {
			hi := min(lo+chunk, n)
			g.Go(func() error {
				for i := lo; i < hi; i++ {
					fn(i)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	slog.Debug("phase complete", "year", year, "phase", phase, "households", n)
}
