package flood

import (
	"sort"

	"github.com/talgya/floodsim/internal/spatial"
)

// Event is one flood occurrence in a simulated year.
type Event struct {
	ID               int
	Year             int     // Simulation year the event falls in
	InterarrivalTime float64 // Years since the previous event in the calendar
	Sample           Sample
}

// Source yields the flood events of each simulated year.
type Source interface {
	HasEvent(year int) bool
	EventsFor(year int) []Event
}

// Table is a fixed year-keyed event table. It is built once before a run
// and only read afterwards.
type Table struct {
	events map[int][]Event
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{events: make(map[int][]Event)}
}

// Add appends an event to its year.
func (t *Table) Add(e Event) {
	t.events[e.Year] = append(t.events[e.Year], e)
}

// HasEvent reports whether year has at least one event.
func (t *Table) HasEvent(year int) bool {
	return len(t.events[year]) > 0
}

// EventsFor returns the events of year, in insertion order.
func (t *Table) EventsFor(year int) []Event {
	return t.events[year]
}

// Years returns the years that have events, ascending.
func (t *Table) Years() []int {
	years := make([]int, 0, len(t.events))
	for y, evs := range t.events {
		if len(evs) > 0 {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// Len returns the total number of events.
func (t *Table) Len() int {
	n := 0
	for _, evs := range t.events {
		n += len(evs)
	}
	return n
}

// Combined returns the intensity presented to a household at p in year:
// the maximum over every event sample that covers p, or 0 when none does.
func Combined(src Source, year int, p spatial.Position) float64 {
	best, found := 0.0, false
	for _, e := range src.EventsFor(year) {
		v, ok := e.Sample.IntensityAt(p)
		if !ok {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	// Depths below zero are raster artefacts, not floods.
	if !found || best < 0 {
		return 0
	}
	return best
}

// Intensities evaluates Combined for every position.
func Intensities(src Source, year int, positions []spatial.Position) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = Combined(src, year, p)
	}
	return out
}
