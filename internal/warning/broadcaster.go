// Package warning decides, year by year, whether the authority broadcasts an
// early flood warning. The decision depends only on whether the year has a
// flood event and on the configured error rates, never on raster contents.
package warning

import (
	"github.com/talgya/floodsim/internal/flood"
)

// Drawer supplies uniform draws in [0, 1).
type Drawer interface {
	Float() float64
}

// Broadcaster emits early warnings with configured false-alarm and
// false-negative rates.
type Broadcaster struct {
	FalseAlarmRate    float64
	FalseNegativeRate float64
	events            flood.Source
}

// NewBroadcaster creates a broadcaster over the given event source.
// Rates are validated by config.Validate before a run starts.
func NewBroadcaster(falseAlarmRate, falseNegativeRate float64, events flood.Source) *Broadcaster {
	return &Broadcaster{
		FalseAlarmRate:    falseAlarmRate,
		FalseNegativeRate: falseNegativeRate,
		events:            events,
	}
}

// Probability returns the emission probability for year.
func (b *Broadcaster) Probability(year int) float64 {
	if b.events.HasEvent(year) {
		return 1 - b.FalseNegativeRate
	}
	return b.FalseAlarmRate
}

// Emit takes exactly one draw and reports whether a warning is broadcast.
func (b *Broadcaster) Emit(year int, rng Drawer) bool {
	return rng.Float() < b.Probability(year)
}
