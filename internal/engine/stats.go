package engine

import (
	"log/slog"

	"github.com/talgya/floodsim/internal/agents"
)

// YearStats summarizes the population at the end of one year.
type YearStats struct {
	Year        int  `json:"year"`
	Warned      bool `json:"warned"`
	FloodEvents int  `json:"flood_events"`

	Households int `json:"households"`
	Normal     int `json:"normal"`
	Evacuated  int `json:"evacuated"`
	Displaced  int `json:"displaced"`
	Flooded    int `json:"flooded"`
	Prepared   int `json:"prepared"`
	Recovered  int `json:"recovered"`

	MeanDamage     float64 `json:"mean_damage"`
	MaxDamage      float64 `json:"max_damage"`
	MeanAwareness  float64 `json:"mean_awareness"`
	MeanFear       float64 `json:"mean_fear"`
	MeanTrust      float64 `json:"mean_trust"`
	MeanPerception float64 `json:"mean_perception"`
}

func (s *Simulation) collectStats(year int, warned bool, events int) YearStats {
	st := YearStats{
		Year:        year,
		Warned:      warned,
		FloodEvents: events,
		Households:  len(s.Households),
	}
	for _, h := range s.Households {
		switch h.Status {
		case agents.StatusNormal:
			st.Normal++
		case agents.StatusEvacuated:
			st.Evacuated++
		case agents.StatusDisplaced:
			st.Displaced++
		}
		if h.ReceivedFlood {
			st.Flooded++
		}
		if h.Prepared {
			st.Prepared++
		}
		if h.Recovered {
			st.Recovered++
		}
		st.MeanDamage += h.Damage
		st.MeanAwareness += h.Awareness
		st.MeanFear += h.Fear
		st.MeanTrust += h.Trust
		st.MeanPerception += h.Perception()
		if h.Damage > st.MaxDamage {
			st.MaxDamage = h.Damage
		}
	}
	if n := float64(len(s.Households)); n > 0 {
		st.MeanDamage /= n
		st.MeanAwareness /= n
		st.MeanFear /= n
		st.MeanTrust /= n
		st.MeanPerception /= n
	}
	return st
}

// Log emits the yearly report.
func (st YearStats) Log() {
	slog.Info("year report",
		"year", st.Year,
		"warned", st.Warned,
		"flood_events", st.FloodEvents,
		"flooded", st.Flooded,
		"normal", st.Normal,
		"evacuated", st.Evacuated,
		"displaced", st.Displaced,
		"prepared", st.Prepared,
		"mean_damage", st.MeanDamage,
		"mean_awareness", st.MeanAwareness,
		"mean_fear", st.MeanFear,
		"mean_trust", st.MeanTrust,
	)
}
