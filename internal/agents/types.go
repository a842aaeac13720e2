// Package agents provides the household data model and its yearly phase rules.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/floodsim/internal/config"
	"github.com/talgya/floodsim/internal/spatial"
)

// HouseholdID is a stable identifier for a household. IDs start at 1.
type HouseholdID uint64

// Status is the displacement state of a household.
type Status uint8

const (
	StatusNormal    Status = iota // At home
	StatusEvacuated               // Left ahead of a warned flood
	StatusDisplaced               // Forced out by damage
)

var statusNames = [...]string{"normal", "evacuated", "displaced"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseStatus maps a status name back to a Status.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return StatusNormal, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Household is one dwelling's occupants.
type Household struct {
	ID       HouseholdID `json:"id"`
	position spatial.Position

	Income     float64 `json:"income"`
	FloodProne bool    `json:"flood_prone"`

	// Bounded in [0, 1].
	Awareness float64 `json:"awareness"`
	Fear      float64 `json:"fear"`
	Trust     float64 `json:"trust"`
	Damage    float64 `json:"damage"`

	Status Status `json:"status"`

	// Per-year flags.
	Alerted       bool `json:"alerted"`
	Prepared      bool `json:"prepared"`
	ReceivedFlood bool `json:"received_flood"`
	Recovered     bool `json:"recovered"` // Ran damage repair this year
}

// Record is one entry of the initial roster.
type Record struct {
	Position   spatial.Position `json:"position"`
	Income     float64          `json:"income"`
	FloodProne bool             `json:"flood_prone"`
	Awareness  float64          `json:"awareness"`
	Fear       float64          `json:"fear"`
	Trust      float64          `json:"trust"`
}

// View is the part of a household its neighbors may read. Views are
// captured at phase barriers so neighbors never observe a half-finished phase.
type View struct {
	ID            HouseholdID
	Prepared      bool
	Status        Status
	ReceivedFlood bool
	Recovered     bool
}

// Rules holds the constants of the phase rules.
type Rules struct {
	PovertyLine       float64
	DamageThreshold   float64 // mm
	DamageMax         float64 // mm, equals 100% damage
	DisplaceThreshold float64
	Probabilistic     bool    // Also displace by drawing against perception
	MutualAid         float64 // Flat repair received from a recovering neighbor
}

// RulesFromConfig extracts the phase rules from the run configuration.
func RulesFromConfig(c config.HouseholdConfig) Rules {
	return Rules{
		PovertyLine:       c.PovertyLine,
		DamageThreshold:   c.DamageThreshold,
		DamageMax:         c.DamageMax,
		DisplaceThreshold: c.DisplaceThreshold,
		Probabilistic:     c.Displacement == config.DisplacementProbabilistic,
		MutualAid:         c.MutualAid,
	}
}

// New creates a household from a roster record. Bounded attributes are clamped.
func New(id HouseholdID, rec Record) *Household {
	income := rec.Income
	if !(income > 0) {
		income = 0
	}
	return &Household{
		ID:         id,
		position:   rec.Position,
		Income:     income,
		FloodProne: rec.FloodProne,
		Awareness:  clamp01(rec.Awareness),
		Fear:       clamp01(rec.Fear),
		Trust:      clamp01(rec.Trust),
		Status:     StatusNormal,
	}
}

// ValidateRoster rejects records whose position or income is not a finite number.
func ValidateRoster(roster []Record) error {
	for i, rec := range roster {
		for _, f := range []struct {
			name string
			v    float64
		}{{"x", rec.Position.X}, {"y", rec.Position.Y}, {"income", rec.Income}} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return &config.ConfigurationError{
					Field:  "roster",
					Reason: fmt.Sprintf("household %d: %s must be finite, got %g", i+1, f.name, f.v),
				}
			}
		}
	}
	return nil
}

// NewHouseholds creates one household per record, with IDs 1..len(roster).
func NewHouseholds(roster []Record) []*Household {
	out := make([]*Household, len(roster))
	for i, rec := range roster {
		out[i] = New(HouseholdID(i+1), rec)
	}
	return out
}

// Position returns the fixed location of the household.
func (h *Household) Position() spatial.Position {
	return h.position
}

// Perception is the derived risk score, awareness × fear.
func (h *Household) Perception() float64 {
	return h.Awareness * h.Fear
}

// View captures the neighbor-visible state.
func (h *Household) View() View {
	return View{
		ID:            h.ID,
		Prepared:      h.Prepared,
		Status:        h.Status,
		ReceivedFlood: h.ReceivedFlood,
		Recovered:     h.Recovered,
	}
}

// Columns is a column-oriented roster, one slice per attribute.
type Columns struct {
	Positions  []spatial.Position
	Incomes    []float64
	FloodProne []bool
	Awareness  []float64
	Fear       []float64
	Trust      []float64
}

// Records zips the columns into a roster. All columns must have the length
// of Positions, otherwise a configuration error is returned.
func (c Columns) Records() ([]Record, error) {
	n := len(c.Positions)
	for _, l := range []int{len(c.Incomes), len(c.FloodProne), len(c.Awareness), len(c.Fear), len(c.Trust)} {
		if l != n {
			return nil, config.RosterMismatch(n, l)
		}
	}
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			Position:   c.Positions[i],
			Income:     c.Incomes[i],
			FloodProne: c.FloodProne[i],
			Awareness:  c.Awareness[i],
			Fear:       c.Fear[i],
			Trust:      c.Trust[i],
		}
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
