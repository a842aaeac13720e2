// Package record holds the append-only per-year, per-household result table.
package record

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/talgya/floodsim/internal/agents"
)

// Attribute names a recorded column.
type Attribute string

const (
	AttrDamage     Attribute = "damage"
	AttrAwareness  Attribute = "awareness"
	AttrFear       Attribute = "fear"
	AttrTrust      Attribute = "trust"
	AttrPerception Attribute = "perception"
	AttrStatus     Attribute = "status"
)

// Attributes lists every recorded column in output order.
var Attributes = []Attribute{AttrDamage, AttrAwareness, AttrFear, AttrTrust, AttrPerception, AttrStatus}

// ParseAttribute validates an attribute name.
func ParseAttribute(name string) (Attribute, error) {
	for _, a := range Attributes {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown attribute %q", name)
}

var (
	// ErrYearRecorded is returned when a year is appended twice.
	ErrYearRecorded = errors.New("year already recorded")

	// ErrNotFound is returned by lookups outside the recorded data.
	ErrNotFound = errors.New("no record")
)

// Row is one household's recorded state at the end of one year.
type Row struct {
	Year       int                `json:"year" db:"year"`
	AgentID    agents.HouseholdID `json:"agent_id" db:"agent_id"`
	Damage     float64            `json:"damage" db:"damage"`
	Awareness  float64            `json:"awareness" db:"awareness"`
	Fear       float64            `json:"fear" db:"fear"`
	Trust      float64            `json:"trust" db:"trust"`
	Perception float64            `json:"perception" db:"perception"`
	Status     agents.Status      `json:"status" db:"status"`
}

// Snapshot records a household's current attributes for year.
func Snapshot(year int, h *agents.Household) Row {
	return Row{
		Year:       year,
		AgentID:    h.ID,
		Damage:     h.Damage,
		Awareness:  h.Awareness,
		Fear:       h.Fear,
		Trust:      h.Trust,
		Perception: h.Perception(),
		Status:     h.Status,
	}
}

// Value returns the numeric value of attr. Status is reported as its ordinal.
func (r Row) Value(attr Attribute) (float64, error) {
	switch attr {
	case AttrDamage:
		return r.Damage, nil
	case AttrAwareness:
		return r.Awareness, nil
	case AttrFear:
		return r.Fear, nil
	case AttrTrust:
		return r.Trust, nil
	case AttrPerception:
		return r.Perception, nil
	case AttrStatus:
		return float64(r.Status), nil
	}
	return 0, fmt.Errorf("unknown attribute %q", attr)
}

// Table is the append-only result table. Each year is appended exactly once
// and never modified afterwards. Safe for concurrent readers.
type Table struct {
	mu    sync.RWMutex
	years map[int][]Row // rows sorted by AgentID
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{years: make(map[int][]Row)}
}

// Append stores the rows of year. The table keeps its own copy.
func (t *Table) Append(year int, rows []Row) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.years[year]; ok {
		return fmt.Errorf("append year %d: %w", year, ErrYearRecorded)
	}
	stored := make([]Row, len(rows))
	copy(stored, rows)
	sort.Slice(stored, func(i, j int) bool { return stored[i].AgentID < stored[j].AgentID })
	for i := range stored {
		if stored[i].Year != year {
			return fmt.Errorf("append year %d: row for agent %d carries year %d", year, stored[i].AgentID, stored[i].Year)
		}
		if i > 0 && stored[i].AgentID == stored[i-1].AgentID {
			return fmt.Errorf("append year %d: agent %d recorded twice", year, stored[i].AgentID)
		}
	}
	t.years[year] = stored
	return nil
}

// Get returns the row of agent in year.
func (t *Table) Get(agent agents.HouseholdID, year int) (Row, error) {
	t.mu.RLock()
	rows, ok := t.years[year]
	t.mu.RUnlock()
	if !ok {
		return Row{}, fmt.Errorf("year %d: %w", year, ErrNotFound)
	}
	i := sort.Search(len(rows), func(i int) bool { return rows[i].AgentID >= agent })
	if i == len(rows) || rows[i].AgentID != agent {
		return Row{}, fmt.Errorf("agent %d in year %d: %w", agent, year, ErrNotFound)
	}
	return rows[i], nil
}

// Value is the point lookup by (attribute, agent, year).
func (t *Table) Value(attr Attribute, agent agents.HouseholdID, year int) (float64, error) {
	row, err := t.Get(agent, year)
	if err != nil {
		return 0, err
	}
	return row.Value(attr)
}

// Year returns a copy of the rows recorded for year.
func (t *Table) Year(year int) []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := t.years[year]
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

// Series returns attr for agent over every recorded year, ascending by year.
func (t *Table) Series(attr Attribute, agent agents.HouseholdID) ([]float64, error) {
	var out []float64
	for _, y := range t.Years() {
		v, err := t.Value(attr, agent, y)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Years returns the recorded years, ascending.
func (t *Table) Years() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	years := make([]int, 0, len(t.years))
	for y := range t.years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Len returns the total number of rows.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rows := range t.years {
		n += len(rows)
	}
	return n
}
