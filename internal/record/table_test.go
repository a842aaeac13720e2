package record

import (
	"errors"
	"testing"

	"github.com/talgya/floodsim/internal/agents"
)

func rowsFor(year int, ids ...agents.HouseholdID) []Row {
	rows := make([]Row, len(ids))
	for i, id := range ids {
		rows[i] = Row{Year: year, AgentID: id, Damage: float64(id) / 10, Awareness: 0.5, Fear: 0.4, Perception: 0.2, Status: agents.StatusEvacuated}
	}
	return rows
}

func TestAppendOncePerYear(t *testing.T) {
	table := NewTable()
	if err := table.Append(0, rowsFor(0, 1, 2)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	err := table.Append(0, rowsFor(0, 1, 2))
	if !errors.Is(err, ErrYearRecorded) {
		t.Errorf("expected ErrYearRecorded, got %v", err)
	}
}

func TestAppendRejectsInconsistentRows(t *testing.T) {
	table := NewTable()
	if err := table.Append(1, rowsFor(2, 1)); err == nil {
		t.Error("expected error for row carrying a different year")
	}
	if err := table.Append(1, rowsFor(1, 3, 3)); err == nil {
		t.Error("expected error for duplicate agent")
	}
}

func TestAppendCopiesRows(t *testing.T) {
	table := NewTable()
	rows := rowsFor(0, 1)
	if err := table.Append(0, rows); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rows[0].Damage = 0.99

	got, _ := table.Value(AttrDamage, 1, 0)
	if got != 0.1 {
		t.Errorf("table should be unaffected by caller mutation, got %f", got)
	}
}

func TestValueLookup(t *testing.T) {
	table := NewTable()
	_ = table.Append(0, rowsFor(0, 3, 1, 2))
	_ = table.Append(1, rowsFor(1, 1, 2, 3))

	tests := []struct {
		attr Attribute
		id   agents.HouseholdID
		year int
		want float64
	}{
		{AttrDamage, 2, 0, 0.2},
		{AttrAwareness, 3, 1, 0.5},
		{AttrFear, 1, 1, 0.4},
		{AttrPerception, 1, 0, 0.2},
		{AttrStatus, 1, 0, float64(agents.StatusEvacuated)},
	}
	for _, tt := range tests {
		got, err := table.Value(tt.attr, tt.id, tt.year)
		if err != nil {
			t.Fatalf("Value(%s, %d, %d): %v", tt.attr, tt.id, tt.year, err)
		}
		if got != tt.want {
			t.Errorf("Value(%s, %d, %d) = %f, want %f", tt.attr, tt.id, tt.year, got, tt.want)
		}
	}

	if _, err := table.Value(AttrDamage, 9, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown agent, got %v", err)
	}
	if _, err := table.Value(AttrDamage, 1, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown year, got %v", err)
	}
}

func TestSeriesAndYears(t *testing.T) {
	table := NewTable()
	_ = table.Append(1, rowsFor(1, 1))
	_ = table.Append(0, rowsFor(0, 1))

	years := table.Years()
	if len(years) != 2 || years[0] != 0 || years[1] != 1 {
		t.Errorf("expected years [0 1], got %v", years)
	}
	series, err := table.Series(AttrDamage, 1)
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(series) != 2 {
		t.Errorf("expected 2 values, got %v", series)
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", table.Len())
	}
}

func TestParseAttribute(t *testing.T) {
	for _, a := range Attributes {
		got, err := ParseAttribute(string(a))
		if err != nil || got != a {
			t.Errorf("ParseAttribute(%q) = %q, %v", a, got, err)
		}
	}
	if _, err := ParseAttribute("income"); err == nil {
		t.Error("expected error for unrecorded attribute")
	}
}

func TestSnapshotDerivesPerception(t *testing.T) {
	h := agents.New(4, agents.Record{Income: 3, Awareness: 0.5, Fear: 0.6, Trust: 0.7})
	h.Damage = 0.2
	row := Snapshot(3, h)
	if row.Year != 3 || row.AgentID != 4 || row.Perception != 0.5*0.6 || row.Trust != 0.7 || row.Damage != 0.2 {
		t.Errorf("unexpected snapshot %+v", row)
	}
}
