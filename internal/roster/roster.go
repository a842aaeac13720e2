// Package roster reads and writes household rosters as CSV.
// Columns: x,y,income,flood_prone,awareness,fear,trust. Row order defines
// household IDs 1..N.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/talgya/floodsim/internal/agents"
	"github.com/talgya/floodsim/internal/config"
	"github.com/talgya/floodsim/internal/spatial"
)

// Header is the canonical column order.
var Header = []string{"x", "y", "income", "flood_prone", "awareness", "fear", "trust"}

// Read parses a roster. Header names are matched case-insensitively and may
// appear in any order; every column in Header is required.
func Read(r io.Reader) ([]agents.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &config.ConfigurationError{Field: "roster", Reason: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("roster header: %w", err)
	}

	cols := make(map[string]int, len(head))
	for i, name := range head {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idx := make([]int, len(Header))
	for i, name := range Header {
		c, ok := cols[name]
		if !ok {
			return nil, &config.ConfigurationError{Field: "roster", Reason: fmt.Sprintf("missing column %q", name)}
		}
		idx[i] = c
	}

	var out []agents.Record
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster line %d: %w", line, err)
		}

		var f [7]float64
		for i, c := range idx {
			if i == 3 {
				continue
			}
			f[i], err = strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("roster line %d column %s: %w", line, Header[i], err)
			}
			if i <= 2 && (math.IsNaN(f[i]) || math.IsInf(f[i], 0)) {
				return nil, &config.ConfigurationError{
					Field:  "roster",
					Reason: fmt.Sprintf("line %d column %s: must be finite, got %s", line, Header[i], rec[c]),
				}
			}
		}
		prone, err := parseBool(rec[idx[3]])
		if err != nil {
			return nil, fmt.Errorf("roster line %d column flood_prone: %w", line, err)
		}

		out = append(out, agents.Record{
			Position:   spatial.Position{X: f[0], Y: f[1]},
			Income:     f[2],
			FloodProne: prone,
			Awareness:  f[4],
			Fear:       f[5],
			Trust:      f[6],
		})
	}
	return out, nil
}

// ReadFile parses the roster at path.
func ReadFile(path string) ([]agents.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Write emits records with the canonical header.
func Write(w io.Writer, records []agents.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			formatFloat(r.Position.X),
			formatFloat(r.Position.Y),
			formatFloat(r.Income),
			strconv.FormatBool(r.FloodProne),
			formatFloat(r.Awareness),
			formatFloat(r.Fear),
			formatFloat(r.Trust),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes records to path, replacing any existing file.
func WriteFile(path string, records []agents.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create roster: %w", err)
	}
	if err := Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true, nil
	case "0", "false", "f", "no", "n", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
