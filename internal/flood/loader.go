package flood

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// CalendarEntry is one row of a hazard event calendar.
type CalendarEntry struct {
	EventID          int
	Year             int
	InterarrivalTime float64
}

// ReadCalendar parses an event calendar CSV with the header columns
// EventID, Year and (optionally) InterarrivalTime, in any order.
func ReadCalendar(r io.Reader) ([]CalendarEntry, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read calendar header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, ok := cols["eventid"]
	if !ok {
		return nil, errors.New("calendar: missing EventID column")
	}
	yearCol, ok := cols["year"]
	if !ok {
		return nil, errors.New("calendar: missing Year column")
	}
	iaCol, hasIA := cols["interarrivaltime"]

	var entries []CalendarEntry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("calendar line %d: %w", line, err)
		}

		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			return nil, fmt.Errorf("calendar line %d: event id: %w", line, err)
		}
		year, err := strconv.Atoi(strings.TrimSpace(rec[yearCol]))
		if err != nil {
			return nil, fmt.Errorf("calendar line %d: year: %w", line, err)
		}
		entry := CalendarEntry{EventID: id, Year: year}
		if hasIA && strings.TrimSpace(rec[iaCol]) != "" {
			entry.InterarrivalTime, err = strconv.ParseFloat(strings.TrimSpace(rec[iaCol]), 64)
			if err != nil {
				return nil, fmt.Errorf("calendar line %d: interarrival time: %w", line, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// maxGridCells bounds the cell count accepted from a grid header.
const maxGridCells = 1 << 28

// ReadASCIIGrid parses an ESRI ASCII grid (.asc) into a Raster.
func ReadASCIIGrid(r io.Reader) (*Raster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	header := make(map[string]float64)
	var data []float64
	pendingKey := ""

	for sc.Scan() {
		tok := sc.Text()
		if pendingKey != "" {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("ascii grid: header %s: %w", pendingKey, err)
			}
			header[pendingKey] = v
			pendingKey = ""
			continue
		}
		if data == nil {
			if _, err := strconv.ParseFloat(tok, 64); err != nil {
				pendingKey = strings.ToLower(tok)
				continue
			}
			nr, nc := header["nrows"], header["ncols"]
			if !(nr >= 1 && nc >= 1) || nr*nc > maxGridCells {
				return nil, fmt.Errorf("ascii grid: invalid shape %gx%g", nr, nc)
			}
			data = make([]float64, 0, min(int(nr)*int(nc), 1<<20))
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("ascii grid: cell %d: %w", len(data), err)
		}
		data = append(data, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ascii grid: %w", err)
	}

	rows, cols := int(header["nrows"]), int(header["ncols"])
	cellW, cellH := header["cellsize"], header["cellsize"]
	if dx, ok := header["dx"]; ok {
		cellW = dx
	}
	if dy, ok := header["dy"]; ok {
		cellH = dy
	}

	originX, okX := header["xllcorner"]
	if !okX {
		if c, ok := header["xllcenter"]; ok {
			originX, okX = c-cellW/2, true
		}
	}
	yll, okY := header["yllcorner"]
	if !okY {
		if c, ok := header["yllcenter"]; ok {
			yll, okY = c-cellH/2, true
		}
	}
	if !okX || !okY {
		return nil, errors.New("ascii grid: missing lower-left corner")
	}

	raster, err := NewRaster(originX, yll+float64(rows)*cellH, cellW, cellH, rows, cols, data)
	if err != nil {
		return nil, fmt.Errorf("ascii grid: %w", err)
	}
	if nd, ok := header["nodata_value"]; ok {
		raster.NoData, raster.HasNoData = nd, true
	}
	return raster, nil
}

// LoadTable builds an event table from a calendar CSV and one ASCII grid per
// event. gridPattern is a fmt pattern taking the event id, for example
// "maps/hazard_%04d.asc". Only calendar years in [initialYear, initialYear+stride)
// are kept, re-keyed to simulation years starting at 0.
func LoadTable(calendarPath, gridPattern string, initialYear, stride int) (*Table, error) {
	f, err := os.Open(calendarPath)
	if err != nil {
		return nil, fmt.Errorf("open calendar: %w", err)
	}
	defer f.Close()

	entries, err := ReadCalendar(f)
	if err != nil {
		return nil, err
	}

	table := NewTable()
	for _, e := range entries {
		if e.Year < initialYear || e.Year >= initialYear+stride {
			continue
		}
		raster, err := loadGrid(fmt.Sprintf(gridPattern, e.EventID))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.EventID, err)
		}
		table.Add(Event{
			ID:               e.EventID,
			Year:             e.Year - initialYear,
			InterarrivalTime: e.InterarrivalTime,
			Sample:           raster,
		})
	}

	slog.Info("flood table loaded",
		"calendar", calendarPath,
		"events", table.Len(),
		"event_years", len(table.Years()),
	)
	return table, nil
}

func loadGrid(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid: %w", err)
	}
	defer f.Close()
	return ReadASCIIGrid(f)
}
