// Package flood provides flood event sources: hazard rasters keyed by year,
// combined per position into a single intensity in millimetres.
package flood

import (
	"fmt"
	"math"

	"github.com/talgya/floodsim/internal/spatial"
)

// Sample answers "flood intensity at position p" for one event.
// ok is false where the sample has no coverage.
type Sample interface {
	IntensityAt(p spatial.Position) (mm float64, ok bool)
}

// Raster is a north-up grid of intensities (mm).
// Cell (row, col) covers x in [OriginX+col*CellWidth, +CellWidth) and
// y in (OriginY-(row+1)*CellHeight, OriginY-row*CellHeight].
type Raster struct {
	OriginX    float64 // x of the top-left corner
	OriginY    float64 // y of the top-left corner
	CellWidth  float64
	CellHeight float64
	Rows       int
	Cols       int

	// NoData marks cells without coverage. NaN cells are always absent.
	NoData    float64
	HasNoData bool

	Data []float64 // Row-major, len Rows*Cols
}

// NewRaster validates the shape and wraps data without copying it.
func NewRaster(originX, originY, cellWidth, cellHeight float64, rows, cols int, data []float64) (*Raster, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("raster: invalid shape %dx%d", rows, cols)
	}
	if !(cellWidth > 0) || !(cellHeight > 0) {
		return nil, fmt.Errorf("raster: cell size must be positive, got %gx%g", cellWidth, cellHeight)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("raster: expected %d cells, got %d", rows*cols, len(data))
	}
	return &Raster{
		OriginX:    originX,
		OriginY:    originY,
		CellWidth:  cellWidth,
		CellHeight: cellHeight,
		Rows:       rows,
		Cols:       cols,
		Data:       data,
	}, nil
}

// Index maps a position to its cell. ok is false outside the grid.
func (r *Raster) Index(p spatial.Position) (row, col int, ok bool) {
	fc := math.Floor((p.X - r.OriginX) / r.CellWidth)
	fr := math.Floor((r.OriginY - p.Y) / r.CellHeight)
	if math.IsNaN(fc) || math.IsNaN(fr) {
		return 0, 0, false
	}
	if fc < 0 || fr < 0 || fc >= float64(r.Cols) || fr >= float64(r.Rows) {
		return 0, 0, false
	}
	return int(fr), int(fc), true
}

// At returns the raw cell value.
func (r *Raster) At(row, col int) float64 {
	return r.Data[row*r.Cols+col]
}

// IntensityAt implements Sample.
func (r *Raster) IntensityAt(p spatial.Position) (float64, bool) {
	row, col, ok := r.Index(p)
	if !ok {
		return 0, false
	}
	v := r.At(row, col)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if r.HasNoData && v == r.NoData {
		return 0, false
	}
	return v, true
}
