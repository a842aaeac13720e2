// Package spatial provides the fixed-position neighbor index on a toroidal square.
// Positions wrap in both axes, so distance is the shortest Euclidean distance
// across the wrap-around boundary.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrUnregistered is returned when querying an id that was never added.
	ErrUnregistered = errors.New("id not registered in spatial index")

	// ErrDuplicate is returned when an id is added twice.
	ErrDuplicate = errors.New("id already registered in spatial index")
)

// QueryError reports a query against the index that violates its contract.
type QueryError struct {
	ID  uint64
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("spatial query for id %d: %v", e.ID, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Position is a point in domain coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type cellKey struct {
	cx, cy int
}

// Index answers radius-bounded neighbor queries over a square wrap-around domain.
// Entries are bucketed into a sparse uniform grid; positions never move after Add.
type Index struct {
	size float64
	cell float64 // Actual bucket side, size/cols
	cols int     // Buckets per axis

	buckets map[cellKey][]uint64
	pos     map[uint64]Position
}

// NewIndex creates an index over a square of side size. cellSize is the
// preferred bucket side and should be close to the typical query radius;
// values <= 0 or larger than size use a single bucket.
func NewIndex(size, cellSize float64) (*Index, error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return nil, fmt.Errorf("spatial index: domain size must be positive and finite, got %g", size)
	}

	cols := 1
	if cellSize > 0 && cellSize < size {
		// Cap the grid so the bucket arithmetic stays within int range.
		cols = int(math.Min(math.Floor(size/cellSize), 1<<20))
	}

	return &Index{
		size:    size,
		cell:    size / float64(cols),
		cols:    cols,
		buckets: make(map[cellKey][]uint64),
		pos:     make(map[uint64]Position),
	}, nil
}

// Size returns the side length of the domain.
func (ix *Index) Size() float64 {
	return ix.size
}

// Len returns the number of registered ids.
func (ix *Index) Len() int {
	return len(ix.pos)
}

// Add registers id at p.
func (ix *Index) Add(id uint64, p Position) error {
	if _, ok := ix.pos[id]; ok {
		return &QueryError{ID: id, Err: ErrDuplicate}
	}
	ix.pos[id] = p
	k := ix.keyFor(p)
	ix.buckets[k] = append(ix.buckets[k], id)
	return nil
}

// Position returns the registered position of id.
func (ix *Index) Position(id uint64) (Position, error) {
	p, ok := ix.pos[id]
	if !ok {
		return Position{}, &QueryError{ID: id, Err: ErrUnregistered}
	}
	return p, nil
}

// Neighbors returns the ids within toroidal distance radius of id, excluding id.
// The result is sorted ascending. radius <= 0 yields an empty result.
func (ix *Index) Neighbors(id uint64, radius float64) ([]uint64, error) {
	origin, ok := ix.pos[id]
	if !ok {
		return nil, &QueryError{ID: id, Err: ErrUnregistered}
	}
	if !(radius > 0) {
		return nil, nil
	}

	var result []uint64
	collect := func(candidates []uint64) {
		for _, other := range candidates {
			if other == id {
				continue
			}
			if ix.Distance(origin, ix.pos[other]) <= radius {
				result = append(result, other)
			}
		}
	}

	span := int(math.Ceil(radius / ix.cell))
	if 2*span+1 >= ix.cols {
		// The query window wraps onto itself; every bucket is in range.
		for _, ids := range ix.buckets {
			collect(ids)
		}
	} else {
		center := ix.keyFor(origin)
		for dx := -span; dx <= span; dx++ {
			for dy := -span; dy <= span; dy++ {
				k := cellKey{
					cx: wrapIndex(center.cx+dx, ix.cols),
					cy: wrapIndex(center.cy+dy, ix.cols),
				}
				collect(ix.buckets[k])
			}
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

// Distance returns the wrap-around Euclidean distance between a and b.
func (ix *Index) Distance(a, b Position) float64 {
	return Distance(a, b, ix.size)
}

// Distance returns the Euclidean distance between a and b on a torus of side size.
func Distance(a, b Position, size float64) float64 {
	dx := axisDelta(a.X, b.X, size)
	dy := axisDelta(a.Y, b.Y, size)
	return math.Hypot(dx, dy)
}

func axisDelta(a, b, size float64) float64 {
	d := math.Mod(math.Abs(a-b), size)
	if d > size/2 {
		d = size - d
	}
	return d
}

// Wrap maps p into [0, size) on both axes.
func Wrap(p Position, size float64) Position {
	return Position{X: wrapCoord(p.X, size), Y: wrapCoord(p.Y, size)}
}

func wrapCoord(v, size float64) float64 {
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	if v >= size {
		v = 0
	}
	return v
}

func (ix *Index) keyFor(p Position) cellKey {
	w := Wrap(p, ix.size)
	return cellKey{
		cx: min(int(w.X/ix.cell), ix.cols-1),
		cy: min(int(w.Y/ix.cell), ix.cols-1),
	}
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
