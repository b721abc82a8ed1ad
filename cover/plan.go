package cover

import (
	"fmt"
	"math"

	"tileseed/tile"
)

// Rect is one zoom level's covering rectangle, inclusive on all four bounds.
type Rect struct {
	MinCol, MaxCol int
	MinRow, MaxRow int
}

// Cols returns the number of columns in the rectangle.
func (r Rect) Cols() int { return r.MaxCol - r.MinCol + 1 }

// Rows returns the number of rows in the rectangle.
func (r Rect) Rows() int { return r.MaxRow - r.MinRow + 1 }

// Count returns the tile count in closed form.
func (r Rect) Count() int64 { return int64(r.Cols()) * int64(r.Rows()) }

// Contains reports whether the column/row pair falls inside the rectangle.
func (r Rect) Contains(col, row int) bool {
	return col >= r.MinCol && col <= r.MaxCol && row >= r.MinRow && row <= r.MaxRow
}

// Plan is the full covering set for a zoom range: one dense rectangle per
// level. Derived deterministically from its inputs; recomputing from the
// same bbox and range yields an identical plan.
type Plan struct {
	zr     ZoomRange
	levels map[int]Rect
}

// NewPlan computes the covering rectangles for bbox over the zoom range.
// The box's two diagonal corners are projected per level; the max-latitude
// corner yields the minimum row because rows grow southward. All bounds are
// clipped into [0, 2^z-1]. Projection NaN or an inverted rectangle is a
// configuration error, never a silently empty plan.
func NewPlan(bbox BBox, zr ZoomRange) (*Plan, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	if err := zr.Validate(); err != nil {
		return nil, err
	}

	levels := make(map[int]Rect, zr.Max-zr.Min+1)
	for z := zr.Min; z <= zr.Max; z++ {
		minColF, maxRowF := tile.ProjectF(bbox.MinLat, bbox.MinLon, z)
		maxColF, minRowF := tile.ProjectF(bbox.MaxLat, bbox.MaxLon, z)
		if anyNaN(minColF, maxRowF, maxColF, minRowF) {
			return nil, fmt.Errorf("projection produced NaN at zoom %d for bbox %s", z, bbox)
		}

		max := (1 << uint(z)) - 1
		r := Rect{
			MinCol: clip(int(math.Floor(minColF)), 0, max),
			MaxCol: clip(int(math.Floor(maxColF)), 0, max),
			MinRow: clip(int(math.Floor(minRowF)), 0, max),
			MaxRow: clip(int(math.Floor(maxRowF)), 0, max),
		}
		if r.MinCol > r.MaxCol || r.MinRow > r.MaxRow {
			return nil, fmt.Errorf("inverted tile rectangle at zoom %d for bbox %s", z, bbox)
		}
		levels[z] = r
	}
	return &Plan{zr: zr, levels: levels}, nil
}

// NewFullPlan covers the entire 2^z x 2^z grid at every level; the bbox is
// not consulted (render_type "full").
func NewFullPlan(zr ZoomRange) (*Plan, error) {
	if err := zr.Validate(); err != nil {
		return nil, err
	}
	levels := make(map[int]Rect, zr.Max-zr.Min+1)
	for z := zr.Min; z <= zr.Max; z++ {
		max := (1 << uint(z)) - 1
		levels[z] = Rect{MinCol: 0, MaxCol: max, MinRow: 0, MaxRow: max}
	}
	return &Plan{zr: zr, levels: levels}, nil
}

// ZoomRange returns the plan's zoom interval.
func (p *Plan) ZoomRange() ZoomRange { return p.zr }

// Zooms returns the planned levels in ascending order.
func (p *Plan) Zooms() []int {
	zooms := make([]int, 0, p.zr.Max-p.zr.Min+1)
	for z := p.zr.Min; z <= p.zr.Max; z++ {
		zooms = append(zooms, z)
	}
	return zooms
}

// Level returns the covering rectangle at zoom z.
func (p *Plan) Level(z int) (Rect, bool) {
	r, ok := p.levels[z]
	return r, ok
}

// CountAt returns the closed-form tile count at zoom z, zero for levels
// outside the plan.
func (p *Plan) CountAt(z int) int64 {
	r, ok := p.levels[z]
	if !ok {
		return 0
	}
	return r.Count()
}

// Total returns the closed-form tile count over all levels.
func (p *Plan) Total() int64 {
	var total int64
	for _, r := range p.levels {
		total += r.Count()
	}
	return total
}

// Contains reports whether the coordinate belongs to the plan.
func (p *Plan) Contains(c tile.Coord) bool {
	r, ok := p.levels[c.Z]
	return ok && r.Contains(c.X, c.Y)
}

// Tiles enumerates the plan in zoom, column, row order, calling yield for
// each coordinate until it returns false. Enumeration is stateless and can
// be restarted any number of times.
func (p *Plan) Tiles(yield func(tile.Coord) bool) {
	for z := p.zr.Min; z <= p.zr.Max; z++ {
		r := p.levels[z]
		for x := r.MinCol; x <= r.MaxCol; x++ {
			for y := r.MinRow; y <= r.MaxRow; y++ {
				if !yield(tile.Coord{Z: z, X: x, Y: y}) {
					return
				}
			}
		}
	}
}

// Stream feeds the full enumeration into ch and closes it when done.
func (p *Plan) Stream(ch chan<- tile.Coord) {
	p.Tiles(func(c tile.Coord) bool {
		ch <- c
		return true
	})
	close(ch)
}

// Coords collects the full enumeration into a slice. Convenient for small
// plans and tests; large plans should use Tiles or Stream.
func (p *Plan) Coords() []tile.Coord {
	coords := make([]tile.Coord, 0, p.Total())
	p.Tiles(func(c tile.Coord) bool {
		coords = append(coords, c)
		return true
	})
	return coords
}

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
