// Package tile holds the slippy-map tile primitives: the z/x/y coordinate,
// the web-mercator projection and the PNG artifact check.
package tile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax 最大级别
const ZoomMax = 20

// TileSize 默认瓦片大小
const TileSize = 256

// Coord addresses one tile: zoom level Z, column X, row Y.
// Row 0 is the northernmost row; rows grow southward.
type Coord struct {
	Z, X, Y int
}

// String returns the coordinate as z/x/y.
func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether the column and row fit the zoom level's grid.
func (c Coord) Valid() bool {
	if c.Z < ZoomMin || c.Z > ZoomMax {
		return false
	}
	n := 1 << uint(c.Z)
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// Less orders coordinates by zoom, then column, then row — the same order
// a coverage plan enumerates in, so sorted output matches plan walks.
func (c Coord) Less(o Coord) bool {
	if c.Z != o.Z {
		return c.Z < o.Z
	}
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Y < o.Y
}

// ParseCoord parses a z/x/y string.
func ParseCoord(s string) (Coord, error) {
	fields := strings.Split(s, "/")
	if len(fields) != 3 {
		return Coord{}, errors.New("coordinate must be z/x/y")
	}
	z, err := strconv.Atoi(fields[0])
	if err != nil {
		return Coord{}, fmt.Errorf("invalid z %q: %w", fields[0], err)
	}
	x, err := strconv.Atoi(fields[1])
	if err != nil {
		return Coord{}, fmt.Errorf("invalid x %q: %w", fields[1], err)
	}
	y, err := strconv.Atoi(fields[2])
	if err != nil {
		return Coord{}, fmt.Errorf("invalid y %q: %w", fields[2], err)
	}
	c := Coord{Z: z, X: x, Y: y}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("coordinate %s outside grid", c)
	}
	return c, nil
}
