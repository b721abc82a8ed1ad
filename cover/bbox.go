// Package cover turns a geographic bounding box and a zoom range into the
// exact set of tiles a project needs: one clipped dense rectangle of
// columns and rows per zoom level.
package cover

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"tileseed/tile"
)

// BBox is a geographic rectangle in degrees. Treated as immutable once
// Validate has passed; it comes from project config and is never mutated.
type BBox struct {
	MinLon float64 `mapstructure:"min_lon" json:"min_lon"`
	MinLat float64 `mapstructure:"min_lat" json:"min_lat"`
	MaxLon float64 `mapstructure:"max_lon" json:"max_lon"`
	MaxLat float64 `mapstructure:"max_lat" json:"max_lat"`
}

// NewBBox builds a validated bounding box.
func NewBBox(minLon, minLat, maxLon, maxLat float64) (BBox, error) {
	b := BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate checks ordering and world ranges. NaN fails every comparison
// below, so malformed input cannot slip through.
func (b BBox) Validate() error {
	if !(b.MinLon >= -180 && b.MaxLon <= 180) {
		return fmt.Errorf("bbox longitude out of range [-180,180]: %v to %v", b.MinLon, b.MaxLon)
	}
	if !(b.MinLat >= -90 && b.MaxLat <= 90) {
		return fmt.Errorf("bbox latitude out of range [-90,90]: %v to %v", b.MinLat, b.MaxLat)
	}
	if !(b.MinLon < b.MaxLon) {
		return fmt.Errorf("bbox min_lon %v must be less than max_lon %v", b.MinLon, b.MaxLon)
	}
	if !(b.MinLat < b.MaxLat) {
		return fmt.Errorf("bbox min_lat %v must be less than max_lat %v", b.MinLat, b.MaxLat)
	}
	return nil
}

// Bound returns the box as an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

func (b BBox) String() string {
	return fmt.Sprintf("[%v,%v %v,%v]", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// RegionBBox reads a geojson FeatureCollection and returns the bounding box
// of all its geometries. The plan always covers the rectangle; the region's
// actual outline is not used beyond its bound.
func RegionBBox(path string) (BBox, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BBox{}, fmt.Errorf("read region file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return BBox{}, fmt.Errorf("unmarshal region %s: %w", path, err)
	}
	if len(fc.Features) == 0 {
		return BBox{}, fmt.Errorf("region %s has no features", path)
	}
	bound := fc.Features[0].Geometry.Bound()
	for _, f := range fc.Features[1:] {
		bound = bound.Union(f.Geometry.Bound())
	}
	return NewBBox(bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
}

// ZoomRange is an inclusive zoom interval.
type ZoomRange struct {
	Min int `mapstructure:"min_zoom" json:"min_zoom"`
	Max int `mapstructure:"max_zoom" json:"max_zoom"`
}

// NewZoomRange builds a validated zoom range.
func NewZoomRange(min, max int) (ZoomRange, error) {
	zr := ZoomRange{Min: min, Max: max}
	if err := zr.Validate(); err != nil {
		return ZoomRange{}, err
	}
	return zr, nil
}

func (zr ZoomRange) Validate() error {
	if zr.Min < tile.ZoomMin || zr.Max > tile.ZoomMax {
		return fmt.Errorf("zoom range %d-%d outside [%d,%d]", zr.Min, zr.Max, tile.ZoomMin, tile.ZoomMax)
	}
	if zr.Min > zr.Max {
		return fmt.Errorf("min_zoom %d greater than max_zoom %d", zr.Min, zr.Max)
	}
	return nil
}

func (zr ZoomRange) String() string {
	return fmt.Sprintf("%d-%d", zr.Min, zr.Max)
}
