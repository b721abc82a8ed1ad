package cover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regionGeojson = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[32.2, 34.5], [34.7, 34.5], [34.7, 35.7], [32.2, 35.7], [32.2, 34.5]]]
      }
    },
    {
      "type": "Feature",
      "properties": {},
      "geometry": {"type": "Point", "coordinates": [33.0, 36.0]}
    }
  ]
}`

func TestRegionBBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.geojson")
	require.NoError(t, os.WriteFile(path, []byte(regionGeojson), 0o644))

	b, err := RegionBBox(path)
	require.NoError(t, err)
	assert.InDelta(t, 32.2, b.MinLon, 1e-9)
	assert.InDelta(t, 34.5, b.MinLat, 1e-9)
	assert.InDelta(t, 34.7, b.MaxLon, 1e-9)
	assert.InDelta(t, 36.0, b.MaxLat, 1e-9)
}

func TestRegionBBoxErrors(t *testing.T) {
	_, err := RegionBBox(filepath.Join(t.TempDir(), "absent.geojson"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.geojson")
	require.NoError(t, os.WriteFile(bad, []byte("not geojson"), 0o644))
	_, err = RegionBBox(bad)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.geojson")
	require.NoError(t, os.WriteFile(empty, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))
	_, err = RegionBBox(empty)
	assert.Error(t, err)
}

func TestBBoxBound(t *testing.T) {
	b := mustBBox(t, 32.2, 34.5, 34.7, 35.7)
	bound := b.Bound()
	assert.Equal(t, 32.2, bound.Min[0])
	assert.Equal(t, 34.5, bound.Min[1])
	assert.Equal(t, 34.7, bound.Max[0])
	assert.Equal(t, 35.7, bound.Max[1])
}
