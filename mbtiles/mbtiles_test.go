package mbtiles

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tileseed/cover"
	"tileseed/store"
	"tileseed/tile"
)

// requireSpatialite skips when the driver cannot open a working database,
// e.g. because the spatialite extension is not installed on the host.
func requireSpatialite(t *testing.T) {
	t.Helper()
	db, err := sql.Open("spatialite", filepath.Join(t.TempDir(), "check.db"))
	if err != nil {
		t.Skipf("spatialite driver unavailable: %s", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE check_table (x INTEGER)`); err != nil {
		t.Skipf("spatialite driver unavailable: %s", err)
	}
}

func writeTile(t *testing.T, st *store.Store, c tile.Coord, data []byte) {
	t.Helper()
	path := st.Path(c)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func pngBytes(tail ...byte) []byte {
	return append(append([]byte{}, tile.PNGSignature...), tail...)
}

func TestExport(t *testing.T) {
	requireSpatialite(t)

	plan, err := cover.NewFullPlan(cover.ZoomRange{Min: 0, Max: 1})
	require.NoError(t, err)

	st := store.New(t.TempDir(), "proj")
	writeTile(t, st, tile.Coord{Z: 0, X: 0, Y: 0}, pngBytes(0x00))
	writeTile(t, st, tile.Coord{Z: 1, X: 0, Y: 0}, pngBytes(0x01))
	writeTile(t, st, tile.Coord{Z: 1, X: 0, Y: 1}, pngBytes(0x02))
	writeTile(t, st, tile.Coord{Z: 1, X: 1, Y: 0}, pngBytes(0x03))
	writeTile(t, st, tile.Coord{Z: 1, X: 1, Y: 1}, []byte("<html>error</html>")) // invalid, must be skipped

	bbox, err := cover.NewBBox(32.2, 34.5, 34.7, 35.7)
	require.NoError(t, err)
	meta := Metadata{Name: "proj", Bounds: BoundsString(bbox), Zoom: cover.ZoomRange{Min: 0, Max: 1}}

	dest := filepath.Join(t.TempDir(), "proj.mbtiles")
	packed, err := Export(dest, st, plan, meta, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), packed, "only signature-valid tiles are packed")

	db, err := sql.Open("spatialite", dest)
	require.NoError(t, err)
	defer db.Close()

	var count int64
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tiles`).Scan(&count))
	assert.Equal(t, int64(4), count)

	// slippy row 0 at z1 is stored as TMS row 1
	var data []byte
	require.NoError(t, db.QueryRow(
		`SELECT tile_data FROM tiles WHERE zoom_level = 1 AND tile_column = 0 AND tile_row = 1`).Scan(&data))
	assert.Equal(t, pngBytes(0x01), data)

	// the invalid artifact's slot (z1 x1 y1 -> TMS row 0) must be absent
	var n int64
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM tiles WHERE zoom_level = 1 AND tile_column = 1 AND tile_row = 0`).Scan(&n))
	assert.Equal(t, int64(0), n)

	metadata := make(map[string]string)
	rows, err := db.Query(`SELECT name, value FROM metadata`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name, value string
		require.NoError(t, rows.Scan(&name, &value))
		metadata[name] = value
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, "proj", metadata["name"])
	assert.Equal(t, "png", metadata["format"])
	assert.Equal(t, "baselayer", metadata["type"])
	assert.Equal(t, "0", metadata["minzoom"])
	assert.Equal(t, "1", metadata["maxzoom"])
	assert.Equal(t, "32.2,34.5,34.7,35.7", metadata["bounds"])
}

func TestExportReplacesExistingFile(t *testing.T) {
	requireSpatialite(t)

	plan, err := cover.NewFullPlan(cover.ZoomRange{Min: 0, Max: 0})
	require.NoError(t, err)

	st := store.New(t.TempDir(), "proj")
	writeTile(t, st, tile.Coord{Z: 0, X: 0, Y: 0}, pngBytes(0xAA))

	dest := filepath.Join(t.TempDir(), "proj.mbtiles")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	packed, err := Export(dest, st, plan, Metadata{Name: "proj", Zoom: cover.ZoomRange{Min: 0, Max: 0}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), packed)

	db, err := sql.Open("spatialite", dest)
	require.NoError(t, err)
	defer db.Close()
	var count int64
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM tiles`).Scan(&count))
	assert.Equal(t, int64(1), count)
}

func TestFlipRow(t *testing.T) {
	assert.Equal(t, 0, FlipRow(0, 0))
	assert.Equal(t, 1, FlipRow(1, 0))
	assert.Equal(t, 0, FlipRow(1, 1))
	assert.Equal(t, 255, FlipRow(8, 0))
	// flipping twice is the identity
	assert.Equal(t, 137, FlipRow(8, FlipRow(8, 137)))
}

func TestBoundsString(t *testing.T) {
	b, err := cover.NewBBox(32.2, 34.5, 34.7, 35.7)
	require.NoError(t, err)
	assert.Equal(t, "32.2,34.5,34.7,35.7", BoundsString(b))
}
