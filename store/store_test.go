package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tileseed/cover"
	"tileseed/tile"
)

func writeTile(t *testing.T, s *Store, c tile.Coord, data []byte) {
	t.Helper()
	path := s.Path(c)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func pngBytes() []byte {
	return append(append([]byte{}, tile.PNGSignature...), 0xDE, 0xAD, 0xBE, 0xEF)
}

func fullPlan(t *testing.T, min, max int) *cover.Plan {
	t.Helper()
	p, err := cover.NewFullPlan(cover.ZoomRange{Min: min, Max: max})
	require.NoError(t, err)
	return p
}

func TestStorePath(t *testing.T) {
	s := New("/data/tiles", "cyprus")
	c := tile.Coord{Z: 12, X: 2413, Y: 1628}
	assert.Equal(t, filepath.Join("/data/tiles", "cyprus", "12", "2413", "1628.png"), s.Path(c))
	assert.Equal(t, filepath.Join("/data/tiles", "cyprus"), s.Dir())
}

func TestInspectorMissing(t *testing.T) {
	s := New(t.TempDir(), "proj")
	plan := fullPlan(t, 1, 1) // 4 tiles

	writeTile(t, s, tile.Coord{Z: 1, X: 0, Y: 0}, pngBytes())
	writeTile(t, s, tile.Coord{Z: 1, X: 1, Y: 0}, []byte("<html>error</html>")) // invalid
	// 1/0/1 absent
	writeTile(t, s, tile.Coord{Z: 1, X: 1, Y: 1}, pngBytes())

	in := NewInspector(s, 4, nil)
	missing, err := in.Missing(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, []tile.Coord{{Z: 1, X: 0, Y: 1}, {Z: 1, X: 1, Y: 0}}, missing)
}

func TestInspectorMissingOrdered(t *testing.T) {
	s := New(t.TempDir(), "proj")
	plan := fullPlan(t, 0, 2)

	in := NewInspector(s, 8, nil)
	missing, err := in.Missing(context.Background(), plan)
	require.NoError(t, err)
	require.Equal(t, int(plan.Total()), len(missing))
	for i := 1; i < len(missing); i++ {
		assert.True(t, missing[i-1].Less(missing[i]) || missing[i-1] == missing[i],
			"missing set out of order at %d: %s then %s", i, missing[i-1], missing[i])
	}
}

func TestInspectorReport(t *testing.T) {
	s := New(t.TempDir(), "proj")
	plan := fullPlan(t, 0, 1) // 5 tiles

	writeTile(t, s, tile.Coord{Z: 0, X: 0, Y: 0}, pngBytes())
	writeTile(t, s, tile.Coord{Z: 1, X: 0, Y: 0}, pngBytes())
	writeTile(t, s, tile.Coord{Z: 1, X: 1, Y: 1}, []byte{0x89, 0x50}) // truncated

	in := NewInspector(s, 4, nil)
	report, err := in.Report(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, int64(5), report.Expected)
	assert.Equal(t, int64(2), report.Valid)
	assert.Equal(t, int64(3), report.MissingCount())
	assert.InDelta(t, 40.0, report.CompletionRate, 1e-9)

	require.Contains(t, report.Zooms, 0)
	require.Contains(t, report.Zooms, 1)
	assert.Equal(t, ZoomStats{Expected: 1, Valid: 1, Missing: 0, CompletionRate: 100}, report.Zooms[0])
	assert.Equal(t, ZoomStats{Expected: 4, Valid: 1, Missing: 3, CompletionRate: 25}, report.Zooms[1])
}

// Valid is counted from the store directory itself, so artifacts outside
// the plan inflate the valid count but never the expected count.
func TestReportCountsStrayArtifacts(t *testing.T) {
	s := New(t.TempDir(), "proj")
	plan := fullPlan(t, 0, 0)

	writeTile(t, s, tile.Coord{Z: 0, X: 0, Y: 0}, pngBytes())
	writeTile(t, s, tile.Coord{Z: 5, X: 3, Y: 7}, pngBytes()) // not planned

	in := NewInspector(s, 2, nil)
	report, err := in.Report(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Expected)
	assert.Equal(t, int64(2), report.Valid)
	assert.Empty(t, report.Missing)
}

func TestReportEmptyStore(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"), "proj")
	plan := fullPlan(t, 0, 0)

	in := NewInspector(s, 2, nil)
	report, err := in.Report(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Valid)
	assert.Equal(t, int64(1), report.MissingCount())
	assert.Equal(t, float64(0), report.CompletionRate)
}

func TestRate(t *testing.T) {
	assert.Equal(t, float64(0), Rate(0, 0))
	assert.Equal(t, float64(0), Rate(5, 0))
	assert.Equal(t, float64(50), Rate(1, 2))
	assert.Equal(t, float64(100), Rate(4, 4))
}

func TestMissingCanceled(t *testing.T) {
	s := New(t.TempDir(), "proj")
	plan := fullPlan(t, 0, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := NewInspector(s, 1, nil)
	_, err := in.Missing(ctx, plan)
	assert.Error(t, err)
}
