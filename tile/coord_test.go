package tile

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordString(t *testing.T) {
	c := Coord{Z: 12, X: 2215, Y: 1633}
	assert.Equal(t, "12/2215/1633", c.String())
}

func TestParseCoord(t *testing.T) {
	c, err := ParseCoord("12/2215/1633")
	require.NoError(t, err)
	assert.Equal(t, Coord{Z: 12, X: 2215, Y: 1633}, c)

	for _, s := range []string{"", "1/2", "1/2/3/4", "a/2/3", "1/b/3", "1/2/c", "1/5/0", "21/0/0", "-1/0/0"} {
		_, err := ParseCoord(s)
		assert.Error(t, err, s)
	}
}

func TestCoordValid(t *testing.T) {
	assert.True(t, Coord{Z: 0, X: 0, Y: 0}.Valid())
	assert.True(t, Coord{Z: 3, X: 7, Y: 7}.Valid())
	assert.False(t, Coord{Z: 3, X: 8, Y: 0}.Valid())
	assert.False(t, Coord{Z: 3, X: 0, Y: -1}.Valid())
	assert.False(t, Coord{Z: 21, X: 0, Y: 0}.Valid())
}

func TestCoordSort(t *testing.T) {
	coords := []Coord{
		{Z: 2, X: 1, Y: 2},
		{Z: 1, X: 1, Y: 0},
		{Z: 2, X: 0, Y: 2},
		{Z: 1, X: 0, Y: 0},
		{Z: 2, X: 3, Y: 1},
	}
	sort.Slice(coords, func(i, j int) bool { return coords[i].Less(coords[j]) })
	want := []Coord{
		{Z: 1, X: 0, Y: 0},
		{Z: 1, X: 1, Y: 0},
		{Z: 2, X: 0, Y: 2},
		{Z: 2, X: 1, Y: 2},
		{Z: 2, X: 3, Y: 1},
	}
	assert.Equal(t, want, coords)
}
