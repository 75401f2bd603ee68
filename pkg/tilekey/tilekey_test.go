package tilekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToIndexKnownValues(t *testing.T) {
	cases := []struct {
		x, y int64
		zoom int
		idx  int64
	}{
		{0, 0, 0, 0},
		{0, 0, 1, 0},
		{1, 0, 1, 1},
		{0, 1, 1, 2},
		{1, 1, 1, 3},
		{2, 1, 2, 6},
		{3, 3, 2, 15},
	}

	for _, c := range cases {
		idx, err := ToIndex(c.x, c.y, c.zoom)
		require.NoError(t, err)
		assert.Equal(t, c.idx, idx, "x=%d y=%d zoom=%d", c.x, c.y, c.zoom)
	}
}

func TestRoundTrip(t *testing.T) {
	for zoom := 0; zoom <= 10; zoom++ {
		limit := int64(1) << uint(zoom)
		step := limit/7 + 1
		for x := int64(0); x < limit; x += step {
			for y := int64(0); y < limit; y += step {
				idx, err := ToIndex(x, y, zoom)
				require.NoError(t, err)
				require.Less(t, idx, MaxIndex(zoom))

				gotX, gotY, err := FromIndex(idx, zoom)
				require.NoError(t, err)
				assert.Equal(t, x, gotX)
				assert.Equal(t, y, gotY)
			}
		}
	}
}

func TestMaxZoomRoundTrip(t *testing.T) {
	limit := int64(1)<<MaxZoom - 1

	idx, err := ToIndex(limit, limit, MaxZoom)
	require.NoError(t, err)
	assert.Equal(t, MaxIndex(MaxZoom)-1, idx)

	x, y, err := FromIndex(idx, MaxZoom)
	require.NoError(t, err)
	assert.Equal(t, limit, x)
	assert.Equal(t, limit, y)
}

func TestBounds(t *testing.T) {
	_, err := ToIndex(-1, 0, 5)
	assert.Error(t, err)

	_, err = ToIndex(0, 32, 5)
	assert.Error(t, err)

	_, err = ToIndex(0, 0, MaxZoom+1)
	assert.Error(t, err)

	_, _, err = FromIndex(MaxIndex(3), 3)
	assert.Error(t, err)

	_, _, err = FromIndex(-1, 3)
	assert.Error(t, err)
}
