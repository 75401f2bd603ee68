// Package tilekey converts (x, y) tile coordinates into a single linear
// quadtree index and back.
//
// Index encoding (int64):
//
//	bit 2i:   bit i of x
//	bit 2i+1: bit i of y
//
// Interleaving x and y keeps tiles that are close on the map close in index
// order, so range scans over idx touch spatially coherent runs.
package tilekey

import "fmt"

// MaxZoom is the highest zoom whose full index range fits in an int64.
const MaxZoom = 30

// MaxIndex returns 4^zoom, the exclusive upper bound of the index range at
// the given zoom.
func MaxIndex(zoom int) int64 {
	return int64(1) << (2 * uint(zoom))
}

// ToIndex encodes tile coordinates into a quadtree index.
// x and y must lie in [0, 2^zoom); zoom must lie in [0, MaxZoom].
func ToIndex(x, y int64, zoom int) (int64, error) {
	if zoom < 0 || zoom > MaxZoom {
		return 0, fmt.Errorf("zoom %d out of range [0, %d]", zoom, MaxZoom)
	}
	limit := int64(1) << uint(zoom)
	if x < 0 || x >= limit {
		return 0, fmt.Errorf("x %d out of range [0, %d) at zoom %d", x, limit, zoom)
	}
	if y < 0 || y >= limit {
		return 0, fmt.Errorf("y %d out of range [0, %d) at zoom %d", y, limit, zoom)
	}

	var idx int64
	for i := 0; i < zoom; i++ {
		idx |= (x >> uint(i) & 1) << uint(2*i)
		idx |= (y >> uint(i) & 1) << uint(2*i+1)
	}
	return idx, nil
}

// FromIndex decodes a quadtree index back into tile coordinates.
func FromIndex(idx int64, zoom int) (x, y int64, err error) {
	if zoom < 0 || zoom > MaxZoom {
		return 0, 0, fmt.Errorf("zoom %d out of range [0, %d]", zoom, MaxZoom)
	}
	if idx < 0 || idx >= MaxIndex(zoom) {
		return 0, 0, fmt.Errorf("index %d out of range [0, %d) at zoom %d", idx, MaxIndex(zoom), zoom)
	}

	for i := 0; i < zoom; i++ {
		x |= (idx >> uint(2*i) & 1) << uint(i)
		y |= (idx >> uint(2*i+1) & 1) << uint(i)
	}
	return x, y, nil
}
