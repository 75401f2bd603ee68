package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mmalewski/kartotherian/pkg/tilekey"
)

// QueryOptions filters a range scan over one zoom level. Optional filters are
// pointers; nil means the filter contributes no predicate at all.
type QueryOptions struct {
	// Zoom is required.
	Zoom int

	// IdxFrom and IdxBefore bound the index range [IdxFrom, IdxBefore).
	IdxFrom   *int64
	IdxBefore *int64

	// SmallerThan keeps tiles with stored length < SmallerThan;
	// BiggerThan keeps tiles with stored length >= BiggerThan.
	SmallerThan *int64
	BiggerThan  *int64

	// IncludeTiles fetches tile payloads along with indexes.
	IncludeTiles bool

	// Date filters are recognized for compatibility but always rejected:
	// the table has no write-time column.
	DateFrom   *time.Time
	DateBefore *time.Time
}

func (opts QueryOptions) validate() error {
	if opts.DateFrom != nil || opts.DateBefore != nil {
		return &ValidationError{Reason: "date filtering is not supported: no write-time column exists"}
	}
	if opts.Zoom < 0 || opts.Zoom > tilekey.MaxZoom {
		return &ValidationError{Reason: fmt.Sprintf("zoom %d out of range [0, %d]", opts.Zoom, tilekey.MaxZoom)}
	}

	maxIdx := tilekey.MaxIndex(opts.Zoom)
	if opts.IdxFrom != nil && (*opts.IdxFrom < 0 || *opts.IdxFrom > maxIdx) {
		return &ValidationError{Reason: fmt.Sprintf("idxFrom %d out of range [0, %d]", *opts.IdxFrom, maxIdx)}
	}
	if opts.IdxBefore != nil && (*opts.IdxBefore < 0 || *opts.IdxBefore > maxIdx) {
		return &ValidationError{Reason: fmt.Sprintf("idxBefore %d out of range [0, %d]", *opts.IdxBefore, maxIdx)}
	}
	if opts.IdxFrom != nil && opts.IdxBefore != nil && *opts.IdxFrom > *opts.IdxBefore {
		return &ValidationError{Reason: fmt.Sprintf("idxFrom %d greater than idxBefore %d", *opts.IdxFrom, *opts.IdxBefore)}
	}
	if opts.SmallerThan != nil && *opts.SmallerThan < 0 {
		return &ValidationError{Reason: fmt.Sprintf("smallerThan %d is negative", *opts.SmallerThan)}
	}
	if opts.BiggerThan != nil && *opts.BiggerThan < 0 {
		return &ValidationError{Reason: fmt.Sprintf("biggerThan %d is negative", *opts.BiggerThan)}
	}
	return nil
}

// Query opens a range scan and returns a lazy pull sequence over its rows.
// The sequence is finite and not restartable; callers that stop early should
// Close it to release the cursor.
func (s *Store) Query(ctx context.Context, opts QueryOptions) (*Iterator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	stmt, args := s.q.rangeScan(opts)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, s.fault(err)
	}

	s.log.Debug("range scan opened", "zoom", opts.Zoom, "include_tiles", opts.IncludeTiles)
	return newIterator(rows, opts.Zoom, opts.IncludeTiles, s.fault), nil
}
