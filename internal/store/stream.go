package store

import "database/sql"

// TileRecord is one row yielded by a range query. Tile and Headers are only
// populated when the query asked for tile payloads.
type TileRecord struct {
	Zoom    int
	Idx     int64
	Tile    []byte
	Headers map[string]string
}

type iterResult struct {
	rec *TileRecord
	err error
}

// Iterator is a pull-based lazy sequence over a server-side result cursor.
//
// A single goroutine reads the cursor and hands rows over a single-capacity
// channel, so the cursor is never drained faster than the consumer calls
// Next. The sequence is finite and not restartable: once Next returns false
// the iteration is over, and Err reports any stream fault captured along the
// way. Iterators are single-consumer.
type Iterator struct {
	ch     chan iterResult
	quit   chan struct{}
	rec    *TileRecord
	err    error
	closed bool
}

// newIterator bridges rows into an Iterator. wrap annotates backend faults
// with store context before they reach the consumer.
func newIterator(rows *sql.Rows, zoom int, includeTiles bool, wrap func(error) error) *Iterator {
	ch := make(chan iterResult, 1)
	it := &Iterator{
		ch:   ch,
		quit: make(chan struct{}),
	}

	go func() {
		defer close(ch)
		defer rows.Close()

		for rows.Next() {
			rec := &TileRecord{Zoom: zoom}
			var scanErr error
			if includeTiles {
				scanErr = rows.Scan(&rec.Idx, &rec.Tile)
				rec.Headers = TileHeaders()
			} else {
				scanErr = rows.Scan(&rec.Idx)
			}
			if scanErr != nil {
				it.deliver(iterResult{err: wrap(scanErr)})
				return
			}
			if !it.deliver(iterResult{rec: rec}) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			it.deliver(iterResult{err: wrap(err)})
		}
	}()

	return it
}

func (it *Iterator) deliver(res iterResult) bool {
	select {
	case it.ch <- res:
		return true
	case <-it.quit:
		return false
	}
}

// Next advances to the next record. It returns false at the end of the
// sequence or when a stream fault was captured; check Err to tell the two
// apart. Records already delivered are never retracted or re-delivered.
func (it *Iterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	res, ok := <-it.ch
	if !ok {
		it.rec = nil
		return false
	}
	if res.err != nil {
		it.rec = nil
		it.err = res.err
		return false
	}
	it.rec = res.rec
	return true
}

// Record returns the record delivered by the last successful Next.
func (it *Iterator) Record() *TileRecord {
	return it.rec
}

// Err returns the stream fault that ended the sequence, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the underlying cursor. Safe to call at any point; Next
// returns false afterwards.
func (it *Iterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	close(it.quit)
}
