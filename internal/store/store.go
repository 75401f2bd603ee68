// Package store implements a tile storage engine over a relational table.
//
// Tiles are opaque byte blobs addressed by (zoom, idx), where idx is the
// linear quadtree index of the tile's (x, y) position. One table per store,
// primary key (zoom, idx). The store-level metadata document lives in the
// same table at a reserved address (zoom -1, idx 0), serialized as JSON.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mmalewski/kartotherian/pkg/logger"
	"github.com/mmalewski/kartotherian/pkg/tilekey"
)

// Reserved address of the metadata document.
const (
	metaZoom = -1
	metaIdx  = 0
)

// Config carries the construction parameters of a store.
type Config struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string

	// Database is required. For sqlite it is the database file path
	// (":memory:" works).
	Database string

	// Table defaults to "tiles" and must be a plain SQL identifier.
	Table string

	// CreateIfMissing creates the backing table on startup instead of
	// probing for it.
	CreateIfMissing bool

	// Zoom window served by this store. MaxZoom defaults to 14.
	MinZoom int
	MaxZoom int

	// MaxBatchSize bounds the pending batch sequence. When zero, buffering
	// mode never actually buffers and every write goes straight through.
	MaxBatchSize int
}

// Store is a tile storage engine bound to one backing table.
//
// A Store is safe for concurrent point reads and writes (the underlying
// connection pool serializes I/O), but batch sessions share one pending
// sequence and one nesting counter: concurrent BeginBatch/EndBatch callers
// interleave their groupings arbitrarily. Callers needing batch isolation
// must use separate instances or external mutual exclusion.
type Store struct {
	db      *sql.DB
	q       queryBuilder
	batch   *batchBuffer
	minZoom int
	maxZoom int

	// target identifies the store in errors and logs, credentials stripped.
	target string

	log logger.Logger
}

// New validates cfg, opens the connection handle, and bootstraps the backing
// table: created when cfg.CreateIfMissing is set, structurally probed
// otherwise so a malformed table fails fast.
func New(cfg Config, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}

	if cfg.Database == "" {
		return nil, &ConfigError{Reason: "database is required"}
	}
	if cfg.Table == "" {
		cfg.Table = "tiles"
	}
	if !validIdentifier(cfg.Table) {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid table identifier %q", cfg.Table)}
	}
	if cfg.MaxZoom == 0 {
		cfg.MaxZoom = 14
	}
	if cfg.MinZoom < 0 || cfg.MaxZoom > tilekey.MaxZoom || cfg.MinZoom > cfg.MaxZoom {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid zoom window [%d, %d]", cfg.MinZoom, cfg.MaxZoom)}
	}

	var dialect Dialect
	switch cfg.Driver {
	case "", "postgres":
		dialect = Postgres
	case "sqlite", "sqlite3":
		dialect = SQLite
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown driver %q", cfg.Driver)}
	}

	driverName, dsn, target := connection(cfg, dialect)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &StorageError{Target: target, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Target: target, Err: err}
	}

	s := &Store{
		db:      db,
		q:       queryBuilder{table: cfg.Table, dialect: dialect},
		minZoom: cfg.MinZoom,
		maxZoom: cfg.MaxZoom,
		target:  target,
		log:     l,
	}
	s.batch = newBatchBuffer(cfg.MaxBatchSize, s.applyGroup)

	if err := s.bootstrap(cfg.CreateIfMissing); err != nil {
		db.Close()
		return nil, err
	}

	l.Info("tile store ready",
		"target", target,
		"table", cfg.Table,
		"minzoom", cfg.MinZoom,
		"maxzoom", cfg.MaxZoom,
		"max_batch_size", cfg.MaxBatchSize,
	)

	return s, nil
}

// connection renders the driver DSN and the sanitized target used in errors.
func connection(cfg Config, dialect Dialect) (driverName, dsn, target string) {
	if dialect == SQLite {
		return "sqlite3", cfg.Database, "sqlite://" + cfg.Database
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn = fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslMode)
	if cfg.User != "" {
		dsn += " user=" + cfg.User
	}
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	target = fmt.Sprintf("postgres://%s:%d/%s", host, port, cfg.Database)
	return "postgres", dsn, target
}

func (s *Store) bootstrap(createIfMissing bool) error {
	if createIfMissing {
		if _, err := s.db.Exec(s.q.createTable()); err != nil {
			return s.fault(fmt.Errorf("create table: %w", err))
		}
		if hint := s.q.storageHint(); hint != "" {
			if _, err := s.db.Exec(hint); err != nil {
				return s.fault(fmt.Errorf("set tile storage hint: %w", err))
			}
		}
		return nil
	}

	rows, err := s.db.Query(s.q.probe())
	if err != nil {
		return s.fault(fmt.Errorf("table check: %w", err))
	}
	return s.fault(errors.Join(rows.Err(), rows.Close()))
}

// fault annotates a backend error with the sanitized store target.
func (s *Store) fault(err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Target: s.target, Err: err}
}

// TileHeaders returns the fixed response headers for tile payloads: stored
// tiles are protobuf vector tiles, gzipped by the writer.
func TileHeaders() map[string]string {
	return map[string]string{
		"Content-Type":     "application/x-protobuf",
		"Content-Encoding": "gzip",
	}
}

// GetTile reads one tile. Zoom levels outside the store's window and absent
// tiles both report ErrNotFound, never a fault.
func (s *Store) GetTile(ctx context.Context, z, x, y int) ([]byte, map[string]string, error) {
	if z < s.minZoom || z > s.maxZoom {
		return nil, nil, ErrNotFound
	}
	idx, err := tilekey.ToIndex(int64(x), int64(y), z)
	if err != nil {
		return nil, nil, &ValidationError{Reason: err.Error()}
	}

	var tile []byte
	err = s.db.QueryRowContext(ctx, s.q.selectTile(), z, idx).Scan(&tile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, s.fault(err)
	}
	return tile, TileHeaders(), nil
}

// TileSize reads just the stored byte length of a tile, sparing the blob
// round trip. Same not-found semantics as GetTile.
func (s *Store) TileSize(ctx context.Context, z, x, y int) (int64, error) {
	if z < s.minZoom || z > s.maxZoom {
		return 0, ErrNotFound
	}
	idx, err := tilekey.ToIndex(int64(x), int64(y), z)
	if err != nil {
		return 0, &ValidationError{Reason: err.Error()}
	}

	var size int64
	err = s.db.QueryRowContext(ctx, s.q.selectTileLength(), z, idx).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, s.fault(err)
	}
	return size, nil
}

// PutTile writes one tile through the batch buffer. An empty payload is
// normalized to a delete: absence is the canonical "no data" state, and an
// empty blob is never stored. Writing outside the zoom window is a
// configuration failure, unlike the not-found read path.
func (s *Store) PutTile(ctx context.Context, z, x, y int, tile []byte) error {
	if z < s.minZoom || z > s.maxZoom {
		return &ConfigError{Reason: fmt.Sprintf("zoom %d outside window [%d, %d]", z, s.minZoom, s.maxZoom)}
	}
	idx, err := tilekey.ToIndex(int64(x), int64(y), z)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	e := batchEntry{kind: entryUpsert, zoom: z, idx: idx, tile: tile}
	if len(tile) == 0 {
		e = batchEntry{kind: entryDelete, zoom: z, idx: idx}
	}
	return s.batch.submit(ctx, e)
}

// GetInfo reads the metadata document. When none was ever written it
// synthesizes a default descriptor from the store configuration instead of
// failing.
func (s *Store) GetInfo(ctx context.Context) (map[string]any, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, s.q.selectTile(), metaZoom, metaIdx).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaultInfo(), nil
	}
	if err != nil {
		return nil, s.fault(err)
	}

	var info map[string]any
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, s.fault(fmt.Errorf("corrupt metadata document: %w", err))
	}
	return info, nil
}

func (s *Store) defaultInfo() map[string]any {
	return map[string]any{
		"tilejson": "2.1.0",
		"name":     s.q.table,
		"format":   "pbf",
		"version":  "1.0.0",
		"scheme":   "xyz",
		"bounds":   []any{-180.0, -85.0511, 180.0, 85.0511},
		"minzoom":  s.minZoom,
		"maxzoom":  s.maxZoom,
	}
}

// PutInfo serializes info and writes it at the reserved metadata address,
// through the batch buffer like any other write.
func (s *Store) PutInfo(ctx context.Context, info map[string]any) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("metadata not serializable: %v", err)}
	}
	return s.batch.submit(ctx, batchEntry{kind: entryUpsert, zoom: metaZoom, idx: metaIdx, tile: raw})
}

// BeginBatch enters buffering mode. Calls nest: writes return to immediate
// mode only when every BeginBatch has been matched by an EndBatch.
func (s *Store) BeginBatch() {
	s.batch.begin()
}

// EndBatch leaves one level of buffering mode, flushing the pending sequence
// when the last level ends. Unbalanced calls fail with ErrBatchProtocol.
func (s *Store) EndBatch(ctx context.Context) error {
	return s.batch.end(ctx)
}

// Flush submits the pending batch sequence now. A no-op when nothing is
// pending.
func (s *Store) Flush(ctx context.Context) error {
	return s.batch.flush(ctx)
}

// applyGroup submits one detached batch group. A single entry goes straight
// through; larger groups share one transaction to amortize the round trip,
// and any failure rolls the whole group back.
func (s *Store) applyGroup(ctx context.Context, entries []batchEntry) error {
	if len(entries) == 1 {
		e := entries[0]
		_, err := s.db.ExecContext(ctx, s.entryStatement(e.kind), s.entryArgs(e)...)
		return s.fault(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fault(err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, s.entryStatement(e.kind), s.entryArgs(e)...); err != nil {
			tx.Rollback()
			return s.fault(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fault(err)
	}

	s.log.Debug("batch group applied", "entries", len(entries))
	return nil
}

func (s *Store) entryStatement(kind entryKind) string {
	if kind == entryDelete {
		return s.q.delete()
	}
	return s.q.upsert()
}

func (s *Store) entryArgs(e batchEntry) []any {
	if e.kind == entryDelete {
		return []any{e.zoom, e.idx}
	}
	return []any{e.zoom, e.idx, e.tile}
}

// Close flushes nothing and releases the connection handle. Pending batch
// entries not flushed before Close are lost.
func (s *Store) Close() error {
	return s.db.Close()
}
