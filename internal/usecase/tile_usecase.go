package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/mmalewski/kartotherian/internal/store"
	"github.com/mmalewski/kartotherian/pkg/logger"
	"github.com/mmalewski/kartotherian/pkg/metrics"
)

type TileUseCase struct {
	store  *store.Store
	logger logger.Logger
}

func NewTileUseCase(s *store.Store, l logger.Logger) *TileUseCase {
	return &TileUseCase{
		store:  s,
		logger: l,
	}
}

func (uc *TileUseCase) GetTile(ctx context.Context, z, x, y int) ([]byte, map[string]string, error) {
	metrics.TileReads.Inc()
	start := time.Now()

	tile, headers, err := uc.store.GetTile(ctx, z, x, y)
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.TileReadMisses.Inc()
		} else {
			uc.logger.Error("tile read failed", "z", z, "x", x, "y", y, "error", err)
		}
		return nil, nil, err
	}
	return tile, headers, nil
}

func (uc *TileUseCase) TileSize(ctx context.Context, z, x, y int) (int64, error) {
	return uc.store.TileSize(ctx, z, x, y)
}

// PutTile stores one tile. Payloads that are not already gzipped are
// compressed first, so everything in the table honors the fixed
// Content-Encoding the read path advertises. An empty payload deletes.
func (uc *TileUseCase) PutTile(ctx context.Context, z, x, y int, data []byte) error {
	data, err := ensureGzip(data)
	if err != nil {
		return fmt.Errorf("failed to gzip tile payload: %w", err)
	}

	metrics.TileWrites.Inc()
	if err := uc.store.PutTile(ctx, z, x, y, data); err != nil {
		uc.logger.Error("tile write failed", "z", z, "x", x, "y", y, "error", err)
		return err
	}
	return nil
}

func (uc *TileUseCase) DeleteTile(ctx context.Context, z, x, y int) error {
	metrics.TileWrites.Inc()
	return uc.store.PutTile(ctx, z, x, y, nil)
}

func (uc *TileUseCase) GetInfo(ctx context.Context) (map[string]any, error) {
	return uc.store.GetInfo(ctx)
}

func (uc *TileUseCase) PutInfo(ctx context.Context, info map[string]any) error {
	return uc.store.PutInfo(ctx, info)
}

func (uc *TileUseCase) QueryTiles(ctx context.Context, opts store.QueryOptions) (*store.Iterator, error) {
	return uc.store.Query(ctx, opts)
}

// BulkTile is one tile of a bulk upload.
type BulkTile struct {
	Z    int
	X    int
	Y    int
	Tile []byte
}

// BulkLoad writes a whole group of tiles under one batch session, so the
// store coalesces them into grouped round trips. Returns the number of tiles
// accepted before the first failure.
func (uc *TileUseCase) BulkLoad(ctx context.Context, tiles []BulkTile) (int, error) {
	uc.store.BeginBatch()

	for i, t := range tiles {
		if err := uc.PutTile(ctx, t.Z, t.X, t.Y, t.Tile); err != nil {
			// Close the session; entries accepted before the failure still flush.
			if endErr := uc.store.EndBatch(ctx); endErr != nil {
				uc.logger.Warn("bulk load cleanup flush failed", "error", endErr)
			}
			return i, err
		}
	}

	if err := uc.store.EndBatch(ctx); err != nil {
		return 0, err
	}

	uc.logger.Info("bulk load complete", "tiles", len(tiles))
	return len(tiles), nil
}

var gzipMagic = []byte{0x1f, 0x8b}

func ensureGzip(data []byte) ([]byte, error) {
	if len(data) == 0 || bytes.HasPrefix(data, gzipMagic) {
		return data, nil
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
