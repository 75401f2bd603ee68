package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mmalewski/kartotherian/internal/infrastructure/http/v1/dto"
	"github.com/mmalewski/kartotherian/internal/store"
	"github.com/mmalewski/kartotherian/internal/usecase"
	"github.com/mmalewski/kartotherian/pkg/metrics"
)

// Tiles streams a range query as NDJSON, one record per line. Rows are pulled
// from the store lazily, so an arbitrarily large result set never has to fit
// in memory.
func (h *Handler) Tiles(c *gin.Context) {
	l := loggerFrom(c)

	var req dto.TileQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "invalid query parameters", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	opts := store.QueryOptions{
		Zoom:         *req.Zoom,
		IdxFrom:      req.IdxFrom,
		IdxBefore:    req.IdxBefore,
		BiggerThan:   req.BiggerThan,
		SmallerThan:  req.SmallerThan,
		IncludeTiles: req.IncludeTiles,
	}

	// Date parameters are parsed here, then carried through so the store
	// rejects them with its own unsupported-feature error.
	if req.DateFrom != "" {
		from, err := parseQueryDate(req.DateFrom)
		if err != nil {
			h.RespondWithJSON(c, http.StatusBadRequest, "invalid dateFrom: "+err.Error(), nil)
			return
		}
		opts.DateFrom = &from
	}
	if req.DateBefore != "" {
		before, err := parseQueryDate(req.DateBefore)
		if err != nil {
			h.RespondWithJSON(c, http.StatusBadRequest, "invalid dateBefore: "+err.Error(), nil)
			return
		}
		opts.DateBefore = &before
	}

	it, err := h.tileUseCase.QueryTiles(c.Request.Context(), opts)
	if err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}
	defer it.Close()

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	count := 0
	for it.Next() {
		rec := it.Record()
		if err := enc.Encode(dto.TileRecordResponse{
			Zoom: rec.Zoom,
			Idx:  rec.Idx,
			Tile: rec.Tile,
		}); err != nil {
			l.Warn("client went away mid-stream", "error", err)
			return
		}
		count++
	}
	metrics.QueryRows.Add(float64(count))

	if err := it.Err(); err != nil {
		// Headers are long gone; the best we can do is log and cut the stream.
		l.Error("range query stream failed", "error", err)
		return
	}

	l.Debug("range query complete", "rows", count)
}

var queryDateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseQueryDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range queryDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// BulkTiles loads a group of tiles under one batch session.
func (h *Handler) BulkTiles(c *gin.Context) {
	l := loggerFrom(c)

	var req dto.BulkTileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "invalid bulk payload", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	tiles := make([]usecase.BulkTile, 0, len(req.Tiles))
	for _, t := range req.Tiles {
		tiles = append(tiles, usecase.BulkTile{Z: t.Z, X: t.X, Y: t.Y, Tile: t.Tile})
	}

	loaded, err := h.tileUseCase.BulkLoad(c.Request.Context(), tiles)
	if err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tiles loaded", dto.BulkTileResponse{Loaded: loaded})
}
