package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func tileCoords(c *gin.Context) (z, x, y int, ok bool) {
	strZ := c.Param("z")
	strX := c.Param("x")
	strY := c.Param("y")

	z, err := strconv.Atoi(strZ)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "z should be integer",
		})
		return 0, 0, 0, false
	}

	x, err = strconv.Atoi(strX)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "x should be integer",
		})
		return 0, 0, 0, false
	}

	y, err = strconv.Atoi(strY)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "y should be integer",
		})
		return 0, 0, 0, false
	}

	return z, x, y, true
}

func (h *Handler) Tile(c *gin.Context) {
	l := loggerFrom(c)

	z, x, y, ok := tileCoords(c)
	if !ok {
		return
	}

	l.Debug("tile request", "z", z, "x", x, "y", y)

	tile, headers, err := h.tileUseCase.GetTile(c.Request.Context(), z, x, y)
	if err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}

	for k, v := range headers {
		c.Header(k, v)
	}
	c.Data(http.StatusOK, headers["Content-Type"], tile)
}

func (h *Handler) TileSize(c *gin.Context) {
	l := loggerFrom(c)

	z, x, y, ok := tileCoords(c)
	if !ok {
		return
	}

	size, err := h.tileUseCase.TileSize(c.Request.Context(), z, x, y)
	if err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}

	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Status(http.StatusOK)
}

func (h *Handler) PutTile(c *gin.Context) {
	l := loggerFrom(c)

	z, x, y, ok := tileCoords(c)
	if !ok {
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		l.Warn("failed to read tile payload", "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "failed to read request body", nil)
		return
	}

	if err := h.tileUseCase.PutTile(c.Request.Context(), z, x, y, data); err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tile stored", nil)
}

func (h *Handler) DeleteTile(c *gin.Context) {
	l := loggerFrom(c)

	z, x, y, ok := tileCoords(c)
	if !ok {
		return
	}

	if err := h.tileUseCase.DeleteTile(c.Request.Context(), z, x, y); err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tile deleted", nil)
}
