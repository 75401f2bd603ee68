package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Info(c *gin.Context) {
	l := loggerFrom(c)

	info, err := h.tileUseCase.GetInfo(c.Request.Context())
	if err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *Handler) PutInfo(c *gin.Context) {
	l := loggerFrom(c)

	var info map[string]any
	if err := c.ShouldBindJSON(&info); err != nil {
		l.Warn("invalid metadata document", "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, "metadata document should be a JSON object", nil)
		return
	}

	if err := h.tileUseCase.PutInfo(c.Request.Context(), info); err != nil {
		h.respondWithStoreError(c, l, err)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "metadata stored", nil)
}
