package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/mmalewski/kartotherian/internal/store"
	"github.com/mmalewski/kartotherian/internal/usecase"
	"github.com/mmalewski/kartotherian/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate    *validator.Validate
	tileUseCase *usecase.TileUseCase
}

func NewHandler(v *validator.Validate, uc *usecase.TileUseCase) *Handler {
	return &Handler{
		validate:    v,
		tileUseCase: uc,
	}
}

func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

// respondWithStoreError maps the store's error taxonomy onto HTTP statuses.
// Store faults never leak their detail to the client; the sanitized context
// goes to the log instead.
func (h *Handler) respondWithStoreError(c *gin.Context, l logger.Logger, err error) {
	var verr *store.ValidationError
	var cerr *store.ConfigError

	switch {
	case errors.Is(err, store.ErrNotFound):
		h.RespondWithJSON(c, http.StatusNotFound, "tile not found", nil)
	case errors.As(err, &verr):
		h.RespondWithJSON(c, http.StatusBadRequest, verr.Error(), nil)
	case errors.As(err, &cerr):
		h.RespondWithJSON(c, http.StatusBadRequest, cerr.Error(), nil)
	default:
		l.Error("store operation failed", "error", err)
		h.RespondWithInternalServerError(c)
	}
}

func loggerFrom(c *gin.Context) logger.Logger {
	if log, ok := c.Get("logger"); ok {
		if l, ok := log.(logger.Logger); ok {
			return l
		}
	}
	return logger.NewNop()
}
