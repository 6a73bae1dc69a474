package domain

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
)

// BaseHandler carries what every JSON handler needs: a logger and the single
// place where error kinds become status codes.
type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseHandler{Logger: logger}
}

// StatusFor maps an error to the HTTP status the API reports for it.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes {"error": msg} with the mapped status and logs the cause.
func (h *BaseHandler) RespondError(c *gin.Context, err error) {
	status := StatusFor(err)
	fields := []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		fields = append(fields, zap.NamedError("cause", appErr.Err))
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed", fields...)
	} else {
		h.Logger.Warn("Request rejected", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: err.Error()})
}
