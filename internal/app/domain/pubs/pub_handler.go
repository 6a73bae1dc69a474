package pubs

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/domain"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
)

type Handler struct {
	*domain.BaseHandler
	service Service
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: domain.NewBaseHandler(logger),
		service:     service,
	}
}

// ListPubs serves GET /api/pubs.
func (h *Handler) ListPubs(c *gin.Context) {
	pubs, err := h.service.ListPubs(c.Request.Context())
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pubs)
}

// GetPub serves GET /api/pubs/:id.
func (h *Handler) GetPub(c *gin.Context) {
	id, err := pubIDParam(c)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	pub, err := h.service.GetPub(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pub)
}

// LogVisit serves POST /api/pubs/:id/visits. An empty body logs a bare visit.
func (h *Handler) LogVisit(c *gin.Context) {
	id, err := pubIDParam(c)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	var body models.NewVisit
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.RespondError(c, models.NewValidation("Invalid request body."))
		return
	}
	visit, err := h.service.LogVisit(c.Request.Context(), id, body)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, visit)
}

// RemoveLatestVisit serves DELETE /api/pubs/:id/visits/latest.
func (h *Handler) RemoveLatestVisit(c *gin.Context) {
	id, err := pubIDParam(c)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	visit, err := h.service.RemoveLatestVisit(c.Request.Context(), id)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visit)
}

// RemoveVisit serves DELETE /api/visits/:id.
func (h *Handler) RemoveVisit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.RespondError(c, models.NewValidation("Invalid visit id."))
		return
	}
	if err := h.service.RemoveVisit(c.Request.Context(), id); err != nil {
		h.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LogVisits serves POST /api/visits/batch.
func (h *Handler) LogVisits(c *gin.Context) {
	var body models.BatchVisitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.RespondError(c, models.NewValidation("Invalid request body."))
		return
	}
	visits, err := h.service.LogVisits(c.Request.Context(), body.PubIDs)
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, visits)
}

// Progress serves GET /api/progress.
func (h *Handler) Progress(c *gin.Context) {
	p, err := h.service.Progress(c.Request.Context())
	if err != nil {
		h.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func pubIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidation("Invalid pub id.")
	}
	return id, nil
}
