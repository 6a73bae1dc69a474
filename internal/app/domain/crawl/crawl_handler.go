package crawl

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/domain"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/observability/metrics"
)

type Handler struct {
	*domain.BaseHandler
	service   Service
	configErr error
}

// NewHandler builds the crawl handler. A non-nil configErr makes every
// request fail with a configuration error before any input is read.
func NewHandler(service Service, configErr error, logger *zap.Logger) *Handler {
	return &Handler{
		BaseHandler: domain.NewBaseHandler(logger),
		service:     service,
		configErr:   configErr,
	}
}

// GenerateCrawl serves GET /api/generate-crawl?lng=&lat=&start_pub_id=.
func (h *Handler) GenerateCrawl(c *gin.Context) {
	if h.configErr != nil {
		h.fail(c, h.configErr)
		return
	}

	req, err := ParseRequest(c.Query("lng"), c.Query("lat"), c.Query("start_pub_id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, "ok")
	c.JSON(http.StatusOK, result)
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.record(c, outcome(err))
	h.RespondError(c, err)
}

func (h *Handler) record(c *gin.Context, outcome string) {
	metrics.Get().CrawlRequestsTotal.Add(c.Request.Context(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return "config_error"
	case errors.Is(err, models.ErrValidation):
		return "invalid"
	case errors.Is(err, models.ErrNotFound):
		return "not_enough_pubs"
	case errors.Is(err, models.ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
