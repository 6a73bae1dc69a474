package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/domain/crawl"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/domain/pubs"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/config"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/directions"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/supabase"
)

const healthTimeout = 2 * time.Second

// CORSMethods lists the methods advertised per path when they differ from the default.
var CORSMethods = map[string]string{
	"/api/generate-crawl": "GET, OPTIONS",
}

// Pool is what the routes need from the Postgres pool.
type Pool interface {
	pubs.DB
	Ping(ctx context.Context) error
}

// Dependencies are the outside resources the handlers run on. Nearby and
// Directions default to the Supabase RPC and OpenRouteService clients.
type Dependencies struct {
	Pool       Pool
	Nearby     crawl.NearbyPubFinder
	Directions crawl.DirectionsProvider
}

type AppHandlers struct {
	Crawl  *crawl.Handler
	Pubs   *pubs.Handler
	Health gin.HandlerFunc
}

func Setup(r *gin.Engine, cfg *config.Config, deps Dependencies, log *zap.Logger) {
	setupRouter(r, setupDependencies(cfg, deps, log))
}

func setupDependencies(cfg *config.Config, deps Dependencies, log *zap.Logger) *AppHandlers {
	configErr := cfg.CrawlSecrets()
	if configErr != nil {
		log.Error("Crawl generation disabled until configuration is fixed", zap.Error(configErr))
	}

	if deps.Nearby == nil {
		deps.Nearby = supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey, cfg.Supabase.Timeout, log)
	}
	if deps.Directions == nil {
		deps.Directions = directions.NewClient(cfg.Directions.BaseURL, cfg.Directions.APIKey, cfg.Directions.Timeout, log,
			directions.WithProfile(cfg.Directions.Profile))
	}

	pubsRepo := pubs.NewRepository(deps.Pool, log)
	pubsService := pubs.NewServiceImpl(pubsRepo, cfg.PubsCacheTTL, log)
	crawlService := crawl.NewServiceImpl(deps.Nearby, deps.Directions, log)

	return &AppHandlers{
		Crawl:  crawl.NewHandler(crawlService, configErr, log),
		Pubs:   pubs.NewHandler(pubsService, log),
		Health: healthz(deps.Pool),
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	{
		api.GET("/generate-crawl", h.Crawl.GenerateCrawl)

		api.GET("/pubs", h.Pubs.ListPubs)
		api.GET("/pubs/:id", h.Pubs.GetPub)
		api.POST("/pubs/:id/visits", h.Pubs.LogVisit)
		api.DELETE("/pubs/:id/visits/latest", h.Pubs.RemoveLatestVisit)

		api.POST("/visits/batch", h.Pubs.LogVisits)
		api.DELETE("/visits/:id", h.Pubs.RemoveVisit)

		api.GET("/progress", h.Pubs.Progress)
	}
}

func healthz(pool Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
