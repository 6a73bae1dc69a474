package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/middleware"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/config"
	"github.com/FACorreiaa/go-pubcrawl/internal/routes"
)

// SetupRouter configures and returns the Gin router with all middleware and routes
func SetupRouter(cfg *config.Config, deps routes.Dependencies, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.OTELGinMiddleware(cfg.Observability.ServiceName))
	r.Use(middleware.ObservabilityMiddleware())
	r.Use(middleware.CORSMiddleware(routes.CORSMethods))
	r.Use(middleware.SecurityMiddleware())

	routes.Setup(r, cfg, deps, logger)

	return r
}
