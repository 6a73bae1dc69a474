package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	database "github.com/FACorreiaa/go-pubcrawl/internal/db"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/config"
)

// Server holds the dependencies for the HTTP server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	dbPool *pgxpool.Pool
	router http.Handler
}

// New connects to the database and applies migrations.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	dbPool, err := s.setupDatabase(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}
	s.dbPool = dbPool

	return s, nil
}

func (s *Server) setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	s.logger.Info("Setting up database connection and migrations")

	dbConfig, err := database.NewDatabaseConfig(s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database configuration: %w", err)
	}

	pool, err := database.Init(ctx, dbConfig, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}

	if !database.WaitForDB(ctx, pool, s.logger) {
		pool.Close()
		return nil, errors.New("database did not become reachable")
	}

	if err = database.RunMigrations(dbConfig.ConnectionURL, s.logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	s.logger.Info("Database setup completed successfully")
	return pool, nil
}

// HTTPServer creates and configures the HTTP server
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.router,
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      s.cfg.Supabase.Timeout + s.cfg.Directions.Timeout + 5*time.Second,
	}
}

func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

func (s *Server) GetDBPool() *pgxpool.Pool {
	return s.dbPool
}

func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// Close closes all server resources
func (s *Server) Close() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}
