// Package database owns the Postgres pool and the embedded schema migrations.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver registration
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxuuid "github.com/vgarvardt/pgx-google-uuid/v5"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const defaultRetries = 5

type DatabaseConfig struct {
	ConnectionURL string
	MaxConns      int32
	MinConns      int32
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitForDB pings until the database answers or the attempts run out.
func WaitForDB(ctx context.Context, pgpool Pinger, logger *zap.Logger) bool {
	for attempts := 1; attempts <= defaultRetries; attempts++ {
		err := pgpool.Ping(ctx)
		if err == nil {
			logger.Info("Database connection successful")
			return true
		}

		waitDuration := time.Duration(attempts) * 200 * time.Millisecond
		logger.Warn("Database ping failed, retrying...",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", defaultRetries),
			zap.Duration("wait_duration", waitDuration),
			zap.Error(err),
		)
		if attempts < defaultRetries {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(waitDuration):
			}
		}
	}
	logger.Error("Database connection failed after multiple retries")
	return false
}

// RunMigrations applies every pending up migration.
func RunMigrations(databaseURL string, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}
	for _, entry := range entries {
		logger.Debug("Found embedded migration file", zap.String("name", entry.Name()))
	}

	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}

	if !strings.HasPrefix(databaseURL, "postgres://") && !strings.HasPrefix(databaseURL, "postgresql://") {
		return errors.New("invalid database URL scheme for migrate, ensure it starts with postgresql://")
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("Error closing migration source", zap.Error(srcErr))
		}
		if dbErr != nil {
			logger.Warn("Error closing migration database connection", zap.Error(dbErr))
		}
	}()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	switch {
	case err != nil:
		logger.Warn("Could not determine migration version", zap.Error(err))
	case dirty:
		logger.Error("Database migration state is dirty", zap.Uint("version", version))
		return fmt.Errorf("migration version %d is dirty", version)
	case errors.Is(upErr, migrate.ErrNoChange):
		logger.Info("No new migrations to apply", zap.Uint("current_version", version))
	default:
		logger.Info("Database migrations applied", zap.Uint("new_version", version))
	}
	return nil
}

// NewDatabaseConfig builds the connection URL. DATABASE_URL wins over the
// individual POSTGRES_* settings.
func NewDatabaseConfig(cfg *config.Config, logger *zap.Logger) (*DatabaseConfig, error) {
	if cfg == nil {
		return nil, errors.New("postgres configuration is missing")
	}
	pg := cfg.Repositories.Postgres
	dbCfg := &DatabaseConfig{MaxConns: pg.MaxConns, MinConns: pg.MinConns}

	if pg.URL != "" {
		u, err := url.Parse(pg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
		}
		logger.Info("Using DATABASE_URL", zap.String("host", u.Host), zap.String("database", u.Path))
		dbCfg.ConnectionURL = pg.URL
		return dbCfg, nil
	}

	if pg.Host == "" {
		return nil, errors.New("postgres host is not configured")
	}
	query := url.Values{}
	query.Set("sslmode", pg.SSLMode)
	query.Set("timezone", "utc")

	connURL := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(pg.Username, pg.Password),
		Host:     fmt.Sprintf("%s:%s", pg.Host, pg.Port),
		Path:     pg.DB,
		RawQuery: query.Encode(),
	}
	logger.Info("Database connection URL generated", zap.String("host", connURL.Host), zap.String("database", connURL.Path))

	dbCfg.ConnectionURL = connURL.String()
	return dbCfg, nil
}

// Init creates the pool and registers google/uuid on every connection.
func Init(ctx context.Context, dbCfg *DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	logger.Info("Initializing database connection pool...")
	cfg, err := pgxpool.ParseConfig(dbCfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed parsing db config: %w", err)
	}

	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxuuid.Register(conn.TypeMap())
		return nil
	}
	if dbCfg.MaxConns > 0 {
		cfg.MaxConns = dbCfg.MaxConns
	}
	if dbCfg.MinConns > 0 && dbCfg.MinConns <= cfg.MaxConns {
		cfg.MinConns = dbCfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed creating db pool: %w", err)
	}

	logger.Info("Database connection pool initialized",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns))
	return pool, nil
}
