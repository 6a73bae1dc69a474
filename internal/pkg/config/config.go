package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
)

type PostgresConfig struct {
	URL      string
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// SupabaseConfig points at the hosted backend exposing the RPC functions.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
}

// DirectionsConfig configures the OpenRouteService client.
type DirectionsConfig struct {
	BaseURL string
	APIKey  string
	Profile string
	Timeout time.Duration
}

type ObservabilityConfig struct {
	ServiceName  string
	OTLPEndpoint string
	MetricsAddr  string
	PprofAddr    string
}

type Config struct {
	Repositories  RepositoriesConfig
	Supabase      SupabaseConfig
	Directions    DirectionsConfig
	Observability ObservabilityConfig
	PubsCacheTTL  time.Duration
	ServerPort    string
	LogLevel      string
	LogEncoding   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				URL:      os.Getenv("DATABASE_URL"),
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "pubcrawl"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: int32(getIntOrDefault("POSTGRES_MAX_CONNS", 10)),
				MinConns: int32(getIntOrDefault("POSTGRES_MIN_CONNS", 2)),
			},
		},
		Supabase: SupabaseConfig{
			URL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			Timeout:    getDurationOrDefault("SUPABASE_TIMEOUT", 10*time.Second),
		},
		Directions: DirectionsConfig{
			BaseURL: strings.TrimRight(getEnvOrDefault("ORS_BASE_URL", "https://api.openrouteservice.org"), "/"),
			APIKey:  os.Getenv("ORS_API_KEY"),
			Profile: getEnvOrDefault("ORS_PROFILE", "foot-walking"),
			Timeout: getDurationOrDefault("ORS_TIMEOUT", 15*time.Second),
		},
		Observability: ObservabilityConfig{
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "pubcrawl"),
			OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"),
			MetricsAddr:  getEnvOrDefault("METRICS_ADDR", ":9092"),
			PprofAddr:    getEnvOrDefault("PPROF_ADDR", ":6060"),
		},
		PubsCacheTTL: getDurationOrDefault("PUBS_CACHE_TTL", time.Minute),
		ServerPort:   getEnvOrDefault("SERVER_PORT", "8091"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		LogEncoding:  getEnvOrDefault("LOG_ENCODING", "json"),
	}

	if cfg.Repositories.Postgres.URL == "" && cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("DATABASE_URL or POSTGRES_PASSWORD environment variable is required")
	}

	return cfg, nil
}

// CrawlSecrets reports whether everything the crawl endpoint talks to is
// configured. The server still starts without them; the endpoint answers with a
// configuration error instead.
func (c *Config) CrawlSecrets() error {
	var missing []string
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.ServiceKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_KEY")
	}
	if c.Directions.APIKey == "" {
		missing = append(missing, "ORS_API_KEY")
	}
	if len(missing) == 0 {
		return nil
	}
	return models.NewConfiguration("Server configuration error.",
		fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", ")))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
