package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	HTTPRequestsTotal      metric.Int64Counter
	HTTPRequestDuration    metric.Float64Histogram
	CrawlRequestsTotal     metric.Int64Counter
	DirectionsDuration     metric.Float64Histogram
	NearbyLookupDuration   metric.Float64Histogram
	VisitsLoggedTotal      metric.Int64Counter
	DBQueryDurationSeconds metric.Float64Histogram
	DBQueryErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
// Call it after the provider is installed; before that the instruments are no-ops.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("pubcrawl")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.CrawlRequestsTotal, err = meter.Int64Counter(
			"crawl_requests_total",
			metric.WithDescription("Crawl generation requests by outcome"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create crawl_requests_total: %v", err)
		}

		m.DirectionsDuration, err = meter.Float64Histogram(
			"directions_request_duration_seconds",
			metric.WithDescription("Latency of walking-directions requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create directions_request_duration_seconds: %v", err)
		}

		m.NearbyLookupDuration, err = meter.Float64Histogram(
			"nearby_lookup_duration_seconds",
			metric.WithDescription("Latency of the nearby unvisited pubs RPC"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create nearby_lookup_duration_seconds: %v", err)
		}

		m.VisitsLoggedTotal, err = meter.Int64Counter(
			"visits_logged_total",
			metric.WithDescription("Visits inserted"),
			metric.WithUnit("{visit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create visits_logged_total: %v", err)
		}

		m.DBQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DBQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, creating them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
