package crawl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/directions"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/geo"
)

const (
	MissingInputMessage  = "Missing coordinates or starting pub ID"
	InvalidOriginMessage = "Coordinates out of range"
	NotEnoughPubsMessage = "Not enough nearby unvisited pubs found to generate a crawl."
	candidatesPerCrawl   = 2
)

// NearbyPubFinder is the lookup capability: unvisited pubs around a point,
// nearest first.
type NearbyPubFinder interface {
	FindNearbyUnvisitedPubs(ctx context.Context, lon, lat float64) ([]models.NearbyPub, error)
}

// DirectionsProvider routes through coordinates in the order given.
type DirectionsProvider interface {
	WalkingRoute(ctx context.Context, coordinates [][2]float64) (*directions.Route, error)
}

// Request is a validated crawl request.
type Request struct {
	Origin     geo.Point
	StartPubID int64
}

// ParseRequest validates the raw query values.
func ParseRequest(lng, lat, startPubID string) (Request, error) {
	lng, lat, startPubID = strings.TrimSpace(lng), strings.TrimSpace(lat), strings.TrimSpace(startPubID)
	if lng == "" || lat == "" || startPubID == "" {
		return Request{}, models.NewValidation(MissingInputMessage)
	}

	lon, err := strconv.ParseFloat(lng, 64)
	if err != nil || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Request{}, models.NewValidation(MissingInputMessage)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || math.IsNaN(la) || math.IsInf(la, 0) {
		return Request{}, models.NewValidation(MissingInputMessage)
	}
	id, err := strconv.ParseInt(startPubID, 10, 64)
	if err != nil || id <= 0 {
		return Request{}, models.NewValidation(MissingInputMessage)
	}

	origin := geo.Point{Lon: lon, Lat: la}
	if !origin.Valid() {
		return Request{}, models.NewValidation(InvalidOriginMessage)
	}
	return Request{Origin: origin, StartPubID: id}, nil
}

type Service interface {
	Generate(ctx context.Context, req Request) (*models.CrawlResult, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	finder     NearbyPubFinder
	directions DirectionsProvider
	logger     *zap.Logger
}

func NewServiceImpl(finder NearbyPubFinder, directions DirectionsProvider, logger *zap.Logger) *ServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceImpl{
		finder:     finder,
		directions: directions,
		logger:     logger,
	}
}

// Generate builds a three-stop crawl: the start pub and the two nearest
// unvisited pubs returned by the lookup, walked in that order. Nothing is
// written and nothing is retried.
func (s *ServiceImpl) Generate(ctx context.Context, req Request) (*models.CrawlResult, error) {
	ctx, span := otel.Tracer("CrawlService").Start(ctx, "Generate", trace.WithAttributes(
		attribute.Float64("origin.lon", req.Origin.Lon),
		attribute.Float64("origin.lat", req.Origin.Lat),
		attribute.Int64("start_pub.id", req.StartPubID),
	))
	defer span.End()
	m := metrics.Get()

	lookupStart := time.Now()
	nearby, err := s.finder.FindNearbyUnvisitedPubs(ctx, req.Origin.Lon, req.Origin.Lat)
	m.NearbyLookupDuration.Record(ctx, time.Since(lookupStart).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby lookup failed")
		return nil, fmt.Errorf("finding nearby unvisited pubs: %w", err)
	}
	span.SetAttributes(attribute.Int("nearby.count", len(nearby)))

	candidates := pickCandidates(nearby, req.StartPubID, candidatesPerCrawl)
	if len(candidates) < candidatesPerCrawl {
		s.logger.Warn("Not enough nearby pubs for a crawl",
			zap.Int64("start_pub_id", req.StartPubID),
			zap.Int("nearby", len(nearby)),
			zap.Int("usable", len(candidates)))
		span.SetStatus(codes.Error, "not enough candidates")
		return nil, models.NewNotFound(NotEnoughPubsMessage)
	}

	coordinates := make([][2]float64, 0, len(candidates)+1)
	coordinates = append(coordinates, req.Origin.LonLat())
	pubIDs := make([]int64, 0, len(candidates)+1)
	pubIDs = append(pubIDs, req.StartPubID)
	for _, c := range candidates {
		coordinates = append(coordinates, [2]float64{c.Lon, c.Lat})
		pubIDs = append(pubIDs, c.ID)
	}

	routeStart := time.Now()
	route, err := s.directions.WalkingRoute(ctx, coordinates)
	m.DirectionsDuration.Record(ctx, time.Since(routeStart).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directions request failed")
		var perr *directions.ProviderError
		if errors.As(err, &perr) {
			return nil, models.NewUpstream(perr.Message, err)
		}
		return nil, fmt.Errorf("requesting walking route: %w", err)
	}

	s.logger.Info("Crawl generated",
		zap.Int64s("pub_ids", pubIDs),
		zap.Float64("duration_seconds", route.Duration))
	span.SetAttributes(attribute.Float64("route.duration", route.Duration))
	span.SetStatus(codes.Ok, "crawl generated")

	return &models.CrawlResult{
		Route:         route.Raw,
		TotalDuration: route.Duration,
		PubIDs:        pubIDs,
	}, nil
}

// pickCandidates keeps the lookup's order and takes the first n pubs that are
// not the start pub, not repeated and have usable coordinates.
func pickCandidates(nearby []models.NearbyPub, startPubID int64, n int) []models.NearbyPub {
	seen := map[int64]struct{}{startPubID: {}}
	picked := make([]models.NearbyPub, 0, n)
	for _, p := range nearby {
		if len(picked) == n {
			break
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		if !(geo.Point{Lon: p.Lon, Lat: p.Lat}).Valid() {
			continue
		}
		seen[p.ID] = struct{}{}
		picked = append(picked, p)
	}
	return picked
}
