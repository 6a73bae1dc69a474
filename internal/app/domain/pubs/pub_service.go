package pubs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/cache"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 1000
	MaxAuthorLength  = 100
	MaxBatchSize     = 50

	pubsCacheKey = "pubs:all"
)

type Service interface {
	ListPubs(ctx context.Context) ([]models.PubDetail, error)
	GetPub(ctx context.Context, id int64) (*models.PubDetail, error)
	LogVisit(ctx context.Context, pubID int64, visit models.NewVisit) (*models.Visit, error)
	LogVisits(ctx context.Context, pubIDs []int64) ([]models.Visit, error)
	RemoveVisit(ctx context.Context, id uuid.UUID) error
	RemoveLatestVisit(ctx context.Context, pubID int64) (*models.Visit, error)
	Progress(ctx context.Context) (*models.Progress, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	repo   Repository
	cache  *cache.Typed[[]models.PubDetail]
	now    func() time.Time
	logger *zap.Logger
}

// NewServiceImpl caches the pub listing for ttl. A non-positive ttl disables caching.
func NewServiceImpl(repo Repository, ttl time.Duration, logger *zap.Logger) *ServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceImpl{
		repo:   repo,
		cache:  cache.New[[]models.PubDetail](ttl, "pubs", logger),
		now:    time.Now,
		logger: logger,
	}
}

func (s *ServiceImpl) ListPubs(ctx context.Context) ([]models.PubDetail, error) {
	ctx, span := otel.Tracer("PubService").Start(ctx, "ListPubs")
	defer span.End()

	if cached, ok := s.cache.Get(pubsCacheKey); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	var (
		pubs   []models.Pub
		visits []models.Visit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pubs, err = s.repo.ListPubs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		visits, err = s.repo.ListVisits(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list pubs")
		return nil, err
	}

	byPub := make(map[int64][]models.Visit, len(pubs))
	for _, v := range visits {
		byPub[v.PubID] = append(byPub[v.PubID], v)
	}
	details := make([]models.PubDetail, 0, len(pubs))
	for _, p := range pubs {
		details = append(details, newPubDetail(p, byPub[p.ID]))
	}

	s.cache.Set(pubsCacheKey, details)
	span.SetAttributes(attribute.Int("pubs.count", len(details)))
	return details, nil
}

func (s *ServiceImpl) GetPub(ctx context.Context, id int64) (*models.PubDetail, error) {
	ctx, span := otel.Tracer("PubService").Start(ctx, "GetPub", trace.WithAttributes(
		attribute.Int64("pub.id", id),
	))
	defer span.End()

	var (
		pub    *models.Pub
		visits []models.Visit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pub, err = s.repo.GetPub(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		visits, err = s.repo.ListVisits(gctx, &id)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get pub")
		return nil, err
	}

	detail := newPubDetail(*pub, visits)
	return &detail, nil
}

func (s *ServiceImpl) LogVisit(ctx context.Context, pubID int64, visit models.NewVisit) (*models.Visit, error) {
	ctx, span := otel.Tracer("PubService").Start(ctx, "LogVisit", trace.WithAttributes(
		attribute.Int64("pub.id", pubID),
	))
	defer span.End()

	visit, err := normalizeVisit(visit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid visit")
		return nil, err
	}

	v, err := s.repo.InsertVisit(ctx, pubID, visit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to log visit")
		return nil, err
	}
	s.invalidate()
	metrics.Get().VisitsLoggedTotal.Add(ctx, 1)
	s.logger.Info("Visit logged", zap.Int64("pub_id", pubID), zap.String("visit_id", v.ID.String()))
	return v, nil
}

// LogVisits marks every pub of a crawl as visited now. Repeated ids are logged once.
func (s *ServiceImpl) LogVisits(ctx context.Context, pubIDs []int64) ([]models.Visit, error) {
	ctx, span := otel.Tracer("PubService").Start(ctx, "LogVisits", trace.WithAttributes(
		attribute.Int("pubs.requested", len(pubIDs)),
	))
	defer span.End()

	ids, err := normalizeBatch(pubIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid batch")
		return nil, err
	}

	visits, err := s.repo.InsertVisits(ctx, ids, s.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to log visits")
		return nil, err
	}
	s.invalidate()
	metrics.Get().VisitsLoggedTotal.Add(ctx, int64(len(visits)))
	s.logger.Info("Crawl marked visited", zap.Int64s("pub_ids", ids))
	return visits, nil
}

func (s *ServiceImpl) RemoveVisit(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("PubService").Start(ctx, "RemoveVisit", trace.WithAttributes(
		attribute.String("visit.id", id.String()),
	))
	defer span.End()

	if err := s.repo.DeleteVisit(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove visit")
		return err
	}
	s.invalidate()
	return nil
}

func (s *ServiceImpl) RemoveLatestVisit(ctx context.Context, pubID int64) (*models.Visit, error) {
	ctx, span := otel.Tracer("PubService").Start(ctx, "RemoveLatestVisit", trace.WithAttributes(
		attribute.Int64("pub.id", pubID),
	))
	defer span.End()

	v, err := s.repo.DeleteLatestVisit(ctx, pubID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove latest visit")
		return nil, err
	}
	s.invalidate()
	return v, nil
}

func (s *ServiceImpl) Progress(ctx context.Context) (*models.Progress, error) {
	ctx, span := otel.Tracer("PubService").Start(ctx, "Progress")
	defer span.End()

	p, err := s.repo.CountProgress(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count progress")
		return nil, err
	}
	return p, nil
}

func (s *ServiceImpl) invalidate() {
	s.cache.Delete(pubsCacheKey)
}

func newPubDetail(p models.Pub, visits []models.Visit) models.PubDetail {
	if visits == nil {
		visits = []models.Visit{}
	}
	return models.PubDetail{
		Pub:          p,
		IsVisited:    len(visits) > 0 || p.VisitCount > 0,
		VisitHistory: visits,
	}
}

func normalizeVisit(v models.NewVisit) (models.NewVisit, error) {
	if v.Rating != nil && (*v.Rating < MinRating || *v.Rating > MaxRating) {
		return v, models.NewValidation(fmt.Sprintf("Rating must be between %d and %d.", MinRating, MaxRating))
	}
	v.Comment = trimOptional(v.Comment)
	if v.Comment != nil && utf8.RuneCountInString(*v.Comment) > MaxCommentLength {
		return v, models.NewValidation(fmt.Sprintf("Comment must be at most %d characters.", MaxCommentLength))
	}
	v.Author = trimOptional(v.Author)
	if v.Author != nil && utf8.RuneCountInString(*v.Author) > MaxAuthorLength {
		return v, models.NewValidation(fmt.Sprintf("Author must be at most %d characters.", MaxAuthorLength))
	}
	return v, nil
}

func normalizeBatch(pubIDs []int64) ([]int64, error) {
	if len(pubIDs) == 0 {
		return nil, models.NewValidation("pubIds must not be empty.")
	}
	ids := make([]int64, 0, len(pubIDs))
	for _, id := range pubIDs {
		if id <= 0 {
			return nil, models.NewValidation(fmt.Sprintf("Invalid pub id %d.", id))
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) > MaxBatchSize {
		return nil, models.NewValidation(fmt.Sprintf("At most %d pubs can be marked at once.", MaxBatchSize))
	}
	return ids, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
