package pubs

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
	"github.com/FACorreiaa/go-pubcrawl/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/geo"
)

const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	importBatchSize = 500
)

// DB is the part of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository interface {
	ListPubs(ctx context.Context) ([]models.Pub, error)
	GetPub(ctx context.Context, id int64) (*models.Pub, error)
	ListVisits(ctx context.Context, pubID *int64) ([]models.Visit, error)
	InsertVisit(ctx context.Context, pubID int64, visit models.NewVisit) (*models.Visit, error)
	InsertVisits(ctx context.Context, pubIDs []int64, at time.Time) ([]models.Visit, error)
	DeleteVisit(ctx context.Context, id uuid.UUID) error
	DeleteLatestVisit(ctx context.Context, pubID int64) (*models.Visit, error)
	CountProgress(ctx context.Context) (*models.Progress, error)
	ImportPubs(ctx context.Context, pubs []models.NewPub) (int64, error)
}

var _ Repository = (*RepositoryImpl)(nil)

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool DB
	psql   sq.StatementBuilderType
}

func NewRepository(pgpool DB, logger *zap.Logger) *RepositoryImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const pubColumns = `
	SELECT p.id, p.name, p.address, ST_AsText(p.geom),
	       COUNT(v.id), AVG(v.rating)::float8
	FROM pubs p
	LEFT JOIN visits v ON v.pub_id = p.id`

const visitColumns = "id, pub_id, visit_date, rating, comment, author"

func (r *RepositoryImpl) ListPubs(ctx context.Context) (pubs []models.Pub, err error) {
	defer r.observe(ctx, "list_pubs", time.Now(), &err)

	rows, err := r.pgpool.Query(ctx, pubColumns+`
	GROUP BY p.id
	ORDER BY p.name, p.id`)
	if err != nil {
		return nil, fmt.Errorf("querying pubs: %w", err)
	}
	defer rows.Close()

	pubs = []models.Pub{}
	for rows.Next() {
		p, err := scanPub(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pubs: %w", err)
	}
	return pubs, nil
}

func (r *RepositoryImpl) GetPub(ctx context.Context, id int64) (pub *models.Pub, err error) {
	defer r.observe(ctx, "get_pub", time.Now(), &err)

	row := r.pgpool.QueryRow(ctx, pubColumns+`
	WHERE p.id = $1
	GROUP BY p.id`, id)
	pub, err = scanPub(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewNotFound("Pub not found.")
	}
	return pub, err
}

// ListVisits returns visits newest first, optionally for a single pub.
func (r *RepositoryImpl) ListVisits(ctx context.Context, pubID *int64) (visits []models.Visit, err error) {
	defer r.observe(ctx, "list_visits", time.Now(), &err)

	q := r.psql.Select(visitColumns).From("visits").OrderBy("visit_date DESC", "id")
	if pubID != nil {
		q = q.Where(sq.Eq{"pub_id": *pubID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building visits query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying visits: %w", err)
	}
	return collectVisits(rows)
}

func (r *RepositoryImpl) InsertVisit(ctx context.Context, pubID int64, visit models.NewVisit) (v *models.Visit, err error) {
	defer r.observe(ctx, "insert_visit", time.Now(), &err)

	row := r.pgpool.QueryRow(ctx, `
		INSERT INTO visits (pub_id, rating, comment, author)
		VALUES ($1, $2, $3, $4)
		RETURNING `+visitColumns,
		pubID, visit.Rating, visit.Comment, visit.Author)
	v, err = scanVisit(row)
	if err != nil {
		return nil, mapWriteError(err, "Pub not found.")
	}
	return v, nil
}

// InsertVisits logs one visit per pub in a single statement, all stamped with at.
func (r *RepositoryImpl) InsertVisits(ctx context.Context, pubIDs []int64, at time.Time) (visits []models.Visit, err error) {
	defer r.observe(ctx, "insert_visits", time.Now(), &err)

	if len(pubIDs) == 0 {
		return []models.Visit{}, nil
	}
	q := r.psql.Insert("visits").Columns("pub_id", "visit_date")
	for _, id := range pubIDs {
		q = q.Values(id, at)
	}
	query, args, err := q.Suffix("RETURNING " + visitColumns).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building batch visit insert: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError(err, "One or more pubs not found.")
	}
	visits, err = collectVisits(rows)
	if err != nil {
		return nil, mapWriteError(err, "One or more pubs not found.")
	}
	return visits, nil
}

func (r *RepositoryImpl) DeleteVisit(ctx context.Context, id uuid.UUID) (err error) {
	defer r.observe(ctx, "delete_visit", time.Now(), &err)

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM visits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting visit %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFound("Visit not found.")
	}
	return nil
}

// DeleteLatestVisit removes the pub's newest visit and returns it.
func (r *RepositoryImpl) DeleteLatestVisit(ctx context.Context, pubID int64) (v *models.Visit, err error) {
	defer r.observe(ctx, "delete_latest_visit", time.Now(), &err)

	row := r.pgpool.QueryRow(ctx, `
		DELETE FROM visits
		WHERE id = (
			SELECT id FROM visits
			WHERE pub_id = $1
			ORDER BY visit_date DESC, id
			LIMIT 1
		)
		RETURNING `+visitColumns, pubID)
	v, err = scanVisit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewNotFound("No visits to remove for this pub.")
	}
	if err != nil {
		return nil, fmt.Errorf("deleting latest visit of pub %d: %w", pubID, err)
	}
	return v, nil
}

func (r *RepositoryImpl) CountProgress(ctx context.Context) (p *models.Progress, err error) {
	defer r.observe(ctx, "count_progress", time.Now(), &err)

	p = &models.Progress{}
	err = r.pgpool.QueryRow(ctx, `
		SELECT (SELECT COUNT(DISTINCT pub_id) FROM visits),
		       (SELECT COUNT(*) FROM pubs)`).Scan(&p.Visited, &p.Total)
	if err != nil {
		return nil, fmt.Errorf("counting progress: %w", err)
	}
	return p, nil
}

// ImportPubs inserts pubs in batches inside one transaction and returns the
// number of rows written.
func (r *RepositoryImpl) ImportPubs(ctx context.Context, pubs []models.NewPub) (inserted int64, err error) {
	defer r.observe(ctx, "import_pubs", time.Now(), &err)

	if len(pubs) == 0 {
		return 0, nil
	}
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}

	for start := 0; start < len(pubs); start += importBatchSize {
		end := min(start+importBatchSize, len(pubs))
		q := r.psql.Insert("pubs").Columns("name", "address", "geom")
		for _, p := range pubs[start:end] {
			q = q.Values(p.Name, p.Address, sq.Expr("ST_SetSRID(ST_MakePoint(?, ?), 4326)", p.Location.Lon, p.Location.Lat))
		}
		query, args, err := q.ToSql()
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("building pub insert: %w", err)
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("inserting pubs %d-%d: %w", start, end, err)
		}
		inserted += tag.RowsAffected()
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	r.logger.Info("Imported pubs", zap.Int64("inserted", inserted))
	return inserted, nil
}

func (r *RepositoryImpl) observe(ctx context.Context, query string, start time.Time, errp *error) {
	m := metrics.Get()
	attrs := metric.WithAttributes(attribute.String("query", query))
	m.DBQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if errp != nil && *errp != nil && !errors.Is(*errp, models.ErrNotFound) {
		m.DBQueryErrorsTotal.Add(ctx, 1, attrs)
		r.logger.Error("Database query failed", zap.String("query", query), zap.Error(*errp))
	}
}

func scanPub(row pgx.Row) (*models.Pub, error) {
	var (
		p   models.Pub
		wkt string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Address, &wkt, &p.VisitCount, &p.AverageRating); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning pub: %w", err)
	}
	loc, err := geo.ParseWKTPoint(wkt)
	if err != nil {
		return nil, fmt.Errorf("pub %d: %w", p.ID, err)
	}
	p.Location = loc
	return &p, nil
}

func scanVisit(row pgx.Row) (*models.Visit, error) {
	var v models.Visit
	if err := row.Scan(&v.ID, &v.PubID, &v.VisitDate, &v.Rating, &v.Comment, &v.Author); err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVisits(rows pgx.Rows) ([]models.Visit, error) {
	defer rows.Close()
	visits := []models.Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		visits = append(visits, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visits: %w", err)
	}
	return visits, nil
}

func mapWriteError(err error, notFoundMsg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return models.NewNotFound(notFoundMsg)
		case pgCheckViolation:
			return models.NewValidation("Visit violates a constraint: " + pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("writing visit: %w", err)
}
