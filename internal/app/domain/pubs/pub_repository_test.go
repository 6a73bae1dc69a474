package pubs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
	"github.com/FACorreiaa/go-pubcrawl/internal/pkg/geo"
)

func ptr[T any](v T) *T { return &v }

var visitCols = []string{"id", "pub_id", "visit_date", "rating", "comment", "author"}

func newMockRepo(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewRepository(mockPool, zap.NewNop()), mockPool
}

func TestRepositoryListPubs(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	ctx := context.Background()

	rows := pgxmock.NewRows([]string{"id", "name", "address", "st_astext", "count", "avg"}).
		AddRow(int64(7), "The Old Firehouse", ptr("50 New North Rd"), "POINT(-3.53 50.72)", 2, ptr(4.5)).
		AddRow(int64(12), "The Imperial", (*string)(nil), "POINT(-3.531 50.721)", 0, (*float64)(nil))
	mockPool.ExpectQuery(`FROM pubs p\s+LEFT JOIN visits v ON v.pub_id = p.id\s+GROUP BY p.id`).WillReturnRows(rows)

	pubs, err := repo.ListPubs(ctx)

	require.NoError(t, err)
	require.Len(t, pubs, 2)
	assert.Equal(t, int64(7), pubs[0].ID)
	assert.Equal(t, "50 New North Rd", *pubs[0].Address)
	assert.Equal(t, geo.Point{Lon: -3.53, Lat: 50.72}, pubs[0].Location)
	assert.Equal(t, 2, pubs[0].VisitCount)
	assert.InDelta(t, 4.5, *pubs[0].AverageRating, 1e-9)
	assert.Nil(t, pubs[1].Address)
	assert.Nil(t, pubs[1].AverageRating)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryListPubsBadGeometry(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	rows := pgxmock.NewRows([]string{"id", "name", "address", "st_astext", "count", "avg"}).
		AddRow(int64(7), "The Old Firehouse", (*string)(nil), "LINESTRING(0 0, 1 1)", 0, (*float64)(nil))
	mockPool.ExpectQuery(`FROM pubs p`).WillReturnRows(rows)

	_, err := repo.ListPubs(context.Background())

	assert.ErrorIs(t, err, geo.ErrInvalidPoint)
}

func TestRepositoryGetPub(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		rows := pgxmock.NewRows([]string{"id", "name", "address", "st_astext", "count", "avg"}).
			AddRow(int64(7), "The Old Firehouse", (*string)(nil), "SRID=4326;POINT(-3.53 50.72)", 1, ptr(3.0))
		mockPool.ExpectQuery(`WHERE p.id = \$1`).WithArgs(int64(7)).WillReturnRows(rows)

		pub, err := repo.GetPub(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, "The Old Firehouse", pub.Name)
		assert.Equal(t, 1, pub.VisitCount)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`WHERE p.id = \$1`).WithArgs(int64(99)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "address", "st_astext", "count", "avg"}))

		pub, err := repo.GetPub(ctx, 99)

		assert.Nil(t, pub)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRepositoryListVisits(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	id := uuid.New()

	t.Run("filtered by pub", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`SELECT id, pub_id, visit_date, rating, comment, author FROM visits WHERE pub_id = \$1 ORDER BY visit_date DESC, id`).
			WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows(visitCols).AddRow(id, int64(7), now, ptr(5), ptr("great ale"), (*string)(nil)))

		visits, err := repo.ListVisits(ctx, ptr(int64(7)))

		require.NoError(t, err)
		require.Len(t, visits, 1)
		assert.Equal(t, id, visits[0].ID)
		assert.Equal(t, 5, *visits[0].Rating)
		assert.Equal(t, "great ale", *visits[0].Comment)
		assert.Nil(t, visits[0].Author)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("all pubs", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`FROM visits ORDER BY visit_date DESC, id`).
			WillReturnRows(pgxmock.NewRows(visitCols))

		visits, err := repo.ListVisits(ctx, nil)

		require.NoError(t, err)
		assert.Empty(t, visits)
		assert.NotNil(t, visits)
	})
}

func TestRepositoryInsertVisit(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("stored", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		id := uuid.New()
		mockPool.ExpectQuery(`INSERT INTO visits \(pub_id, rating, comment, author\)`).
			WithArgs(int64(7), ptr(4), (*string)(nil), ptr("sam")).
			WillReturnRows(pgxmock.NewRows(visitCols).AddRow(id, int64(7), now, ptr(4), (*string)(nil), ptr("sam")))

		v, err := repo.InsertVisit(ctx, 7, models.NewVisit{Rating: ptr(4), Author: ptr("sam")})

		require.NoError(t, err)
		assert.Equal(t, id, v.ID)
		assert.Equal(t, int64(7), v.PubID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unknown pub", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`INSERT INTO visits`).
			WithArgs(int64(404), (*int)(nil), (*string)(nil), (*string)(nil)).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "visits_pub_id_fkey"})

		v, err := repo.InsertVisit(ctx, 404, models.NewVisit{})

		assert.Nil(t, v)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.Equal(t, "Pub not found.", err.Error())
	})

	t.Run("rating rejected by check", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`INSERT INTO visits`).
			WithArgs(int64(7), ptr(9), (*string)(nil), (*string)(nil)).
			WillReturnError(&pgconn.PgError{Code: pgCheckViolation, ConstraintName: "visits_rating_check"})

		_, err := repo.InsertVisit(ctx, 7, models.NewVisit{Rating: ptr(9)})

		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestRepositoryInsertVisits(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC)

	t.Run("batch", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`INSERT INTO visits \(pub_id,visit_date\) VALUES \(\$1,\$2\),\(\$3,\$4\),\(\$5,\$6\) RETURNING`).
			WithArgs(int64(7), at, int64(12), at, int64(19), at).
			WillReturnRows(pgxmock.NewRows(visitCols).
				AddRow(uuid.New(), int64(7), at, (*int)(nil), (*string)(nil), (*string)(nil)).
				AddRow(uuid.New(), int64(12), at, (*int)(nil), (*string)(nil), (*string)(nil)).
				AddRow(uuid.New(), int64(19), at, (*int)(nil), (*string)(nil), (*string)(nil)))

		visits, err := repo.InsertVisits(ctx, []int64{7, 12, 19}, at)

		require.NoError(t, err)
		require.Len(t, visits, 3)
		assert.Equal(t, int64(19), visits[2].PubID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("empty is a no-op", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		visits, err := repo.InsertVisits(ctx, nil, at)

		require.NoError(t, err)
		assert.Empty(t, visits)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unknown pub", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`INSERT INTO visits`).
			WithArgs(int64(7), at).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		_, err := repo.InsertVisits(ctx, []int64{7}, at)

		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRepositoryDeleteVisit(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("deleted", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectExec(`DELETE FROM visits WHERE id = \$1`).WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.DeleteVisit(ctx, id))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectExec(`DELETE FROM visits WHERE id = \$1`).WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.DeleteVisit(ctx, id), models.ErrNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectExec(`DELETE FROM visits`).WithArgs(id).WillReturnError(errors.New("conn reset"))

		err := repo.DeleteVisit(ctx, id)

		require.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRepositoryDeleteLatestVisit(t *testing.T) {
	ctx := context.Background()

	t.Run("removes newest", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		id := uuid.New()
		now := time.Now().UTC()
		mockPool.ExpectQuery(`DELETE FROM visits\s+WHERE id = \(\s+SELECT id FROM visits\s+WHERE pub_id = \$1\s+ORDER BY visit_date DESC`).
			WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows(visitCols).AddRow(id, int64(7), now, (*int)(nil), (*string)(nil), (*string)(nil)))

		v, err := repo.DeleteLatestVisit(ctx, 7)

		require.NoError(t, err)
		assert.Equal(t, id, v.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("no visits", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectQuery(`DELETE FROM visits`).WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows(visitCols))

		_, err := repo.DeleteLatestVisit(ctx, 7)

		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestRepositoryCountProgress(t *testing.T) {
	repo, mockPool := newMockRepo(t)
	mockPool.ExpectQuery(`COUNT\(DISTINCT pub_id\)`).
		WillReturnRows(pgxmock.NewRows([]string{"visited", "total"}).AddRow(12, 40))

	p, err := repo.CountProgress(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &models.Progress{Visited: 12, Total: 40}, p)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryImportPubs(t *testing.T) {
	ctx := context.Background()
	pubs := []models.NewPub{
		{Name: "The Old Firehouse", Address: ptr("50 New North Rd"), Location: geo.Point{Lon: -3.53, Lat: 50.72}},
		{Name: "The Imperial", Location: geo.Point{Lon: -3.531, Lat: 50.721}},
	}

	t.Run("committed", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO pubs \(name,address,geom\) VALUES \(\$1,\$2,ST_SetSRID\(ST_MakePoint\(\$3, \$4\), 4326\)\),\(\$5,\$6,ST_SetSRID\(ST_MakePoint\(\$7, \$8\), 4326\)\)`).
			WithArgs("The Old Firehouse", ptr("50 New North Rd"), -3.53, 50.72, "The Imperial", (*string)(nil), -3.531, 50.721).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))
		mockPool.ExpectCommit()

		n, err := repo.ImportPubs(ctx, pubs)

		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolled back on failure", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)
		mockPool.ExpectBegin()
		mockPool.ExpectExec(`INSERT INTO pubs`).WillReturnError(errors.New("disk full"))
		mockPool.ExpectRollback()

		n, err := repo.ImportPubs(ctx, pubs)

		require.Error(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
