package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlySeries(t *testing.T) {
	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 30, 10, 0, 0, 0, time.UTC),
	}

	series := monthlySeries(from, to, times)
	require.Len(t, series, 3)
	assert.Equal(t, "2026-01", series[0].Month)
	assert.Equal(t, int64(1), series[0].Count)
	assert.Equal(t, int64(0), series[1].Count)
	assert.Equal(t, int64(2), series[2].Count)
}

func TestStatisticsRepositoryCompute(t *testing.T) {
	db, mock := newMock(t, "postgres")
	repo := NewStatisticsRepository(db)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	named := func() *sqlmock.Rows { return sqlmock.NewRows([]string{"name", "count"}) }

	mock.ExpectQuery(`GROUP BY t.status`).
		WithArgs(from, to, int64(2)).
		WillReturnRows(named().AddRow("Ouvert", 3).AddRow("Résolu", 1))
	mock.ExpectQuery(`JOIN services s`).WillReturnRows(named().AddRow("Accueil", 4))
	mock.ExpectQuery(`JOIN service_intervenants si`).WillReturnRows(named().AddRow("Informatique", 4))
	mock.ExpectQuery(`JOIN ticket_categories c`).WillReturnRows(named())
	mock.ExpectQuery(`SELECT t.created_at FROM tickets t`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).
			AddRow(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)))

	stats, err := repo.Compute(context.Background(), from, to, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(0), stats.ByStatus["En cours"])
	assert.Equal(t, int64(1), stats.ByStatus["Résolu"])
	assert.Empty(t, stats.ByCategory)
	require.Len(t, stats.Monthly, 1)
	assert.Equal(t, int64(1), stats.Monthly[0].Count)
	assert.Equal(t, "2026-01-01", stats.From)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatisticsRepositoryResolutionSpans(t *testing.T) {
	db, mock := newMock(t, "postgres")
	repo := NewStatisticsRepository(db)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	created := from.Add(24 * time.Hour)

	mock.ExpectQuery(`h.event_type = \$1 AND h.new_status = \$2 WHERE t.created_at >= \$3 AND t.created_at < \$4 GROUP BY`).
		WithArgs("status", "Résolu", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "resolved_at"}).AddRow(created, created.Add(48*time.Hour)))

	spans, err := repo.ResolutionSpans(context.Background(), from, to, 0)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 48*time.Hour, spans[0].ResolvedAt.Sub(spans[0].CreatedAt))
}
