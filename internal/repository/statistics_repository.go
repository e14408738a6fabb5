package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/workflow"
)

// ResolutionSpan is the creation and first resolution time of one ticket.
type ResolutionSpan struct {
	CreatedAt  time.Time `db:"created_at"`
	ResolvedAt time.Time `db:"resolved_at"`
}

// StatisticsRepository runs the aggregate queries of the statistics page.
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new statistics repository.
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

func statsWindow(from, to time.Time, serviceIntervenantID int64) (string, []interface{}) {
	where := " WHERE t.created_at >= ? AND t.created_at < ?"
	args := []interface{}{from, to}
	if serviceIntervenantID > 0 {
		where += " AND t.service_intervenant_id = ?"
		args = append(args, serviceIntervenantID)
	}
	return where, args
}

// Compute aggregates tickets created in [from, to). The resolution average
// is left to the caller, which owns the business-day calendar.
func (r *StatisticsRepository) Compute(ctx context.Context, from, to time.Time, serviceIntervenantID int64) (*models.Statistics, error) {
	where, args := statsWindow(from, to, serviceIntervenantID)
	stats := &models.Statistics{
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
		ByStatus: map[string]int64{},
	}

	byStatus := []models.NamedCount{}
	if err := r.db.SelectContext(ctx, &byStatus, r.db.Rebind(
		`SELECT t.status AS name, COUNT(*) AS count FROM tickets t`+where+` GROUP BY t.status`), args...); err != nil {
		return nil, fmt.Errorf("statistics by status: %w", err)
	}
	for _, s := range workflow.AllStatuses {
		stats.ByStatus[string(s)] = 0
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Name] = row.Count
		stats.Total += row.Count
	}

	breakdowns := []struct {
		dst   *[]models.NamedCount
		query string
	}{
		{&stats.ByService, `SELECT s.name AS name, COUNT(*) AS count FROM tickets t
			JOIN services s ON s.id = t.service_id` + where + ` GROUP BY s.name ORDER BY count DESC, s.name`},
		{&stats.ByServiceIntervenant, `SELECT si.name AS name, COUNT(*) AS count FROM tickets t
			JOIN service_intervenants si ON si.id = t.service_intervenant_id` + where + ` GROUP BY si.name ORDER BY count DESC, si.name`},
		{&stats.ByCategory, `SELECT c.name AS name, COUNT(*) AS count FROM tickets t
			JOIN ticket_categories c ON c.id = t.category_id` + where + ` GROUP BY c.name ORDER BY count DESC, c.name`},
	}
	for _, b := range breakdowns {
		rows := []models.NamedCount{}
		if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(b.query), args...); err != nil {
			return nil, fmt.Errorf("statistics breakdown: %w", err)
		}
		*b.dst = rows
	}

	// Month bucketing differs per dialect, so it happens here.
	created := []time.Time{}
	if err := r.db.SelectContext(ctx, &created, r.db.Rebind(`SELECT t.created_at FROM tickets t`+where), args...); err != nil {
		return nil, fmt.Errorf("statistics monthly: %w", err)
	}
	stats.Monthly = monthlySeries(from, to, created)
	return stats, nil
}

// monthlySeries counts times per calendar month, emitting every month of
// [from, to) even when empty.
func monthlySeries(from, to time.Time, times []time.Time) []models.MonthlyCount {
	counts := make(map[string]int64, len(times))
	for _, t := range times {
		counts[t.Format("2006-01")]++
	}
	series := []models.MonthlyCount{}
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	for m := start; m.Before(to); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		series = append(series, models.MonthlyCount{Month: key, Count: counts[key]})
	}
	return series
}

// ResolutionSpans returns creation and first resolution times of tickets
// created in [from, to) that reached Résolu.
func (r *StatisticsRepository) ResolutionSpans(ctx context.Context, from, to time.Time, serviceIntervenantID int64) ([]ResolutionSpan, error) {
	where, args := statsWindow(from, to, serviceIntervenantID)
	args = append([]interface{}{models.HistoryStatus, string(workflow.StatusResolved)}, args...)
	spans := []ResolutionSpan{}
	err := r.db.SelectContext(ctx, &spans, r.db.Rebind(`
		SELECT t.created_at AS created_at, MIN(h.created_at) AS resolved_at
		FROM tickets t
		JOIN ticket_status_history h ON h.ticket_id = t.id AND h.event_type = ? AND h.new_status = ?`+
		where+` GROUP BY t.id, t.created_at`), args...)
	if err != nil {
		return nil, fmt.Errorf("resolution spans: %w", err)
	}
	return spans, nil
}
