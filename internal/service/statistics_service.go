package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/fr"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/bdt-io/bdt/internal/cache"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/workflow"
)

const (
	dateLayout         = "2006-01-02"
	statisticsCacheTTL = 30 * time.Minute
	defaultStatsMonths = 12
)

// StatisticsService computes the statistics page and its spreadsheet
// export. Results are cached per window.
type StatisticsService struct {
	stats    repository.StatisticsStore
	cache    cache.Store
	calendar *cal.BusinessCalendar
	log      zerolog.Logger
	clock    clock
}

func NewStatisticsService(repos Repositories, c cache.Store, log zerolog.Logger) *StatisticsService {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(fr.Holidays...)
	return &StatisticsService{
		stats:    repos.Statistics,
		cache:    c,
		calendar: calendar,
		log:      log.With().Str("component", "statistics").Logger(),
	}
}

// CanViewStatistics reports whether u may see statistics.
func CanViewStatistics(u *models.User) bool {
	return u != nil && workflow.HasAnyPermission(u.Permissions, []string{workflow.PermissionStatistics, workflow.PermissionAdmin})
}

// window resolves the requested dates. to is inclusive for callers and
// returned exclusive for queries. The default window covers the last
// twelve calendar months up to today.
func (s *StatisticsService) window(q models.StatisticsQuery) (time.Time, time.Time, error) {
	now := s.clock.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	to := today
	if strings.TrimSpace(q.To) != "" {
		t, err := time.Parse(dateLayout, strings.TrimSpace(q.To))
		if err != nil {
			return time.Time{}, time.Time{}, invalid("date de fin invalide: %s", q.To)
		}
		to = t
	}
	from := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(defaultStatsMonths - 1), 0)
	if strings.TrimSpace(q.From) != "" {
		t, err := time.Parse(dateLayout, strings.TrimSpace(q.From))
		if err != nil {
			return time.Time{}, time.Time{}, invalid("date de début invalide: %s", q.From)
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, invalid("la date de début doit précéder la date de fin")
	}
	return from, to.AddDate(0, 0, 1), nil
}

// Compute returns the statistics of the requested window.
func (s *StatisticsService) Compute(ctx context.Context, actor *models.User, q models.StatisticsQuery) (*models.Statistics, error) {
	if !CanViewStatistics(actor) {
		return nil, forbidden("permission %s requise", workflow.PermissionStatistics)
	}
	from, to, err := s.window(q)
	if err != nil {
		return nil, err
	}
	return s.cached(ctx, from, to, q.ServiceIntervenantID)
}

func (s *StatisticsService) cached(ctx context.Context, from, to time.Time, serviceIntervenantID int64) (*models.Statistics, error) {
	key := cache.StatisticsKey(from.Format(dateLayout), to.Format(dateLayout), serviceIntervenantID)
	if s.cache != nil {
		var hit models.Statistics
		if ok, err := s.cache.Get(ctx, key, &hit); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("statistics cache read failed")
		} else if ok {
			return &hit, nil
		}
	}
	stats, err := s.compute(ctx, from, to, serviceIntervenantID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, statisticsCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("statistics cache write failed")
		}
	}
	return stats, nil
}

func (s *StatisticsService) compute(ctx context.Context, from, to time.Time, serviceIntervenantID int64) (*models.Statistics, error) {
	stats, err := s.stats.Compute(ctx, from, to, serviceIntervenantID)
	if err != nil {
		return nil, err
	}
	stats.From = from.Format(dateLayout)
	stats.To = to.AddDate(0, 0, -1).Format(dateLayout)

	spans, err := s.stats.ResolutionSpans(ctx, from, to, serviceIntervenantID)
	if err != nil {
		return nil, err
	}
	if len(spans) > 0 {
		var total int
		for _, sp := range spans {
			total += s.BusinessDays(sp.CreatedAt, sp.ResolvedAt)
		}
		stats.AvgResolutionBusinessD = math.Round(float64(total)/float64(len(spans))*10) / 10
	}
	return stats, nil
}

// BusinessDays counts the working days after the day of start up to and
// including the day of end, skipping weekends and French public holidays.
// A ticket resolved on its creation day counts zero.
func (s *StatisticsService) BusinessDays(start, end time.Time) int {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	n := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if s.calendar.IsWorkday(d) {
			n++
		}
	}
	return n
}

// Warm recomputes the default window for all services so the statistics
// page answers from cache.
func (s *StatisticsService) Warm(ctx context.Context) error {
	from, to, err := s.window(models.StatisticsQuery{})
	if err != nil {
		return err
	}
	stats, err := s.compute(ctx, from, to, 0)
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	key := cache.StatisticsKey(from.Format(dateLayout), to.Format(dateLayout), 0)
	return s.cache.Set(ctx, key, stats, statisticsCacheTTL)
}

// Export writes the statistics of the window as an xlsx workbook and
// returns a suggested file name.
func (s *StatisticsService) Export(ctx context.Context, actor *models.User, q models.StatisticsQuery, w io.Writer) (string, error) {
	stats, err := s.Compute(ctx, actor, q)
	if err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	const summary = "Synthèse"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return "", err
	}
	rows := [][]interface{}{
		{"Du", stats.From},
		{"Au", stats.To},
		{"Total des bons", stats.Total},
		{"Délai moyen de résolution (jours ouvrés)", stats.AvgResolutionBusinessD},
	}
	if err := writeRows(f, summary, rows); err != nil {
		return "", err
	}

	statusRows := [][]interface{}{{"Statut", "Nombre"}}
	for _, st := range workflow.AllStatuses {
		statusRows = append(statusRows, []interface{}{string(st), stats.ByStatus[string(st)]})
	}
	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{"Par statut", statusRows},
		{"Par service", namedRows("Service demandeur", stats.ByService)},
		{"Par service intervenant", namedRows("Service intervenant", stats.ByServiceIntervenant)},
		{"Par catégorie", namedRows("Catégorie", stats.ByCategory)},
		{"Mensuel", monthlyRows(stats.Monthly)},
	}
	for _, sh := range sheets {
		if _, err := f.NewSheet(sh.name); err != nil {
			return "", err
		}
		if err := writeRows(f, sh.name, sh.rows); err != nil {
			return "", err
		}
	}

	if err := f.Write(w); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	return fmt.Sprintf("statistiques_%s_%s.xlsx", stats.From, stats.To), nil
}

func namedRows(header string, counts []models.NamedCount) [][]interface{} {
	rows := [][]interface{}{{header, "Nombre"}}
	for _, c := range counts {
		rows = append(rows, []interface{}{c.Name, c.Count})
	}
	return rows
}

func monthlyRows(months []models.MonthlyCount) [][]interface{} {
	rows := [][]interface{}{{"Mois", "Bons créés"}}
	for _, m := range months {
		rows = append(rows, []interface{}{m.Month, m.Count})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
