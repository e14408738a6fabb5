package tasks

import (
	"context"
	"time"

	"github.com/bdt-io/bdt/internal/runner"
)

// Warmer precomputes cached statistics.
type Warmer interface {
	Warm(ctx context.Context) error
}

// StatisticsWarmupTask refreshes the cached statistics of the default
// windows so the statistics page answers from cache.
type StatisticsWarmupTask struct {
	warmer   Warmer
	schedule string
}

// NewStatisticsWarmupTask creates the statistics-warmup task
func NewStatisticsWarmupTask(w Warmer, schedule string) runner.Task {
	if schedule == "" {
		schedule = "0 */15 * * * *"
	}
	return &StatisticsWarmupTask{warmer: w, schedule: schedule}
}

func (t *StatisticsWarmupTask) Name() string           { return "statistics-warmup" }
func (t *StatisticsWarmupTask) Schedule() string       { return t.schedule }
func (t *StatisticsWarmupTask) Timeout() time.Duration { return 5 * time.Minute }

func (t *StatisticsWarmupTask) Run(ctx context.Context) error {
	return t.warmer.Warm(ctx)
}
