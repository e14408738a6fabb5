package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/metrics"
)

// Runner manages and executes scheduled background tasks
type Runner struct {
	cron     *cron.Cron
	registry *TaskRegistry
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

// NewRunner creates a new task runner
func NewRunner(registry *TaskRegistry, m *metrics.Metrics, logger zerolog.Logger) *Runner {
	return &Runner{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		logger:   logger.With().Str("component", "runner").Logger(),
		metrics:  m,
	}
}

// Start schedules every registered task and blocks until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info().Msg("starting task runner")

	for _, task := range r.registry.All() {
		task := task
		name := task.Name()
		if task.Schedule() == "" {
			r.logger.Info().Str("task", name).Msg("task has no schedule, skipped")
			continue
		}
		r.logger.Info().Str("task", name).Str("schedule", task.Schedule()).Msg("registering task")

		_, err := r.cron.AddFunc(task.Schedule(), func() {
			r.executeTask(ctx, task)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule task %s: %w", name, err)
		}
	}

	r.cron.Start()
	<-ctx.Done()
	r.Stop()
	return nil
}

// RunOnce executes the named task immediately.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	task, ok := r.registry.Get(name)
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return r.executeTask(ctx, task)
}

// executeTask runs a single task with timeout and error handling
func (r *Runner) executeTask(ctx context.Context, task Task) error {
	r.wg.Add(1)
	defer r.wg.Done()

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout())
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "failure"
		r.logger.Error().Err(err).Str("task", task.Name()).Dur("duration", duration).Msg("task failed")
	} else {
		r.logger.Debug().Str("task", task.Name()).Dur("duration", duration).Msg("task completed")
	}
	if r.metrics != nil {
		r.metrics.TaskRuns.WithLabelValues(task.Name(), result).Inc()
	}
	return err
}

// Stop gracefully shuts down the runner
func (r *Runner) Stop() {
	stopped := r.cron.Stop()
	r.wg.Wait()
	<-stopped.Done()
	r.logger.Info().Msg("task runner stopped")
}
