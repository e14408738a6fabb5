// Package tasks contains the scheduled jobs of the server.
package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/runner"
)

// Dispatcher delivers one batch of queued notification mails.
type Dispatcher interface {
	DispatchPending(ctx context.Context) (int, int, error)
}

// NotificationDispatchTask drains the notification queue.
type NotificationDispatchTask struct {
	dispatcher Dispatcher
	schedule   string
	logger     zerolog.Logger
}

// NewNotificationDispatchTask creates the notification-dispatch task
func NewNotificationDispatchTask(d Dispatcher, schedule string, logger zerolog.Logger) runner.Task {
	if schedule == "" {
		schedule = "0 * * * * *"
	}
	return &NotificationDispatchTask{dispatcher: d, schedule: schedule, logger: logger}
}

func (t *NotificationDispatchTask) Name() string           { return "notification-dispatch" }
func (t *NotificationDispatchTask) Schedule() string       { return t.schedule }
func (t *NotificationDispatchTask) Timeout() time.Duration { return 2 * time.Minute }

// Run sends pending mails.
func (t *NotificationDispatchTask) Run(ctx context.Context) error {
	sent, failed, err := t.dispatcher.DispatchPending(ctx)
	if sent > 0 || failed > 0 {
		t.logger.Info().Int("sent", sent).Int("failed", failed).Msg("notification queue processed")
	}
	return err
}
