package notifications

import (
	"context"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/metrics"
	"github.com/bdt-io/bdt/internal/models"
)

// Outbox is the persistent mail queue.
type Outbox interface {
	Pending(ctx context.Context, limit, maxAttempts int) ([]*models.QueuedEmail, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause string) error
}

// Dispatcher delivers queued mails.
type Dispatcher struct {
	outbox      Outbox
	provider    EmailProvider
	batchSize   int
	maxAttempts int
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

func NewDispatcher(outbox Outbox, provider EmailProvider, batchSize, maxAttempts int, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Dispatcher{
		outbox:      outbox,
		provider:    provider,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		metrics:     m,
		log:         log.With().Str("component", "dispatcher").Logger(),
	}
}

// DispatchPending sends one batch of pending mails and returns how many
// were delivered and how many failed.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, int, error) {
	pending, err := d.outbox.Pending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		return 0, 0, err
	}

	sent, failed := 0, 0
	for _, mail := range pending {
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}
		msg := EmailMessage{
			To:      []string{mail.Recipient},
			Subject: mail.Subject,
			Text:    mail.Body,
			HTML:    textToHTML(mail.Body),
		}
		if err := d.provider.Send(ctx, msg); err != nil {
			failed++
			d.count("failed")
			d.log.Warn().Err(err).Int64("id", mail.ID).Str("to", mail.Recipient).Int("attempt", mail.Attempts+1).Msg("notification delivery failed")
			if markErr := d.outbox.MarkFailed(ctx, mail.ID, err.Error()); markErr != nil {
				return sent, failed, markErr
			}
			continue
		}
		if err := d.outbox.MarkSent(ctx, mail.ID); err != nil {
			return sent, failed, err
		}
		sent++
		d.count("sent")
	}
	return sent, failed, nil
}

func (d *Dispatcher) count(result string) {
	if d.metrics != nil {
		d.metrics.NotificationsSent.WithLabelValues(result).Inc()
	}
}

func textToHTML(text string) string {
	escaped := html.EscapeString(strings.TrimSpace(text))
	return "<p>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</p>"
}
