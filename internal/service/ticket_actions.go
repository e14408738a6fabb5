package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/utils"
	"github.com/bdt-io/bdt/internal/workflow"
)

// UpdateStatus moves a ticket along the status workflow. The returned
// result carries the message created with the change, if any, which is
// also pushed to the ticket's live subscribers.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *models.User, id int64, req *models.UpdateStatusRequest) (*models.StatusChangeResult, error) {
	to, err := workflow.ParseStatus(req.NewStatus)
	if err != nil {
		return nil, err
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := workflow.Transition(t.WorkflowState(), workflow.Request{
		To:            to,
		IntervenantID: req.CustomIntervenantID,
		Message:       utils.CleanText(req.Message),
		StatusDate:    req.StatusDate,
	}, actorOf(actor), s.now())
	if err != nil {
		return nil, err
	}
	if res.IntervenantID != nil && *res.IntervenantID != actor.ID {
		if err := s.checkIntervenant(ctx, *res.IntervenantID, t.ServiceIntervenantName); err != nil {
			return nil, err
		}
	}

	msg, err := s.tickets.ApplyStatusChange(ctx, repository.StatusChange{
		TicketID:      t.ID,
		From:          string(res.From),
		To:            string(res.To),
		ActorID:       actor.ID,
		IntervenantID: res.IntervenantID,
		Message:       res.Message,
		ChangedAt:     res.ChangedAt,
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, newError(ErrConflict, "le statut du bon a changé entre-temps, veuillez recharger")
	}
	if err != nil {
		return nil, fmt.Errorf("apply status change: %w", err)
	}

	updated, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	history, err := s.tickets.History(ctx, id)
	if err != nil {
		return nil, err
	}

	if msg != nil {
		msg.AuthorName = actor.Username
		msg.BodyHTML = s.sanitizer.RenderMarkdown(msg.Body)
		msg.Age = utils.RelativeAge(msg.CreatedAt, s.now())
		msg.Images = []*models.Image{}
		s.publisher.Publish(id, msg)
	}

	s.metrics.StatusChanges.WithLabelValues(string(res.To)).Inc()
	if err := s.notifier.StatusChanged(ctx, updated, string(res.From), string(res.To), actor.Username, res.Message); err != nil {
		s.log.Error().Err(err).Int64("ticket_id", id).Msg("failed to queue status notifications")
	}
	s.invalidateStatistics(ctx)
	s.log.Info().Int64("ticket_id", id).Str("from", string(res.From)).Str("to", string(res.To)).
		Int64("actor_id", actor.ID).Msg("ticket status changed")

	return &models.StatusChangeResult{Ticket: updated, History: history, Message: msg}, nil
}

// checkIntervenant verifies the chosen technician may handle the service.
func (s *TicketService) checkIntervenant(ctx context.Context, userID int64, serviceName string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("intervenant inconnu")
		}
		return err
	}
	perms, err := s.users.Permissions(ctx, userID)
	if err != nil {
		return err
	}
	if !workflow.HasServicePermission(perms, serviceName) {
		return invalid("l'intervenant n'a pas la permission %s", workflow.ServicePermission(serviceName))
	}
	return nil
}

// Transfer moves or duplicates a ticket to another service intervenant and
// returns the confirmation message to display.
func (s *TicketService) Transfer(ctx context.Context, actor *models.User, id int64, req *models.TransferRequest) (*models.TransferResult, string, error) {
	mode, err := workflow.ParseTransferMode(req.Mode)
	if err != nil {
		return nil, "", err
	}
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if err := workflow.CheckTransfer(t.WorkflowState(), req.TargetServiceID, mode, actorOf(actor)); err != nil {
		return nil, "", err
	}
	targetName, err := lookupName(ctx, s.serviceIntervenants, req.TargetServiceID, "service cible")
	if err != nil {
		return nil, "", err
	}

	dup, err := s.tickets.Transfer(ctx, repository.TransferChange{
		TicketID:        id,
		TargetServiceID: req.TargetServiceID,
		Mode:            mode,
		ActorID:         actor.ID,
		At:              s.now(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("transfer ticket %d: %w", id, err)
	}

	out := &models.TransferResult{}
	if out.Ticket, err = s.tickets.GetByID(ctx, id); err != nil {
		return nil, "", err
	}
	if dup != nil {
		if out.Duplicate, err = s.tickets.GetByID(ctx, dup.ID); err != nil {
			return nil, "", err
		}
		if err := s.notifier.TicketCreated(ctx, out.Duplicate); err != nil {
			s.log.Error().Err(err).Int64("ticket_id", dup.ID).Msg("failed to queue creation notifications")
		}
	}

	s.metrics.Transfers.WithLabelValues(string(mode)).Inc()
	s.invalidateStatistics(ctx)
	s.log.Info().Int64("ticket_id", id).Int64("target", req.TargetServiceID).Str("mode", string(mode)).
		Int64("actor_id", actor.ID).Msg("ticket transferred")
	return out, workflow.TransferMessage(mode, targetName), nil
}

// UpdateCategory sets or clears the category of a ticket. The category must
// belong to the ticket's service intervenant.
func (s *TicketService) UpdateCategory(ctx context.Context, actor *models.User, id int64, categoryID *int64) (*models.Ticket, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canHandle(actor, t) {
		return nil, forbidden("permission %s requise", workflow.ServicePermission(t.ServiceIntervenantName))
	}
	if categoryID != nil {
		c, err := s.categories.GetByID(ctx, *categoryID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("catégorie inconnue")
		}
		if err != nil {
			return nil, err
		}
		if c.ServiceIntervenantID != t.ServiceIntervenantID {
			return nil, invalid("la catégorie %s n'appartient pas au service %s", c.Name, t.ServiceIntervenantName)
		}
	}
	if err := s.tickets.UpdateCategory(ctx, id, categoryID, actor.ID); err != nil {
		return nil, err
	}
	s.invalidateStatistics(ctx)
	return s.tickets.GetByID(ctx, id)
}

// CleanupCount returns how many tickets a cleanup over rawPeriod removes.
func (s *TicketService) CleanupCount(ctx context.Context, actor *models.User, rawPeriod string) (*models.CleanupResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	p, err := workflow.ParseCleanupPeriod(rawPeriod)
	if err != nil {
		return nil, err
	}
	n, err := s.tickets.CountOlderThan(ctx, p.Cutoff(s.now()))
	if err != nil {
		return nil, err
	}
	return &models.CleanupResult{Period: string(p), Count: n}, nil
}

// Cleanup deletes every ticket older than the requested period. The
// confirmation phrase is checked again here.
func (s *TicketService) Cleanup(ctx context.Context, actor *models.User, req *models.CleanupRequest) (*models.CleanupResult, string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, "", err
	}
	p, err := workflow.CheckCleanup(req.Period, req.Confirmation)
	if err != nil {
		return nil, "", err
	}
	cutoff := p.Cutoff(s.now())
	n, err := s.tickets.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return nil, "", err
	}
	s.metrics.CleanupDeleted.Add(float64(n))
	s.invalidateStatistics(ctx)
	s.log.Warn().Str("period", string(p)).Time("cutoff", cutoff).Int64("deleted", n).
		Int64("actor_id", actor.ID).Msg("tickets cleaned up")
	return &models.CleanupResult{Period: string(p), Count: n}, workflow.CleanupMessage(n), nil
}
