package workflow

import (
	"strings"
	"time"
)

// Actor is the user attempting an operation.
type Actor struct {
	UserID      int64
	Locked      bool
	Permissions []string
}

// TicketState is the subset of a ticket the workflow needs to decide.
type TicketState struct {
	Status               Status
	ServiceIntervenantID int64
	ServiceName          string
}

// Request describes a requested status change.
type Request struct {
	To            Status
	IntervenantID *int64
	Message       string
	StatusDate    *time.Time
}

// Result is the accepted outcome of a status change.
type Result struct {
	From          Status
	To            Status
	IntervenantID *int64
	// Message is the trimmed text to store alongside the change; empty when
	// none was given.
	Message   string
	ChangedAt time.Time
}

// RequiresIntervenant reports whether moving to s needs an assignee.
func RequiresIntervenant(s Status) bool { return s == StatusInProgress }

// RequiresMessage reports whether moving to s needs a resolution message.
func RequiresMessage(s Status) bool { return s == StatusResolved }

// Transition validates req against the ticket and actor and returns the
// change to apply. now is used both as the default change date and as the
// upper bound for a backdated StatusDate.
func Transition(t TicketState, req Request, actor Actor, now time.Time) (Result, error) {
	if !t.Status.Valid() {
		return Result{}, newError(KindUnknownStatus, "statut actuel inconnu: %q", t.Status)
	}
	if !req.To.Valid() {
		return Result{}, newError(KindUnknownStatus, "statut demandé inconnu: %q", req.To)
	}
	if !HasServicePermission(actor.Permissions, t.ServiceName) {
		return Result{}, newError(KindForbidden, "permission %s requise", ServicePermission(t.ServiceName))
	}
	if !CanTransition(t.Status, req.To) {
		if t.Status.Terminal() {
			return Result{}, newError(KindIllegal, "le bon est %s, aucun changement de statut possible", strings.ToLower(string(t.Status)))
		}
		return Result{}, newError(KindIllegal, "transition %s vers %s impossible", t.Status, req.To)
	}

	changedAt := now
	if req.StatusDate != nil && !req.StatusDate.IsZero() {
		if req.StatusDate.After(now) {
			return Result{}, newError(KindFutureDate, "la date de changement ne peut pas être dans le futur")
		}
		changedAt = *req.StatusDate
	}

	res := Result{
		From:      t.Status,
		To:        req.To,
		Message:   strings.TrimSpace(req.Message),
		ChangedAt: changedAt,
	}

	if RequiresIntervenant(req.To) {
		switch {
		case actor.Locked:
			id := actor.UserID
			res.IntervenantID = &id
		case req.IntervenantID == nil || *req.IntervenantID <= 0:
			return Result{}, newError(KindMissingIntervenant, "veuillez sélectionner un intervenant")
		default:
			id := *req.IntervenantID
			res.IntervenantID = &id
		}
	}

	if RequiresMessage(req.To) && res.Message == "" {
		return Result{}, newError(KindMissingMessage, "un message de résolution est requis")
	}

	return res, nil
}

// CanSubmit mirrors the enabled state of a status change form: it reports
// whether Transition would accept req, without permission or date checks
// that the form cannot influence.
func CanSubmit(current Status, req Request, actorLocked bool) bool {
	if !CanTransition(current, req.To) {
		return false
	}
	if RequiresIntervenant(req.To) && !actorLocked && (req.IntervenantID == nil || *req.IntervenantID <= 0) {
		return false
	}
	if RequiresMessage(req.To) && strings.TrimSpace(req.Message) == "" {
		return false
	}
	return true
}
