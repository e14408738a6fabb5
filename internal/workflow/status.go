// Package workflow holds the ticket status state machine shared by the API
// server and the Go SDK.
package workflow

import "strings"

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "Ouvert"
	StatusInProgress Status = "En cours"
	StatusResolved   Status = "Résolu"
	StatusClosed     Status = "Fermé"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusResolved, StatusClosed},
	StatusResolved:   {},
	StatusClosed:     {},
}

// ParseStatus converts a raw string into a Status. Accents and case are
// ignored so that "resolu" and "Résolu" resolve to the same status.
func ParseStatus(raw string) (Status, error) {
	key := Fold(raw)
	for _, s := range AllStatuses {
		if Fold(string(s)) == key {
			return s, nil
		}
	}
	return "", newError(KindUnknownStatus, "statut inconnu: %q", strings.TrimSpace(raw))
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func (s Status) String() string { return string(s) }

// NextStatuses returns the statuses reachable from s. Unknown statuses have
// no successors.
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
