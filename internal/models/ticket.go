package models

import (
	"time"

	"github.com/bdt-io/bdt/internal/workflow"
)

// Ticket represents a work order ("bon de travail").
type Ticket struct {
	ID                     int64      `json:"id" db:"id"`
	CreatorID              int64      `json:"creator_id" db:"creator_id"`
	CreatorName            string     `json:"creator_name" db:"creator_name"`
	ServiceID              int64      `json:"service_id" db:"service_id"`
	ServiceName            string     `json:"service_name" db:"service_name"`
	ServiceIntervenantID   int64      `json:"service_intervenant_id" db:"service_intervenant_id"`
	ServiceIntervenantName string     `json:"service_intervenant_name" db:"service_intervenant_name"`
	Status                 string     `json:"status" db:"status"`
	CategoryID             *int64     `json:"category_id" db:"category_id"`
	CategoryName           *string    `json:"category_name" db:"category_name"`
	IntervenantID          *int64     `json:"intervenant_id" db:"intervenant_id"`
	IntervenantName        *string    `json:"intervenant_name" db:"intervenant_name"`
	Location               string     `json:"location" db:"location"`
	Details                string     `json:"details" db:"details"`
	SeeBeforeIntervention  bool       `json:"see_before_intervention" db:"see_before_intervention"`
	OriginTicketID         *int64     `json:"origin_ticket_id,omitempty" db:"origin_ticket_id"`
	CreatedAt              time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
	TransferredAt          *time.Time `json:"transferred_at,omitempty" db:"transferred_at"`
}

// History event types.
const (
	HistoryCreate   = "create"
	HistoryStatus   = "status"
	HistoryTransfer = "transfer"
	HistoryCategory = "category"
)

// StatusHistory is an immutable log row of a ticket change.
type StatusHistory struct {
	ID                int64     `json:"id" db:"id"`
	TicketID          int64     `json:"ticket_id" db:"ticket_id"`
	EventType         string    `json:"event_type" db:"event_type"`
	OldStatus         *string   `json:"old_status" db:"old_status"`
	NewStatus         *string   `json:"new_status" db:"new_status"`
	ActorID           int64     `json:"actor_id" db:"actor_id"`
	ActorName         string    `json:"actor_name" db:"actor_name"`
	TargetServiceID   *int64    `json:"target_service_id,omitempty" db:"target_service_id"`
	TargetServiceName *string   `json:"target_service_name,omitempty" db:"target_service_name"`
	TransferMode      *string   `json:"transfer_mode,omitempty" db:"transfer_mode"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// TicketDetail bundles a ticket with its history.
type TicketDetail struct {
	Ticket  *Ticket          `json:"ticket"`
	History []*StatusHistory `json:"history"`
}

// StatusChangeResult is returned after a status update. Message is set
// when the change carried a text, such as a resolution message.
type StatusChangeResult struct {
	Ticket  *Ticket          `json:"ticket"`
	History []*StatusHistory `json:"history"`
	Message *Message         `json:"message,omitempty"`
}

// TransferResult is returned after a transfer. Duplicate is set for the
// transfer_and_keep mode.
type TransferResult struct {
	Ticket    *Ticket `json:"ticket"`
	Duplicate *Ticket `json:"duplicate,omitempty"`
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	Page                 int
	Limit                int
	Search               string
	Status               string
	ServiceIntervenantID int64
	CategoryID           int64
	IntervenantID        int64
	CreatorID            int64
	// ServiceIntervenantIDs restricts results to these services when non-nil.
	ServiceIntervenantIDs []int64
}

// FilterOptions lists the values available to the ticket filters.
type FilterOptions struct {
	Statuses            []string              `json:"statuses"`
	ServiceIntervenants []*ServiceIntervenant `json:"service_intervenants"`
	Categories          []*Category           `json:"categories"`
	Intervenants        []*User               `json:"intervenants"`
}

// DashboardCounts are per-status counts for the caller's services.
type DashboardCounts struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	Mine     int64            `json:"mine"`
}

// WorkflowState returns the view of t used by the status workflow.
func (t *Ticket) WorkflowState() workflow.TicketState {
	return workflow.TicketState{
		Status:               workflow.Status(t.Status),
		ServiceIntervenantID: t.ServiceIntervenantID,
		ServiceName:          t.ServiceIntervenantName,
	}
}

// IsClosed reports whether t reached a terminal status.
func (t *Ticket) IsClosed() bool {
	return workflow.Status(t.Status).Terminal()
}
