// Package types holds the wire types of the bdt API.
package types

import (
	"encoding/json"
	"time"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// Pagination describes a page of a list response.
type Pagination struct {
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// ListOptions are the paging and search parameters of list endpoints.
type ListOptions struct {
	Page   int
	Limit  int
	Search string
}

// SessionUser is the logged-in user as returned by verify and login.
type SessionUser struct {
	ID               int64    `json:"id"`
	Username         string   `json:"username"`
	Site             string   `json:"site"`
	DefaultServiceID *int64   `json:"default_service_id"`
	IsLock           bool     `json:"is_lock"`
	Permissions      []string `json:"permissions"`
}

// LoginResult is returned by the login endpoint.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *SessionUser `json:"user"`
}

// User is an account as seen by administrators.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Site             string    `json:"site"`
	DefaultServiceID *int64    `json:"default_service_id"`
	IsLock           bool      `json:"is_lock"`
	LastIP           *string   `json:"last_ip"`
	CreatedAt        time.Time `json:"created_at"`
	Permissions      []string  `json:"permissions,omitempty"`
}

// UserCreateRequest creates an account.
type UserCreateRequest struct {
	Username         string   `json:"username"`
	Password         string   `json:"password"`
	Site             string   `json:"site,omitempty"`
	DefaultServiceID *int64   `json:"default_service_id,omitempty"`
	IsLock           bool     `json:"is_lock"`
	Permissions      []string `json:"permissions,omitempty"`
}

// UserUpdateRequest changes the set fields of an account.
type UserUpdateRequest struct {
	Username         *string `json:"username,omitempty"`
	Password         *string `json:"password,omitempty"`
	Site             *string `json:"site,omitempty"`
	DefaultServiceID *int64  `json:"default_service_id,omitempty"`
	IsLock           *bool   `json:"is_lock,omitempty"`
}

// Service is a requesting or handling department.
type Service struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Category classifies the tickets of one service intervenant.
type Category struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	ServiceIntervenantID int64  `json:"service_intervenant_id"`
}

// CategoryRequest creates or renames a category.
type CategoryRequest struct {
	Name                 string `json:"name"`
	ServiceIntervenantID int64  `json:"service_intervenant_id"`
}

// NotificationEmail routes ticket events of a service to an address.
type NotificationEmail struct {
	ID                     int64  `json:"id"`
	Email                  string `json:"email"`
	ServiceIntervenantID   int64  `json:"service_intervenant_id"`
	ServiceIntervenantName string `json:"service_intervenant_name"`
	OnCreate               bool   `json:"on_create"`
	OnStatusChange         bool   `json:"on_status_change"`
}

// NotificationEmailRequest creates or updates a notification rule.
type NotificationEmailRequest struct {
	Email                string `json:"email"`
	ServiceIntervenantID int64  `json:"service_intervenant_id"`
	OnCreate             bool   `json:"on_create"`
	OnStatusChange       bool   `json:"on_status_change"`
}

// Ticket is a work order ("bon de travail").
type Ticket struct {
	ID                     int64      `json:"id"`
	CreatorID              int64      `json:"creator_id"`
	CreatorName            string     `json:"creator_name"`
	ServiceID              int64      `json:"service_id"`
	ServiceName            string     `json:"service_name"`
	ServiceIntervenantID   int64      `json:"service_intervenant_id"`
	ServiceIntervenantName string     `json:"service_intervenant_name"`
	Status                 string     `json:"status"`
	CategoryID             *int64     `json:"category_id"`
	CategoryName           *string    `json:"category_name"`
	IntervenantID          *int64     `json:"intervenant_id"`
	IntervenantName        *string    `json:"intervenant_name"`
	Location               string     `json:"location"`
	Details                string     `json:"details"`
	SeeBeforeIntervention  bool       `json:"see_before_intervention"`
	OriginTicketID         *int64     `json:"origin_ticket_id,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	TransferredAt          *time.Time `json:"transferred_at,omitempty"`
}

// StatusHistory is one change in a ticket's log.
type StatusHistory struct {
	ID                int64     `json:"id"`
	TicketID          int64     `json:"ticket_id"`
	EventType         string    `json:"event_type"`
	OldStatus         *string   `json:"old_status"`
	NewStatus         *string   `json:"new_status"`
	ActorID           int64     `json:"actor_id"`
	ActorName         string    `json:"actor_name"`
	TargetServiceID   *int64    `json:"target_service_id,omitempty"`
	TargetServiceName *string   `json:"target_service_name,omitempty"`
	TransferMode      *string   `json:"transfer_mode,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// TicketDetail is a ticket with its history.
type TicketDetail struct {
	Ticket  *Ticket          `json:"ticket"`
	History []*StatusHistory `json:"history"`
}

// TicketCreateRequest opens a ticket.
type TicketCreateRequest struct {
	ServiceID             int64  `json:"service_id"`
	ServiceIntervenantID  int64  `json:"service_intervenant_id"`
	Location              string `json:"location"`
	Details               string `json:"details"`
	SeeBeforeIntervention bool   `json:"see_before_intervention"`
}

// TicketUpdateRequest changes the set fields of a ticket.
type TicketUpdateRequest struct {
	Location              *string `json:"location,omitempty"`
	Details               *string `json:"details,omitempty"`
	SeeBeforeIntervention *bool   `json:"see_before_intervention,omitempty"`
}

// TicketListOptions filters ticket listings.
type TicketListOptions struct {
	ListOptions
	Status               string
	ServiceIntervenantID int64
	CategoryID           int64
	IntervenantID        int64
}

// StatusUpdateRequest asks for a status change.
type StatusUpdateRequest struct {
	NewStatus           string     `json:"newStatus"`
	CustomIntervenantID *int64     `json:"customIntervenantId,omitempty"`
	Message             string     `json:"message,omitempty"`
	StatusDate          *time.Time `json:"statusDate,omitempty"`
}

// StatusChangeResult is returned after a status change. Message is the
// resolution message when one was created.
type StatusChangeResult struct {
	Ticket  *Ticket          `json:"ticket"`
	History []*StatusHistory `json:"history"`
	Message *Message         `json:"message,omitempty"`
}

// TransferRequest moves or duplicates a ticket to another service.
type TransferRequest struct {
	TargetServiceID int64  `json:"targetServiceId"`
	Mode            string `json:"mode"`
}

// TransferResult is returned after a transfer.
type TransferResult struct {
	Ticket    *Ticket `json:"ticket"`
	Duplicate *Ticket `json:"duplicate,omitempty"`
	// Message is the confirmation text of the envelope.
	Message string `json:"-"`
}

// FilterOptions lists the values of the ticket filters.
type FilterOptions struct {
	Statuses            []string    `json:"statuses"`
	ServiceIntervenants []*Service  `json:"service_intervenants"`
	Categories          []*Category `json:"categories"`
	Intervenants        []*User     `json:"intervenants"`
}

// DashboardCounts are per-status counts of the managed services.
type DashboardCounts struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	Mine     int64            `json:"mine"`
}

// CleanupResult reports a cleanup count or deletion.
type CleanupResult struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
	// Message is the confirmation text of a deletion.
	Message string `json:"-"`
}

// Message is a chat entry on a ticket.
type Message struct {
	ID             int64     `json:"id"`
	TicketID       int64     `json:"ticket_id"`
	AuthorID       int64     `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	Body           string    `json:"message"`
	BodyHTML       string    `json:"message_html"`
	IsStatusChange bool      `json:"is_status_change"`
	StatusType     *string   `json:"status_type"`
	CreatedAt      time.Time `json:"created_at"`
	Age            string    `json:"age"`
	Images         []*Image  `json:"images"`
}

// MessageRequest posts a chat message.
type MessageRequest struct {
	TicketID int64   `json:"ticketId"`
	Message  string  `json:"message"`
	ImageIDs []int64 `json:"imageIds,omitempty"`
}

// MessageEvent is a frame of the ticket message websocket.
type MessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"data"`
}

// Image is a picture attached to a ticket.
type Image struct {
	ID          int64     `json:"id"`
	TicketID    int64     `json:"ticket_id"`
	MessageID   *int64    `json:"message_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// NamedCount is one bucket of a statistics breakdown.
type NamedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// MonthlyCount is the number of tickets created in a month.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

// Statistics summarizes the tickets of a period.
type Statistics struct {
	From                   string           `json:"from"`
	To                     string           `json:"to"`
	Total                  int64            `json:"total"`
	ByStatus               map[string]int64 `json:"by_status"`
	ByService              []NamedCount     `json:"by_service"`
	ByServiceIntervenant   []NamedCount     `json:"by_service_intervenant"`
	ByCategory             []NamedCount     `json:"by_category"`
	Monthly                []MonthlyCount   `json:"monthly"`
	AvgResolutionBusinessD float64          `json:"avg_resolution_business_days"`
}

// StatisticsOptions selects the statistics window. Dates are YYYY-MM-DD.
type StatisticsOptions struct {
	From                 string
	To                   string
	ServiceIntervenantID int64
}
