package models

import "time"

// CreateTicketRequest is the body of POST /tickets.
type CreateTicketRequest struct {
	ServiceID             int64  `json:"service_id" binding:"required"`
	ServiceIntervenantID  int64  `json:"service_intervenant_id" binding:"required"`
	Location              string `json:"location" binding:"required"`
	Details               string `json:"details" binding:"required"`
	SeeBeforeIntervention bool   `json:"see_before_intervention"`
}

// UpdateTicketRequest is the body of PUT /tickets/{id}.
type UpdateTicketRequest struct {
	Location              *string `json:"location"`
	Details               *string `json:"details"`
	SeeBeforeIntervention *bool   `json:"see_before_intervention"`
}

// UpdateStatusRequest is the body of PUT /tickets/{id}?action=updateStatus.
type UpdateStatusRequest struct {
	NewStatus           string     `json:"newStatus" binding:"required"`
	CustomIntervenantID *int64     `json:"customIntervenantId"`
	Message             string     `json:"message"`
	StatusDate          *time.Time `json:"statusDate"`
}

// TransferRequest is the body of PUT /tickets/{id}?action=transferTicket.
type TransferRequest struct {
	TargetServiceID int64  `json:"targetServiceId" binding:"required"`
	Mode            string `json:"mode" binding:"required"`
}

// UpdateCategoryRequest is the body of PUT /tickets/{id}?action=update-category.
// A nil CategoryID clears the category.
type UpdateCategoryRequest struct {
	CategoryID *int64 `json:"categoryId"`
}

// CleanupRequest is the body of DELETE /tickets/cleanup.
type CleanupRequest struct {
	Period       string `json:"period" binding:"required"`
	Confirmation string `json:"confirmation"`
}

// CleanupResult reports a cleanup count or deletion.
type CleanupResult struct {
	Period string `json:"period"`
	Count  int64  `json:"count"`
}

// CreateMessageRequest is the body of POST /ticket-messages.
type CreateMessageRequest struct {
	TicketID int64   `json:"ticketId" binding:"required"`
	Message  string  `json:"message" binding:"required"`
	ImageIDs []int64 `json:"imageIds"`
}

// LoginRequest is the body of POST /user/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CreateUserRequest is the body of POST /user/create.
type CreateUserRequest struct {
	Username         string   `json:"username" binding:"required"`
	Password         string   `json:"password" binding:"required,min=6"`
	Site             string   `json:"site"`
	DefaultServiceID *int64   `json:"default_service_id"`
	IsLock           bool     `json:"is_lock"`
	Permissions      []string `json:"permissions"`
}

// UpdateUserRequest is the body of PUT /user/{id}.
type UpdateUserRequest struct {
	Username         *string `json:"username"`
	Password         *string `json:"password"`
	Site             *string `json:"site"`
	DefaultServiceID *int64  `json:"default_service_id"`
	IsLock           *bool   `json:"is_lock"`
}

// DefaultServiceRequest is the body of PUT /user/default-service.
type DefaultServiceRequest struct {
	ServiceID *int64 `json:"service_id"`
}

// PermissionsRequest is the body of PUT /permissions/{userId}.
type PermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// NamedRequest is the body of service and service intervenant writes.
type NamedRequest struct {
	Name string `json:"name" binding:"required"`
}

// CategoryRequest is the body of category writes.
type CategoryRequest struct {
	Name                 string `json:"name" binding:"required"`
	ServiceIntervenantID int64  `json:"service_intervenant_id" binding:"required"`
}

// NotificationEmailRequest is the body of notification rule writes.
type NotificationEmailRequest struct {
	Email                string `json:"email" binding:"required,email"`
	ServiceIntervenantID int64  `json:"service_intervenant_id" binding:"required"`
	OnCreate             bool   `json:"on_create"`
	OnStatusChange       bool   `json:"on_status_change"`
}
