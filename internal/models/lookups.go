package models

import "time"

// Service is a requesting department ("service demandeur").
type Service struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ServiceIntervenant is a handling department ("service intervenant").
type ServiceIntervenant struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Category classifies tickets of one service intervenant.
type Category struct {
	ID                   int64     `json:"id" db:"id"`
	Name                 string    `json:"name" db:"name"`
	ServiceIntervenantID int64     `json:"service_intervenant_id" db:"service_intervenant_id"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// NotificationEmail routes ticket events of a service to an address.
type NotificationEmail struct {
	ID                     int64     `json:"id" db:"id"`
	Email                  string    `json:"email" db:"email"`
	ServiceIntervenantID   int64     `json:"service_intervenant_id" db:"service_intervenant_id"`
	ServiceIntervenantName string    `json:"service_intervenant_name" db:"service_intervenant_name"`
	OnCreate               bool      `json:"on_create" db:"on_create"`
	OnStatusChange         bool      `json:"on_status_change" db:"on_status_change"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
}

// QueuedEmail is an outgoing notification waiting for delivery.
type QueuedEmail struct {
	ID        int64      `db:"id"`
	Recipient string     `db:"recipient"`
	Subject   string     `db:"subject"`
	Body      string     `db:"body"`
	Attempts  int        `db:"attempts"`
	LastError *string    `db:"last_error"`
	CreatedAt time.Time  `db:"created_at"`
	SentAt    *time.Time `db:"sent_at"`
}

// ListQuery carries paging and search parameters of admin lists.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
	// ParentID scopes child lookups, such as categories of one service.
	ParentID int64
}

// Pagination describes a page of a list response.
type Pagination struct {
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
}

// NewPagination computes the page count for total rows.
func NewPagination(total int64, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, TotalPages: pages, Page: page, Limit: limit}
}

// Normalize clamps page and limit to sane values.
func (q *ListQuery) Normalize() {
	q.Page, q.Limit = NormalizePage(q.Page, q.Limit)
}

// NormalizePage applies default and maximum page sizes.
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// Offset returns the SQL offset of the page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}
