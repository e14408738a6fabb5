package models

import "time"

// Message is a chat entry on a ticket.
type Message struct {
	ID             int64     `json:"id" db:"id"`
	TicketID       int64     `json:"ticket_id" db:"ticket_id"`
	AuthorID       int64     `json:"author_id" db:"author_id"`
	AuthorName     string    `json:"author_name" db:"author_name"`
	Body           string    `json:"message" db:"body"`
	BodyHTML       string    `json:"message_html" db:"-"`
	IsStatusChange bool      `json:"is_status_change" db:"is_status_change"`
	StatusType     *string   `json:"status_type" db:"status_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	Age            string    `json:"age" db:"-"`
	Images         []*Image  `json:"images" db:"-"`
}

// Image is a picture attached to a ticket, optionally to one message.
type Image struct {
	ID          int64     `json:"id" db:"id"`
	TicketID    int64     `json:"ticket_id" db:"ticket_id"`
	MessageID   *int64    `json:"message_id" db:"message_id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	StorageKey  string    `json:"storage_key" db:"storage_key"`
	UploadedBy  int64     `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Data        []byte    `json:"-" db:"data"`
}
