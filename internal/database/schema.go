package database

import "strings"

type columnTypes struct {
	ID, Ref, Bool, Time, Blob, Text string
}

var dialectTypes = map[Dialect]columnTypes{
	Postgres: {ID: "BIGSERIAL PRIMARY KEY", Ref: "BIGINT", Bool: "BOOLEAN", Time: "TIMESTAMP", Blob: "BYTEA", Text: "TEXT"},
	MySQL:    {ID: "BIGINT AUTO_INCREMENT PRIMARY KEY", Ref: "BIGINT", Bool: "BOOLEAN", Time: "DATETIME", Blob: "LONGBLOB", Text: "TEXT"},
	SQLite:   {ID: "INTEGER PRIMARY KEY AUTOINCREMENT", Ref: "INTEGER", Bool: "BOOLEAN", Time: "DATETIME", Blob: "BLOB", Text: "TEXT"},
}

// Migration is one versioned schema step.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// render substitutes column type placeholders for d.
func (m Migration) render(d Dialect) []string {
	t := dialectTypes[d]
	r := strings.NewReplacer(
		"{{id}}", t.ID,
		"{{ref}}", t.Ref,
		"{{bool}}", t.Bool,
		"{{time}}", t.Time,
		"{{blob}}", t.Blob,
		"{{text}}", t.Text,
	)
	out := make([]string, len(m.Statements))
	for i, s := range m.Statements {
		out[i] = r.Replace(s)
	}
	return out
}

// Migrations is the ordered schema history.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "lookups_and_users",
		Statements: []string{
			`CREATE TABLE services (
				id {{id}},
				name VARCHAR(255) NOT NULL UNIQUE,
				created_at {{time}} NOT NULL
			)`,
			`CREATE TABLE service_intervenants (
				id {{id}},
				name VARCHAR(255) NOT NULL UNIQUE,
				created_at {{time}} NOT NULL
			)`,
			`CREATE TABLE ticket_categories (
				id {{id}},
				name VARCHAR(255) NOT NULL,
				service_intervenant_id {{ref}} NOT NULL REFERENCES service_intervenants(id),
				created_at {{time}} NOT NULL,
				UNIQUE (service_intervenant_id, name)
			)`,
			`CREATE TABLE users (
				id {{id}},
				username VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				site VARCHAR(255) NOT NULL DEFAULT '',
				default_service_id {{ref}} NULL REFERENCES services(id),
				is_lock {{bool}} NOT NULL DEFAULT FALSE,
				last_ip VARCHAR(64) NULL,
				created_at {{time}} NOT NULL,
				updated_at {{time}} NOT NULL
			)`,
			`CREATE TABLE user_permissions (
				user_id {{ref}} NOT NULL REFERENCES users(id),
				permission VARCHAR(255) NOT NULL,
				PRIMARY KEY (user_id, permission)
			)`,
		},
	},
	{
		Version: 2,
		Name:    "tickets",
		Statements: []string{
			`CREATE TABLE tickets (
				id {{id}},
				creator_id {{ref}} NOT NULL REFERENCES users(id),
				service_id {{ref}} NOT NULL REFERENCES services(id),
				service_intervenant_id {{ref}} NOT NULL REFERENCES service_intervenants(id),
				status VARCHAR(32) NOT NULL,
				category_id {{ref}} NULL REFERENCES ticket_categories(id),
				intervenant_id {{ref}} NULL REFERENCES users(id),
				location VARCHAR(255) NOT NULL,
				details {{text}} NOT NULL,
				see_before_intervention {{bool}} NOT NULL DEFAULT FALSE,
				origin_ticket_id {{ref}} NULL,
				created_at {{time}} NOT NULL,
				updated_at {{time}} NOT NULL,
				transferred_at {{time}} NULL
			)`,
			`CREATE INDEX idx_tickets_service_status ON tickets (service_intervenant_id, status)`,
			`CREATE INDEX idx_tickets_created_at ON tickets (created_at)`,
			`CREATE INDEX idx_tickets_creator ON tickets (creator_id)`,
			`CREATE TABLE ticket_status_history (
				id {{id}},
				ticket_id {{ref}} NOT NULL REFERENCES tickets(id),
				event_type VARCHAR(32) NOT NULL,
				old_status VARCHAR(32) NULL,
				new_status VARCHAR(32) NULL,
				actor_id {{ref}} NOT NULL REFERENCES users(id),
				target_service_id {{ref}} NULL,
				transfer_mode VARCHAR(32) NULL,
				created_at {{time}} NOT NULL
			)`,
			`CREATE INDEX idx_history_ticket ON ticket_status_history (ticket_id)`,
		},
	},
	{
		Version: 3,
		Name:    "messages_and_images",
		Statements: []string{
			`CREATE TABLE ticket_messages (
				id {{id}},
				ticket_id {{ref}} NOT NULL REFERENCES tickets(id),
				author_id {{ref}} NOT NULL REFERENCES users(id),
				body {{text}} NOT NULL,
				is_status_change {{bool}} NOT NULL DEFAULT FALSE,
				status_type VARCHAR(32) NULL,
				created_at {{time}} NOT NULL
			)`,
			`CREATE INDEX idx_messages_ticket ON ticket_messages (ticket_id)`,
			`CREATE TABLE ticket_images (
				id {{id}},
				ticket_id {{ref}} NOT NULL REFERENCES tickets(id),
				message_id {{ref}} NULL REFERENCES ticket_messages(id),
				filename VARCHAR(255) NOT NULL,
				content_type VARCHAR(128) NOT NULL,
				size {{ref}} NOT NULL,
				storage_key VARCHAR(64) NOT NULL UNIQUE,
				uploaded_by {{ref}} NOT NULL REFERENCES users(id),
				data {{blob}} NOT NULL,
				created_at {{time}} NOT NULL
			)`,
			`CREATE INDEX idx_images_ticket ON ticket_images (ticket_id)`,
		},
	},
	{
		Version: 4,
		Name:    "notifications",
		Statements: []string{
			`CREATE TABLE notification_emails (
				id {{id}},
				email VARCHAR(255) NOT NULL,
				service_intervenant_id {{ref}} NOT NULL REFERENCES service_intervenants(id),
				on_create {{bool}} NOT NULL DEFAULT TRUE,
				on_status_change {{bool}} NOT NULL DEFAULT FALSE,
				created_at {{time}} NOT NULL,
				UNIQUE (email, service_intervenant_id)
			)`,
			`CREATE TABLE notification_queue (
				id {{id}},
				recipient VARCHAR(255) NOT NULL,
				subject VARCHAR(255) NOT NULL,
				body {{text}} NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				last_error {{text}} NULL,
				created_at {{time}} NOT NULL,
				sent_at {{time}} NULL
			)`,
			`CREATE INDEX idx_queue_pending ON notification_queue (sent_at, attempts)`,
		},
	},
}
