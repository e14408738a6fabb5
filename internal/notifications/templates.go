package notifications

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/repository"
)

type mailTemplate struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

var templateSources = map[repository.NotificationEvent][2]string{
	repository.EventTicketCreated: {
		`[BDT #{{ ticket.ID }}] Nouveau bon pour {{ ticket.ServiceIntervenantName }}`,
		`Un nouveau bon de travail a été créé par {{ ticket.CreatorName }} ({{ ticket.ServiceName }}).

Service intervenant : {{ ticket.ServiceIntervenantName }}
Lieu : {{ ticket.Location }}
{% if ticket.SeeBeforeIntervention %}Voir le demandeur avant l'intervention.
{% endif %}
{{ ticket.Details }}

{{ link }}`,
	},
	repository.EventStatusChanged: {
		`[BDT #{{ ticket.ID }}] {{ from }} → {{ to }}`,
		`Le bon #{{ ticket.ID }} ({{ ticket.Location }}) est passé de « {{ from }} » à « {{ to }} »{% if actor %} par {{ actor }}{% endif %}.
{% if message %}
{{ message }}
{% endif %}
{{ link }}`,
	},
}

// Renderer turns ticket events into mail subjects and bodies.
type Renderer struct {
	templates map[repository.NotificationEvent]mailTemplate
	baseURL   string
}

// NewRenderer compiles the built-in templates.
func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[repository.NotificationEvent]mailTemplate, len(templateSources)),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
	for event, src := range templateSources {
		subject, err := pongo2.FromString(plain(src[0]))
		if err != nil {
			return nil, fmt.Errorf("compile %s subject: %w", event, err)
		}
		body, err := pongo2.FromString(plain(src[1]))
		if err != nil {
			return nil, fmt.Errorf("compile %s body: %w", event, err)
		}
		r.templates[event] = mailTemplate{subject: subject, body: body}
	}
	return r, nil
}

// Render produces the subject and plain text body of event. data must
// contain a "ticket" entry; "link" is filled in from the base URL.
func (r *Renderer) Render(event repository.NotificationEvent, data pongo2.Context) (string, string, error) {
	tpl, ok := r.templates[event]
	if !ok {
		return "", "", fmt.Errorf("no template for event %q", event)
	}
	ctx := pongo2.Context{}
	ctx.Update(data)
	if _, ok := ctx["link"]; !ok {
		if id, ok := ticketID(data); ok {
			ctx["link"] = fmt.Sprintf("%s/tickets/%d", r.baseURL, id)
		}
	}

	subject, err := tpl.subject.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", event, err)
	}
	body, err := tpl.body.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("render %s body: %w", event, err)
	}
	return strings.TrimSpace(subject), strings.TrimSpace(body) + "\n", nil
}

func ticketID(data pongo2.Context) (int64, bool) {
	if t, ok := data["ticket"].(*models.Ticket); ok && t != nil {
		return t.ID, true
	}
	return 0, false
}

// plain disables HTML escaping, the output is a text/plain body.
func plain(src string) string {
	return "{% autoescape off %}" + src + "{% endautoescape %}"
}
