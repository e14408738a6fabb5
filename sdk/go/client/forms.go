package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bdt-io/bdt/internal/workflow"
	"github.com/bdt-io/bdt/sdk/go/errors"
	"github.com/bdt-io/bdt/sdk/go/types"
)

// StatusForm collects a status change for one ticket and validates it with
// the same rules the server applies.
type StatusForm struct {
	client  *Client
	session *Session
	ticket  *types.Ticket

	NewStatus     string
	IntervenantID *int64
	Message       string
	StatusDate    *time.Time

	// now is replaced in tests.
	now func() time.Time
}

// NewStatusForm starts a status change of ticket on behalf of the session
// user.
func NewStatusForm(c *Client, session *Session, ticket *types.Ticket) *StatusForm {
	return &StatusForm{client: c, session: session, ticket: ticket, now: time.Now}
}

// Ticket returns the ticket as of the last successful submit.
func (f *StatusForm) Ticket() *types.Ticket { return f.ticket }

// Options lists the statuses the ticket may move to.
func (f *StatusForm) Options() []string {
	next := workflow.NextStatuses(workflow.Status(f.ticket.Status))
	out := make([]string, 0, len(next))
	for _, s := range next {
		out = append(out, string(s))
	}
	return out
}

func (f *StatusForm) request() workflow.Request {
	return workflow.Request{
		To:            workflow.Status(f.NewStatus),
		IntervenantID: f.IntervenantID,
		Message:       f.Message,
		StatusDate:    f.StatusDate,
	}
}

func (f *StatusForm) actor() workflow.Actor {
	u := f.session.User()
	if u == nil {
		return workflow.Actor{}
	}
	return workflow.Actor{UserID: u.ID, Locked: u.IsLock, Permissions: u.Permissions}
}

// CanSubmit reports whether the submit button is enabled.
func (f *StatusForm) CanSubmit() bool {
	if f.NewStatus == "" {
		return false
	}
	return workflow.CanSubmit(workflow.Status(f.ticket.Status), f.request(), f.actor().Locked)
}

// Submit sends the change. Input the workflow rejects is returned as a
// *workflow.TransitionError without contacting the server.
func (f *StatusForm) Submit(ctx context.Context) (*types.StatusChangeResult, error) {
	if !f.session.LoggedIn() {
		return nil, errors.ErrNotLoggedIn
	}
	if f.NewStatus == "" {
		return nil, &errors.ValidationError{Field: "newStatus", Message: "veuillez choisir un statut"}
	}
	state := workflow.TicketState{
		Status:               workflow.Status(f.ticket.Status),
		ServiceIntervenantID: f.ticket.ServiceIntervenantID,
		ServiceName:          f.ticket.ServiceIntervenantName,
	}
	accepted, err := workflow.Transition(state, f.request(), f.actor(), f.now())
	if err != nil {
		return nil, err
	}

	req := &types.StatusUpdateRequest{
		NewStatus:           string(accepted.To),
		CustomIntervenantID: accepted.IntervenantID,
		Message:             accepted.Message,
		StatusDate:          f.StatusDate,
	}
	res, err := f.client.Tickets.UpdateStatus(ctx, f.ticket.ID, req)
	if err != nil {
		return nil, err
	}
	if res.Ticket != nil {
		f.ticket = res.Ticket
	}
	f.NewStatus, f.IntervenantID, f.Message, f.StatusDate = "", nil, "", nil
	return res, nil
}

// CategoryPicker searches, creates and assigns the category of a ticket.
// Searches and creations stay scoped to the service intervenant the ticket
// had when the picker was built.
type CategoryPicker struct {
	client               *Client
	ticket               *types.Ticket
	serviceIntervenantID int64
}

// NewCategoryPicker edits the category of ticket.
func NewCategoryPicker(c *Client, ticket *types.Ticket) *CategoryPicker {
	return &CategoryPicker{client: c, ticket: ticket, serviceIntervenantID: ticket.ServiceIntervenantID}
}

// Ticket returns the ticket as of the last change.
func (p *CategoryPicker) Ticket() *types.Ticket { return p.ticket }

// Search lists the categories of the ticket's service matching term.
func (p *CategoryPicker) Search(ctx context.Context, term string) ([]types.Category, error) {
	page, err := p.client.Categories.List(ctx, p.serviceIntervenantID, &types.ListOptions{Search: term, Limit: 100})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// SelectOrCreate assigns the category called name, creating it when the
// service has none by that name.
func (p *CategoryPicker) SelectOrCreate(ctx context.Context, name string) (*types.Ticket, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &errors.ValidationError{Field: "name", Message: "le nom de la catégorie est requis"}
	}
	matches, err := p.Search(ctx, name)
	if err != nil {
		return nil, err
	}
	var id int64
	for _, c := range matches {
		if strings.EqualFold(c.Name, name) {
			id = c.ID
			break
		}
	}
	if id == 0 {
		created, err := p.client.Categories.Create(ctx, &types.CategoryRequest{Name: name, ServiceIntervenantID: p.serviceIntervenantID})
		if err != nil {
			return nil, err
		}
		id = created.ID
	}
	return p.assign(ctx, &id)
}

// Clear removes the category of the ticket.
func (p *CategoryPicker) Clear(ctx context.Context) (*types.Ticket, error) {
	return p.assign(ctx, nil)
}

func (p *CategoryPicker) assign(ctx context.Context, id *int64) (*types.Ticket, error) {
	t, err := p.client.Tickets.SetCategory(ctx, p.ticket.ID, id)
	if err != nil {
		return nil, err
	}
	p.ticket = t
	return t, nil
}

// CleanupForm guards the bulk deletion of old tickets.
type CleanupForm struct {
	client *Client

	mu           sync.Mutex
	period       string
	count        int64
	loaded       bool
	confirmation string
}

// NewCleanupForm starts a cleanup over period.
func NewCleanupForm(c *Client, period string) *CleanupForm {
	return &CleanupForm{client: c, period: period}
}

// SetPeriod changes the period and forgets the loaded count.
func (f *CleanupForm) SetPeriod(period string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.period = period
	f.count = 0
	f.loaded = false
}

// LoadCount fetches how many tickets the cleanup would delete.
func (f *CleanupForm) LoadCount(ctx context.Context) (int64, error) {
	f.mu.Lock()
	period := f.period
	f.mu.Unlock()
	if _, err := workflow.ParseCleanupPeriod(period); err != nil {
		return 0, err
	}
	res, err := f.client.Tickets.CleanupCount(ctx, period)
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.period == period {
		f.count = res.Count
		f.loaded = true
	}
	return res.Count, nil
}

// SetConfirmation records the phrase typed by the user.
func (f *CleanupForm) SetConfirmation(input string) {
	f.mu.Lock()
	f.confirmation = input
	f.mu.Unlock()
}

// Count returns the loaded count and whether it was loaded.
func (f *CleanupForm) Count() (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.loaded
}

// Enabled reports whether the delete button is enabled.
func (f *CleanupForm) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded && f.count > 0 && workflow.Confirmed(f.confirmation)
}

// Confirm runs the cleanup and returns the server's confirmation text.
func (f *CleanupForm) Confirm(ctx context.Context) (*types.CleanupResult, error) {
	f.mu.Lock()
	period, confirmation := f.period, f.confirmation
	f.mu.Unlock()
	if !f.Enabled() {
		if _, err := workflow.CheckCleanup(period, confirmation); err != nil {
			return nil, err
		}
		return nil, &errors.ValidationError{Field: "period", Message: "aucun bon à supprimer"}
	}
	res, err := f.client.Tickets.Cleanup(ctx, period, confirmation)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.count, f.loaded = 0, false
	f.confirmation = ""
	f.mu.Unlock()
	return res, nil
}
