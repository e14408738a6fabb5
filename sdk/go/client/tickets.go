package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bdt-io/bdt/sdk/go/types"
)

// TicketsService handles ticket-related API operations
type TicketsService struct {
	client *Client
}

func ticketValues(opts *types.TicketListOptions) url.Values {
	if opts == nil {
		return url.Values{}
	}
	q := listValues(&opts.ListOptions)
	if s := strings.TrimSpace(opts.Status); s != "" {
		q.Set("status", s)
	}
	setID(q, "serviceIntervenantId", opts.ServiceIntervenantID)
	setID(q, "categoryId", opts.CategoryID)
	setID(q, "intervenantId", opts.IntervenantID)
	return q
}

func ticketPath(id int64) string {
	return fmt.Sprintf("/api/tickets/%d", id)
}

func action(name string) url.Values {
	return url.Values{"action": {name}}
}

// Create opens a ticket
func (s *TicketsService) Create(ctx context.Context, req *types.TicketCreateRequest) (*types.Ticket, error) {
	var t types.Ticket
	if _, err := s.client.post(ctx, "/api/tickets", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Mine lists the tickets created by the caller
func (s *TicketsService) Mine(ctx context.Context, opts *types.TicketListOptions) (*types.Page[types.Ticket], error) {
	return list[types.Ticket](ctx, s.client, "/api/tickets", ticketValues(opts))
}

// Manage lists the tickets of the services the caller handles
func (s *TicketsService) Manage(ctx context.Context, opts *types.TicketListOptions) (*types.Page[types.Ticket], error) {
	return list[types.Ticket](ctx, s.client, "/api/tickets/manage", ticketValues(opts))
}

// Filters returns the values offered by the management filters
func (s *TicketsService) Filters(ctx context.Context) (*types.FilterOptions, error) {
	var f types.FilterOptions
	if _, err := s.client.get(ctx, "/api/tickets/filters", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Dashboard returns per-status counts of the managed services
func (s *TicketsService) Dashboard(ctx context.Context) (*types.DashboardCounts, error) {
	var d types.DashboardCounts
	if _, err := s.client.get(ctx, "/api/tickets/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Get retrieves a ticket with its history
func (s *TicketsService) Get(ctx context.Context, id int64) (*types.TicketDetail, error) {
	var d types.TicketDetail
	if _, err := s.client.get(ctx, ticketPath(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Update changes the location, details or visit flag of a ticket
func (s *TicketsService) Update(ctx context.Context, id int64, req *types.TicketUpdateRequest) (*types.Ticket, error) {
	var t types.Ticket
	if _, err := s.client.put(ctx, ticketPath(id), nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Technicians lists the users allowed to handle a ticket
func (s *TicketsService) Technicians(ctx context.Context, id int64) ([]types.User, error) {
	var users []types.User
	_, err := s.client.get(ctx, ticketPath(id), action("getTechnicians"), &users)
	return users, err
}

// UpdateStatus sends a status change without client side checks. Use a
// StatusForm to validate first.
func (s *TicketsService) UpdateStatus(ctx context.Context, id int64, req *types.StatusUpdateRequest) (*types.StatusChangeResult, error) {
	var res types.StatusChangeResult
	if _, err := s.client.put(ctx, ticketPath(id), action("updateStatus"), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Transfer moves or duplicates a ticket to another service intervenant
func (s *TicketsService) Transfer(ctx context.Context, id int64, req *types.TransferRequest) (*types.TransferResult, error) {
	var res types.TransferResult
	env, err := s.client.put(ctx, ticketPath(id), action("transferTicket"), req, &res)
	if err != nil {
		return nil, err
	}
	res.Message = env.Message
	return &res, nil
}

// SetCategory assigns a category; nil clears it
func (s *TicketsService) SetCategory(ctx context.Context, id int64, categoryID *int64) (*types.Ticket, error) {
	var t types.Ticket
	body := map[string]*int64{"categoryId": categoryID}
	if _, err := s.client.put(ctx, ticketPath(id), action("update-category"), body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CleanupCount counts the tickets a cleanup over period would delete
func (s *TicketsService) CleanupCount(ctx context.Context, period string) (*types.CleanupResult, error) {
	var res types.CleanupResult
	if _, err := s.client.get(ctx, "/api/tickets/cleanup", url.Values{"period": {period}}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Cleanup deletes the tickets older than period. confirmation must be the
// confirmation phrase.
func (s *TicketsService) Cleanup(ctx context.Context, period, confirmation string) (*types.CleanupResult, error) {
	var res types.CleanupResult
	body := map[string]string{"period": period, "confirmation": confirmation}
	env, err := s.client.request(ctx, "DELETE", "/api/tickets/cleanup", nil, body, &res)
	if err != nil {
		return nil, err
	}
	res.Message = env.Message
	return &res, nil
}
