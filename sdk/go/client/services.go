package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bdt-io/bdt/sdk/go/types"
)

// UsersService handles account administration
type UsersService struct {
	client *Client
}

// List retrieves a page of users
func (s *UsersService) List(ctx context.Context, opts *types.ListOptions) (*types.Page[types.User], error) {
	return list[types.User](ctx, s.client, "/api/user/all", listValues(opts))
}

// Get retrieves a specific user by ID
func (s *UsersService) Get(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	if _, err := s.client.get(ctx, fmt.Sprintf("/api/user/%d", id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new user
func (s *UsersService) Create(ctx context.Context, req *types.UserCreateRequest) (*types.User, error) {
	var u types.User
	if _, err := s.client.post(ctx, "/api/user/create", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Update updates an existing user
func (s *UsersService) Update(ctx context.Context, id int64, req *types.UserUpdateRequest) (*types.User, error) {
	var u types.User
	if _, err := s.client.put(ctx, fmt.Sprintf("/api/user/%d", id), nil, req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete deletes a user
func (s *UsersService) Delete(ctx context.Context, id int64) error {
	_, err := s.client.delete(ctx, fmt.Sprintf("/api/user/%d", id), nil)
	return err
}

// PermissionsService reads and assigns permission tags.
type PermissionsService struct {
	client *Client
}

// Known lists every assignable permission tag.
func (s *PermissionsService) Known(ctx context.Context) ([]string, error) {
	var perms []string
	_, err := s.client.get(ctx, "/api/permissions", nil, &perms)
	return perms, err
}

// Get lists the permissions of a user.
func (s *PermissionsService) Get(ctx context.Context, userID int64) ([]string, error) {
	var perms []string
	_, err := s.client.get(ctx, fmt.Sprintf("/api/permissions/%d", userID), nil, &perms)
	return perms, err
}

// Set replaces the permissions of a user and returns the stored set.
func (s *PermissionsService) Set(ctx context.Context, userID int64, perms []string) ([]string, error) {
	var stored []string
	body := map[string][]string{"permissions": perms}
	_, err := s.client.put(ctx, fmt.Sprintf("/api/permissions/%d", userID), nil, body, &stored)
	return stored, err
}

// LookupsService manages requesting services or service intervenants.
type LookupsService struct {
	client *Client
	path   string
}

// All returns every entry.
func (s *LookupsService) All(ctx context.Context) ([]types.Service, error) {
	var items []types.Service
	_, err := s.client.get(ctx, s.path, nil, &items)
	return items, err
}

// List returns a page of entries.
func (s *LookupsService) List(ctx context.Context, opts *types.ListOptions) (*types.Page[types.Service], error) {
	q := listValues(opts)
	if len(q) == 0 {
		q.Set("page", "1")
	}
	return list[types.Service](ctx, s.client, s.path, q)
}

func (s *LookupsService) Create(ctx context.Context, name string) (*types.Service, error) {
	var item types.Service
	if _, err := s.client.post(ctx, s.path, map[string]string{"name": name}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *LookupsService) Rename(ctx context.Context, id int64, name string) (*types.Service, error) {
	var item types.Service
	if _, err := s.client.put(ctx, fmt.Sprintf("%s/%d", s.path, id), nil, map[string]string{"name": name}, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *LookupsService) Delete(ctx context.Context, id int64) error {
	_, err := s.client.delete(ctx, fmt.Sprintf("%s/%d", s.path, id), nil)
	return err
}

// CategoriesService manages ticket categories.
type CategoriesService struct {
	client *Client
}

// List searches the categories of a service intervenant; serviceIntervenantID
// 0 lists every service.
func (s *CategoriesService) List(ctx context.Context, serviceIntervenantID int64, opts *types.ListOptions) (*types.Page[types.Category], error) {
	q := listValues(opts)
	setID(q, "serviceIntervenantId", serviceIntervenantID)
	return list[types.Category](ctx, s.client, "/api/ticket-categories", q)
}

func (s *CategoriesService) Create(ctx context.Context, req *types.CategoryRequest) (*types.Category, error) {
	var cat types.Category
	if _, err := s.client.post(ctx, "/api/ticket-categories", req, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *CategoriesService) Update(ctx context.Context, id int64, req *types.CategoryRequest) (*types.Category, error) {
	var cat types.Category
	if _, err := s.client.put(ctx, fmt.Sprintf("/api/ticket-categories/%d", id), nil, req, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *CategoriesService) Delete(ctx context.Context, id int64) error {
	_, err := s.client.delete(ctx, fmt.Sprintf("/api/ticket-categories/%d", id), nil)
	return err
}

// NotificationsService manages notification email rules.
type NotificationsService struct {
	client *Client
}

func (s *NotificationsService) List(ctx context.Context, opts *types.ListOptions) (*types.Page[types.NotificationEmail], error) {
	return list[types.NotificationEmail](ctx, s.client, "/api/notification-emails", listValues(opts))
}

func (s *NotificationsService) Create(ctx context.Context, req *types.NotificationEmailRequest) (*types.NotificationEmail, error) {
	var n types.NotificationEmail
	if _, err := s.client.post(ctx, "/api/notification-emails", req, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NotificationsService) Update(ctx context.Context, id int64, req *types.NotificationEmailRequest) (*types.NotificationEmail, error) {
	var n types.NotificationEmail
	if _, err := s.client.put(ctx, fmt.Sprintf("/api/notification-emails/%d", id), nil, req, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NotificationsService) Delete(ctx context.Context, id int64) error {
	_, err := s.client.delete(ctx, fmt.Sprintf("/api/notification-emails/%d", id), nil)
	return err
}

// StatisticsService reads the statistics pages.
type StatisticsService struct {
	client *Client
}

func statisticsValues(opts *types.StatisticsOptions) url.Values {
	q := url.Values{}
	if opts == nil {
		return q
	}
	if opts.From != "" {
		q.Set("from", opts.From)
	}
	if opts.To != "" {
		q.Set("to", opts.To)
	}
	setID(q, "serviceIntervenantId", opts.ServiceIntervenantID)
	return q
}

// Get computes the statistics of a window.
func (s *StatisticsService) Get(ctx context.Context, opts *types.StatisticsOptions) (*types.Statistics, error) {
	var stats types.Statistics
	if _, err := s.client.get(ctx, "/api/statistics", statisticsValues(opts), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
