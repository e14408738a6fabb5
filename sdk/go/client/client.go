// Package client is the Go client of the bdt API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bdt-io/bdt/sdk/go/errors"
	"github.com/bdt-io/bdt/sdk/go/types"
)

// Client represents the bdt API client
type Client struct {
	httpClient *resty.Client
	baseURL    string

	mu    sync.RWMutex
	token string

	// Service clients
	Tickets             *TicketsService
	Messages            *MessagesService
	Images              *ImagesService
	Users               *UsersService
	Permissions         *PermissionsService
	Services            *LookupsService
	ServiceIntervenants *LookupsService
	Categories          *CategoriesService
	Notifications       *NotificationsService
	Statistics          *StatisticsService
}

// Config represents client configuration
type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	Debug     bool
	// HTTPClient replaces the transport, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a new bdt API client. Failed requests are never
// retried.
func NewClient(config *Config) *Client {
	if config.UserAgent == "" {
		config.UserAgent = "bdt-go-sdk/1.0"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")

	var httpClient *resty.Client
	if config.HTTPClient != nil {
		httpClient = resty.NewWithClient(config.HTTPClient)
	} else {
		httpClient = resty.New()
	}
	httpClient.
		SetBaseURL(baseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")
	if config.Debug {
		httpClient.SetDebug(true)
	}

	client := &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      config.Token,
	}

	client.Tickets = &TicketsService{client: client}
	client.Messages = &MessagesService{client: client}
	client.Images = &ImagesService{client: client}
	client.Users = &UsersService{client: client}
	client.Permissions = &PermissionsService{client: client}
	client.Services = &LookupsService{client: client, path: "/api/services"}
	client.ServiceIntervenants = &LookupsService{client: client, path: "/api/service-intervenants"}
	client.Categories = &CategoriesService{client: client}
	client.Notifications = &NotificationsService{client: client}
	client.Statistics = &StatisticsService{client: client}

	// Set up authentication middleware
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token := client.Token(); token != "" {
			req.SetAuthToken(token)
		}
		return nil
	})

	return client
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the bearer token sent with each request.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token. An empty token sends anonymous
// requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SetTimeout updates the client's timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.SetTimeout(timeout)
}

// request sends body as JSON and decodes the envelope. The data member is
// decoded into out when out is not nil.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*types.Envelope, error) {
	req := c.httpClient.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &errors.NetworkError{Operation: method, URL: c.baseURL + path, Err: err}
	}
	return decodeEnvelope(resp, out)
}

func decodeEnvelope(resp *resty.Response, out interface{}) (*types.Envelope, error) {
	var env types.Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		if !resp.IsSuccess() {
			return nil, errors.NewAPIError(resp.StatusCode(), "")
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !resp.IsSuccess() || env.Status == "error" {
		code := resp.StatusCode()
		if code < http.StatusBadRequest {
			code = http.StatusInternalServerError
		}
		return &env, errors.NewAPIError(code, env.Message)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &env, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (*types.Envelope, error) {
	return c.request(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (*types.Envelope, error) {
	return c.request(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) put(ctx context.Context, path string, query url.Values, body, out interface{}) (*types.Envelope, error) {
	return c.request(ctx, http.MethodPut, path, query, body, out)
}

func (c *Client) delete(ctx context.Context, path string, body interface{}) (*types.Envelope, error) {
	return c.request(ctx, http.MethodDelete, path, nil, body, nil)
}

// list fetches one page of a paginated endpoint.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) (*types.Page[T], error) {
	var items []T
	env, err := c.get(ctx, path, query, &items)
	if err != nil {
		return nil, err
	}
	page := &types.Page[T]{Items: items}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	}
	return page, nil
}

func listValues(opts *types.ListOptions) url.Values {
	q := url.Values{}
	if opts == nil {
		return q
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if s := strings.TrimSpace(opts.Search); s != "" {
		q.Set("search", s)
	}
	return q
}

func setID(q url.Values, key string, id int64) {
	if id > 0 {
		q.Set(key, strconv.FormatInt(id, 10))
	}
}

// Ping checks that the server answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/health")
	if err != nil {
		return &errors.NetworkError{Operation: "PING", URL: c.baseURL + "/health", Err: err}
	}
	if !resp.IsSuccess() {
		return errors.NewAPIError(resp.StatusCode(), "serveur indisponible")
	}
	return nil
}
