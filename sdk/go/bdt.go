// Package bdt provides a Go SDK for the bdt work order API.
//
// The SDK covers what the web front end does against the API:
//   - session handling and route guards
//   - ticket creation, listing and status changes
//   - ticket chat with live updates over websocket
//   - administration of users, services and categories
//
// Basic usage:
//
//	c := bdt.NewClient(&bdt.Config{BaseURL: "https://bdt.example.org"})
//	store, _ := bdt.DefaultTokenStore()
//	session := bdt.NewSession(c, store)
//	if err := session.Init(ctx); err != nil { ... }
//	page, err := c.Tickets.Mine(ctx, nil)
package bdt

import (
	"github.com/bdt-io/bdt/sdk/go/auth"
	"github.com/bdt-io/bdt/sdk/go/client"
)

// Client represents the bdt API client
type Client = client.Client

// Config represents client configuration
type Config = client.Config

// Session is the logged-in state of a client
type Session = client.Session

// NewClient creates a new bdt API client
func NewClient(config *Config) *Client {
	return client.NewClient(config)
}

// NewSession binds a session to c; a nil store keeps the token in memory
func NewSession(c *Client, store auth.TokenStore) *Session {
	return client.NewSession(c, store)
}

// Token stores
var (
	// NewMemoryStore keeps the token for the life of the process
	NewMemoryStore = auth.NewMemoryStore

	// NewFileStore keeps the token in a file
	NewFileStore = auth.NewFileStore

	// DefaultTokenStore keeps the token under the user config directory
	DefaultTokenStore = auth.DefaultFileStore
)

// Version information
const (
	// Version is the current SDK version
	Version = "1.0.0"

	// UserAgent is the default user agent string
	UserAgent = "bdt-go-sdk/" + Version
)
