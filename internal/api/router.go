// Package api exposes the REST and websocket endpoints of the helpdesk.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/cache"
	"github.com/bdt-io/bdt/internal/config"
	"github.com/bdt-io/bdt/internal/metrics"
	"github.com/bdt-io/bdt/internal/middleware"
	"github.com/bdt-io/bdt/internal/workflow"
)

// Pinger reports whether the database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures NewRouter.
type Options struct {
	Config   *config.Config
	Services Services
	Hub      *Hub
	Metrics  *metrics.Metrics
	Cache    cache.Store
	DB       Pinger
	Version  string
	Logger   zerolog.Logger
}

// Handler holds the dependencies shared by every endpoint.
type Handler struct {
	svc     Services
	hub     *Hub
	db      Pinger
	version string
	log     zerolog.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(opts Options) *gin.Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	h := &Handler{
		svc:     opts.Services,
		hub:     opts.Hub,
		db:      opts.DB,
		version: opts.Version,
		log:     opts.Logger.With().Str("component", "api").Logger(),
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(opts.Logger), middleware.RequestLogger(opts.Logger))
	if opts.Metrics != nil && cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(opts.Metrics))
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	if cfg.Server.CORS.Enabled {
		r.Use(middleware.CORS(cfg.Server.CORS))
	}
	r.GET("/health", h.health)

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Ressource introuvable")
	})

	api := r.Group("/api")
	if opts.Cache != nil && cfg.RateLimiting.Enabled {
		api.Use(middleware.RateLimit(opts.Cache, cfg.RateLimiting.RequestsPerMinute, cfg.RateLimiting.Burst, opts.Logger))
	}
	api.POST("/user/login", h.login)

	authMW := middleware.NewAuthMiddleware(opts.Services.Auth, opts.Logger)
	authed := api.Group("", authMW.RequireAuth())
	admin := middleware.RequirePermission(workflow.PermissionAdmin)

	authed.GET("/user/verify", h.verify)
	authed.PUT("/user/default-service", h.setDefaultService)
	authed.POST("/user/create", admin, h.createUser)
	authed.GET("/user/all", admin, h.listUsers)
	authed.GET("/user/:id", admin, h.getUser)
	authed.PUT("/user/:id", admin, h.updateUser)
	authed.DELETE("/user/:id", admin, h.deleteUser)

	authed.GET("/permissions", admin, h.knownPermissions)
	authed.GET("/permissions/:userId", admin, h.userPermissions)
	authed.PUT("/permissions/:userId", admin, h.setUserPermissions)

	authed.GET("/services", h.listServices(h.svc.Services))
	authed.POST("/services", admin, h.createLookup(h.svc.Services))
	authed.PUT("/services/:id", admin, h.renameLookup(h.svc.Services))
	authed.DELETE("/services/:id", admin, h.deleteLookup(h.svc.Services))

	authed.GET("/service-intervenants", h.listServices(h.svc.ServiceIntervenants))
	authed.POST("/service-intervenants", admin, h.createLookup(h.svc.ServiceIntervenants))
	authed.PUT("/service-intervenants/:id", admin, h.renameLookup(h.svc.ServiceIntervenants))
	authed.DELETE("/service-intervenants/:id", admin, h.deleteLookup(h.svc.ServiceIntervenants))

	authed.GET("/ticket-categories", h.listCategories)
	authed.POST("/ticket-categories", h.createCategory)
	authed.PUT("/ticket-categories/:id", h.updateCategory)
	authed.DELETE("/ticket-categories/:id", h.deleteCategory)

	authed.GET("/notification-emails", admin, h.listNotificationEmails)
	authed.POST("/notification-emails", admin, h.createNotificationEmail)
	authed.PUT("/notification-emails/:id", admin, h.updateNotificationEmail)
	authed.DELETE("/notification-emails/:id", admin, h.deleteNotificationEmail)

	authed.POST("/tickets", h.createTicket)
	authed.GET("/tickets", h.listMyTickets)
	authed.GET("/tickets/manage", middleware.RequireTicketManager(), h.manageTickets)
	authed.GET("/tickets/filters", middleware.RequireTicketManager(), h.ticketFilters)
	authed.GET("/tickets/dashboard", middleware.RequireTicketManager(), h.dashboard)
	authed.GET("/tickets/cleanup", admin, h.cleanupCount)
	authed.DELETE("/tickets/cleanup", admin, h.cleanup)
	authed.GET("/tickets/:id", h.getTicket)
	authed.PUT("/tickets/:id", h.putTicket)

	authed.GET("/ticket-messages/:ticketId", h.listMessages)
	authed.POST("/ticket-messages", h.sendMessage)
	authed.GET("/ws/ticket-messages/:ticketId", h.subscribeMessages)

	authed.POST("/ticket-images", h.uploadImage)
	authed.GET("/ticket-images/:ticketId", h.listImages)
	authed.DELETE("/ticket-images/:id", h.deleteImage)
	authed.GET("/ticketimage/serve", h.serveImage)

	stats := middleware.RequirePermission(workflow.PermissionStatistics, workflow.PermissionAdmin)
	authed.GET("/statistics", stats, h.statistics)
	authed.GET("/statistics/export", stats, h.exportStatistics)

	return r
}
