// Package app wires the configuration, stores and services of bdt. The
// server and the operator CLI share it so both run the same rules.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/api"
	"github.com/bdt-io/bdt/internal/auth"
	"github.com/bdt-io/bdt/internal/cache"
	"github.com/bdt-io/bdt/internal/config"
	"github.com/bdt-io/bdt/internal/database"
	"github.com/bdt-io/bdt/internal/metrics"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/notifications"
	"github.com/bdt-io/bdt/internal/repository"
	"github.com/bdt-io/bdt/internal/runner"
	"github.com/bdt-io/bdt/internal/runner/tasks"
	"github.com/bdt-io/bdt/internal/service"
	"github.com/bdt-io/bdt/internal/version"
	"github.com/bdt-io/bdt/internal/workflow"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	DB      *sqlx.DB
	Cache   cache.Store
	Metrics *metrics.Metrics
	Hub     *api.Hub

	Repos         service.Repositories
	Notifications *repository.NotificationRepository

	Auth                *service.AuthService
	Tickets             *service.TicketService
	Messages            *service.MessageService
	Images              *service.ImageService
	Users               *service.UserService
	Services            *service.LookupService
	ServiceIntervenants *service.LookupService
	Categories          *service.CategoryService
	NotificationRules   *service.NotificationService
	Statistics          *service.StatisticsService

	limiter *auth.LoginRateLimiter
}

// SystemActor is the identity of operator commands run from the CLI.
var SystemActor = &models.User{ID: 0, Username: "bdt-cli", Permissions: []string{workflow.PermissionAdmin}}

// New opens the database and builds every service. Migrations run first
// when auto_migrate is set.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	validator := config.NewSecretValidator(cfg)
	if err := validator.Validate(); err != nil {
		return nil, err
	}
	for _, w := range validator.Warnings() {
		log.Warn().Msg(strings.TrimSpace(w))
	}
	if cfg.Auth.JWT.Secret == "" {
		cfg.Auth.JWT.Secret = "dev-" + uuid.NewString()
		log.Warn().Msg("auth.jwt.secret not set, tokens will not survive a restart")
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		applied, err := database.RunMigrations(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if applied > 0 {
			log.Info().Int("applied", applied).Msg("database migrated")
		}
	}
	return NewWithDB(cfg, db, log)
}

// NewWithDB builds the services on an open database.
func NewWithDB(cfg *config.Config, db *sqlx.DB, log zerolog.Logger) (*App, error) {
	m := metrics.New()
	store := cache.New(cfg.Redis, m, log)

	notificationRepo := repository.NewNotificationRepository(db)
	repos := service.Repositories{
		Tickets:             repository.NewTicketRepository(db),
		Messages:            repository.NewMessageRepository(db),
		Images:              repository.NewImageRepository(db),
		Users:               repository.NewUserRepository(db),
		Services:            repository.NewServiceRepository(db),
		ServiceIntervenants: repository.NewServiceIntervenantRepository(db),
		Categories:          repository.NewCategoryRepository(db),
		Notifications:       notificationRepo,
		Statistics:          repository.NewStatisticsRepository(db),
	}

	renderer, err := notifications.NewRenderer(cfg.App.BaseURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("notification templates: %w", err)
	}
	notifier := notifications.NewNotifier(notificationRepo, renderer, log)
	hub := api.NewHub(cfg.Server.CORS.Origins, m, log)

	jwt := auth.NewJWTManager(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.TokenTTL)
	login := cfg.Auth.Login
	limiter := auth.NewLoginRateLimiter(login.MaxAttempts, login.WindowSeconds, login.BaseBackoff, login.MaxBackoff)

	tickets := service.NewTicketService(repos, notifier, hub, store, m, log)
	a := &App{
		Config:        cfg,
		Log:           log,
		DB:            db,
		Cache:         store,
		Metrics:       m,
		Hub:           hub,
		Repos:         repos,
		Notifications: notificationRepo,

		Auth:                service.NewAuthService(repos.Users, repos.Services, jwt, limiter, cfg.Auth.BcryptCost, log),
		Tickets:             tickets,
		Messages:            service.NewMessageService(tickets, repos, hub, log),
		Images:              service.NewImageService(tickets, repos, cfg.Storage.Images.MaxSize, cfg.Storage.Images.AllowedTypes, log),
		Users:               service.NewUserService(repos, cfg.Auth.BcryptCost, log),
		Services:            service.NewServiceLookup(repos, store, log),
		ServiceIntervenants: service.NewServiceIntervenantLookup(repos, store, log),
		Categories:          service.NewCategoryService(repos),
		NotificationRules:   service.NewNotificationService(repos),
		Statistics:          service.NewStatisticsService(repos, store, log),
		limiter:             limiter,
	}
	return a, nil
}

// Router builds the HTTP handler of the API.
func (a *App) Router() *gin.Engine {
	return api.NewRouter(api.Options{
		Config: a.Config,
		Services: api.Services{
			Auth:                a.Auth,
			Tickets:             a.Tickets,
			Messages:            a.Messages,
			Images:              a.Images,
			Users:               a.Users,
			Services:            a.Services,
			ServiceIntervenants: a.ServiceIntervenants,
			Categories:          a.Categories,
			Notifications:       a.NotificationRules,
			Statistics:          a.Statistics,
		},
		Hub:     a.Hub,
		Metrics: a.Metrics,
		Cache:   a.Cache,
		DB:      a.DB,
		Version: version.Short(),
		Logger:  a.Log,
	})
}

// Runner registers the scheduled tasks: notification delivery when email is
// enabled, and statistics warmup.
func (a *App) Runner() *runner.Runner {
	registry := runner.NewTaskRegistry()
	if a.Config.Email.Enabled {
		dispatcher := notifications.NewDispatcher(a.Notifications, notifications.NewSMTPProvider(&a.Config.Email),
			a.Config.Email.BatchSize, a.Config.Email.MaxAttempts, a.Metrics, a.Log)
		registry.Register(tasks.NewNotificationDispatchTask(dispatcher, a.Config.Runner.NotificationSchedule, a.Log))
	}
	registry.Register(tasks.NewStatisticsWarmupTask(a.Statistics, a.Config.Runner.StatisticsSchedule))
	return runner.NewRunner(registry, a.Metrics, a.Log)
}

// Server returns the HTTP server for the configured address.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:         a.Config.Server.GetServerAddr(),
		Handler:      a.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Close releases the hub, cache and database.
func (a *App) Close() error {
	a.Hub.Close()
	a.limiter.Stop()
	var errs []error
	if err := a.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
