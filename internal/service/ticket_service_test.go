package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdt-io/bdt/internal/cache"
	"github.com/bdt-io/bdt/internal/metrics"
	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/workflow"
)

type fixture struct {
	repos        Repositories
	tickets      *fakeTickets
	users        *fakeUsers
	services     *fakeLookup
	intervenants *fakeLookup
	categories   *fakeCategories
	messages     *fakeMessages
	images       *fakeImages
	notifier     *fakeNotifier
	publisher    *fakePublisher
	metrics      *metrics.Metrics
	cache        *cache.LocalCache
	svc          *TicketService
	now          time.Time

	creator, tech, locked, admin, eco *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		services:     newFakeLookup("Accueil"),
		intervenants: newFakeLookup("Informatique", "Économat"),
		categories:   &fakeCategories{items: map[int64]*models.Category{}},
		users:        newFakeUsers(),
		messages:     &fakeMessages{items: map[int64]*models.Message{}},
		images:       &fakeImages{items: map[int64]*models.Image{}},
		notifier:     &fakeNotifier{},
		publisher:    &fakePublisher{},
		metrics:      metrics.New(),
		now:          time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}
	f.messages.images = f.images
	f.tickets = &fakeTickets{
		items:        map[int64]*models.Ticket{},
		history:      map[int64][]*models.StatusHistory{},
		intervenants: f.intervenants,
		categories:   f.categories,
	}
	f.cache = cache.NewLocalCache(&cache.LocalCacheConfig{MaxSize: 100, DefaultTTL: time.Minute}, f.metrics)
	t.Cleanup(func() { f.cache.Close() })

	f.creator = f.users.add(&models.User{Username: "alice"})
	f.tech = f.users.add(&models.User{Username: "bruno", Permissions: []string{"InformatiqueTicket"}})
	f.locked = f.users.add(&models.User{Username: "chloe", IsLock: true, Permissions: []string{"InformatiqueTicket"}})
	f.admin = f.users.add(&models.User{Username: "admin", Permissions: []string{workflow.PermissionAdmin}})
	f.eco = f.users.add(&models.User{Username: "eric", Permissions: []string{"EconomatTicket"}})

	f.repos = Repositories{
		Tickets:             f.tickets,
		Messages:            f.messages,
		Images:              f.images,
		Users:               f.users,
		Services:            f.services,
		ServiceIntervenants: f.intervenants,
		Categories:          f.categories,
	}
	f.svc = NewTicketService(f.repos, f.notifier, f.publisher, f.cache, f.metrics, zerolog.Nop())
	f.svc.clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) ticket(status workflow.Status, serviceIntervenantID int64) *models.Ticket {
	return f.tickets.put(&models.Ticket{
		CreatorID:            f.creator.ID,
		ServiceID:            1,
		ServiceIntervenantID: serviceIntervenantID,
		Status:               string(status),
		Location:             "Bâtiment A",
		Details:              "Fuite sous l'évier",
		CreatedAt:            f.now.Add(-48 * time.Hour),
	})
}

func int64Ptr(v int64) *int64 { return &v }

func TestTicketService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates open ticket and notifies", func(t *testing.T) {
		f := newFixture(t)
		ticket, err := f.svc.Create(ctx, f.creator, &models.CreateTicketRequest{
			ServiceID: 1, ServiceIntervenantID: 1, Location: "  Salle 3 ", Details: "Prise\r\ncassée",
		})
		require.NoError(t, err)
		assert.Equal(t, string(workflow.StatusOpen), ticket.Status)
		assert.Equal(t, "Salle 3", ticket.Location)
		assert.Equal(t, "Prise\ncassée", ticket.Details)
		assert.Equal(t, "Informatique", ticket.ServiceIntervenantName)
		assert.Equal(t, []int64{ticket.ID}, f.notifier.created)
		assert.Len(t, f.tickets.history[ticket.ID], 1)
	})

	t.Run("blank location", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, f.creator, &models.CreateTicketRequest{
			ServiceID: 1, ServiceIntervenantID: 1, Location: "   ", Details: "x",
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown service intervenant", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(ctx, f.creator, &models.CreateTicketRequest{
			ServiceID: 1, ServiceIntervenantID: 42, Location: "a", Details: "b",
		})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, "service intervenant inconnu", UserMessage(err))
	})
}

func TestTicketService_Get(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.ticket(workflow.StatusOpen, 1)

	_, err := f.svc.Get(ctx, f.creator, tk.ID)
	assert.NoError(t, err)

	detail, err := f.svc.Get(ctx, f.tech, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, detail.Ticket.ID)

	_, err = f.svc.Get(ctx, f.eco, tk.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Get(ctx, f.creator, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("creator while open", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		loc := "Bâtiment B"
		updated, err := f.svc.Update(ctx, f.creator, tk.ID, &models.UpdateTicketRequest{Location: &loc})
		require.NoError(t, err)
		assert.Equal(t, "Bâtiment B", updated.Location)
	})

	t.Run("creator once in progress", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusInProgress, 1)
		loc := "Bâtiment B"
		_, err := f.svc.Update(ctx, f.creator, tk.ID, &models.UpdateTicketRequest{Location: &loc})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("technician in progress", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusInProgress, 1)
		see := true
		updated, err := f.svc.Update(ctx, f.tech, tk.ID, &models.UpdateTicketRequest{SeeBeforeIntervention: &see})
		require.NoError(t, err)
		assert.True(t, updated.SeeBeforeIntervention)
	})

	t.Run("closed ticket", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusClosed, 1)
		details := "x"
		_, err := f.svc.Update(ctx, f.tech, tk.ID, &models.UpdateTicketRequest{Details: &details})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestTicketService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("assign technician", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		res, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{
			NewStatus: "En cours", CustomIntervenantID: int64Ptr(f.locked.ID),
		})
		require.NoError(t, err)
		assert.Equal(t, "En cours", res.Ticket.Status)
		require.NotNil(t, res.Ticket.IntervenantID)
		assert.Equal(t, f.locked.ID, *res.Ticket.IntervenantID)
		assert.Nil(t, res.Message)
		assert.Len(t, res.History, 1)
		assert.Equal(t, []string{"Ouvert>En cours by bruno"}, f.notifier.changes)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StatusChanges.WithLabelValues("En cours")))
	})

	t.Run("missing intervenant", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{NewStatus: "En cours"})
		assert.Equal(t, workflow.KindMissingIntervenant, workflow.KindOf(err))
		assert.Empty(t, f.tickets.statusChanges)
	})

	t.Run("locked actor is assigned", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		res, err := f.svc.UpdateStatus(ctx, f.locked, tk.ID, &models.UpdateStatusRequest{NewStatus: "En cours"})
		require.NoError(t, err)
		require.NotNil(t, res.Ticket.IntervenantID)
		assert.Equal(t, f.locked.ID, *res.Ticket.IntervenantID)
	})

	t.Run("intervenant without permission", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{
			NewStatus: "En cours", CustomIntervenantID: int64Ptr(f.eco.ID),
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("resolve returns and publishes the message", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusInProgress, 1)
		res, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{
			NewStatus: "Résolu", Message: "Joint **remplacé**",
		})
		require.NoError(t, err)
		require.NotNil(t, res.Message)
		assert.True(t, res.Message.IsStatusChange)
		require.NotNil(t, res.Message.StatusType)
		assert.Equal(t, "Résolu", *res.Message.StatusType)
		assert.Equal(t, "bruno", res.Message.AuthorName)
		assert.Contains(t, res.Message.BodyHTML, "<strong>remplacé</strong>")
		require.Len(t, f.publisher.published, 1)
		assert.Same(t, res.Message, f.publisher.published[0])
	})

	t.Run("resolve without message", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusInProgress, 1)
		_, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{NewStatus: "Résolu", Message: "  "})
		assert.Equal(t, workflow.KindMissingMessage, workflow.KindOf(err))
	})

	t.Run("terminal status", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusClosed, 1)
		_, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{NewStatus: "Ouvert"})
		assert.Equal(t, workflow.KindIllegal, workflow.KindOf(err))
	})

	t.Run("other service", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, err := f.svc.UpdateStatus(ctx, f.eco, tk.ID, &models.UpdateStatusRequest{NewStatus: "Fermé"})
		assert.Equal(t, workflow.KindForbidden, workflow.KindOf(err))
	})

	t.Run("future date", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		future := f.now.Add(time.Hour)
		_, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{NewStatus: "Fermé", StatusDate: &future})
		assert.Equal(t, workflow.KindFutureDate, workflow.KindOf(err))
	})

	t.Run("backdated", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		past := f.now.Add(-time.Hour)
		_, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{NewStatus: "Fermé", StatusDate: &past})
		require.NoError(t, err)
		require.Len(t, f.tickets.statusChanges, 1)
		assert.Equal(t, past, f.tickets.statusChanges[0].ChangedAt)
	})

	t.Run("concurrent change", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		f.tickets.conflict = true
		_, err := f.svc.UpdateStatus(ctx, f.tech, tk.ID, &models.UpdateStatusRequest{NewStatus: "Fermé"})
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestTicketService_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("transfer only", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		res, msg, err := f.svc.Transfer(ctx, f.tech, tk.ID, &models.TransferRequest{TargetServiceID: 2, Mode: "transfer_only"})
		require.NoError(t, err)
		assert.Equal(t, "Le bon a été transféré vers le service Économat.", msg)
		assert.Equal(t, int64(2), res.Ticket.ServiceIntervenantID)
		assert.Nil(t, res.Duplicate)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transfers.WithLabelValues("transfer_only")))
	})

	t.Run("transfer only reopens for the new service", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusInProgress, 1)
		tech := f.tech.ID
		tk.IntervenantID = &tech
		res, _, err := f.svc.Transfer(ctx, f.tech, tk.ID, &models.TransferRequest{TargetServiceID: 2, Mode: "transfer_only"})
		require.NoError(t, err)
		assert.Equal(t, "Ouvert", res.Ticket.Status)
		assert.Nil(t, res.Ticket.IntervenantID)
	})

	t.Run("transfer and keep", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusInProgress, 1)
		res, msg, err := f.svc.Transfer(ctx, f.tech, tk.ID, &models.TransferRequest{TargetServiceID: 2, Mode: "transfer_and_keep"})
		require.NoError(t, err)
		assert.Equal(t, "Le bon a été dupliqué vers le service Économat, l'original est conservé.", msg)
		assert.Equal(t, int64(1), res.Ticket.ServiceIntervenantID)
		require.NotNil(t, res.Duplicate)
		assert.Equal(t, "Ouvert", res.Duplicate.Status)
		assert.Equal(t, "Économat", res.Duplicate.ServiceIntervenantName)
		require.NotNil(t, res.Duplicate.OriginTicketID)
		assert.Equal(t, tk.ID, *res.Duplicate.OriginTicketID)
		assert.Equal(t, []int64{res.Duplicate.ID}, f.notifier.created)
	})

	t.Run("closed ticket", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusClosed, 1)
		_, _, err := f.svc.Transfer(ctx, f.tech, tk.ID, &models.TransferRequest{TargetServiceID: 2, Mode: "transfer_only"})
		assert.Equal(t, workflow.KindInvalidTransfer, workflow.KindOf(err))
	})

	t.Run("same service", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, _, err := f.svc.Transfer(ctx, f.tech, tk.ID, &models.TransferRequest{TargetServiceID: 1, Mode: "transfer_only"})
		assert.Equal(t, workflow.KindInvalidTransfer, workflow.KindOf(err))
	})

	t.Run("unknown mode", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, _, err := f.svc.Transfer(ctx, f.tech, tk.ID, &models.TransferRequest{TargetServiceID: 2, Mode: "copy"})
		assert.Equal(t, workflow.KindInvalidTransfer, workflow.KindOf(err))
	})

	t.Run("without origin permission", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, _, err := f.svc.Transfer(ctx, f.eco, tk.ID, &models.TransferRequest{TargetServiceID: 2, Mode: "transfer_only"})
		assert.Equal(t, workflow.KindForbidden, workflow.KindOf(err))
		assert.Empty(t, f.tickets.transfers)
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, _, err := f.svc.Transfer(ctx, f.tech, tk.ID, &models.TransferRequest{TargetServiceID: 9, Mode: "transfer_only"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestTicketService_UpdateCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.ticket(workflow.StatusOpen, 1)
	f.categories.items[1] = &models.Category{ID: 1, Name: "Réseau", ServiceIntervenantID: 1}
	f.categories.items[2] = &models.Category{ID: 2, Name: "Fournitures", ServiceIntervenantID: 2}

	updated, err := f.svc.UpdateCategory(ctx, f.tech, tk.ID, int64Ptr(1))
	require.NoError(t, err)
	require.NotNil(t, updated.CategoryName)
	assert.Equal(t, "Réseau", *updated.CategoryName)

	_, err = f.svc.UpdateCategory(ctx, f.tech, tk.ID, int64Ptr(2))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateCategory(ctx, f.creator, tk.ID, int64Ptr(1))
	assert.ErrorIs(t, err, ErrForbidden)

	cleared, err := f.svc.UpdateCategory(ctx, f.tech, tk.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.CategoryID)
}

func TestTicketService_Cleanup(t *testing.T) {
	ctx := context.Background()

	t.Run("count", func(t *testing.T) {
		f := newFixture(t)
		f.tickets.oldCount = 4
		res, err := f.svc.CleanupCount(ctx, f.admin, "2y")
		require.NoError(t, err)
		assert.Equal(t, int64(4), res.Count)
		assert.Equal(t, f.now.AddDate(-2, 0, 0), f.tickets.cutoff)
	})

	t.Run("requires admin", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CleanupCount(ctx, f.tech, "1y")
		assert.ErrorIs(t, err, ErrForbidden)
		_, _, err = f.svc.Cleanup(ctx, f.tech, &models.CleanupRequest{Period: "1y", Confirmation: "SUPPRIMER"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("confirmation must match exactly", func(t *testing.T) {
		f := newFixture(t)
		for _, c := range []string{"", "supprimer", "SUPPRIMER ", "SUPPRIME"} {
			_, _, err := f.svc.Cleanup(ctx, f.admin, &models.CleanupRequest{Period: "1y", Confirmation: c})
			assert.Equal(t, workflow.KindInvalidCleanup, workflow.KindOf(err), c)
		}
	})

	t.Run("unknown period", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CleanupCount(ctx, f.admin, "4y")
		assert.Equal(t, workflow.KindInvalidCleanup, workflow.KindOf(err))
	})

	t.Run("deletes", func(t *testing.T) {
		f := newFixture(t)
		f.tickets.oldCount = 3
		res, msg, err := f.svc.Cleanup(ctx, f.admin, &models.CleanupRequest{Period: "5y", Confirmation: "SUPPRIMER"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Count)
		assert.Equal(t, "3 bons ont été supprimés.", msg)
		assert.Equal(t, f.now.AddDate(-5, 0, 0), f.tickets.cutoff)
		assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.CleanupDeleted))
	})
}

func TestTicketService_Manage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mine := f.ticket(workflow.StatusOpen, 1)
	f.ticket(workflow.StatusOpen, 2)

	tickets, page, err := f.svc.Manage(ctx, f.tech, models.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, mine.ID, tickets[0].ID)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, []int64{1}, f.tickets.lastFilter.ServiceIntervenantIDs)

	tickets, _, err = f.svc.Manage(ctx, f.creator, models.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.NotNil(t, f.tickets.lastFilter.ServiceIntervenantIDs)

	_, _, err = f.svc.Manage(ctx, f.tech, models.TicketFilter{Status: "inconnu"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTicketService_ListMine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ticket(workflow.StatusOpen, 1)
	f.ticket(workflow.StatusOpen, 2)

	tickets, page, err := f.svc.ListMine(ctx, f.creator, models.TicketFilter{ServiceIntervenantIDs: []int64{}})
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, f.creator.ID, f.tickets.lastFilter.CreatorID)
}

func TestTicketService_Dashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tickets.byStatus = map[string]int64{"Ouvert": 3, "Fermé": 1}

	counts, err := f.svc.Dashboard(ctx, f.tech)
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts.Total)
	assert.Equal(t, int64(0), counts.ByStatus["En cours"])
	assert.Len(t, counts.ByStatus, 4)
	assert.Equal(t, []int64{1}, f.tickets.countedIDs)
}

func TestTicketService_TechniciansAndFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.ticket(workflow.StatusOpen, 1)
	f.categories.items[1] = &models.Category{ID: 1, Name: "Réseau", ServiceIntervenantID: 1}
	f.categories.items[2] = &models.Category{ID: 2, Name: "Fournitures", ServiceIntervenantID: 2}

	techs, err := f.svc.Technicians(ctx, f.tech, tk.ID)
	require.NoError(t, err)
	var names []string
	for _, u := range techs {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"bruno", "chloe"}, names)

	_, err = f.svc.Technicians(ctx, f.creator, tk.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	opts, err := f.svc.Filters(ctx, f.tech)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ouvert", "En cours", "Résolu", "Fermé"}, opts.Statuses)
	require.Len(t, opts.ServiceIntervenants, 1)
	assert.Equal(t, "Informatique", opts.ServiceIntervenants[0].Name)
	require.Len(t, opts.Categories, 1)
	assert.Equal(t, "Réseau", opts.Categories[0].Name)
	assert.Len(t, opts.Intervenants, 2)
}

func TestTicketService_ServiceListIsCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.svc.Manage(ctx, f.tech, models.TicketFilter{})
	require.NoError(t, err)
	_, _, err = f.svc.Manage(ctx, f.tech, models.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.intervenants.calls)
}
