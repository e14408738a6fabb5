package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdt-io/bdt/internal/models"
	"github.com/bdt-io/bdt/internal/workflow"
)

func (f *fixture) messageService() *MessageService {
	s := NewMessageService(f.svc, f.repos, f.publisher, zerolog.Nop())
	s.clock = func() time.Time { return f.now }
	return s
}

func TestMessageService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("posts renders and publishes", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		svc := f.messageService()

		m, err := svc.Send(ctx, f.creator, &models.CreateMessageRequest{TicketID: tk.ID, Message: " Très *urgent* "})
		require.NoError(t, err)
		assert.Equal(t, "Très *urgent*", m.Body)
		assert.Equal(t, "<p>Très <em>urgent</em></p>", m.BodyHTML)
		assert.NotNil(t, m.Images)
		assert.NotEmpty(t, m.Age)
		require.Len(t, f.publisher.published, 1)
		assert.Equal(t, m.ID, f.publisher.published[0].ID)
	})

	t.Run("attaches uploaded images", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		f.images.items[5] = &models.Image{ID: 5, TicketID: tk.ID, Filename: "fuite.png"}
		f.images.items[6] = &models.Image{ID: 6, TicketID: tk.ID + 1, Filename: "autre.png"}

		m, err := f.messageService().Send(ctx, f.tech, &models.CreateMessageRequest{TicketID: tk.ID, Message: "photo", ImageIDs: []int64{5, 6}})
		require.NoError(t, err)
		require.Len(t, m.Images, 1)
		assert.Equal(t, int64(5), m.Images[0].ID)
		assert.Nil(t, f.images.items[6].MessageID)
	})

	t.Run("empty body", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, err := f.messageService().Send(ctx, f.creator, &models.CreateMessageRequest{TicketID: tk.ID, Message: " \u200b "})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Empty(t, f.publisher.published)
	})

	t.Run("stranger", func(t *testing.T) {
		f := newFixture(t)
		tk := f.ticket(workflow.StatusOpen, 1)
		_, err := f.messageService().Send(ctx, f.eco, &models.CreateMessageRequest{TicketID: tk.ID, Message: "bonjour"})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestMessageService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.ticket(workflow.StatusOpen, 1)
	first := int64(1)
	f.messages.items[1] = &models.Message{ID: 1, TicketID: tk.ID, Body: "un", CreatedAt: f.now.Add(-2 * time.Hour)}
	f.messages.items[2] = &models.Message{ID: 2, TicketID: tk.ID, Body: "deux", CreatedAt: f.now.Add(-time.Hour)}
	f.messages.items[3] = &models.Message{ID: 3, TicketID: tk.ID + 1, Body: "ailleurs"}
	f.images.items[1] = &models.Image{ID: 1, TicketID: tk.ID, MessageID: &first}
	f.images.items[2] = &models.Image{ID: 2, TicketID: tk.ID}

	msgs, err := f.messageService().List(ctx, f.tech, tk.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "un", msgs[0].Body)
	assert.Len(t, msgs[0].Images, 1)
	assert.Empty(t, msgs[1].Images)
	assert.NotNil(t, msgs[1].Images)
	assert.Contains(t, msgs[0].Age, "2 heures")

	_, err = f.messageService().List(ctx, f.eco, tk.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.messageService().List(ctx, f.admin, tk.ID)
	assert.NoError(t, err)
}
