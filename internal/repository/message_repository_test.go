package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdt-io/bdt/internal/models"
)

func TestMessageRepositoryCreate(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	t.Run("without images", func(t *testing.T) {
		db, mock := newMock(t, "postgres")
		mock.ExpectQuery(`INSERT INTO ticket_messages .* RETURNING id`).
			WithArgs(int64(3), int64(7), "bonjour", false, sqlmock.AnyArg(), now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(40))

		m := &models.Message{TicketID: 3, AuthorID: 7, Body: "bonjour", CreatedAt: now}
		require.NoError(t, NewMessageRepository(db).Create(context.Background(), m, nil))
		assert.Equal(t, int64(40), m.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("attaches images in the same transaction", func(t *testing.T) {
		db, mock := newMock(t, "postgres")
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO ticket_messages .* RETURNING id`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))
		mock.ExpectExec(`UPDATE ticket_images SET message_id = \$1\s+WHERE ticket_id = \$2 AND message_id IS NULL AND id IN \(\$3, \$4\)`).
			WithArgs(int64(41), int64(3), int64(5), int64(6)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		m := &models.Message{TicketID: 3, AuthorID: 7, Body: "photo", CreatedAt: now}
		require.NoError(t, NewMessageRepository(db).Create(context.Background(), m, []int64{5, 6}))
		assert.Equal(t, int64(41), m.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed attach rolls the message back", func(t *testing.T) {
		db, mock := newMock(t, "postgres")
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO ticket_messages`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
		mock.ExpectExec(`UPDATE ticket_images`).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		m := &models.Message{TicketID: 3, AuthorID: 7, Body: "photo", CreatedAt: now}
		err := NewMessageRepository(db).Create(context.Background(), m, []int64{5})
		assert.ErrorContains(t, err, "attach images")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
