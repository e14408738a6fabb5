package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdt-io/bdt/internal/models"
)

func TestCategoryRepositoryUpdate(t *testing.T) {
	moveQuery := `UPDATE ticket_categories SET name = \?, service_intervenant_id = \?\s+WHERE id = \? AND \(service_intervenant_id = \?\s+OR NOT EXISTS \(SELECT 1 FROM tickets WHERE category_id = \?\)\)`
	categoryRow := func(serviceID int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "service_intervenant_id", "created_at"}).
			AddRow(4, "Réseau", serviceID, time.Now())
	}

	t.Run("move", func(t *testing.T) {
		db, mock := newMock(t, "mysql")
		mock.ExpectExec(moveQuery).
			WithArgs("Réseau", int64(2), int64(4), int64(2), int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewCategoryRepository(db).Update(context.Background(), &models.Category{ID: 4, Name: " Réseau ", ServiceIntervenantID: 2})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("used by tickets", func(t *testing.T) {
		db, mock := newMock(t, "mysql")
		mock.ExpectExec(moveQuery).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT id, name, service_intervenant_id, created_at FROM ticket_categories WHERE id = \?`).
			WithArgs(int64(4)).
			WillReturnRows(categoryRow(1))

		err := NewCategoryRepository(db).Update(context.Background(), &models.Category{ID: 4, Name: "Réseau", ServiceIntervenantID: 2})
		assert.ErrorIs(t, err, ErrInUse)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unchanged row", func(t *testing.T) {
		db, mock := newMock(t, "mysql")
		mock.ExpectExec(moveQuery).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .* FROM ticket_categories WHERE id = \?`).WillReturnRows(categoryRow(1))

		err := NewCategoryRepository(db).Update(context.Background(), &models.Category{ID: 4, Name: "Réseau", ServiceIntervenantID: 1})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t, "mysql")
		mock.ExpectExec(moveQuery).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .* FROM ticket_categories WHERE id = \?`).WillReturnRows(
			sqlmock.NewRows([]string{"id", "name", "service_intervenant_id", "created_at"}))

		err := NewCategoryRepository(db).Update(context.Background(), &models.Category{ID: 4, Name: "Réseau", ServiceIntervenantID: 1})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
