package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketHelpers(t *testing.T) {
	t.Run("WorkflowState maps service fields", func(t *testing.T) {
		ticket := &Ticket{Status: "En cours", ServiceIntervenantID: 3, ServiceIntervenantName: "Informatique"}
		st := ticket.WorkflowState()
		assert.Equal(t, "En cours", string(st.Status))
		assert.Equal(t, int64(3), st.ServiceIntervenantID)
		assert.Equal(t, "Informatique", st.ServiceName)
	})

	t.Run("IsClosed", func(t *testing.T) {
		assert.False(t, (&Ticket{Status: "Ouvert"}).IsClosed())
		assert.True(t, (&Ticket{Status: "Résolu"}).IsClosed())
		assert.True(t, (&Ticket{Status: "Fermé"}).IsClosed())
	})
}

func TestPagination(t *testing.T) {
	p := NewPagination(42, 2, 10)
	assert.Equal(t, 5, p.TotalPages)
	assert.Equal(t, int64(42), p.Total)

	assert.Equal(t, 0, NewPagination(0, 1, 10).TotalPages)

	q := ListQuery{Page: 0, Limit: 500}
	q.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 100, q.Limit)
	assert.Equal(t, 0, q.Offset())

	q = ListQuery{Page: 3, Limit: 20}
	q.Normalize()
	assert.Equal(t, 40, q.Offset())
}
