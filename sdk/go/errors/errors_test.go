package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		code  int
		check func(error) bool
	}{
		{http.StatusBadRequest, IsValidation},
		{http.StatusUnauthorized, IsUnauthorized},
		{http.StatusForbidden, IsForbidden},
		{http.StatusNotFound, IsNotFound},
		{http.StatusConflict, IsConflict},
		{http.StatusTooManyRequests, IsRateLimited},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewAPIError(tt.code, ""))
			assert.True(t, tt.check(err))
			assert.True(t, IsAPIError(err))
			assert.False(t, IsNetwork(err))
		})
	}
}

func TestAPIErrorDefaultMessage(t *testing.T) {
	assert.Equal(t, "Not Found", NewAPIError(http.StatusNotFound, "").Message)
	assert.Equal(t, "Accès refusé", NewAPIError(http.StatusForbidden, "Accès refusé").Message)
}

func TestNetworkError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := &NetworkError{Operation: "GET", URL: "http://x/api", Err: cause}
	assert.True(t, IsNetwork(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsAPIError(err))
}
