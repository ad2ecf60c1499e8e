package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewbase/crewbase/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAppErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", apperr.NotFound("team not found"), http.StatusNotFound, "team not found"},
		{"forbidden", apperr.Forbidden("not a member of this team"), http.StatusForbidden, "not a member of this team"},
		{"unauthorized", apperr.Unauthorized("invalid credentials"), http.StatusUnauthorized, "invalid credentials"},
		{"conflict", apperr.Conflict("cannot delete personal teams"), http.StatusConflict, "cannot delete personal teams"},
		{"rate limited", apperr.RateLimited("too many requests"), http.StatusTooManyRequests, "too many requests"},
		{"validation", apperr.Validation("email is required"), http.StatusBadRequest, "email is required"},
		{"unclassified hides detail", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteAppError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.body, body["error"])
		})
	}
}

func TestWriteJSONStatusAndBody(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, WriteCreated(rr, map[string]int{"id": 5}))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"id":5}`, rr.Body.String())
}
