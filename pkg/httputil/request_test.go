package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathInt64(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/teams/42", nil)
	req = mux.SetURLVars(req, map[string]string{"team_id": "42"})

	val, err := ParsePathInt64(req, "team_id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)

	_, err = ParsePathInt64(req, "missing")
	assert.Error(t, err)

	req = mux.SetURLVars(req, map[string]string{"team_id": "abc"})
	_, err = ParsePathInt64(req, "team_id")
	assert.Error(t, err)
}

func TestParsePagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/teams", nil)
		p, err := ParsePagination(req)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Skip)
		assert.Equal(t, 100, p.Limit)
	})

	t.Run("explicit values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/teams?skip=10&limit=25", nil)
		p, err := ParsePagination(req)
		require.NoError(t, err)
		assert.Equal(t, 10, p.Skip)
		assert.Equal(t, 25, p.Limit)
	})

	t.Run("out of bounds", func(t *testing.T) {
		for _, query := range []string{"skip=-1", "limit=0", "limit=101", "limit=x"} {
			req := httptest.NewRequest(http.MethodGet, "/teams?"+query, nil)
			_, err := ParsePagination(req)
			assert.Error(t, err, query)
		}
	})
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", BearerToken(req))

	req.Header.Set("Authorization", "bearer lower.case")
	assert.Equal(t, "lower.case", BearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, BearerToken(req))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	assert.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", ClientIP(req))
}
