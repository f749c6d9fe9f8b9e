package dnc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

func TestCheckSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/check", r.URL.Path)
		assert.Equal(t, "3035551234", r.URL.Query().Get("phone"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(CheckResponse{
			Phone:     "3035551234",
			DoNotCall: true,
			Reason:    "federal registry",
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	resp, err := c.Check(context.Background(), "tok-1", "3035551234")
	require.NoError(t, err)
	assert.True(t, resp.DoNotCall)
	assert.Equal(t, "federal registry", resp.Reason)
}

func TestCheckEmptyPhoneIsValidationError(t *testing.T) {
	c := NewClient()
	_, err := c.Check(context.Background(), "tok", "")
	require.Error(t, err)
	assert.True(t, resilience.IsValidation(err))
}

func TestCheckAuthRejection(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "token expired", status)
		}))

		c := NewClient(WithBaseURL(srv.URL))
		_, err := c.Check(context.Background(), "stale-token", "3035551234")
		require.Error(t, err)

		var ae *resilience.AuthError
		require.ErrorAs(t, err, &ae, "status %d", status)
		assert.Equal(t, status, ae.StatusCode)
		assert.False(t, resilience.IsRetryable(err), "auth errors go through the refresh path, not retry")

		srv.Close()
	}
}

func TestCheckRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Check(context.Background(), "tok", "3035551234")
	require.Error(t, err)

	var rle *resilience.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, ProviderKey, rle.Provider)
}

func TestCheckServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Check(context.Background(), "tok", "3035551234")
	require.Error(t, err)

	var pe *resilience.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Transient)
}
