package booking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xerrors "salonfunnel-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-token", zap.NewNop())
}

func TestGetClientMetrics(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clients/42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"phone":"+355","visits_count":4,"spent":980.5}`))
	})

	metrics, err := c.GetClientMetrics(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, "+355", metrics.Phone)
	assert.Equal(t, int64(4), metrics.VisitCount)
	assert.Equal(t, 980.5, metrics.TotalSpent)
}

func TestGetClientMetricsUpstreamError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetClientMetrics(context.Background(), 42)

	assert.ErrorIs(t, err, xerrors.ErrUpstreamUnavailable)
}

func TestHasCompletedVisitBefore(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clients/42/records", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"datetime":"2026-01-10T10:00:00Z","attendance":1,"services":[{"title":"Consultation"}]},
			{"datetime":"2026-01-20T10:00:00Z","attendance":-1,"services":[{"title":"Manicure"}]},
			{"datetime":"2026-02-01T10:00:00Z","attendance":2,"services":[{"title":"Hair Extension"}]}
		]`))
	})

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Only the completed non-consultation visit counts.
	ok, err := c.HasCompletedVisitBefore(context.Background(), 42, cutoff)
	require.NoError(t, err)
	assert.True(t, ok)

	// Before the qualifying visit: consultation and no-show do not count.
	ok, err = c.HasCompletedVisitBefore(context.Background(), 42, time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, ok)
}
