package resilience_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

func flakyServer(t *testing.T, failures int32) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":"UNAVAILABLE","message":"try later"}}`))
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newClient() resilience.HTTPClient {
	return resilience.HTTPClient{
		Client:      http.DefaultClient,
		Breaker:     resilience.NewBreaker(100, 1, time.Second),
		BaseBackoff: time.Millisecond,
		MaxAttempts: 3,
		Timeout:     time.Second,
	}
}

func TestHTTPClientRetriesIdempotentRequests(t *testing.T) {
	srv, hits := flakyServer(t, 2)
	req, err := http.NewRequest(http.MethodPut, srv.URL, strings.NewReader(`{"total":"129231"}`))
	require.NoError(t, err)

	resp, err := newClient().Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, `{"total":"129231"}`, string(body))
	require.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestHTTPClientSendsPostOnce(t *testing.T) {
	srv, hits := flakyServer(t, 1)
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{}`))
	require.NoError(t, err)

	resp, err := newClient().Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestHTTPClientReturnsLastServerError(t *testing.T) {
	srv, hits := flakyServer(t, 10)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := newClient().Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "UNAVAILABLE")
	require.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestHTTPClientOpenBreaker(t *testing.T) {
	srv, hits := flakyServer(t, 10)
	client := newClient()
	client.Breaker = resilience.NewBreaker(1, 0.5, time.Minute)
	client.MaxAttempts = 1

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = client.Do(context.Background(), req)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestIdempotentMethod(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		require.True(t, resilience.IdempotentMethod(httptest.NewRequest(m, "/", nil)), m)
	}
	require.False(t, resilience.IdempotentMethod(httptest.NewRequest(http.MethodPost, "/", nil)))
}
