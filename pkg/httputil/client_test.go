package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

func TestNew(t *testing.T) {
	client := New(logger.Nop())

	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)

	client = NewWithTimeout(logger.Nop(), 5*time.Second).WithUserAgent("test-agent")
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, "test-agent", client.userAgent)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "investanalytics/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(logger.Nop())

	var out struct {
		Status string `json:"status"`
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer token")

	require.NoError(t, client.GetJSON(context.Background(), server.URL, header, &out))
	assert.Equal(t, "ok", out.Status)
}

func TestPostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"echo":true}`))
	}))
	defer server.Close()

	var out map[string]bool
	err := New(logger.Nop()).PostJSON(context.Background(), server.URL, nil, map[string]string{"a": "b"}, &out)
	require.NoError(t, err)
	assert.True(t, out["echo"])
}

func TestStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	err := New(logger.Nop()).GetJSON(context.Background(), server.URL, nil, &struct{}{})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, "nope", statusErr.Body)
}

func TestGetJSON_ServerErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := New(logger.Nop()).GetJSON(context.Background(), server.URL, nil, nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRedactURL(t *testing.T) {
	u, err := neturl.Parse("https://gnews.io/api/v4/search?q=x&apikey=secret")
	require.NoError(t, err)

	got := redactURL(u)
	assert.NotContains(t, got, "secret")
	assert.Contains(t, got, "q=x")
	assert.Equal(t, "secret", u.Query().Get("apikey"))
}
