package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tylerle0/InvestAnalytics/pkg/config"
	"github.com/tylerle0/InvestAnalytics/pkg/httputil"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

func newTestClient(url string) *Client {
	return NewClient(httputil.New(logger.Nop()), logger.Nop(), config.GeneratorConfig{
		BaseURL: url + "/",
		APIKey:  "sk-test",
		Model:   "gpt-5-nano",
	})
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-5-nano", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "forecast AAPL", req.Messages[1].Content)
		}

		w.Write([]byte(`{"id":"x","choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Chat(context.Background(), "be precise", "forecast AAPL")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestChat_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  "}}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Chat(context.Background(), "s", "u")
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestChat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Chat(context.Background(), "s", "u")
	var statusErr *httputil.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}
