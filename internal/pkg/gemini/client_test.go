package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return &Client{
		APIKey:     "test-key",
		APIURL:     url,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"hello from the model"}]}}]}`)
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), "say hello", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", text)
}

func TestGenerateRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Generate(context.Background(), "retry me", 0.7)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateRateLimitedAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "again", 0.7)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Generate(context.Background(), "bad", 0.7)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateMissingAPIKey(t *testing.T) {
	client := &Client{HTTPClient: http.DefaultClient}
	_, err := client.Generate(context.Background(), "no key", 0.7)
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"bare object", `{"title":"t"}`, `{"title":"t"}`, true},
		{"fenced object", "```json\n{\"title\":\"t\"}\n```", `{"title":"t"}`, true},
		{"object with prose", `Here you go: {"title":"t","content":"c"} hope it helps`, `{"title":"t","content":"c"}`, true},
		{"no object", "just text", "", false},
		{"unbalanced", "} {", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
