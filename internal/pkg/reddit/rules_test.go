package reddit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSubreddit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"golang", "golang"},
		{"r/golang", "golang"},
		{"R/GoLang", "golang"},
		{"  r/AskReddit  ", "askreddit"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSubreddit(tt.in), "input %q", tt.in)
	}
}

func TestFormatRules(t *testing.T) {
	rules := []Rule{
		{ShortName: "Be civil", Description: "No personal attacks."},
		{ShortName: "On topic", Description: "Posts must relate to Go."},
	}

	got := FormatRules(rules)
	assert.Contains(t, got, "**Rule 1: Be civil**\nNo personal attacks.")
	assert.Contains(t, got, "**Rule 2: On topic**\nPosts must relate to Go.")
}

func TestFormatRulesEmpty(t *testing.T) {
	assert.Equal(t, DefaultRulesText, FormatRules(nil))
	assert.Equal(t, DefaultRulesText, FormatRules([]Rule{}))
}

func TestFetchRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/golang/about/rules.json", r.URL.Path)
		fmt.Fprint(w, `{"rules":[{"short_name":"Be civil","description":"No personal attacks."}]}`)
	}))
	defer srv.Close()

	client := NewClient()
	// Route the request at the test server instead of reddit.com.
	client.HTTPClient = srv.Client()
	client.HTTPClient.Transport = rewriteHost(srv.URL)

	rules, err := client.FetchRules(context.Background(), "r/golang")
	require.NoError(t, err)
	assert.Contains(t, rules, "**Rule 1: Be civil**")
}

func TestFetchRulesNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient()
	client.HTTPClient = srv.Client()
	client.HTTPClient.Transport = rewriteHost(srv.URL)

	_, err := client.FetchRules(context.Background(), "doesnotexist")
	assert.Error(t, err)
}

type hostRewriter struct {
	target string
	next   http.RoundTripper
}

func rewriteHost(target string) http.RoundTripper {
	return hostRewriter{target: target, next: http.DefaultTransport}
}

func (h hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten, err := http.NewRequestWithContext(req.Context(), req.Method, h.target+req.URL.Path, req.Body)
	if err != nil {
		return nil, err
	}
	rewritten.Header = req.Header
	return h.next.RoundTrip(rewritten)
}
