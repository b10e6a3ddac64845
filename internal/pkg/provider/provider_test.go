package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		APIKey:     "sk_test",
		APIBaseURL: baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestGetCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/sessions/cs_test_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"id": "cs_test_1",
			"payment_status": "paid",
			"customer_email": "jo@example.com",
			"amount_total": 2999,
			"metadata": {"planType": "professional", "billingCycle": "monthly", "userId": "11"}
		}`)
	}))
	defer srv.Close()

	session, err := newTestClient(srv.URL).GetCheckoutSession(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.True(t, session.Paid())
	assert.Equal(t, int64(2999), session.AmountTotal)
	assert.Equal(t, "professional", session.Metadata["planType"])
}

func TestGetCheckoutSessionUnpaid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "cs_test_2", "payment_status": "open"}`)
	}))
	defer srv.Close()

	session, err := newTestClient(srv.URL).GetCheckoutSession(context.Background(), "cs_test_2")
	require.NoError(t, err)
	assert.False(t, session.Paid())
}

func TestGetCheckoutSessionErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.GetCheckoutSession(context.Background(), "cs_missing")
	assert.Error(t, err)

	_, err = client.GetCheckoutSession(context.Background(), "  ")
	assert.Error(t, err)
}

func TestGetCheckoutSessionNotConfigured(t *testing.T) {
	client := &Client{HTTPClient: http.DefaultClient}
	_, err := client.GetCheckoutSession(context.Background(), "cs_any")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
