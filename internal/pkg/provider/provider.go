package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redrule/reddigen/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.dodopayments.com/v1"

// ErrNotConfigured signals that no provider API key is set; callers fall
// back to client-supplied plan hints (never to client-supplied grants).
var ErrNotConfigured = errors.New("payment provider API is not configured")

// CheckoutSession is the provider's view of a checkout, the trusted source
// for plan metadata during verification.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	CustomerEmail string            `json:"customer_email"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// Paid reports whether the provider confirmed this checkout as settled.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

// SessionLookup resolves a checkout session id against the provider API.
type SessionLookup interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// Client is the HTTP implementation of SessionLookup.
type Client struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a provider client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("PAYMENT_PROVIDER_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("PAYMENT_PROVIDER_API_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetCheckoutSession fetches a checkout session by id.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	url := fmt.Sprintf("%s/checkout/sessions/%s", c.APIBaseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider session lookup failed: status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("invalid provider session response: %w", err)
	}
	return &session, nil
}
