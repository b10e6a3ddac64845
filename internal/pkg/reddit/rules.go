package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const rulesURLFormat = "https://www.reddit.com/r/%s/about/rules.json"

// DefaultRulesText is returned when a subreddit publishes no rules.
const DefaultRulesText = "Standard Reddit etiquette"

// Rule is a single subreddit rule.
type Rule struct {
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
}

type rulesResponse struct {
	Rules []Rule `json:"rules"`
}

// Client fetches subreddit rules.
type Client struct {
	HTTPClient *http.Client
}

// NewClient creates a rules client with a bounded timeout.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NormalizeSubreddit strips the r/ prefix and lowercases the name.
func NormalizeSubreddit(subreddit string) string {
	s := strings.ToLower(strings.TrimSpace(subreddit))
	return strings.TrimPrefix(s, "r/")
}

// FetchRules retrieves and formats the rules of a subreddit.
func (c *Client) FetchRules(ctx context.Context, subreddit string) (string, error) {
	name := NormalizeSubreddit(subreddit)
	url := fmt.Sprintf(rulesURLFormat, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit rules request returned status %d", resp.StatusCode)
	}

	var parsed rulesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("invalid rules response: %w", err)
	}

	return FormatRules(parsed.Rules), nil
}

// FormatRules renders rules into the prompt-friendly text block.
func FormatRules(rules []Rule) string {
	if len(rules) == 0 {
		return DefaultRulesText
	}

	var b strings.Builder
	for i, rule := range rules {
		fmt.Fprintf(&b, "**Rule %d: %s**\n%s\n\n", i+1, rule.ShortName, rule.Description)
	}
	return b.String()
}
