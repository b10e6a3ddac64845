package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/redrule/reddigen/internal/pkg/env"
)

const defaultAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

const (
	defaultRetries = 3
	maxBackoff     = 10 * time.Second
)

// ErrRateLimited is returned when the AI backend keeps answering 429 after
// all retries.
var ErrRateLimited = errors.New("AI service is rate limited")

// ErrUnavailable is returned when the AI backend keeps failing with 5xx.
var ErrUnavailable = errors.New("AI service is temporarily unavailable")

// Client calls the Gemini content generation API.
type Client struct {
	APIKey string
	APIURL string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a Gemini client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey: strings.TrimSpace(env.GetEnv("GEMINI_API_KEY", "")),
		APIURL: strings.TrimSpace(env.GetEnv("GEMINI_API_URL", defaultAPIURL)),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends a prompt and returns the first candidate text. Rate limits
// and server errors are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("Gemini API key missing")
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: 2048,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	var lastStatus int
	var lastErr error
	for attempt := 1; attempt <= defaultRetries; attempt++ {
		text, status, err := c.doGenerate(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastStatus = status
		lastErr = err

		retryable := status == http.StatusTooManyRequests || status >= 500
		if !retryable || attempt == defaultRetries {
			break
		}

		delay := time.Second << (attempt - 1)
		if delay > maxBackoff {
			delay = maxBackoff
		}
		log.Warnf("[Gemini] Attempt %d failed (status %d), retrying in %s", attempt, status, delay)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	switch {
	case lastStatus == http.StatusTooManyRequests:
		return "", ErrRateLimited
	case lastStatus >= 500:
		return "", ErrUnavailable
	default:
		return "", lastErr
	}
}

func (c *Client) doGenerate(ctx context.Context, payload []byte) (string, int, error) {
	url := fmt.Sprintf("%s?key=%s", c.APIURL, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("gemini API returned status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("invalid gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", resp.StatusCode, errors.New("empty gemini response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, resp.StatusCode, nil
}

// ExtractJSON pulls the first JSON object out of a model response that may
// wrap it in prose or code fences.
func ExtractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
