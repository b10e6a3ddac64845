package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/redrule/reddigen/app/models"
	"github.com/redrule/reddigen/app/repository"
	"github.com/redrule/reddigen/internal/pkg/gemini"
	"github.com/redrule/reddigen/internal/pkg/reddit"
	"github.com/redrule/reddigen/internal/pkg/usercontext"
)

type textGenerator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

var (
	generatorOnce sync.Once
	generator     textGenerator
)

func getGenerator() textGenerator {
	generatorOnce.Do(func() {
		if generator == nil {
			generator = gemini.NewClientFromEnv()
		}
	})
	return generator
}

// SetGeneratorForTest injects a fake AI backend.
func SetGeneratorForTest(g textGenerator) {
	generatorOnce.Do(func() {})
	generator = g
}

var rulesClient = reddit.NewClient()

type generateRequest struct {
	Subreddit string `json:"subreddit"`
	Topic     string `json:"topic"`
	Tone      string `json:"tone"`
}

type optimizeRequest struct {
	Subreddit string `json:"subreddit"`
	Title     string `json:"title"`
	Content   string `json:"content"`
}

type generatedPost struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// HandleGeneratePost creates a new post draft for a subreddit. Costs one
// credit; exhausted plans get 402 before any AI call is made.
func HandleGeneratePost(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	req.Subreddit = reddit.NormalizeSubreddit(req.Subreddit)
	if req.Subreddit == "" || strings.TrimSpace(req.Topic) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_fields", "message": "subreddit and topic are required"})
	}

	remaining, err := deductCredit(userID)
	if err != nil {
		return creditError(c, err)
	}

	rules := fetchRulesOrDefault(c.Context(), req.Subreddit)
	tone := strings.TrimSpace(req.Tone)
	if tone == "" {
		tone = "casual and authentic"
	}

	prompt := fmt.Sprintf(`You are an experienced Reddit user writing a post for r/%s.

Subreddit rules:
%s

Write a post about: %s
Tone: %s

The post must comply with every rule above. Respond with a JSON object: {"title": "...", "content": "..."}`,
		req.Subreddit, rules, strings.TrimSpace(req.Topic), tone)

	post, err := generatePost(c.Context(), prompt, 0.8)
	if err != nil {
		return aiError(c, err)
	}

	saveHistory(userID, req.Subreddit, post, models.PostTypeGenerated)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post":              post,
		"credits_remaining": remaining,
	})
}

// HandleOptimizePost rewrites an existing draft against the subreddit's
// rules. Costs one credit.
func HandleOptimizePost(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req optimizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	req.Subreddit = reddit.NormalizeSubreddit(req.Subreddit)
	if req.Subreddit == "" || strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_fields", "message": "subreddit and content are required"})
	}

	remaining, err := deductCredit(userID)
	if err != nil {
		return creditError(c, err)
	}

	rules := fetchRulesOrDefault(c.Context(), req.Subreddit)
	prompt := fmt.Sprintf(`You are an experienced Reddit user. Rewrite the following draft so it fits r/%s and complies with its rules, keeping the author's voice.

Subreddit rules:
%s

Original title: %s
Original post:
%s

Respond with a JSON object: {"title": "...", "content": "..."}`,
		req.Subreddit, rules, strings.TrimSpace(req.Title), req.Content)

	post, err := generatePost(c.Context(), prompt, 0.6)
	if err != nil {
		return aiError(c, err)
	}

	saveHistory(userID, req.Subreddit, post, models.PostTypeOptimized)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post":              post,
		"credits_remaining": remaining,
	})
}

// HandleSubredditRules proxies the rules of a subreddit for the dashboard.
func HandleSubredditRules(c *fiber.Ctx) error {
	subreddit := reddit.NormalizeSubreddit(c.Params("subreddit"))
	if subreddit == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_subreddit"})
	}

	rules, err := rulesClient.FetchRules(c.Context(), subreddit)
	if err != nil {
		log.Warnf("[Post] Failed to fetch rules for r/%s: %v", subreddit, err)
		rules = reddit.DefaultRulesText
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"subreddit": subreddit, "rules": rules})
}

// HandleHealth is the liveness endpoint.
func HandleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func deductCredit(userID uint) (int, error) {
	repo := repository.GetGlobalFactory().GetPlanRepository()
	if _, err := repo.GetOrCreateDefault(userID); err != nil {
		return 0, err
	}
	return repo.DeductCredit(userID)
}

func creditError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":   "credits_exhausted",
			"message": "No credits remaining. Upgrade your plan to continue.",
		})
	}
	log.Errorf("[Post] Credit deduction failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "credit_deduction_failed"})
}

func aiError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, gemini.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited", "message": "AI service is busy, try again shortly"})
	case errors.Is(err, gemini.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "ai_unavailable", "message": "AI service is temporarily unavailable"})
	default:
		log.Errorf("[Post] Generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "generation_failed"})
	}
}

func fetchRulesOrDefault(ctx context.Context, subreddit string) string {
	rules, err := rulesClient.FetchRules(ctx, subreddit)
	if err != nil {
		log.Warnf("[Post] Falling back to default rules for r/%s: %v", subreddit, err)
		return reddit.DefaultRulesText
	}
	return rules
}

func generatePost(ctx context.Context, prompt string, temperature float64) (*generatedPost, error) {
	text, err := getGenerator().Generate(ctx, prompt, temperature)
	if err != nil {
		return nil, err
	}

	var post generatedPost
	if raw, ok := gemini.ExtractJSON(text); ok {
		if err := json.Unmarshal([]byte(raw), &post); err == nil && post.Content != "" {
			return &post, nil
		}
	}

	// Model ignored the JSON instruction; treat the first line as the title.
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 2)
	post.Title = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		post.Content = strings.TrimSpace(lines[1])
	} else {
		post.Content = post.Title
	}
	return &post, nil
}

func saveHistory(userID uint, subreddit string, post *generatedPost, postType string) {
	entry := &models.PostHistory{
		UserID:    userID,
		Subreddit: subreddit,
		Title:     post.Title,
		Content:   post.Content,
		PostType:  postType,
	}
	if err := repository.GetGlobalFactory().GetHistoryRepository().Create(entry); err != nil {
		log.Errorf("[Post] Failed to save history for user %d: %v", userID, err)
	}
}
