package controllers

import (
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/redrule/reddigen/app/models"
	"github.com/redrule/reddigen/app/repository"
	"github.com/redrule/reddigen/internal/pkg/billing"
	"github.com/redrule/reddigen/internal/pkg/checkout"
	"github.com/redrule/reddigen/internal/pkg/database"
	"github.com/redrule/reddigen/internal/pkg/env"
	"github.com/redrule/reddigen/internal/pkg/jobqueue"
	"github.com/redrule/reddigen/internal/pkg/provider"
	"github.com/redrule/reddigen/internal/pkg/usercontext"
)

var (
	reconcilerOnce sync.Once
	reconciler     *checkout.Reconciler
)

// getReconciler builds the shared redirect/manual reconciler. Tests replace
// the whole instance via SetReconcilerForTest instead of reaching in here.
func getReconciler() *checkout.Reconciler {
	reconcilerOnce.Do(func() {
		if reconciler == nil {
			reconciler = checkout.NewReconciler(
				billing.NewServiceFromDB(database.GetDB()),
				provider.NewClientFromEnv(),
				checkout.NewRedisIntentStore(),
			)
		}
	})
	return reconciler
}

// SetReconcilerForTest injects a reconciler with fake collaborators.
func SetReconcilerForTest(r *checkout.Reconciler) {
	reconcilerOnce.Do(func() {})
	reconciler = r
}

// HandlePaymentWebhook receives provider webhooks. Signature verification is
// fail-closed on the raw body; verified deliveries are logged, acknowledged
// immediately and processed asynchronously so provider retries never pile up
// behind database work.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := firstHeaderValue(c, "Dodo-Signature", "Webhook-Signature", "X-Webhook-Signature")

	skipVerify := strings.EqualFold(env.GetEnv("PAYMENT_WEBHOOK_SKIP_VERIFY", "false"), "true")
	if !skipVerify {
		secret := env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")
		if !billing.VerifyWebhookSignature(rawBody, signature, secret) {
			log.Warnf("[Payment] Webhook rejected: invalid signature (sig present: %t)", signature != "")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
		}
	} else {
		log.Warn("[Payment] Webhook signature verification is disabled")
	}

	evt, err := billing.ParseEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	created, stored, err := svc.RecordWebhookEvent(c.Context(), billing.WebhookEventInput{
		ProviderEventID: evt.ID,
		EventType:       evt.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  !skipVerify,
	})
	if err != nil {
		log.Errorf("[Payment] Failed to persist webhook event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}

	payload := jobqueue.PaymentEventJobPayload{
		WebhookEventID: stored.ID,
		EventType:      evt.Type,
		RawPayload:     string(rawBody),
	}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypePaymentEvent, payload.ToMap()); err != nil {
		// The event row survives; a replay sweep can pick it up later.
		log.Errorf("[Payment] Failed to enqueue webhook event %d: %v", stored.ID, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

type verifyRequest struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	PlanType     string `json:"plan_type"`
	BillingCycle string `json:"billing_cycle"`
}

// HandlePaymentVerify reconciles a checkout after the user returns from the
// hosted payment page. Accepts both the redirect query string and a JSON
// body from the dashboard.
func HandlePaymentVerify(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req verifyRequest
	if c.Method() == fiber.MethodPost {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
		}
	}
	if req.SessionID == "" {
		req.SessionID = firstQueryValue(c, "session_id", "payment_id", "checkout_id")
	}
	if req.Status == "" {
		req.Status = firstQueryValue(c, "status", "payment")
	}
	if req.PlanType == "" {
		req.PlanType = firstQueryValue(c, "plan", "plan_type")
	}
	if req.BillingCycle == "" {
		req.BillingCycle = firstQueryValue(c, "billing", "billing_cycle")
	}

	result, err := getReconciler().HandleReturn(c.Context(), userID, checkout.ReturnParams{
		SessionID: req.SessionID,
		Status:    req.Status,
		PlanHint:  req.PlanType,
		CycleHint: req.BillingCycle,
	})
	if err != nil {
		if errors.Is(err, checkout.ErrMissingSessionID) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "missing_session_id",
				"message": "No checkout session id found. Contact support with your payment confirmation.",
			})
		}
		log.Errorf("[Payment] Verification failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "verification_failed"})
	}
	if result.Pending {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"success":    false,
			"error":      "payment_not_completed",
			"payment_id": result.PaymentID,
			"message":    result.Message,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":    result.Activated,
		"plan":       result.Plan,
		"payment_id": result.PaymentID,
		"message":    result.Message,
	})
}

type manualVerifyRequest struct {
	PlanType     string `json:"plan_type"`
	BillingCycle string `json:"billing_cycle"`
}

// HandlePaymentManualVerify is the support fallback when both the webhook
// and the redirect reconciliation were lost.
func HandlePaymentManualVerify(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req manualVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if strings.TrimSpace(req.PlanType) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_plan_type"})
	}

	result, err := getReconciler().ManualVerify(c.Context(), userID, req.PlanType, req.BillingCycle)
	if err != nil {
		log.Errorf("[Payment] Manual verification failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "verification_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":    result.Activated,
		"plan":       result.Plan,
		"payment_id": result.PaymentID,
		"message":    result.Message,
	})
}

type intentRequest struct {
	SessionID    string `json:"session_id"`
	PlanType     string `json:"plan_type"`
	BillingCycle string `json:"billing_cycle"`
}

// HandlePaymentIntent stores the user's plan selection right before the
// redirect to the hosted checkout.
func HandlePaymentIntent(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req intentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	if err := getReconciler().SaveIntent(c.Context(), userID, req.SessionID, req.PlanType, req.BillingCycle); err != nil {
		log.Errorf("[Payment] Failed to save payment intent for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "intent_save_failed"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"saved": true})
}

// HandlePaymentStatus returns the user's current plan and payment history.
func HandlePaymentStatus(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	if userID == 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	factory := repository.GetGlobalFactory()
	plan, err := factory.GetPlanRepository().GetOrCreateDefault(userID)
	if err != nil {
		log.Errorf("[Payment] Failed to load plan for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "plan_lookup_failed"})
	}

	payments, err := factory.GetPaymentRepository().ListByUserID(userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("[Payment] Failed to load payments for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payment_lookup_failed"})
	}

	hasActivePlan := plan.Status == models.PlanStatusActive && plan.PlanType != models.PlanFree
	isVerified := false
	for _, p := range payments {
		if p.Status == models.PaymentStatusCompleted {
			isVerified = true
			break
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"plan":            plan,
		"payments":        payments,
		"has_active_plan": hasActivePlan,
		"is_verified":     isVerified,
	})
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

func firstQueryValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}
