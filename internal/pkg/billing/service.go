package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/redrule/reddigen/app/models"
	"github.com/redrule/reddigen/app/repository"
)

// ErrMissingPaymentID is returned when an activation command carries no
// external session identifier.
var ErrMissingPaymentID = errors.New("payment id is required")

// Service is the plan activation engine. It owns the only authoritative
// mutation of the plan ledger; every reconciliation path (webhook,
// redirect-return, manual verify) submits commands here.
type Service struct {
	plans    repository.PlanRepository
	payments repository.PaymentRepository
	profiles repository.ProfileRepository

	now func() time.Time
}

// NewService creates an activation engine from injected repositories.
func NewService(plans repository.PlanRepository, payments repository.PaymentRepository, profiles repository.ProfileRepository) *Service {
	return &Service{
		plans:    plans,
		payments: payments,
		profiles: profiles,
		now:      time.Now,
	}
}

// NewServiceFromDB creates an activation engine from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	repos := repository.NewRepositories(db)
	return NewService(repos.Plan, repos.Payment, repos.Profile)
}

// WithClock overrides the engine clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Activate durably records a confirmed payment and upserts the plan ledger,
// idempotent under repeated calls with the same payment id. The unique index
// on payment_records.payment_id is the real guard; the prior read is only a
// fast path, so concurrent first-time activations collapse onto one insert.
func (s *Service) Activate(ctx context.Context, cmd ActivatePlanCommand) (*models.UserPlan, error) {
	_ = ctx
	if cmd.UserID == 0 {
		return nil, errors.New("user_id is required")
	}
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}

	if _, err := s.payments.GetCompleted(paymentID); err == nil {
		// Duplicate delivery: another path already granted this payment.
		return s.plans.GetOrCreateDefault(cmd.UserID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	planType := normalizePlan(cmd.PlanType)
	if planType == "" || planType == models.PlanFree {
		planType = models.PlanStarter
	}
	cycle := normalizeCycle(cmd.BillingCycle)
	now := s.now()

	record := &models.PaymentRecord{
		PaymentID:    paymentID,
		UserID:       cmd.UserID,
		PlanType:     planType,
		Amount:       cmd.Amount,
		BillingCycle: cycle,
		Status:       models.PaymentStatusCompleted,
		VerifiedAt:   &now,
	}
	created, _, err := s.payments.CreateIfNotExists(record)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the insert race; the winner performed the upsert.
		return s.plans.GetOrCreateDefault(cmd.UserID)
	}

	grant := PlanGrant(planType)
	expiresAt := ComputeExpiry(now, cycle)
	plan := &models.UserPlan{
		UserID:           cmd.UserID,
		PlanType:         planType,
		BillingCycle:     cycle,
		CreditsRemaining: grant,
		PostsPerMonth:    grant,
		Amount:           cmd.Amount,
		Status:           models.PlanStatusActive,
		ActivatedAt:      &now,
		ExpiresAt:        &expiresAt,
	}
	if err := s.plans.Upsert(plan); err != nil {
		return nil, err
	}

	log.Infof("[Billing] Plan activated: user=%d plan=%s cycle=%s credits=%d payment=%s",
		cmd.UserID, planType, cycle, grant, paymentID)
	return plan, nil
}

// MarkPaymentFailed transitions the matching payment record to failed.
func (s *Service) MarkPaymentFailed(ctx context.Context, paymentID string) error {
	_ = ctx
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return ErrMissingPaymentID
	}
	return s.payments.MarkFailed(paymentID)
}

// DowngradeToFree resets a user to the free tier after a subscription
// cancellation: free-tier credits, inactive status, expiry now.
func (s *Service) DowngradeToFree(ctx context.Context, userID uint) (*models.UserPlan, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	now := s.now()
	plan := &models.UserPlan{
		UserID:           userID,
		PlanType:         models.PlanFree,
		BillingCycle:     models.BillingCycleMonthly,
		CreditsRemaining: models.FreeTierCredits,
		PostsPerMonth:    models.FreeTierCredits,
		Status:           models.PlanStatusInactive,
		ExpiresAt:        &now,
	}
	if err := s.plans.Upsert(plan); err != nil {
		return nil, err
	}

	log.Infof("[Billing] Plan downgraded to free: user=%d", userID)
	return plan, nil
}

// RecordWebhookEvent persists webhook payloads idempotently. Deliveries
// without a provider event id are keyed by a payload hash.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.PaymentWebhookEvent, error) {
	_ = ctx
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.PaymentWebhookEvent{
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.payments.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.payments.MarkWebhookProcessed(webhookEventID, errMsg)
}

// ProcessEvent routes a verified provider event to its handler. It is called
// after the webhook has been acknowledged, so failures are reported to the
// caller for logging only and never reach the provider.
func (s *Service) ProcessEvent(ctx context.Context, evt Event) error {
	switch {
	case IsPaymentSuccessEvent(evt.Type):
		return s.handlePaymentSuccess(ctx, evt)
	case evt.Type == EventPaymentFailed:
		log.Warnf("[Billing] Payment failed: %s", evt.Data.ID)
		return s.MarkPaymentFailed(ctx, evt.Data.ID)
	case evt.Type == EventSubscriptionCancelled:
		return s.handleSubscriptionCancelled(ctx, evt)
	default:
		log.Infof("[Billing] Ignoring webhook event type %q", evt.Type)
		return nil
	}
}

func (s *Service) handlePaymentSuccess(ctx context.Context, evt Event) error {
	if strings.TrimSpace(evt.Data.ID) == "" {
		log.Errorf("[Billing] Payment event %q without session id, skipping", evt.Type)
		return nil
	}

	userID := s.resolveEventUser(evt)
	if userID == 0 {
		// No store mutation for unknown users; keep enough context for
		// manual replay.
		log.Errorf("[Billing] Could not resolve user for payment %s (email=%q), skipping",
			evt.Data.ID, evt.Data.CustomerEmail)
		return nil
	}

	_, err := s.Activate(ctx, ActivatePlanCommand{
		UserID:       userID,
		PaymentID:    evt.Data.ID,
		PlanType:     evt.Data.Metadata.PlanType,
		BillingCycle: evt.Data.Metadata.BillingCycle,
		Amount:       float64(evt.Data.AmountTotal) / 100,
	})
	return err
}

func (s *Service) handleSubscriptionCancelled(ctx context.Context, evt Event) error {
	userID := s.resolveEventUser(evt)
	if userID == 0 {
		if uid, err := s.payments.FindUserByPaymentID(evt.Data.ID); err == nil {
			userID = uid
		}
	}
	if userID == 0 {
		log.Errorf("[Billing] Cancellation for unknown subscription %s, skipping", evt.Data.ID)
		return nil
	}
	_, err := s.DowngradeToFree(ctx, userID)
	return err
}

// resolveEventUser maps event metadata to a local user id, preferring the
// userId we embedded in the checkout metadata and falling back to the
// checkout email.
func (s *Service) resolveEventUser(evt Event) uint {
	if raw := strings.TrimSpace(evt.Data.Metadata.UserID); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
			return uint(id)
		}
	}
	email := strings.TrimSpace(evt.Data.CustomerEmail)
	if email == "" {
		return 0
	}
	profile, err := s.profiles.GetByEmail(email)
	if err != nil {
		return 0
	}
	return profile.UserID
}
