package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/redrule/reddigen/app/models"
	"github.com/redrule/reddigen/internal/pkg/billing"
	"github.com/redrule/reddigen/internal/pkg/provider"
)

// ErrMissingSessionID is returned when neither the return URL nor the stored
// intent carries a checkout session id.
var ErrMissingSessionID = errors.New("no checkout session id available")

// ReturnParams is the query-string payload the provider appends when it
// redirects the user back to the dashboard.
type ReturnParams struct {
	SessionID string
	Status    string
	PlanHint  string
	CycleHint string
}

// Result describes the outcome of a reconciliation attempt.
type Result struct {
	Activated bool             `json:"activated"`
	Pending   bool             `json:"pending"`
	PaymentID string           `json:"payment_id,omitempty"`
	Plan      *models.UserPlan `json:"plan,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// Reconciler drives the redirect-return and manual verification paths. It
// never mutates the plan ledger itself; every outcome funnels into the
// activation engine. Plan metadata is re-derived from the provider whenever
// the provider API is configured; client hints only select the plan when the
// provider cannot be asked, and the client-sent amount never sizes grants.
type Reconciler struct {
	Billing  *billing.Service
	Provider provider.SessionLookup
	Intents  IntentStore

	now func() time.Time
}

// NewReconciler wires the reconciler from its collaborators.
func NewReconciler(svc *billing.Service, lookup provider.SessionLookup, intents IntentStore) *Reconciler {
	return &Reconciler{
		Billing:  svc,
		Provider: lookup,
		Intents:  intents,
		now:      time.Now,
	}
}

// WithClock overrides the reconciler clock. Test hook.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// HandleReturn reconciles a user arriving back from the hosted checkout.
// The session id from the URL wins; a stored intent fills in when the
// provider stripped it from the redirect.
func (r *Reconciler) HandleReturn(ctx context.Context, userID uint, params ReturnParams) (*Result, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	intent, err := r.Intents.Load(ctx, userID)
	if err != nil {
		log.Warnf("[Checkout] Failed to load payment intent for user %d: %v", userID, err)
		intent = nil
	}

	sessionID := strings.TrimSpace(params.SessionID)
	if sessionID == "" && intent != nil {
		sessionID = intent.SessionID
	}

	status := strings.ToLower(strings.TrimSpace(params.Status))
	if status == "cancelled" || status == "canceled" || status == "failed" {
		r.clearIntent(ctx, userID)
		return &Result{Message: "Checkout was not completed"}, nil
	}

	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	planType := strings.TrimSpace(params.PlanHint)
	cycle := strings.TrimSpace(params.CycleHint)
	if intent != nil {
		if planType == "" {
			planType = intent.PlanType
		}
		if cycle == "" {
			cycle = intent.BillingCycle
		}
	}

	var amount float64
	session, err := r.Provider.GetCheckoutSession(ctx, sessionID)
	switch {
	case err == nil:
		if !session.Paid() {
			return &Result{
				Pending:   true,
				PaymentID: sessionID,
				Message:   "Payment is still processing",
			}, nil
		}
		// Provider is the source of truth: its metadata overrides whatever
		// the browser sent along.
		if v := session.Metadata["planType"]; v != "" {
			planType = v
		}
		if v := session.Metadata["billingCycle"]; v != "" {
			cycle = v
		}
		amount = float64(session.AmountTotal) / 100
	case errors.Is(err, provider.ErrNotConfigured):
		log.Warnf("[Checkout] Provider API not configured, activating session %s from stored intent", sessionID)
	default:
		return nil, fmt.Errorf("checkout session lookup: %w", err)
	}

	plan, err := r.Billing.Activate(ctx, billing.ActivatePlanCommand{
		UserID:       userID,
		PaymentID:    sessionID,
		PlanType:     planType,
		BillingCycle: cycle,
		Amount:       amount,
	})
	if err != nil {
		return nil, err
	}

	r.clearIntent(ctx, userID)
	return &Result{
		Activated: true,
		PaymentID: sessionID,
		Plan:      plan,
		Message:   "Plan activated",
	}, nil
}

// ManualVerify is the support fallback for payments where both the webhook
// and the redirect were lost. It mints a synthetic payment id, so repeated
// clicks within the same second stay idempotent while a later genuine
// webhook for the real session id is still deduplicated on its own key.
func (r *Reconciler) ManualVerify(ctx context.Context, userID uint, planType, cycle string) (*Result, error) {
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	paymentID := fmt.Sprintf("manual_%d", r.now().Unix())
	plan, err := r.Billing.Activate(ctx, billing.ActivatePlanCommand{
		UserID:       userID,
		PaymentID:    paymentID,
		PlanType:     planType,
		BillingCycle: cycle,
	})
	if err != nil {
		return nil, err
	}

	r.clearIntent(ctx, userID)
	return &Result{
		Activated: true,
		PaymentID: paymentID,
		Plan:      plan,
		Message:   "Plan activated manually",
	}, nil
}

// SaveIntent stores a pending checkout intent before the user leaves for the
// hosted payment page.
func (r *Reconciler) SaveIntent(ctx context.Context, userID uint, sessionID, planType, cycle string) error {
	return r.Intents.Save(ctx, userID, PendingPaymentIntent{
		SessionID:    strings.TrimSpace(sessionID),
		PlanType:     strings.TrimSpace(planType),
		BillingCycle: strings.TrimSpace(cycle),
		CreatedAt:    r.now(),
	})
}

func (r *Reconciler) clearIntent(ctx context.Context, userID uint) {
	if err := r.Intents.Clear(ctx, userID); err != nil {
		log.Warnf("[Checkout] Failed to clear payment intent for user %d: %v", userID, err)
	}
}
