package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/redrule/reddigen/app/models"
	"github.com/redrule/reddigen/internal/pkg/billing"
	"github.com/redrule/reddigen/internal/pkg/provider"
)

type memPlanRepo struct {
	plans map[uint]*models.UserPlan
}

func (r *memPlanRepo) GetByUserID(userID uint) (*models.UserPlan, error) {
	plan, ok := r.plans[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return plan, nil
}

func (r *memPlanRepo) GetOrCreateDefault(userID uint) (*models.UserPlan, error) {
	if plan, ok := r.plans[userID]; ok {
		return plan, nil
	}
	plan := models.DefaultFreePlan(userID)
	r.plans[userID] = plan
	return plan, nil
}

func (r *memPlanRepo) Upsert(plan *models.UserPlan) error {
	r.plans[plan.UserID] = plan
	return nil
}

func (r *memPlanRepo) DeductCredit(userID uint) (int, error) {
	plan, ok := r.plans[userID]
	if !ok || plan.CreditsRemaining <= 0 {
		return 0, gorm.ErrRecordNotFound
	}
	plan.CreditsRemaining--
	return plan.CreditsRemaining, nil
}

type memPaymentRepo struct {
	records map[string]*models.PaymentRecord
	events  map[string]*models.PaymentWebhookEvent
}

func (r *memPaymentRepo) CreateIfNotExists(record *models.PaymentRecord) (bool, *models.PaymentRecord, error) {
	if existing, ok := r.records[record.PaymentID]; ok {
		return false, existing, nil
	}
	r.records[record.PaymentID] = record
	return true, record, nil
}

func (r *memPaymentRepo) GetCompleted(paymentID string) (*models.PaymentRecord, error) {
	record, ok := r.records[paymentID]
	if !ok || record.Status != models.PaymentStatusCompleted {
		return nil, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (r *memPaymentRepo) ListByUserID(userID uint) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (r *memPaymentRepo) MarkFailed(paymentID string) error { return nil }

func (r *memPaymentRepo) FindUserByPaymentID(paymentID string) (uint, error) {
	record, ok := r.records[paymentID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	return record.UserID, nil
}

func (r *memPaymentRepo) CreateWebhookEventIfNotExists(event *models.PaymentWebhookEvent) (bool, *models.PaymentWebhookEvent, error) {
	if existing, ok := r.events[event.ProviderEventID]; ok {
		return false, existing, nil
	}
	r.events[event.ProviderEventID] = event
	return true, event, nil
}

func (r *memPaymentRepo) MarkWebhookProcessed(id uint, processingError string) error { return nil }

type memProfileRepo struct{}

func (memProfileRepo) GetOrCreate(userID uint, email string) (*models.UserProfile, error) {
	return &models.UserProfile{UserID: userID, Email: email}, nil
}

func (memProfileRepo) GetByEmail(email string) (*models.UserProfile, error) {
	return nil, gorm.ErrRecordNotFound
}

func (memProfileRepo) Update(profile *models.UserProfile) error { return nil }

type stubLookup struct {
	session *provider.CheckoutSession
	err     error
	calls   int
}

func (s *stubLookup) GetCheckoutSession(ctx context.Context, sessionID string) (*provider.CheckoutSession, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type reconcilerFixture struct {
	rec      *Reconciler
	plans    *memPlanRepo
	payments *memPaymentRepo
	intents  *MemoryIntentStore
	lookup   *stubLookup
}

func newReconcilerFixture(lookup *stubLookup, now time.Time) *reconcilerFixture {
	plans := &memPlanRepo{plans: make(map[uint]*models.UserPlan)}
	payments := &memPaymentRepo{
		records: make(map[string]*models.PaymentRecord),
		events:  make(map[string]*models.PaymentWebhookEvent),
	}
	intents := NewMemoryIntentStore()
	svc := billing.NewService(plans, payments, memProfileRepo{}).WithClock(func() time.Time { return now })
	rec := NewReconciler(svc, lookup, intents).WithClock(func() time.Time { return now })
	return &reconcilerFixture{rec: rec, plans: plans, payments: payments, intents: intents, lookup: lookup}
}

func TestHandleReturnActivatesPaidSession(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	lookup := &stubLookup{session: &provider.CheckoutSession{
		ID:            "cs_paid",
		PaymentStatus: "paid",
		AmountTotal:   2999,
		Metadata:      map[string]string{"planType": "professional", "billingCycle": "monthly"},
	}}
	fx := newReconcilerFixture(lookup, now)

	// The browser claims enterprise; the provider says professional.
	result, err := fx.rec.HandleReturn(context.Background(), 5, ReturnParams{
		SessionID: "cs_paid",
		PlanHint:  "enterprise",
		CycleHint: "yearly",
	})
	require.NoError(t, err)
	assert.True(t, result.Activated)
	require.NotNil(t, result.Plan)
	assert.Equal(t, models.PlanProfessional, result.Plan.PlanType)
	assert.Equal(t, 250, result.Plan.CreditsRemaining)
	assert.Equal(t, models.BillingCycleMonthly, result.Plan.BillingCycle)
	assert.InDelta(t, 29.99, result.Plan.Amount, 0.001)
}

func TestHandleReturnUnpaidSessionDoesNotActivate(t *testing.T) {
	lookup := &stubLookup{session: &provider.CheckoutSession{
		ID:            "cs_open",
		PaymentStatus: "open",
	}}
	fx := newReconcilerFixture(lookup, time.Now())

	result, err := fx.rec.HandleReturn(context.Background(), 5, ReturnParams{SessionID: "cs_open"})
	require.NoError(t, err)
	assert.False(t, result.Activated)
	assert.True(t, result.Pending)
	assert.Empty(t, fx.payments.records)
}

func TestHandleReturnMissingSessionID(t *testing.T) {
	fx := newReconcilerFixture(&stubLookup{}, time.Now())

	_, err := fx.rec.HandleReturn(context.Background(), 5, ReturnParams{})
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestHandleReturnRecoversSessionFromIntent(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	lookup := &stubLookup{err: provider.ErrNotConfigured}
	fx := newReconcilerFixture(lookup, now)

	require.NoError(t, fx.rec.SaveIntent(context.Background(), 5, "cs_from_intent", "professional", "yearly"))

	// Provider stripped the query string on redirect and the lookup API is
	// not configured, so the stored intent carries everything.
	result, err := fx.rec.HandleReturn(context.Background(), 5, ReturnParams{})
	require.NoError(t, err)
	assert.True(t, result.Activated)
	assert.Equal(t, "cs_from_intent", result.PaymentID)
	assert.Equal(t, models.PlanProfessional, result.Plan.PlanType)
	assert.Equal(t, models.BillingCycleYearly, result.Plan.BillingCycle)

	intent, err := fx.intents.Load(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, intent, "intent is cleared after activation")
}

func TestHandleReturnCancelledClearsIntent(t *testing.T) {
	fx := newReconcilerFixture(&stubLookup{}, time.Now())
	require.NoError(t, fx.rec.SaveIntent(context.Background(), 5, "cs_cancelled", "starter", "monthly"))

	result, err := fx.rec.HandleReturn(context.Background(), 5, ReturnParams{
		SessionID: "cs_cancelled",
		Status:    "cancelled",
	})
	require.NoError(t, err)
	assert.False(t, result.Activated)
	assert.Empty(t, fx.payments.records)
	assert.Zero(t, fx.lookup.calls, "no provider call for a cancelled checkout")

	intent, err := fx.intents.Load(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, intent)
}

func TestHandleReturnProviderErrorPropagates(t *testing.T) {
	lookup := &stubLookup{err: errors.New("upstream timeout")}
	fx := newReconcilerFixture(lookup, time.Now())

	_, err := fx.rec.HandleReturn(context.Background(), 5, ReturnParams{SessionID: "cs_err"})
	require.Error(t, err)
	assert.Empty(t, fx.payments.records, "no activation on provider failure")
}

func TestHandleReturnIsIdempotentWithWebhook(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	lookup := &stubLookup{session: &provider.CheckoutSession{
		ID:            "cs_both",
		PaymentStatus: "paid",
		AmountTotal:   2999,
		Metadata:      map[string]string{"planType": "professional", "billingCycle": "monthly"},
	}}
	fx := newReconcilerFixture(lookup, now)

	// Webhook already activated this payment.
	svc := billing.NewService(fx.plans, fx.payments, memProfileRepo{}).WithClock(func() time.Time { return now })
	_, err := svc.Activate(context.Background(), billing.ActivatePlanCommand{
		UserID:       5,
		PaymentID:    "cs_both",
		PlanType:     "professional",
		BillingCycle: "monthly",
	})
	require.NoError(t, err)

	_, err = fx.plans.DeductCredit(5)
	require.NoError(t, err)

	result, err := fx.rec.HandleReturn(context.Background(), 5, ReturnParams{SessionID: "cs_both"})
	require.NoError(t, err)
	assert.True(t, result.Activated)
	assert.Equal(t, 249, result.Plan.CreditsRemaining, "redirect replay must not re-grant")
	assert.Len(t, fx.payments.records, 1)
}

func TestManualVerify(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fx := newReconcilerFixture(&stubLookup{}, now)

	result, err := fx.rec.ManualVerify(context.Background(), 8, "enterprise", "monthly")
	require.NoError(t, err)
	assert.True(t, result.Activated)
	assert.Equal(t, "manual_1714564800", result.PaymentID)
	assert.Equal(t, models.PlanEnterprise, result.Plan.PlanType)
	assert.Equal(t, 300, result.Plan.CreditsRemaining)

	// A second click within the same second hits the same synthetic id and
	// stays a no-op.
	again, err := fx.rec.ManualVerify(context.Background(), 8, "enterprise", "monthly")
	require.NoError(t, err)
	assert.True(t, again.Activated)
	assert.Len(t, fx.payments.records, 1)
}

func TestManualVerifyRequiresUser(t *testing.T) {
	fx := newReconcilerFixture(&stubLookup{}, time.Now())
	_, err := fx.rec.ManualVerify(context.Background(), 0, "starter", "monthly")
	assert.Error(t, err)
}

func TestMemoryIntentStore(t *testing.T) {
	store := NewMemoryIntentStore()
	ctx := context.Background()

	intent, err := store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, intent)

	require.NoError(t, store.Save(ctx, 1, PendingPaymentIntent{SessionID: "cs_1", PlanType: "starter"}))
	intent, err = store.Load(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, "cs_1", intent.SessionID)

	require.NoError(t, store.Clear(ctx, 1))
	intent, err = store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, intent)
}
