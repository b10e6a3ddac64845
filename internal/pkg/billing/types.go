package billing

// ActivatePlanCommand is the single idempotent mutation every reconciliation
// path converges on. Webhook, redirect-return and manual verification all
// build this command and submit it to the service; none of them compute side
// effects on their own.
type ActivatePlanCommand struct {
	UserID       uint
	PaymentID    string
	PlanType     string
	BillingCycle string
	Amount       float64
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
