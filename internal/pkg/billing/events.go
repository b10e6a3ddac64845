package billing

import "encoding/json"

// Provider event types handled by the reconciliation pipeline.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventPaymentSucceeded      = "payment.succeeded"
	EventPaymentFailed         = "payment.failed"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// Event is the provider webhook envelope. ID is the provider's delivery id;
// deliveries without one are deduplicated on a payload hash instead.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the checkout session the event refers to. AmountTotal
// is in cents.
type EventData struct {
	ID            string        `json:"id"`
	CustomerEmail string        `json:"customer_email"`
	AmountTotal   int64         `json:"amount_total"`
	Metadata      EventMetadata `json:"metadata"`
}

// EventMetadata is the checkout metadata we attach when building the
// checkout URL; providers echo it back on completion events.
type EventMetadata struct {
	UserID       string `json:"userId"`
	PlanType     string `json:"planType"`
	BillingCycle string `json:"billingCycle"`
}

// ParseEvent decodes a provider webhook payload.
func ParseEvent(raw []byte) (Event, error) {
	var evt Event
	err := json.Unmarshal(raw, &evt)
	return evt, err
}

// IsPaymentSuccessEvent reports whether the event type confirms a completed
// checkout.
func IsPaymentSuccessEvent(eventType string) bool {
	return eventType == EventCheckoutCompleted || eventType == EventPaymentSucceeded
}
