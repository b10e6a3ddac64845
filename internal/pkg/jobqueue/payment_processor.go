package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/redrule/reddigen/internal/pkg/billing"
	"github.com/redrule/reddigen/internal/pkg/database"
)

// billingServiceFactory builds the activation engine per job. Tests swap it
// out to avoid a live database.
var billingServiceFactory = func() *billing.Service {
	return billing.NewServiceFromDB(database.GetDB())
}

// processPaymentEventJob dispatches a verified webhook delivery to the
// activation engine. The webhook response was sent long before this runs,
// so outcomes only land in logs and on the stored event row.
func (q *Queue) processPaymentEventJob(ctx context.Context, job *Job) error {
	payload, err := PaymentEventJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid payment event payload: %w", err)
	}

	evt, err := billing.ParseEvent([]byte(payload.RawPayload))
	if err != nil {
		return fmt.Errorf("invalid payment event body: %w", err)
	}

	svc := billingServiceFactory()
	procErr := svc.ProcessEvent(ctx, evt)
	if payload.WebhookEventID != 0 {
		if markErr := svc.MarkWebhookProcessed(ctx, payload.WebhookEventID, procErr); markErr != nil {
			log.Errorf("[JobQueue] Failed to mark webhook event %d processed: %v", payload.WebhookEventID, markErr)
		}
	}
	if procErr != nil {
		return fmt.Errorf("payment event %q (%s): %w", evt.Type, evt.Data.ID, procErr)
	}
	return nil
}
