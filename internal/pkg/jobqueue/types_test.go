package jobqueue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentEventJobPayloadRoundTrip(t *testing.T) {
	payload := PaymentEventJobPayload{
		WebhookEventID: 42,
		EventType:      "payment.succeeded",
		RawPayload:     `{"type":"payment.succeeded","data":{"id":"cs_1"}}`,
	}

	restored, err := PaymentEventJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestPaymentEventJobPayloadSurvivesRedisSerialization(t *testing.T) {
	// Job payloads travel through Redis as JSON, so numbers come back as
	// float64. The payload must decode from that shape too.
	payload := PaymentEventJobPayload{WebhookEventID: 7, EventType: "payment.failed", RawPayload: "{}"}

	data, err := json.Marshal(payload.ToMap())
	require.NoError(t, err)

	var stored map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.IsType(t, float64(0), stored["webhook_event_id"])

	restored, err := PaymentEventJobPayloadFromMap(stored)
	require.NoError(t, err)
	assert.Equal(t, uint(7), restored.WebhookEventID)
}

func TestJobRetryLifecycle(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 2}

	assert.True(t, job.IsRetryable())

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsFailed("boom again")
	assert.Equal(t, 2, job.RetryCount)
	assert.False(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
}
