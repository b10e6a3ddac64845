package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypePaymentEvent JobType = "payment_event"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// PaymentEventJobPayload carries a verified webhook delivery from the
// receiver to the activation engine. RawPayload is the body exactly as
// transmitted; the event is re-parsed on the worker side.
type PaymentEventJobPayload struct {
	WebhookEventID uint   `json:"webhook_event_id"`
	EventType      string `json:"event_type"`
	RawPayload     string `json:"raw_payload"`
}

// ToMap converts the payload to a map for storage
func (p PaymentEventJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"webhook_event_id": p.WebhookEventID,
		"event_type":       p.EventType,
		"raw_payload":      p.RawPayload,
	}
}

// PaymentEventJobPayloadFromMap creates a payload from a stored job map
func PaymentEventJobPayloadFromMap(data map[string]interface{}) (*PaymentEventJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PaymentEventJobPayload
	if err := json.Unmarshal(jsonData, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errorMsg
	j.RetryCount++
	j.UpdatedAt = time.Now()
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
