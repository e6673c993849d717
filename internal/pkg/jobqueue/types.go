package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeSendNotification JobType = "send_notification"
	JobTypeCatalogSync      JobType = "catalog_sync"
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

// MarkAsProcessing sets the job to processing state
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.ProcessedAt = &now
	j.UpdatedAt = now
}

// MarkAsCompleted sets the job to completed state
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkAsFailed sets the job to failed state and records the error
func (j *Job) MarkAsFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMsg = errMsg
	j.UpdatedAt = time.Now()
	j.RetryCount++
}

// MarkAsRetrying sets the job to retrying state
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}

// IsRetryable reports whether the job may be retried
func (j *Job) IsRetryable() bool {
	return j.RetryCount <= j.MaxRetries
}

// Notification kinds carried by send_notification jobs.
const (
	NotificationKindCancellation   = "cancellation"
	NotificationKindPaymentFailure = "payment_failure"
)

// NotificationJobPayload contains the payload for send_notification jobs
type NotificationJobPayload struct {
	Kind     string `json:"kind"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// ToMap converts the payload to a map for storage
func (p NotificationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"kind":     p.Kind,
		"email":    p.Email,
		"username": p.Username,
	}
}

// NotificationJobPayloadFromMap creates a payload from a map
func NotificationJobPayloadFromMap(data map[string]interface{}) (*NotificationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload NotificationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// CatalogSyncJobPayload contains the payload for catalog_sync jobs
type CatalogSyncJobPayload struct {
	RequestedBy string `json:"requested_by"` // "ticker" or "manual"
}

// ToMap converts the payload to a map for storage
func (p CatalogSyncJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"requested_by": p.RequestedBy,
	}
}

// CatalogSyncJobPayloadFromMap creates a payload from a map
func CatalogSyncJobPayloadFromMap(data map[string]interface{}) (*CatalogSyncJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload CatalogSyncJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}
