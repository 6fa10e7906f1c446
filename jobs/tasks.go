package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskContractsExpiryScan flips overdue contracts and queues expiry
	// notices.
	TaskContractsExpiryScan = "contracts:expiry_scan"
	// TaskIdentityWarmup pre-populates the subject cache for active users.
	TaskIdentityWarmup = "identity:warmup"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ExpiryScanPayload tunes a single expiry scan run.
type ExpiryScanPayload struct {
	// NoticeWindowDays overrides the per-organization warning window.
	// Zero keeps the stored settings.
	NoticeWindowDays int `json:"notice_window_days"`
	// NotifyAddress receives the digest of expiring contracts.
	NotifyAddress string `json:"notify_address"`
}

// IdentityWarmupPayload tunes a warmup run.
type IdentityWarmupPayload struct {
	// Limit caps how many subjects get warmed. Zero means all active
	// users.
	Limit int `json:"limit"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewExpiryScanTask constructs an expiry scan task.
func NewExpiryScanTask(payload ExpiryScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskContractsExpiryScan, data), nil
}

// NewIdentityWarmupTask constructs a warmup task.
func NewIdentityWarmupTask(payload IdentityWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdentityWarmup, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Delivery is stubbed to stdout until an SMTP relay is provisioned.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}
