package models

import "time"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// GenerationJob is one accepted generation request. Leaving JobStatusRunning is a
// compare-and-set; only the writer that wins it applies the job's side effects.
type GenerationJob struct {
	ID            string     `json:"id" db:"id"`
	ProjectID     string     `json:"project_id" db:"project_id"`
	UserID        string     `json:"-" db:"user_id"`
	Prompt        string     `json:"prompt" db:"prompt"`
	Status        JobStatus  `json:"status" db:"status"`
	Cost          int        `json:"cost" db:"cost"`
	BaseVersion   *int       `json:"base_version" db:"base_version"`
	ResultVersion *int       `json:"result_version,omitempty" db:"result_version"`
	Error         *string    `json:"error,omitempty" db:"error"`
	Provider      string     `json:"provider" db:"provider"`
	Model         *string    `json:"model,omitempty" db:"model"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// JobOutcome is the terminal state written when a job leaves JobStatusRunning.
type JobOutcome struct {
	Status        JobStatus
	ResultVersion *int
	Error         *string
	Model         *string
	FinishedAt    time.Time
}

// DebitKey is the ledger idempotency key for the job's charge.
func (j *GenerationJob) DebitKey() string {
	return "job:" + j.ID + ":debit"
}

// RefundKey is the ledger idempotency key for the job's refund.
func (j *GenerationJob) RefundKey() string {
	return "job:" + j.ID + ":refund"
}
