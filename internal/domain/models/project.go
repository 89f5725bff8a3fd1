package models

import (
	"time"
)

// ProjectStatus is the generation lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusQueued     ProjectStatus = "queued"
	ProjectStatusGenerating ProjectStatus = "generating"
	ProjectStatusReady      ProjectStatus = "ready"
	ProjectStatusFailed     ProjectStatus = "failed"
)

type Project struct {
	ID             string        `json:"id" db:"id"`
	UserID         string        `json:"user_id" db:"user_id"`
	Name           string        `json:"name" db:"name"`
	InitialPrompt  string        `json:"initial_prompt" db:"initial_prompt"`
	Status         ProjectStatus `json:"status" db:"status"`
	IsPublished    bool          `json:"is_published" db:"is_published"`
	CurrentVersion *int          `json:"current_version" db:"current_version"`
	FailureReason  *string       `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// IsOwnedBy reports whether userID owns the project.
func (p *Project) IsOwnedBy(userID string) bool {
	return userID != "" && p.UserID == userID
}

// HasRevisions reports whether a first revision exists.
func (p *Project) HasRevisions() bool {
	return p.CurrentVersion != nil
}
