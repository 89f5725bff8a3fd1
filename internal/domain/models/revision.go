package models

import "time"

// RevisionOrigin records which operation produced a revision.
type RevisionOrigin string

const (
	OriginGenerated  RevisionOrigin = "generated"
	OriginManualEdit RevisionOrigin = "manual_edit"
	OriginRollback   RevisionOrigin = "rollback"
)

// Revision is one immutable entry in a project's version history.
// (ProjectID, VersionNumber) is unique and VersionNumber runs 1..N without gaps.
type Revision struct {
	ID            string         `json:"id" db:"id"`
	ProjectID     string         `json:"project_id" db:"project_id"`
	VersionNumber int            `json:"version_number" db:"version_number"`
	Code          string         `json:"code" db:"code"`
	Origin        RevisionOrigin `json:"origin" db:"origin"`
	ParentVersion *int           `json:"parent_version" db:"parent_version"`
	Prompt        *string        `json:"prompt,omitempty" db:"prompt"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}
