package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AppealStatus captures workflow states for sanction appeals.
type AppealStatus string

const (
	AppealStatusPending           AppealStatus = "pending"
	AppealStatusUnderReview       AppealStatus = "under-review"
	AppealStatusEscalated         AppealStatus = "escalated"
	AppealStatusApproved          AppealStatus = "approved"
	AppealStatusRejected          AppealStatus = "rejected"
	AppealStatusPartiallyApproved AppealStatus = "partially-approved"
)

// Terminal reports whether no further transition is allowed.
func (s AppealStatus) Terminal() bool {
	switch s {
	case AppealStatusApproved, AppealStatusRejected, AppealStatusPartiallyApproved:
		return true
	}
	return false
}

// Review tiers.
const (
	AppealLevelN1 = 1
	AppealLevelN2 = 2
)

// OriginalAction snapshots the contested restriction at submission time.
type OriginalAction struct {
	RestrictionID string          `json:"restrictionId"`
	Type          RestrictionType `json:"type"`
	Code          string          `json:"code"`
	Reason        string          `json:"reason"`
	AppliedAt     time.Time       `json:"appliedAt"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
}

// Value implements driver.Valuer.
func (o OriginalAction) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner.
func (o *OriginalAction) Scan(src interface{}) error {
	return scanJSON(src, o)
}

// ReviewNote is a reviewer comment appended during review.
type ReviewNote struct {
	AuthorID  string    `json:"authorId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewNotes is stored as a jsonb array.
type ReviewNotes []ReviewNote

// Value implements driver.Valuer.
func (n ReviewNotes) Value() (driver.Value, error) {
	if n == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]ReviewNote(n))
}

// Scan implements sql.Scanner.
func (n *ReviewNotes) Scan(src interface{}) error {
	return scanJSON(src, n)
}

// NewAction describes the lighter sanction substituted on partial approval.
type NewAction struct {
	Type   RestrictionType `json:"type"`
	Reason string          `json:"reason"`
}

// AppealDecision records how an appeal was resolved.
type AppealDecision struct {
	Status    AppealStatus `json:"status"`
	Notes     string       `json:"notes,omitempty"`
	NewAction *NewAction   `json:"newAction,omitempty"`
	DecidedBy string       `json:"decidedBy"`
	DecidedAt time.Time    `json:"decidedAt"`
}

// Value implements driver.Valuer.
func (d AppealDecision) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *AppealDecision) Scan(src interface{}) error {
	return scanJSON(src, d)
}

// Appeal contests a restriction applied to a promoteur.
type Appeal struct {
	ID               string          `db:"id" json:"id"`
	PromoteurID      string          `db:"promoteur_id" json:"promoteurId"`
	ProjectID        *string         `db:"project_id" json:"projectId,omitempty"`
	RestrictionID    string          `db:"restriction_id" json:"restrictionId"`
	Type             RestrictionType `db:"type" json:"type"`
	Reason           string          `db:"reason" json:"reason"`
	Description      string          `db:"description" json:"description"`
	OriginalAction   OriginalAction  `db:"original_action" json:"originalAction"`
	Status           AppealStatus    `db:"status" json:"status"`
	Level            int             `db:"level" json:"level"`
	AssignedTo       *string         `db:"assigned_to" json:"assignedTo,omitempty"`
	SubmittedAt      time.Time       `db:"submitted_at" json:"submittedAt"`
	Deadline         time.Time       `db:"deadline" json:"deadline"`
	EscalatedAt      *time.Time      `db:"escalated_at" json:"escalatedAt,omitempty"`
	EscalationReason *string         `db:"escalation_reason" json:"escalationReason,omitempty"`
	ReviewNotes      ReviewNotes     `db:"review_notes" json:"reviewNotes"`
	Decision         *AppealDecision `db:"decision" json:"decision,omitempty"`
	ResolvedAt       *time.Time      `db:"resolved_at" json:"resolvedAt,omitempty"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// AppealFilter constrains listing queries.
type AppealFilter struct {
	Status      []AppealStatus
	PromoteurID string
	Level       int
	AssignedTo  string
	Limit       int
	Offset      int
}
