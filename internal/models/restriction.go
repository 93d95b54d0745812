package models

import "time"

// RestrictionType enumerates the graduated sanctions.
type RestrictionType string

const (
	RestrictionWarning           RestrictionType = "warning"
	RestrictionReducedVisibility RestrictionType = "reduced-visibility"
	RestrictionSuspension        RestrictionType = "suspension"
)

// Valid reports whether the type is a known sanction.
func (t RestrictionType) Valid() bool {
	switch t {
	case RestrictionWarning, RestrictionReducedVisibility, RestrictionSuspension:
		return true
	}
	return false
}

// Severity orders sanctions from lightest to heaviest.
func (t RestrictionType) Severity() int {
	switch t {
	case RestrictionWarning:
		return 1
	case RestrictionReducedVisibility:
		return 2
	case RestrictionSuspension:
		return 3
	}
	return 0
}

// Sanction reason codes.
const (
	CodeNoUpdates45Days = "no-updates-45days"
	CodeNoUpdates60Days = "no-updates-60days"
	CodeStaleUpdates60  = "stale-updates-60days"
	CodeNoUpdates90Days = "no-updates-90days"
	CodeAppealReduced   = "appeal-reduced"
)

// Restriction is a time-bounded punitive state attached to a promoteur.
type Restriction struct {
	ID          string          `db:"id" json:"id"`
	PromoteurID string          `db:"promoteur_id" json:"promoteurId"`
	ProjectID   *string         `db:"project_id" json:"projectId,omitempty"`
	Type        RestrictionType `db:"type" json:"type"`
	Code        string          `db:"code" json:"code"`
	Reason      string          `db:"reason" json:"reason"`
	AppliedAt   time.Time       `db:"applied_at" json:"appliedAt"`
	ExpiresAt   *time.Time      `db:"expires_at" json:"expiresAt,omitempty"`
}

// Active reports whether the restriction is still in force.
func (r Restriction) Active(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// Matches compares type and application instant, the identity used by appeals.
func (r Restriction) Matches(t RestrictionType, appliedAt time.Time) bool {
	return r.Type == t && r.AppliedAt.Equal(appliedAt)
}

// SanctionLevel is a derived classification of a promoteur's active restrictions.
type SanctionLevel string

const (
	SanctionLevelNone       SanctionLevel = "none"
	SanctionLevelWarning    SanctionLevel = "warning"
	SanctionLevelRestricted SanctionLevel = "restricted"
	SanctionLevelHighRisk   SanctionLevel = "high-risk"
)
