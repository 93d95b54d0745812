package models

import "time"

// Audit actions recorded by the trust core.
const (
	AuditActionScoreCalculated   = "TRUST_SCORE_CALCULATED"
	AuditActionGamingDetected    = "TRUST_SCORE_GAMING_DETECTED"
	AuditActionGlobalCorrection  = "TRUST_SCORE_GLOBAL_CORRECTION"
	AuditActionConfigCreate      = "TRUST_CONFIG_CREATE"
	AuditActionConfigActivate    = "TRUST_CONFIG_ACTIVATE"
	AuditActionSanctionApplied   = "SANCTION_APPLIED"
	AuditActionRestrictionExpire = "RESTRICTION_EXPIRED"
	AuditActionAppealCreate      = "APPEAL_CREATE"
	AuditActionAppealAssign      = "APPEAL_ASSIGN"
	AuditActionAppealEscalate    = "APPEAL_ESCALATE"
	AuditActionAppealResolve     = "APPEAL_RESOLVE"
	AuditActionBadgesUpdated     = "BADGES_UPDATED"
)

// Audit categories.
const (
	AuditCategoryTrust      = "trust"
	AuditCategorySecurity   = "security"
	AuditCategoryModeration = "moderation"
	AuditCategoryConfig     = "configuration"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	Category    string    `db:"category" json:"category"`
	Resource    string    `db:"resource" json:"resource"`
	ResourceID  *string   `db:"resource_id" json:"resource_id,omitempty"`
	Description string    `db:"description" json:"description"`
	OldValues   []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues   []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
