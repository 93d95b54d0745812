package models

import (
	"database/sql/driver"
	"encoding/json"
)

// PromoteurField names a numeric attribute a badge rule can inspect.
type PromoteurField string

const (
	FieldTrustScore          PromoteurField = "trust_score"
	FieldTotalProjects       PromoteurField = "total_projects"
	FieldCompletedProjects   PromoteurField = "completed_projects"
	FieldAverageResponseTime PromoteurField = "average_response_time"
	FieldKYCVerified         PromoteurField = "kyc_verified"
	FieldActiveRestrictions  PromoteurField = "active_restrictions"
)

// Comparator is a rule operator.
type Comparator string

const (
	OpEq  Comparator = "eq"
	OpNeq Comparator = "neq"
	OpGt  Comparator = "gt"
	OpGte Comparator = "gte"
	OpLt  Comparator = "lt"
	OpLte Comparator = "lte"
)

// BadgeRule is a single typed criterion.
type BadgeRule struct {
	Field PromoteurField `json:"field"`
	Op    Comparator     `json:"op"`
	Value float64        `json:"value"`
}

// BadgeRules is stored as a jsonb array.
type BadgeRules []BadgeRule

// Value implements driver.Valuer.
func (r BadgeRules) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]BadgeRule(r))
}

// Scan implements sql.Scanner.
func (r *BadgeRules) Scan(src interface{}) error {
	return scanJSON(src, r)
}

// BadgeDefinition describes a badge and the rules that award it.
type BadgeDefinition struct {
	Code        string     `db:"code" json:"code"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Rules       BadgeRules `db:"rules" json:"rules"`
	Active      bool       `db:"active" json:"active"`
}
