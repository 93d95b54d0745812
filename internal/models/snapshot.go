package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ScoreBreakdown itemises every component of a computed trust score.
type ScoreBreakdown struct {
	KYC           float64 `json:"kyc"`
	Documents     float64 `json:"documents"`
	Updates       float64 `json:"updates"`
	ResponseTime  float64 `json:"responseTime"`
	Completion    float64 `json:"completion"`
	Badges        float64 `json:"badges"`
	WeightedTotal float64 `json:"weightedTotal"`
	Bonuses       float64 `json:"bonuses"`
	Penalties     float64 `json:"penalties"`
	GamingPenalty int     `json:"gamingPenalty"`
	ConfigName    string  `json:"configName"`
	ConfigVersion int     `json:"configVersion"`
	GamingReason  string  `json:"gamingReason,omitempty"`
}

// Value implements driver.Valuer.
func (b ScoreBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner.
func (b *ScoreBreakdown) Scan(src interface{}) error {
	return scanJSON(src, b)
}

// TrustScoreSnapshot is an append-only history row written on every calculation.
type TrustScoreSnapshot struct {
	ID             string         `db:"id" json:"id"`
	PromoteurID    string         `db:"promoteur_id" json:"promoteurId"`
	Score          int            `db:"score" json:"score"`
	Breakdown      ScoreBreakdown `db:"breakdown" json:"breakdown"`
	GamingDetected bool           `db:"gaming_detected" json:"gamingDetected"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// TrustScoreResult is returned by a score calculation.
type TrustScoreResult struct {
	PromoteurID    string         `json:"promoteurId"`
	TotalScore     int            `json:"totalScore"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	GamingDetected bool           `json:"gamingDetected"`
	CalculatedAt   time.Time      `json:"calculatedAt"`
}

// GamingResult is the verdict of the gaming detector.
type GamingResult struct {
	IsGaming bool   `json:"isGaming"`
	Reason   string `json:"reason,omitempty"`
}
