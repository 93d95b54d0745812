package dto

import (
	"time"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

// TrustScoreHistoryQuery bounds the snapshot listing.
type TrustScoreHistoryQuery struct {
	Limit int `form:"limit" validate:"omitempty,min=1,max=365"`
}

// TrustScoreTrendQuery selects the trend window in days.
type TrustScoreTrendQuery struct {
	Days int `form:"days" validate:"omitempty,min=1,max=365"`
}

// TrendPoint is one snapshot in a trend series.
type TrendPoint struct {
	Score int       `json:"score"`
	At    time.Time `json:"at"`
}

// TrustScoreTrend summarises score movement over a window.
type TrustScoreTrend struct {
	PromoteurID string       `json:"promoteurId"`
	Days        int          `json:"days"`
	StartScore  int          `json:"startScore"`
	EndScore    int          `json:"endScore"`
	Delta       int          `json:"delta"`
	Direction   string       `json:"direction"`
	Points      []TrendPoint `json:"points"`
}

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// TrustScoreView is returned by the read endpoint.
type TrustScoreView struct {
	PromoteurID    string                 `json:"promoteurId"`
	TotalScore     int                    `json:"totalScore"`
	Breakdown      *models.ScoreBreakdown `json:"breakdown,omitempty"`
	GamingDetected bool                   `json:"gamingDetected"`
	CalculatedAt   *time.Time             `json:"calculatedAt,omitempty"`
	Source         string                 `json:"source"`
}

// Score view sources.
const (
	ScoreSourceCache     = "cache"
	ScoreSourceSnapshot  = "snapshot"
	ScoreSourcePromoteur = "promoteur"
)

// GlobalCorrectionRequest adjusts every score by a percentage.
type GlobalCorrectionRequest struct {
	Percent float64 `json:"percent" validate:"required,gte=-100,lte=100"`
	Reason  string  `json:"reason" validate:"omitempty,max=500"`
}

// GlobalCorrectionResult reports how many promoteurs changed.
type GlobalCorrectionResult struct {
	Percent float64 `json:"percent"`
	Updated int     `json:"updated"`
}

// BatchResult summarises a bulk recalculation.
type BatchResult struct {
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Duration  string `json:"duration"`
}

// RecalculationAccepted acknowledges an asynchronous recalculation.
type RecalculationAccepted struct {
	JobID       string `json:"jobId"`
	PromoteurID string `json:"promoteurId"`
	Coalesced   bool   `json:"coalesced,omitempty"`
}

// CreateTrustConfigRequest creates a new configuration version.
type CreateTrustConfigRequest struct {
	Name     string                    `json:"name" validate:"required,max=64"`
	Settings models.TrustScoreSettings `json:"settings" validate:"required"`
	Activate bool                      `json:"activate"`
}

// BadgeEvaluation reports the badges held after evaluation.
type BadgeEvaluation struct {
	PromoteurID string   `json:"promoteurId"`
	Badges      []string `json:"badges"`
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
}
