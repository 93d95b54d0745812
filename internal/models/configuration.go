package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TrustWeights are per-signal percentages; they are expected to sum to ~100.
type TrustWeights struct {
	KYC          float64 `json:"kyc" validate:"gte=0,lte=100"`
	Documents    float64 `json:"documents" validate:"gte=0,lte=100"`
	Updates      float64 `json:"updates" validate:"gte=0,lte=100"`
	ResponseTime float64 `json:"responseTime" validate:"gte=0,lte=100"`
	Completion   float64 `json:"completion" validate:"gte=0,lte=100"`
	Badges       float64 `json:"badges" validate:"gte=0,lte=100"`
}

// Sum returns the total of all weights.
func (w TrustWeights) Sum() float64 {
	return w.KYC + w.Documents + w.Updates + w.ResponseTime + w.Completion + w.Badges
}

// UpdateFrequencyThresholds are expressed in days.
type UpdateFrequencyThresholds struct {
	IdealDays      int `json:"idealDays" validate:"gt=0"`
	MinimumDays    int `json:"minimumDays" validate:"gtefield=IdealDays"`
	MaxPenaltyDays int `json:"maxPenaltyDays" validate:"gtefield=MinimumDays"`
}

// ResponseTimeSLA tiers are expressed in hours.
type ResponseTimeSLA struct {
	ExcellentHours  float64 `json:"excellentHours" validate:"gt=0"`
	GoodHours       float64 `json:"goodHours" validate:"gtefield=ExcellentHours"`
	AcceptableHours float64 `json:"acceptableHours" validate:"gtefield=GoodHours"`
}

// GamingDetectionSettings parameterise the anti-abuse heuristic.
type GamingDetectionSettings struct {
	SuspiciousPatternsEnabled bool    `json:"suspiciousPatternsEnabled"`
	MaxDailyUpdates           int     `json:"maxDailyUpdates" validate:"gt=0"`
	MinUpdateIntervalHours    float64 `json:"minUpdateIntervalHours" validate:"gte=0"`
}

// BonusPoints are flat addends applied after weighting.
type BonusPoints struct {
	CompleteProfile   float64 `json:"completeProfile" validate:"gte=0"`
	QuickResponder    float64 `json:"quickResponder" validate:"gte=0"`
	ConsistentUpdater float64 `json:"consistentUpdater" validate:"gte=0"`
}

// PenaltyPoints are subtracted per occurrence.
type PenaltyPoints struct {
	RejectedDocument float64 `json:"rejectedDocument" validate:"gte=0"`
	MissedSLA        float64 `json:"missedSLA" validate:"gte=0"`
}

// TrustScoreSettings is the typed payload of a trust score configuration.
type TrustScoreSettings struct {
	Weights         TrustWeights              `json:"weights" validate:"required"`
	UpdateFrequency UpdateFrequencyThresholds `json:"updateFrequency" validate:"required"`
	ResponseTime    ResponseTimeSLA           `json:"responseTime" validate:"required"`
	GamingDetection GamingDetectionSettings   `json:"gamingDetection" validate:"required"`
	Bonuses         BonusPoints               `json:"bonuses"`
	Penalties       PenaltyPoints             `json:"penalties"`
}

// Value implements driver.Valuer for the jsonb column.
func (s TrustScoreSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for the jsonb column.
func (s *TrustScoreSettings) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// TrustScoreConfig is a named, versioned configuration row. At most one is active.
type TrustScoreConfig struct {
	ID        string             `db:"id" json:"id"`
	Name      string             `db:"name" json:"name"`
	Version   int                `db:"version" json:"version"`
	IsActive  bool               `db:"is_active" json:"isActive"`
	Settings  TrustScoreSettings `db:"settings" json:"settings"`
	CreatedBy *string            `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time          `db:"created_at" json:"createdAt"`
}

// DefaultTrustScoreConfigName identifies the built-in fallback configuration.
const DefaultTrustScoreConfigName = "default"

// DefaultTrustScoreConfig is used when no configuration is active.
func DefaultTrustScoreConfig() TrustScoreConfig {
	return TrustScoreConfig{
		Name:     DefaultTrustScoreConfigName,
		Version:  0,
		IsActive: true,
		Settings: TrustScoreSettings{
			Weights: TrustWeights{
				KYC:          25,
				Documents:    20,
				Updates:      20,
				ResponseTime: 15,
				Completion:   10,
				Badges:       10,
			},
			UpdateFrequency: UpdateFrequencyThresholds{IdealDays: 7, MinimumDays: 14, MaxPenaltyDays: 30},
			ResponseTime:    ResponseTimeSLA{ExcellentHours: 2, GoodHours: 6, AcceptableHours: 24},
			GamingDetection: GamingDetectionSettings{
				SuspiciousPatternsEnabled: true,
				MaxDailyUpdates:           5,
				MinUpdateIntervalHours:    2,
			},
			Bonuses:   BonusPoints{CompleteProfile: 5, QuickResponder: 3, ConsistentUpdater: 5},
			Penalties: PenaltyPoints{RejectedDocument: 5, MissedSLA: 2},
		},
	}
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
}
