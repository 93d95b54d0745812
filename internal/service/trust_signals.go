package service

import (
	"math"
	"time"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

// neutralSignal is returned when there is not enough data to judge a promoteur.
const neutralSignal = 50.0

const (
	documentGapPenalty = 5.0
	badgeSignalStep    = 20.0
	gamingPenalty      = 20
	maxPenaltyPoints   = 30.0

	quickResponderHours  = 2.0
	consistentUpdateDays = 14
)

func kycSignal(status models.KYCStatus) float64 {
	switch status {
	case models.KYCStatusVerified:
		return 100
	case models.KYCStatusSubmitted:
		return 50
	case models.KYCStatusPending:
		return 25
	default:
		return 0
	}
}

// documentSignal penalises expired and missing documents. No documents at all scores 0, not neutral.
func documentSignal(stats models.DocumentStats) float64 {
	if stats.Total <= 0 {
		return 0
	}
	score := float64(stats.Verified)/float64(stats.Total)*100 - documentGapPenalty*float64(stats.Expired+stats.Missing)
	return math.Max(0, score)
}

// updateSignal averages per-project freshness. latest holds, per project, the most recent update
// inside the lookback window (nil when there is none).
func updateSignal(latest []*time.Time, now time.Time, thresholds models.UpdateFrequencyThresholds) float64 {
	if len(latest) == 0 {
		return neutralSignal
	}
	total := 0.0
	for _, ts := range latest {
		if ts == nil {
			continue
		}
		total += projectFreshness(daysSince(*ts, now), thresholds)
	}
	return total / float64(len(latest))
}

func projectFreshness(days int, thresholds models.UpdateFrequencyThresholds) float64 {
	switch {
	case days <= thresholds.IdealDays:
		return 100
	case days <= thresholds.MinimumDays:
		return 70
	default:
		return math.Max(0, 50-float64(days-thresholds.MinimumDays))
	}
}

func responseTimeSignal(avgHours *float64, sla models.ResponseTimeSLA) float64 {
	if avgHours == nil || *avgHours <= 0 {
		return neutralSignal
	}
	t := *avgHours
	switch {
	case t <= sla.ExcellentHours:
		return 100
	case t <= sla.GoodHours:
		return 80
	case t <= sla.AcceptableHours:
		return 60
	default:
		return math.Max(0, 40-2*(t-sla.AcceptableHours))
	}
}

func completionSignal(total, completed int) float64 {
	if total <= 0 {
		return neutralSignal
	}
	return float64(completed) / float64(total) * 100
}

func badgeSignal(count int) float64 {
	return math.Min(100, float64(count)*badgeSignalStep)
}

// weightedTotal applies each weight as a percentage to its signal.
func weightedTotal(b models.ScoreBreakdown, w models.TrustWeights) float64 {
	return b.KYC*w.KYC/100 +
		b.Documents*w.Documents/100 +
		b.Updates*w.Updates/100 +
		b.ResponseTime*w.ResponseTime/100 +
		b.Completion*w.Completion/100 +
		b.Badges*w.Badges/100
}

func penaltyPoints(rejectedDocs, missedSLA int, p models.PenaltyPoints) float64 {
	total := float64(rejectedDocs)*p.RejectedDocument + float64(missedSLA)*p.MissedSLA
	return math.Min(maxPenaltyPoints, total)
}
