package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

func TestKYCSignal(t *testing.T) {
	assert.Equal(t, 100.0, kycSignal(models.KYCStatusVerified))
	assert.Equal(t, 50.0, kycSignal(models.KYCStatusSubmitted))
	assert.Equal(t, 25.0, kycSignal(models.KYCStatusPending))
	assert.Equal(t, 0.0, kycSignal(models.KYCStatusRejected))
	assert.Equal(t, 0.0, kycSignal("unknown"))
}

func TestDocumentSignal(t *testing.T) {
	assert.Equal(t, 0.0, documentSignal(models.DocumentStats{}), "no documents is penalised, not neutral")
	assert.Equal(t, 80.0, documentSignal(models.DocumentStats{Total: 10, Verified: 8}))
	assert.Equal(t, 70.0, documentSignal(models.DocumentStats{Total: 10, Verified: 8, Expired: 1, Missing: 1}))
	assert.Equal(t, 0.0, documentSignal(models.DocumentStats{Total: 10, Verified: 1, Missing: 5}))
}

func TestUpdateSignal(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	th := models.DefaultTrustScoreConfig().Settings.UpdateFrequency
	at := func(days int) *time.Time {
		ts := now.Add(-time.Duration(days) * 24 * time.Hour)
		return &ts
	}

	assert.Equal(t, 50.0, updateSignal(nil, now, th), "no projects is neutral")
	assert.Equal(t, 100.0, updateSignal([]*time.Time{at(3)}, now, th))
	assert.Equal(t, 70.0, updateSignal([]*time.Time{at(10)}, now, th))
	assert.Equal(t, 46.0, updateSignal([]*time.Time{at(18)}, now, th))
	assert.Equal(t, 50.0, updateSignal([]*time.Time{at(1), nil}, now, th), "project without recent update counts as 0")
	assert.Equal(t, 0.0, updateSignal([]*time.Time{nil}, now, th))
}

func TestProjectFreshnessFloorsAtZero(t *testing.T) {
	th := models.UpdateFrequencyThresholds{IdealDays: 7, MinimumDays: 14, MaxPenaltyDays: 90}
	assert.Equal(t, 0.0, projectFreshness(80, th))
	assert.Equal(t, 1.0, projectFreshness(63, th))
}

func TestResponseTimeSignal(t *testing.T) {
	sla := models.DefaultTrustScoreConfig().Settings.ResponseTime
	h := func(v float64) *float64 { return &v }

	assert.Equal(t, 50.0, responseTimeSignal(nil, sla))
	assert.Equal(t, 50.0, responseTimeSignal(h(0), sla))
	assert.Equal(t, 100.0, responseTimeSignal(h(1.5), sla))
	assert.Equal(t, 80.0, responseTimeSignal(h(6), sla))
	assert.Equal(t, 60.0, responseTimeSignal(h(20), sla))
	assert.Equal(t, 30.0, responseTimeSignal(h(29), sla))
	assert.Equal(t, 0.0, responseTimeSignal(h(100), sla))
}

func TestCompletionAndBadgeSignals(t *testing.T) {
	assert.Equal(t, 50.0, completionSignal(0, 0))
	assert.Equal(t, 25.0, completionSignal(4, 1))
	assert.Equal(t, 0.0, badgeSignal(0))
	assert.Equal(t, 60.0, badgeSignal(3))
	assert.Equal(t, 100.0, badgeSignal(9))
}

func TestPenaltyPointsCapped(t *testing.T) {
	p := models.PenaltyPoints{RejectedDocument: 5, MissedSLA: 2}
	assert.Equal(t, 14.0, penaltyPoints(2, 2, p))
	assert.Equal(t, 30.0, penaltyPoints(5, 10, p))
}
