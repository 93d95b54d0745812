package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

type badgeDefinitionsStub struct {
	defs []models.BadgeDefinition
}

func (s badgeDefinitionsStub) ListActive(context.Context) ([]models.BadgeDefinition, error) {
	return s.defs, nil
}

var testBadges = []models.BadgeDefinition{
	{Code: "trusted", Rules: models.BadgeRules{
		{Field: models.FieldTrustScore, Op: models.OpGte, Value: 80},
		{Field: models.FieldKYCVerified, Op: models.OpEq, Value: 1},
	}},
	{Code: "fast-responder", Rules: models.BadgeRules{
		{Field: models.FieldAverageResponseTime, Op: models.OpLte, Value: 2},
	}},
	{Code: "clean-record", Rules: models.BadgeRules{
		{Field: models.FieldActiveRestrictions, Op: models.OpEq, Value: 0},
	}},
	{Code: "broken", Rules: models.BadgeRules{
		{Field: models.PromoteurField("company.name"), Op: models.OpEq, Value: 1},
	}},
}

func TestEarnsResolvesTypedRules(t *testing.T) {
	now := time.Now()
	fast := 1.5
	p := &models.Promoteur{TrustScore: 85, KYCStatus: models.KYCStatusVerified, AverageResponseTime: &fast}

	assert.True(t, earns(testBadges[0], p, now))
	assert.True(t, earns(testBadges[1], p, now))
	assert.True(t, earns(testBadges[2], p, now))
	assert.False(t, earns(testBadges[3], p, now))

	p.AverageResponseTime = nil
	assert.False(t, earns(testBadges[1], p, now), "missing response data never satisfies a rule")

	p.Restrictions = []models.Restriction{{Type: models.RestrictionWarning}}
	assert.False(t, earns(testBadges[2], p, now))
}

func TestBadgeServiceEvaluateBadges(t *testing.T) {
	promoteurs := newPromoteurStoreStub(models.Promoteur{
		ID:         "pr-1",
		TrustScore: 90,
		KYCStatus:  models.KYCStatusVerified,
		Badges:     []string{"fast-responder"},
	})
	audit := &auditWriterStub{}
	svc := NewBadgeService(badgeDefinitionsStub{defs: testBadges}, promoteurs, NewAuditTrail(audit, nil, ""), nil, nil, nil, nil)

	result, err := svc.EvaluateBadges(context.Background(), "pr-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"clean-record", "trusted"}, result.Badges)
	assert.Equal(t, []string{"clean-record", "trusted"}, result.Added)
	assert.Equal(t, []string{"fast-responder"}, result.Removed)
	assert.Equal(t, []string{"clean-record", "trusted"}, []string(promoteurs.get("pr-1").Badges))
	assert.Equal(t, []string{models.AuditActionBadgesUpdated}, audit.actions())

	again, err := svc.EvaluateBadges(context.Background(), "pr-1")
	require.NoError(t, err)
	assert.Empty(t, again.Added)
	assert.Empty(t, again.Removed)
	assert.Len(t, audit.actions(), 1)
}

func TestBadgeServiceEvaluateAll(t *testing.T) {
	promoteurs := newPromoteurStoreStub(models.Promoteur{ID: "a", TrustScore: 95, KYCStatus: models.KYCStatusVerified}, models.Promoteur{ID: "b"})
	svc := NewBadgeService(badgeDefinitionsStub{defs: testBadges}, promoteurs, nil, nil, nil, nil, nil)

	result, err := svc.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Contains(t, []string(promoteurs.get("a").Badges), "trusted")
	assert.NotContains(t, []string(promoteurs.get("b").Badges), "trusted")
}
