package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

type sanctionServiceSpy struct {
	err      error
	lookedUp string
}

func (m *sanctionServiceSpy) RunSweep(context.Context) (dto.SweepResult, error) {
	return dto.SweepResult{Evaluated: 4, Warnings: 1, Suspensions: 1}, m.err
}

func (m *sanctionServiceSpy) RemoveExpiredRestrictions(context.Context) (dto.CleanupResult, error) {
	return dto.CleanupResult{Removed: 2, Reactivated: 1}, m.err
}

func (m *sanctionServiceSpy) GetSanctions(_ context.Context, promoteurID string) (*dto.SanctionSummary, error) {
	m.lookedUp = promoteurID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.SanctionSummary{
		PromoteurID:        promoteurID,
		Level:              models.SanctionLevelWarning,
		SubscriptionStatus: models.SubscriptionActive,
	}, nil
}

func TestSanctionHandlerGet(t *testing.T) {
	svc := &sanctionServiceSpy{}
	h := NewSanctionHandler(svc)

	c, w := newGinContext(http.MethodGet, "/promoteurs/pr-7/sanctions", nil)
	c.Params = gin.Params{{Key: "id", Value: "pr-7"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pr-7", svc.lookedUp)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "warning", data["level"])
}

func TestSanctionHandlerRunAndCleanup(t *testing.T) {
	h := NewSanctionHandler(&sanctionServiceSpy{})

	c, w := newGinContext(http.MethodPost, "/admin/sanctions/run", nil)
	h.Run(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decodeEnvelope(t, w)["data"].(map[string]interface{})["evaluated"])

	c, w = newGinContext(http.MethodPost, "/admin/sanctions/cleanup", nil)
	h.Cleanup(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeEnvelope(t, w)["data"].(map[string]interface{})["reactivated"])
}

func TestSanctionHandlerPropagatesNotFound(t *testing.T) {
	h := NewSanctionHandler(&sanctionServiceSpy{err: appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")})

	c, w := newGinContext(http.MethodGet, "/promoteurs/missing/sanctions", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
