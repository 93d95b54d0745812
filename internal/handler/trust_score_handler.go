package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/middleware"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
	"github.com/noah-isme/promoteur-trust-api/pkg/response"
)

type trustScoreService interface {
	Calculate(ctx context.Context, promoteurID string) (*models.TrustScoreResult, error)
	RecalculateAll(ctx context.Context) (dto.BatchResult, error)
	ApplyGlobalCorrection(ctx context.Context, req dto.GlobalCorrectionRequest, actor *models.JWTClaims) (dto.GlobalCorrectionResult, error)
	GetScore(ctx context.Context, promoteurID string) (*dto.TrustScoreView, error)
	GetHistory(ctx context.Context, promoteurID string, query dto.TrustScoreHistoryQuery) ([]models.TrustScoreSnapshot, error)
	GetTrend(ctx context.Context, promoteurID string, query dto.TrustScoreTrendQuery) (*dto.TrustScoreTrend, error)
	EnqueueRecalculation(ctx context.Context, promoteurID string) (*dto.RecalculationAccepted, error)
}

type badgeEvaluator interface {
	EvaluateBadges(ctx context.Context, promoteurID string) (*dto.BadgeEvaluation, error)
}

// TrustScoreHandler exposes trust score reads and recalculation.
type TrustScoreHandler struct {
	service trustScoreService
	badges  badgeEvaluator
}

// NewTrustScoreHandler constructs the handler.
func NewTrustScoreHandler(service trustScoreService, badges badgeEvaluator) *TrustScoreHandler {
	return &TrustScoreHandler{service: service, badges: badges}
}

// Get godoc
// @Summary Current trust score of a promoteur
// @Tags TrustScore
// @Produce json
// @Param id path string true "Promoteur ID"
// @Success 200 {object} response.Envelope
// @Router /promoteurs/{id}/trust-score [get]
func (h *TrustScoreHandler) Get(c *gin.Context) {
	view, err := h.service.GetScore(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetScoreSource(c, view.Source)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Recalculate godoc
// @Summary Recalculate a promoteur trust score
// @Tags TrustScore
// @Produce json
// @Param id path string true "Promoteur ID"
// @Param async query bool false "Queue the recalculation"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /promoteurs/{id}/trust-score/recalculate [post]
func (h *TrustScoreHandler) Recalculate(c *gin.Context) {
	promoteurID := c.Param("id")
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		accepted, err := h.service.EnqueueRecalculation(c.Request.Context(), promoteurID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, accepted)
		return
	}
	result, err := h.service.Calculate(c.Request.Context(), promoteurID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Trust score snapshots, newest first
// @Tags TrustScore
// @Produce json
// @Param id path string true "Promoteur ID"
// @Param limit query int false "Max snapshots"
// @Success 200 {object} response.Envelope
// @Router /promoteurs/{id}/trust-score/history [get]
func (h *TrustScoreHandler) History(c *gin.Context) {
	var query dto.TrustScoreHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid history query"))
		return
	}
	snapshots, err := h.service.GetHistory(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, nil)
}

// Trend godoc
// @Summary Trust score movement over a window
// @Tags TrustScore
// @Produce json
// @Param id path string true "Promoteur ID"
// @Param days query int false "Window in days"
// @Success 200 {object} response.Envelope
// @Router /promoteurs/{id}/trust-score/trend [get]
func (h *TrustScoreHandler) Trend(c *gin.Context) {
	var query dto.TrustScoreTrendQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid trend query"))
		return
	}
	trend, err := h.service.GetTrend(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trend, nil)
}

// EvaluateBadges godoc
// @Summary Re-evaluate badges of a promoteur
// @Tags TrustScore
// @Produce json
// @Param id path string true "Promoteur ID"
// @Success 200 {object} response.Envelope
// @Router /promoteurs/{id}/badges/evaluate [post]
func (h *TrustScoreHandler) EvaluateBadges(c *gin.Context) {
	if h.badges == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "badge service not configured"))
		return
	}
	result, err := h.badges.EvaluateBadges(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RecalculateAll godoc
// @Summary Recalculate every trust score
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/trust-score/recalculate-all [post]
func (h *TrustScoreHandler) RecalculateAll(c *gin.Context) {
	result, err := h.service.RecalculateAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Correction godoc
// @Summary Apply a percentage correction to every score
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.GlobalCorrectionRequest true "Correction"
// @Success 200 {object} response.Envelope
// @Router /admin/trust-score/correction [post]
func (h *TrustScoreHandler) Correction(c *gin.Context) {
	var req dto.GlobalCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid correction payload"))
		return
	}
	result, err := h.service.ApplyGlobalCorrection(c.Request.Context(), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
