package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/pkg/response"
)

type sanctionService interface {
	RunSweep(ctx context.Context) (dto.SweepResult, error)
	RemoveExpiredRestrictions(ctx context.Context) (dto.CleanupResult, error)
	GetSanctions(ctx context.Context, promoteurID string) (*dto.SanctionSummary, error)
}

// SanctionHandler exposes sanction state and manual sweeps.
type SanctionHandler struct {
	service sanctionService
}

// NewSanctionHandler constructs the handler.
func NewSanctionHandler(service sanctionService) *SanctionHandler {
	return &SanctionHandler{service: service}
}

// Get godoc
// @Summary Active restrictions and sanction level of a promoteur
// @Tags Sanctions
// @Produce json
// @Param id path string true "Promoteur ID"
// @Success 200 {object} response.Envelope
// @Router /promoteurs/{id}/sanctions [get]
func (h *SanctionHandler) Get(c *gin.Context) {
	summary, err := h.service.GetSanctions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Run godoc
// @Summary Run the automated sanctions sweep
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/sanctions/run [post]
func (h *SanctionHandler) Run(c *gin.Context) {
	result, err := h.service.RunSweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cleanup godoc
// @Summary Remove expired restrictions
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/sanctions/cleanup [post]
func (h *SanctionHandler) Cleanup(c *gin.Context) {
	result, err := h.service.RemoveExpiredRestrictions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
