package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/middleware"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
	"github.com/noah-isme/promoteur-trust-api/pkg/response"
)

type trustConfigService interface {
	GetActive(ctx context.Context) (models.TrustScoreConfig, error)
	List(ctx context.Context) ([]models.TrustScoreConfig, error)
	Create(ctx context.Context, req dto.CreateTrustConfigRequest, actor *models.JWTClaims) (*models.TrustScoreConfig, error)
	Activate(ctx context.Context, id string, actor *models.JWTClaims) (*models.TrustScoreConfig, error)
}

// TrustConfigHandler manages scoring configuration versions.
type TrustConfigHandler struct {
	service trustConfigService
}

// NewTrustConfigHandler constructs the handler.
func NewTrustConfigHandler(service trustConfigService) *TrustConfigHandler {
	return &TrustConfigHandler{service: service}
}

// List godoc
// @Summary List scoring configurations
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/trust-score/configs [get]
func (h *TrustConfigHandler) List(c *gin.Context) {
	configs, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, configs, nil)
}

// Active godoc
// @Summary Active scoring configuration
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/trust-score/configs/active [get]
func (h *TrustConfigHandler) Active(c *gin.Context) {
	cfg, err := h.service.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Create godoc
// @Summary Create a scoring configuration version
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.CreateTrustConfigRequest true "Configuration"
// @Success 201 {object} response.Envelope
// @Router /admin/trust-score/configs [post]
func (h *TrustConfigHandler) Create(c *gin.Context) {
	var req dto.CreateTrustConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid configuration payload"))
		return
	}
	cfg, err := h.service.Create(c.Request.Context(), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cfg)
}

// Activate godoc
// @Summary Activate a scoring configuration
// @Tags Admin
// @Produce json
// @Param id path string true "Configuration ID"
// @Success 200 {object} response.Envelope
// @Router /admin/trust-score/configs/{id}/activate [post]
func (h *TrustConfigHandler) Activate(c *gin.Context) {
	cfg, err := h.service.Activate(c.Request.Context(), c.Param("id"), middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
