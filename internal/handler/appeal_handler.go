package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/middleware"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
	"github.com/noah-isme/promoteur-trust-api/pkg/response"
)

type appealService interface {
	Create(ctx context.Context, req dto.CreateAppealRequest, actor *models.JWTClaims) (*models.Appeal, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appeal, error)
	List(ctx context.Context, query dto.AppealQuery, actor *models.JWTClaims) ([]models.Appeal, *models.Pagination, error)
	Assign(ctx context.Context, id string, req dto.AssignAppealRequest, actor *models.JWTClaims) (*models.Appeal, error)
	AddReviewNote(ctx context.Context, id string, req dto.AddReviewNoteRequest, actor *models.JWTClaims) (*models.Appeal, error)
	Escalate(ctx context.Context, id string, req dto.EscalateAppealRequest, actor *models.JWTClaims) (*models.Appeal, error)
	Resolve(ctx context.Context, id string, req dto.ResolveAppealRequest, actor *models.JWTClaims) (*models.Appeal, error)
	ProcessOverdue(ctx context.Context) (dto.OverdueResult, error)
}

// AppealHandler exposes the appeal workflow.
type AppealHandler struct {
	service appealService
}

// NewAppealHandler constructs the handler.
func NewAppealHandler(service appealService) *AppealHandler {
	return &AppealHandler{service: service}
}

// Create godoc
// @Summary Contest a restriction
// @Tags Appeals
// @Accept json
// @Produce json
// @Param payload body dto.CreateAppealRequest true "Appeal payload"
// @Success 201 {object} response.Envelope
// @Router /appeals [post]
func (h *AppealHandler) Create(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid appeal payload"))
		return
	}
	appeal, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appeal)
}

// List godoc
// @Summary List appeals
// @Tags Appeals
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param promoteurId query string false "Promoteur ID (staff only)"
// @Param level query int false "Review level"
// @Param assignedTo query string false "Reviewer ID"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /appeals [get]
func (h *AppealHandler) List(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.AppealQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid appeal query"))
		return
	}
	query.PromoteurID = strings.TrimSpace(query.PromoteurID)
	appeals, pagination, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeals, pagination)
}

// Get godoc
// @Summary Get appeal detail
// @Tags Appeals
// @Produce json
// @Param id path string true "Appeal ID"
// @Success 200 {object} response.Envelope
// @Router /appeals/{id} [get]
func (h *AppealHandler) Get(c *gin.Context) {
	appeal, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, nil)
}

// Assign godoc
// @Summary Assign a reviewer
// @Tags Appeals
// @Accept json
// @Produce json
// @Param id path string true "Appeal ID"
// @Param payload body dto.AssignAppealRequest false "Assignee"
// @Success 200 {object} response.Envelope
// @Router /appeals/{id}/assign [post]
func (h *AppealHandler) Assign(c *gin.Context) {
	var req dto.AssignAppealRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
			return
		}
	}
	appeal, err := h.service.Assign(c.Request.Context(), c.Param("id"), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, nil)
}

// AddNote godoc
// @Summary Append a review note
// @Tags Appeals
// @Accept json
// @Produce json
// @Param id path string true "Appeal ID"
// @Param payload body dto.AddReviewNoteRequest true "Note"
// @Success 200 {object} response.Envelope
// @Router /appeals/{id}/notes [post]
func (h *AppealHandler) AddNote(c *gin.Context) {
	var req dto.AddReviewNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid note payload"))
		return
	}
	appeal, err := h.service.AddReviewNote(c.Request.Context(), c.Param("id"), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, nil)
}

// Escalate godoc
// @Summary Escalate an appeal to senior review
// @Tags Appeals
// @Accept json
// @Produce json
// @Param id path string true "Appeal ID"
// @Param payload body dto.EscalateAppealRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /appeals/{id}/escalate [post]
func (h *AppealHandler) Escalate(c *gin.Context) {
	var req dto.EscalateAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid escalation payload"))
		return
	}
	appeal, err := h.service.Escalate(c.Request.Context(), c.Param("id"), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, nil)
}

// Resolve godoc
// @Summary Resolve an appeal
// @Tags Appeals
// @Accept json
// @Produce json
// @Param id path string true "Appeal ID"
// @Param payload body dto.ResolveAppealRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /appeals/{id}/resolve [post]
func (h *AppealHandler) Resolve(c *gin.Context) {
	var req dto.ResolveAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	appeal, err := h.service.Resolve(c.Request.Context(), c.Param("id"), req, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appeal, nil)
}

// ProcessOverdue godoc
// @Summary Escalate or flag overdue appeals
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/appeals/process-overdue [post]
func (h *AppealHandler) ProcessOverdue(c *gin.Context) {
	result, err := h.service.ProcessOverdue(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
