package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/middleware"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/internal/service"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
	"github.com/noah-isme/promoteur-trust-api/pkg/response"
)

type reportService interface {
	GenerateTrustReport(ctx context.Context, query dto.TrustReportQuery, actor *models.JWTClaims) (*dto.ReportLink, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes admin report generation and signed downloads.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs the handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// TrustScores godoc
// @Summary Generate the trust score report
// @Tags Admin
// @Produce json
// @Param format query string false "csv or pdf"
// @Success 201 {object} response.Envelope
// @Router /admin/reports/trust-scores [get]
func (h *ReportHandler) TrustScores(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "reports are disabled"))
		return
	}
	query := dto.TrustReportQuery{Format: strings.ToLower(strings.TrimSpace(c.Query("format")))}
	link, err := h.service.GenerateTrustReport(c.Request.Context(), query, middleware.CurrentClaims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Download godoc
// @Summary Download a generated report with a signed token
// @Tags Reports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Router /exports/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "reports are disabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, statErr := result.File.Stat(); statErr == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, result.ContentType, result.File, nil)
}
