package handler

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/internal/service"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

type reportServiceMock struct {
	link        *dto.ReportLink
	query       dto.TrustReportQuery
	download    *service.ReportDownload
	downloadErr error
}

func (m *reportServiceMock) GenerateTrustReport(ctx context.Context, query dto.TrustReportQuery, actor *models.JWTClaims) (*dto.ReportLink, error) {
	m.query = query
	return m.link, nil
}

func (m *reportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func TestReportHandlerTrustScores(t *testing.T) {
	svc := &reportServiceMock{link: &dto.ReportLink{ReportID: "rep-1", Format: "pdf"}}
	h := NewReportHandler(svc)

	c, w := newGinContext(http.MethodGet, "/admin/reports/trust-scores?format=PDF", nil)
	withClaims(c, models.RoleAdmin, "")
	h.TrustScores(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pdf", svc.query.Format)
}

func TestReportHandlerDisabled(t *testing.T) {
	h := NewReportHandler(nil)

	c, w := newGinContext(http.MethodGet, "/admin/reports/trust-scores", nil)
	h.TrustScores(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReportHandlerDownload(t *testing.T) {
	file, err := os.CreateTemp(t.TempDir(), "report*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("Promoteur;Score\npr-1;70\n")
	_, _ = file.Seek(0, 0)

	svc := &reportServiceMock{download: &service.ReportDownload{
		File:        file,
		Filename:    "trust-scores.csv",
		ContentType: "text/csv; charset=utf-8",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	h := NewReportHandler(svc)

	c, w := newGinContext(http.MethodGet, "/exports/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "trust-scores.csv")
	assert.Contains(t, w.Body.String(), "pr-1;70")
}

func TestReportHandlerDownloadForbidden(t *testing.T) {
	svc := &reportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}
	h := NewReportHandler(svc)

	c, w := newGinContext(http.MethodGet, "/exports/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	h.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
