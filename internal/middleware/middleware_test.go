package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/internal/service"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
}

func (v validatorStub) ValidateToken(string) (*models.JWTClaims, error) {
	return v.claims, v.err
}

func newProtectedRouter(validator tokenValidator, guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/promoteurs/:id", JWT(validator), guard, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func serve(r *gin.Engine, path, auth string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	r := newProtectedRouter(validatorStub{claims: &models.JWTClaims{Role: models.RoleAdmin}}, StaffOrSelf())

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/promoteurs/pr-1", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/promoteurs/pr-1", "Basic abc"))
	assert.Equal(t, http.StatusOK, serve(r, "/promoteurs/pr-1", "Bearer token"))
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	r := newProtectedRouter(validatorStub{err: appErrors.Wrap(errors.New("expired"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")}, StaffOrSelf())

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/promoteurs/pr-1", "Bearer token"))
}

func TestStaffOrSelf(t *testing.T) {
	promoteur := validatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: models.RolePromoteur, PromoteurID: "pr-1"}}
	r := newProtectedRouter(promoteur, StaffOrSelf())

	assert.Equal(t, http.StatusOK, serve(r, "/promoteurs/pr-1", "Bearer t"))
	assert.Equal(t, http.StatusForbidden, serve(r, "/promoteurs/pr-2", "Bearer t"))
}

func TestRequireRolesBlocksPromoteur(t *testing.T) {
	promoteur := validatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: models.RolePromoteur, PromoteurID: "pr-1"}}
	r := newProtectedRouter(promoteur, RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	assert.Equal(t, http.StatusForbidden, serve(r, "/promoteurs/pr-1", "Bearer t"))
}

func TestSetScoreSource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	SetScoreSource(c, "cache")
	meta := ExtractMeta(c)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "cache", meta["score_source"])
	assert.NotContains(t, meta, "processing_time_ms")
}

func TestResponseMetaStampsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/score", WithResponseMeta(), func(c *gin.Context) {
		SetScoreSource(c, "snapshot")
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/score", nil))

	assert.Equal(t, false, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsLabelsByRouteAndSkipsProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/exports/:token", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/health", "/exports/abc", "/exports/def", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := metrics.Registry().Gather()
	assert.NoError(t, err)
	routes := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					routes[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"/exports/:token": 2, "unmatched": 1}, routes)
}
