package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/middleware"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/internal/service"
	"github.com/noah-isme/promoteur-trust-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/promoteur-trust-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/promoteur-trust-api/pkg/middleware/requestid"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RouterDeps bundles what the HTTP surface needs.
type RouterDeps struct {
	Logger         *zap.Logger
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool

	Tokens      tokenValidator
	Metrics     *service.MetricsService
	AuditLogs   auditLogWriter
	Readiness   map[string]ReadinessCheck
	TrustScores trustScoreService
	Badges      badgeEvaluator
	Sanctions   sanctionService
	Appeals     appealService
	Configs     trustConfigService
	Reports     reportService
}

// NewRouter builds the gin engine with every route group and its guards.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if deps.Logger != nil {
		r.Use(logger.GinMiddleware(deps.Logger))
	}
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	obs := NewMetricsHandler(deps.Metrics, deps.Readiness)
	r.GET("/health", obs.Health)
	r.GET("/ready", obs.Ready)
	r.GET("/metrics", obs.Prometheus)
	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := deps.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	reports := NewReportHandler(deps.Reports)
	api.GET("/exports/:token", middleware.Audit(deps.AuditLogs, "REPORT_DOWNLOAD", "report"), reports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens), middleware.WithResponseMeta())

	scores := NewTrustScoreHandler(deps.TrustScores, deps.Badges)
	sanctions := NewSanctionHandler(deps.Sanctions)
	promoteurs := secured.Group("/promoteurs/:id", middleware.StaffOrSelf())
	{
		promoteurs.GET("/trust-score", scores.Get)
		promoteurs.GET("/trust-score/history", scores.History)
		promoteurs.GET("/trust-score/trend", scores.Trend)
		promoteurs.GET("/sanctions", sanctions.Get)
	}
	staffOnPromoteur := secured.Group("/promoteurs/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		staffOnPromoteur.POST("/trust-score/recalculate", scores.Recalculate)
		staffOnPromoteur.POST("/badges/evaluate", scores.EvaluateBadges)
	}

	appeals := NewAppealHandler(deps.Appeals)
	appealRoutes := secured.Group("/appeals")
	{
		appealRoutes.POST("", middleware.RequireRoles(models.RolePromoteur, models.RoleAdmin, models.RoleSuperAdmin), appeals.Create)
		appealRoutes.GET("", appeals.List)
		appealRoutes.GET("/:id", appeals.Get)
		staff := appealRoutes.Group("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
		staff.POST("/assign", appeals.Assign)
		staff.POST("/notes", appeals.AddNote)
		staff.POST("/escalate", appeals.Escalate)
		staff.POST("/resolve", appeals.Resolve)
	}

	configs := NewTrustConfigHandler(deps.Configs)
	admin := secured.Group("/admin", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.POST("/trust-score/recalculate-all", scores.RecalculateAll)
		admin.POST("/sanctions/run", sanctions.Run)
		admin.POST("/sanctions/cleanup", sanctions.Cleanup)
		admin.POST("/appeals/process-overdue", appeals.ProcessOverdue)
		admin.GET("/reports/trust-scores", reports.TrustScores)
		admin.GET("/trust-score/configs", configs.List)
		admin.GET("/trust-score/configs/active", configs.Active)
	}
	superAdmin := secured.Group("/admin", middleware.RequireRoles(models.RoleSuperAdmin))
	{
		superAdmin.POST("/trust-score/correction", scores.Correction)
		superAdmin.POST("/trust-score/configs", configs.Create)
		superAdmin.POST("/trust-score/configs/:id/activate", configs.Activate)
	}

	return r
}
