package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

type trustConfigStore interface {
	GetActive(ctx context.Context) (*models.TrustScoreConfig, error)
	GetByID(ctx context.Context, id string) (*models.TrustScoreConfig, error)
	List(ctx context.Context) ([]models.TrustScoreConfig, error)
	Create(ctx context.Context, cfg *models.TrustScoreConfig) error
	Activate(ctx context.Context, id string) error
}

// TrustConfigService manages versioned trust score configurations.
type TrustConfigService struct {
	repo      trustConfigStore
	validator *validator.Validate
	audit     *AuditTrail
	cache     *CacheService
	logger    *zap.Logger
}

// NewTrustConfigService constructs the service.
func NewTrustConfigService(repo trustConfigStore, validate *validator.Validate, audit *AuditTrail, logger *zap.Logger) *TrustConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TrustConfigService{repo: repo, validator: validate, audit: audit, logger: logger}
}

// UseScoreCache lets activation drop cached breakdowns computed under the previous weights.
func (s *TrustConfigService) UseScoreCache(cache *CacheService) {
	s.cache = cache
}

// GetActive returns the active configuration, or the built-in default when none is active.
func (s *TrustConfigService) GetActive(ctx context.Context) (models.TrustScoreConfig, error) {
	cfg, err := s.repo.GetActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultTrustScoreConfig(), nil
		}
		return models.TrustScoreConfig{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trust score config")
	}
	return *cfg, nil
}

// List returns every stored configuration.
func (s *TrustConfigService) List(ctx context.Context) ([]models.TrustScoreConfig, error) {
	configs, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trust score configs")
	}
	return configs, nil
}

// Create stores a new configuration version, activating it when requested.
func (s *TrustConfigService) Create(ctx context.Context, req dto.CreateTrustConfigRequest, actor *models.JWTClaims) (*models.TrustScoreConfig, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid trust score config")
	}
	if req.Name == models.DefaultTrustScoreConfigName {
		return nil, appErrors.Clone(appErrors.ErrValidation, "config name is reserved")
	}
	if sum := req.Settings.Weights.Sum(); math.Abs(sum-100) > 1 {
		s.logger.Warn("trust weights do not sum to 100", zap.String("name", req.Name), zap.Float64("sum", sum))
	}

	cfg := &models.TrustScoreConfig{Name: req.Name, Settings: req.Settings}
	if actor != nil {
		cfg.CreatedBy = optionalString(actor.UserID)
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create trust score config")
	}
	s.audit.Log(ctx, AuditEntry{
		ActorID:     actorID(actor),
		Action:      models.AuditActionConfigCreate,
		Category:    models.AuditCategoryConfig,
		Description: "trust score config created",
		Resource:    "trust_score_config",
		ResourceID:  cfg.ID,
		Metadata:    map[string]interface{}{"name": cfg.Name, "version": cfg.Version},
	})

	if req.Activate {
		return s.Activate(ctx, cfg.ID, actor)
	}
	return cfg, nil
}

// Activate makes the configuration the single active one.
func (s *TrustConfigService) Activate(ctx context.Context, id string, actor *models.JWTClaims) (*models.TrustScoreConfig, error) {
	if err := s.repo.Activate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trust score config not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate trust score config")
	}
	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trust score config")
	}
	if err := s.cache.Invalidate(ctx, trustScoreCacheKey("*")); err != nil {
		s.logger.Warn("cached trust scores kept after config activation", zap.String("config_id", id), zap.Error(err))
	}
	s.audit.Log(ctx, AuditEntry{
		ActorID:     actorID(actor),
		Action:      models.AuditActionConfigActivate,
		Category:    models.AuditCategoryConfig,
		Description: "trust score config activated",
		Resource:    "trust_score_config",
		ResourceID:  cfg.ID,
		Metadata:    map[string]interface{}{"name": cfg.Name, "version": cfg.Version},
	})
	return cfg, nil
}

func actorID(actor *models.JWTClaims) string {
	if actor == nil {
		return ""
	}
	return actor.UserID
}
