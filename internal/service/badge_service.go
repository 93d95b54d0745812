package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

type badgeDefinitionSource interface {
	ListActive(ctx context.Context) ([]models.BadgeDefinition, error)
}

type badgePromoteurStore interface {
	GetByID(ctx context.Context, id string) (*models.Promoteur, error)
	ListIDs(ctx context.Context) ([]string, error)
	UpdateBadges(ctx context.Context, id string, badges []string) error
}

type fieldAccessor func(p *models.Promoteur, now time.Time) (float64, bool)

// promoteurFields resolves badge rule fields. A false second value means the field has no data.
var promoteurFields = map[models.PromoteurField]fieldAccessor{
	models.FieldTrustScore: func(p *models.Promoteur, _ time.Time) (float64, bool) {
		return float64(p.TrustScore), true
	},
	models.FieldTotalProjects: func(p *models.Promoteur, _ time.Time) (float64, bool) {
		return float64(p.TotalProjects), true
	},
	models.FieldCompletedProjects: func(p *models.Promoteur, _ time.Time) (float64, bool) {
		return float64(p.CompletedProjects), true
	},
	models.FieldAverageResponseTime: func(p *models.Promoteur, _ time.Time) (float64, bool) {
		if !p.HasResponseTimeData() {
			return 0, false
		}
		return *p.AverageResponseTime, true
	},
	models.FieldKYCVerified: func(p *models.Promoteur, _ time.Time) (float64, bool) {
		if p.KYCStatus == models.KYCStatusVerified {
			return 1, true
		}
		return 0, true
	},
	models.FieldActiveRestrictions: func(p *models.Promoteur, now time.Time) (float64, bool) {
		return float64(len(p.ActiveRestrictions(now))), true
	},
}

func compare(op models.Comparator, left, right float64) bool {
	switch op {
	case models.OpEq:
		return left == right
	case models.OpNeq:
		return left != right
	case models.OpGt:
		return left > right
	case models.OpGte:
		return left >= right
	case models.OpLt:
		return left < right
	case models.OpLte:
		return left <= right
	}
	return false
}

// earns reports whether every rule of the badge holds. Unknown fields or operators never match.
func earns(def models.BadgeDefinition, p *models.Promoteur, now time.Time) bool {
	if len(def.Rules) == 0 {
		return false
	}
	for _, rule := range def.Rules {
		accessor, ok := promoteurFields[rule.Field]
		if !ok {
			return false
		}
		value, ok := accessor(p, now)
		if !ok || !compare(rule.Op, value, rule.Value) {
			return false
		}
	}
	return true
}

// BadgeService awards badges from typed rule definitions.
type BadgeService struct {
	definitions badgeDefinitionSource
	promoteurs  badgePromoteurStore
	audit       *AuditTrail
	locker      Locker
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewBadgeService constructs the service.
func NewBadgeService(definitions badgeDefinitionSource, promoteurs badgePromoteurStore, audit *AuditTrail, locker Locker, metrics *MetricsService, logger *zap.Logger, now func() time.Time) *BadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if now == nil {
		now = defaultNow
	}
	return &BadgeService{definitions: definitions, promoteurs: promoteurs, audit: audit, locker: locker, metrics: metrics, logger: logger, now: now}
}

// EvaluateBadges recomputes and persists the badge list of one promoteur.
func (s *BadgeService) EvaluateBadges(ctx context.Context, promoteurID string) (*dto.BadgeEvaluation, error) {
	defs, err := s.definitions.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge definitions")
	}
	return s.evaluate(ctx, promoteurID, defs)
}

func (s *BadgeService) evaluate(ctx context.Context, promoteurID string, defs []models.BadgeDefinition) (*dto.BadgeEvaluation, error) {
	unlock, err := s.locker.Lock(ctx, promoteurLockKey(promoteurID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	promoteur, err := s.promoteurs.GetByID(ctx, promoteurID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}

	now := s.now()
	earned := make([]string, 0, len(defs))
	for _, def := range defs {
		if earns(def, promoteur, now) {
			earned = append(earned, def.Code)
		}
	}
	sort.Strings(earned)

	added, removed := diffBadges(promoteur.Badges, earned)
	result := &dto.BadgeEvaluation{PromoteurID: promoteurID, Badges: earned, Added: added, Removed: removed}
	if len(added) == 0 && len(removed) == 0 {
		return result, nil
	}
	if err := s.promoteurs.UpdateBadges(ctx, promoteurID, earned); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist badges")
	}
	s.audit.Log(ctx, AuditEntry{
		Action:      models.AuditActionBadgesUpdated,
		Category:    models.AuditCategoryTrust,
		Description: "badges re-evaluated",
		Resource:    "promoteur",
		ResourceID:  promoteurID,
		Metadata:    map[string]interface{}{"added": added, "removed": removed},
	})
	return result, nil
}

func diffBadges(current, next []string) (added, removed []string) {
	have := make(map[string]bool, len(current))
	for _, code := range current {
		have[code] = true
	}
	want := make(map[string]bool, len(next))
	for _, code := range next {
		want[code] = true
		if !have[code] {
			added = append(added, code)
		}
	}
	for _, code := range current {
		if !want[code] {
			removed = append(removed, code)
		}
	}
	return added, removed
}

// EvaluateAll re-evaluates every promoteur. Item failures are logged and counted.
func (s *BadgeService) EvaluateAll(ctx context.Context) (dto.BatchResult, error) {
	start := time.Now()
	defs, err := s.definitions.ListActive(ctx)
	if err != nil {
		return dto.BatchResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load badge definitions")
	}
	ids, err := s.promoteurs.ListIDs(ctx)
	if err != nil {
		return dto.BatchResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promoteurs")
	}

	result := dto.BatchResult{Total: len(ids)}
	for _, id := range ids {
		if _, err := s.evaluate(ctx, id, defs); err != nil {
			result.Failed++
			s.logger.Error("badge evaluation failed", zap.String("promoteur_id", id), zap.Error(err))
			continue
		}
		result.Succeeded++
	}
	elapsed := time.Since(start)
	s.metrics.ObserveBatch("badge_evaluation", elapsed)
	result.Duration = elapsed.Round(time.Millisecond).String()
	return result, nil
}
