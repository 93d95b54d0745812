package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

// Day thresholds of the sanctions ladder.
const (
	warningDays      = 45
	restrictionDays  = 60
	suspensionDays   = 90
	neverUpdatedDays = 60

	sanctionDuration = 30 * 24 * time.Hour
)

type sanctionPromoteurStore interface {
	GetByID(ctx context.Context, id string) (*models.Promoteur, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
	AddRestriction(ctx context.Context, restriction *models.Restriction) error
	HasActiveRestriction(ctx context.Context, promoteurID, code string, now time.Time) (bool, error)
	ListPromoteursWithExpiredRestrictions(ctx context.Context, now time.Time) ([]string, error)
	DeleteExpiredRestrictions(ctx context.Context, promoteurID string, now time.Time) ([]models.Restriction, error)
}

type sanctionProjectStore interface {
	ListSanctionable(ctx context.Context) ([]models.Project, error)
	LatestUpdateAt(ctx context.Context, projectID string, since *time.Time, publishedOnly bool) (*time.Time, error)
	SetStatus(ctx context.Context, projectID, status string) error
	SetFeatured(ctx context.Context, projectID string, featured bool) error
}

// SanctionConfig tunes sweep concurrency.
type SanctionConfig struct {
	Concurrency int
	ItemTimeout time.Duration
	Now         func() time.Time
}

// SanctionService applies graduated sanctions for stale construction projects.
type SanctionService struct {
	promoteurs sanctionPromoteurStore
	projects   sanctionProjectStore
	notifier   Notifier
	audit      *AuditTrail
	locker     Locker
	tx         Transactor
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        SanctionConfig
}

// NewSanctionService constructs the sanctions engine.
func NewSanctionService(promoteurs sanctionPromoteurStore, projects sanctionProjectStore, notifier Notifier, audit *AuditTrail, locker Locker, metrics *MetricsService, logger *zap.Logger, cfg SanctionConfig) *SanctionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if cfg.Now == nil {
		cfg.Now = defaultNow
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 30 * time.Second
	}
	return &SanctionService{
		promoteurs: promoteurs,
		projects:   projects,
		notifier:   notifier,
		audit:      audit,
		locker:     locker,
		tx:         inline{},
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// UseTransactions commits each sanction's writes atomically through tx.
func (s *SanctionService) UseTransactions(tx Transactor) {
	if tx != nil {
		s.tx = tx
	}
}

// SanctionLevelFor classifies a count of active restrictions.
func SanctionLevelFor(activeRestrictions int) models.SanctionLevel {
	switch {
	case activeRestrictions <= 0:
		return models.SanctionLevelNone
	case activeRestrictions == 1:
		return models.SanctionLevelWarning
	case activeRestrictions == 2:
		return models.SanctionLevelRestricted
	default:
		return models.SanctionLevelHighRisk
	}
}

type sanctionDecision struct {
	Type   models.RestrictionType
	Code   string
	Reason string
}

// decideSanction maps update staleness to a rung of the ladder.
func decideSanction(project models.Project, lastUpdate *time.Time, now time.Time) (sanctionDecision, bool) {
	if lastUpdate == nil {
		age := daysSince(project.CreatedAt, now)
		if age > neverUpdatedDays {
			return sanctionDecision{
				Type:   models.RestrictionWarning,
				Code:   models.CodeNoUpdates60Days,
				Reason: fmt.Sprintf("Aucune mise à jour publiée sur le projet %q depuis sa création il y a %d jours", project.Title, age),
			}, true
		}
		return sanctionDecision{}, false
	}

	days := daysSince(*lastUpdate, now)
	switch {
	case days > suspensionDays:
		return sanctionDecision{
			Type:   models.RestrictionSuspension,
			Code:   models.CodeNoUpdates90Days,
			Reason: fmt.Sprintf("Compte suspendu: aucune mise à jour du projet %q depuis %d jours", project.Title, days),
		}, true
	case days > restrictionDays:
		return sanctionDecision{
			Type:   models.RestrictionReducedVisibility,
			Code:   models.CodeStaleUpdates60,
			Reason: fmt.Sprintf("Visibilité réduite: aucune mise à jour du projet %q depuis %d jours", project.Title, days),
		}, true
	case days > warningDays:
		return sanctionDecision{
			Type:   models.RestrictionWarning,
			Code:   models.CodeNoUpdates45Days,
			Reason: fmt.Sprintf("Avertissement: aucune mise à jour du projet %q depuis %d jours", project.Title, days),
		}, true
	}
	return sanctionDecision{}, false
}

type sweepCounter struct {
	mu     sync.Mutex
	result dto.SweepResult
}

func (c *sweepCounter) add(fn func(r *dto.SweepResult)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.result)
}

// RunSweep evaluates every published construction-phase project. Project failures are logged and counted.
func (s *SanctionService) RunSweep(ctx context.Context) (dto.SweepResult, error) {
	start := time.Now()
	projects, err := s.projects.ListSanctionable(ctx)
	if err != nil {
		return dto.SweepResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sanctionable projects")
	}

	counter := &sweepCounter{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, project := range projects {
		project := project
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, s.cfg.ItemTimeout)
			defer cancel()
			applied, restrictionType, err := s.evaluateProject(itemCtx, project)
			counter.add(func(r *dto.SweepResult) {
				r.Evaluated++
				switch {
				case err != nil:
					r.Failed++
				case !applied && restrictionType != "":
					r.AlreadyApplied++
				case restrictionType == models.RestrictionWarning:
					r.Warnings++
				case restrictionType == models.RestrictionReducedVisibility:
					r.ReducedVisibility++
				case restrictionType == models.RestrictionSuspension:
					r.Suspensions++
				}
			})
			if err != nil {
				s.logger.Error("sanction evaluation failed",
					zap.String("project_id", project.ID),
					zap.String("promoteur_id", project.PromoteurID),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.ObserveBatch("sanctions_sweep", time.Since(start))
	result := counter.result
	s.logger.Info("sanctions sweep finished",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("warnings", result.Warnings),
		zap.Int("reduced_visibility", result.ReducedVisibility),
		zap.Int("suspensions", result.Suspensions),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// evaluateProject returns whether a new restriction was written and which type was due.
func (s *SanctionService) evaluateProject(ctx context.Context, project models.Project) (bool, models.RestrictionType, error) {
	now := s.cfg.Now()
	lastUpdate, err := s.projects.LatestUpdateAt(ctx, project.ID, nil, true)
	if err != nil {
		return false, "", fmt.Errorf("latest update: %w", err)
	}
	decision, due := decideSanction(project, lastUpdate, now)
	if !due {
		return false, "", nil
	}
	restriction, err := s.apply(ctx, project, decision, now)
	if err != nil {
		return false, decision.Type, err
	}
	if restriction == nil {
		return false, decision.Type, nil
	}

	s.metrics.RecordSanction(string(decision.Type))
	s.notifySanction(ctx, project, restriction)
	s.audit.Log(ctx, AuditEntry{
		Action:      models.AuditActionSanctionApplied,
		Category:    models.AuditCategoryModeration,
		Description: decision.Reason,
		Resource:    "promoteur",
		ResourceID:  project.PromoteurID,
		Metadata: map[string]interface{}{
			"restrictionId": restriction.ID,
			"projectId":     project.ID,
			"type":          decision.Type,
			"code":          decision.Code,
			"expiresAt":     restriction.ExpiresAt,
		},
	})
	return true, decision.Type, nil
}

// apply enforces the rung on the project and its promoteur, then records the restriction unless one
// with the same code is still in force. It returns nil when no restriction was added.
func (s *SanctionService) apply(ctx context.Context, project models.Project, decision sanctionDecision, now time.Time) (*models.Restriction, error) {
	unlock, err := s.locker.Lock(ctx, promoteurLockKey(project.PromoteurID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var added *models.Restriction
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.enforce(ctx, project, decision.Type); err != nil {
			return err
		}
		exists, err := s.promoteurs.HasActiveRestriction(ctx, project.PromoteurID, decision.Code, now)
		if err != nil {
			return fmt.Errorf("check restriction: %w", err)
		}
		if exists {
			return nil
		}
		expiresAt := now.Add(sanctionDuration)
		projectID := project.ID
		restriction := &models.Restriction{
			PromoteurID: project.PromoteurID,
			ProjectID:   &projectID,
			Type:        decision.Type,
			Code:        decision.Code,
			Reason:      decision.Reason,
			AppliedAt:   now,
			ExpiresAt:   &expiresAt,
		}
		if err := s.promoteurs.AddRestriction(ctx, restriction); err != nil {
			return fmt.Errorf("add restriction: %w", err)
		}
		added = restriction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// enforce applies the project and account effects of a rung. Effects already in place are skipped.
func (s *SanctionService) enforce(ctx context.Context, project models.Project, restrictionType models.RestrictionType) error {
	switch restrictionType {
	case models.RestrictionSuspension:
		promoteur, err := s.promoteurs.GetByID(ctx, project.PromoteurID)
		if err != nil {
			return fmt.Errorf("load promoteur: %w", err)
		}
		if promoteur.SubscriptionStatus != models.SubscriptionSuspended {
			if err := s.promoteurs.UpdateSubscriptionStatus(ctx, project.PromoteurID, models.SubscriptionSuspended); err != nil {
				return fmt.Errorf("suspend promoteur: %w", err)
			}
		}
		if project.Status != models.ProjectStatusSuspended {
			if err := s.projects.SetStatus(ctx, project.ID, models.ProjectStatusSuspended); err != nil {
				return fmt.Errorf("suspend project: %w", err)
			}
		}
	case models.RestrictionReducedVisibility:
		if project.IsFeatured {
			if err := s.projects.SetFeatured(ctx, project.ID, false); err != nil {
				return fmt.Errorf("unfeature project: %w", err)
			}
		}
	}
	return nil
}

func (s *SanctionService) notifySanction(ctx context.Context, project models.Project, r *models.Restriction) {
	if s.notifier == nil {
		return
	}
	msg := NotificationMessage{Message: r.Reason, Channels: []string{models.ChannelInApp, models.ChannelEmail}}
	switch r.Type {
	case models.RestrictionSuspension:
		msg.Title = "Compte suspendu"
		msg.Priority = models.PriorityUrgent
		msg.Channels = append(msg.Channels, models.ChannelWhatsApp)
	case models.RestrictionReducedVisibility:
		msg.Title = "Visibilité de votre projet réduite"
		msg.Priority = models.PriorityHigh
	default:
		msg.Title = "Avertissement: mettez à jour votre projet"
		msg.Priority = models.PriorityNormal
	}
	s.notifier.NotifyPromoteur(ctx, project.PromoteurID, msg)
}

// RemoveExpiredRestrictions deletes expired restrictions and lifts suspensions that no longer apply.
func (s *SanctionService) RemoveExpiredRestrictions(ctx context.Context) (dto.CleanupResult, error) {
	start := time.Now()
	now := s.cfg.Now()
	ids, err := s.promoteurs.ListPromoteursWithExpiredRestrictions(ctx, now)
	if err != nil {
		return dto.CleanupResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired restrictions")
	}

	var result dto.CleanupResult
	for _, id := range ids {
		itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
		removed, reactivated, err := s.cleanupPromoteur(itemCtx, id, now)
		cancel()
		result.Removed += removed
		if reactivated {
			result.Reactivated++
		}
		if err != nil {
			result.Failed++
			s.logger.Error("restriction cleanup failed", zap.String("promoteur_id", id), zap.Error(err))
		}
	}

	s.metrics.RecordRestrictionsExpired(result.Removed)
	s.metrics.ObserveBatch("restriction_cleanup", time.Since(start))
	return result, nil
}

func (s *SanctionService) cleanupPromoteur(ctx context.Context, promoteurID string, now time.Time) (int, bool, error) {
	removed, reactivated, err := s.expireLocked(ctx, promoteurID, now)
	if err != nil || len(removed) == 0 {
		return len(removed), false, err
	}

	for _, r := range removed {
		s.audit.Log(ctx, AuditEntry{
			Action:      models.AuditActionRestrictionExpire,
			Category:    models.AuditCategoryModeration,
			Description: "restriction expired: " + r.Code,
			Resource:    "promoteur",
			ResourceID:  promoteurID,
			Metadata:    map[string]interface{}{"restrictionId": r.ID, "type": r.Type, "code": r.Code},
		})
	}

	if s.notifier != nil {
		msg := NotificationMessage{
			Title:    "Restriction levée",
			Message:  fmt.Sprintf("%d restriction(s) arrivée(s) à échéance ont été levées sur votre compte.", len(removed)),
			Priority: models.PriorityNormal,
			Channels: []string{models.ChannelInApp},
		}
		if reactivated {
			msg.Title = "Compte réactivé"
			msg.Message = "Votre suspension est arrivée à échéance, votre compte est de nouveau actif."
			msg.Channels = append(msg.Channels, models.ChannelEmail)
		}
		s.notifier.NotifyPromoteur(ctx, promoteurID, msg)
	}
	return len(removed), reactivated, nil
}

// expireLocked deletes expired restrictions and lifts a lapsed suspension in one transaction.
func (s *SanctionService) expireLocked(ctx context.Context, promoteurID string, now time.Time) ([]models.Restriction, bool, error) {
	unlock, err := s.locker.Lock(ctx, promoteurLockKey(promoteurID))
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var (
		removed     []models.Restriction
		reactivated bool
	)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.promoteurs.DeleteExpiredRestrictions(ctx, promoteurID, now)
		if err != nil {
			return fmt.Errorf("delete expired: %w", err)
		}
		for _, r := range removed {
			if r.Type == models.RestrictionSuspension {
				reactivated, err = reactivateIfCleared(ctx, s.promoteurs, promoteurID, now)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return removed, reactivated, nil
}

type subscriptionStore interface {
	GetByID(ctx context.Context, id string) (*models.Promoteur, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
}

// reactivateIfCleared sets a suspended promoteur back to active when no suspension remains in force.
func reactivateIfCleared(ctx context.Context, store subscriptionStore, promoteurID string, now time.Time) (bool, error) {
	promoteur, err := store.GetByID(ctx, promoteurID)
	if err != nil {
		return false, fmt.Errorf("reload promoteur: %w", err)
	}
	if promoteur.SubscriptionStatus != models.SubscriptionSuspended {
		return false, nil
	}
	for _, r := range promoteur.ActiveRestrictions(now) {
		if r.Type == models.RestrictionSuspension {
			return false, nil
		}
	}
	if err := store.UpdateSubscriptionStatus(ctx, promoteurID, models.SubscriptionActive); err != nil {
		return false, fmt.Errorf("reactivate subscription: %w", err)
	}
	return true, nil
}

// GetSanctions returns the active restrictions and derived level of a promoteur.
func (s *SanctionService) GetSanctions(ctx context.Context, promoteurID string) (*dto.SanctionSummary, error) {
	promoteur, err := s.promoteurs.GetByID(ctx, promoteurID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}
	active := promoteur.ActiveRestrictions(s.cfg.Now())
	return &dto.SanctionSummary{
		PromoteurID:        promoteurID,
		Level:              SanctionLevelFor(len(active)),
		SubscriptionStatus: promoteur.SubscriptionStatus,
		Restrictions:       active,
	}, nil
}
