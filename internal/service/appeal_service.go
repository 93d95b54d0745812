package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

const (
	appealN1Window = 72 * time.Hour
	appealN2Window = 7 * 24 * time.Hour

	// OverdueEscalationReason is recorded when the N1 deadline lapses.
	OverdueEscalationReason = "Deadline N1 dépassé"

	defaultAppealPageSize = 20
)

var (
	appealReviewerRoles = []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}
	appealSeniorRoles   = []models.UserRole{models.RoleSuperAdmin}
)

type appealStore interface {
	Create(ctx context.Context, appeal *models.Appeal) error
	GetByID(ctx context.Context, id string) (*models.Appeal, error)
	HasOpenForRestriction(ctx context.Context, restrictionID string) (bool, error)
	List(ctx context.Context, filter models.AppealFilter) ([]models.Appeal, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.Appeal, error)
	Update(ctx context.Context, appeal *models.Appeal, expected models.AppealStatus) error
}

type appealPromoteurStore interface {
	GetByID(ctx context.Context, id string) (*models.Promoteur, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
	AddRestriction(ctx context.Context, restriction *models.Restriction) error
	RemoveRestriction(ctx context.Context, promoteurID, restrictionID string) error
}

// AppealService drives the N1/N2 appeal workflow against applied sanctions.
type AppealService struct {
	appeals    appealStore
	promoteurs appealPromoteurStore
	notifier   Notifier
	audit      *AuditTrail
	locker     Locker
	tx         Transactor
	validator  *validator.Validate
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewAppealService constructs the workflow.
func NewAppealService(appeals appealStore, promoteurs appealPromoteurStore, notifier Notifier, audit *AuditTrail, locker Locker, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, now func() time.Time) *AppealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if validate == nil {
		validate = validator.New()
	}
	if now == nil {
		now = defaultNow
	}
	return &AppealService{
		appeals:    appeals,
		promoteurs: promoteurs,
		notifier:   notifier,
		audit:      audit,
		locker:     locker,
		tx:         inline{},
		validator:  validate,
		metrics:    metrics,
		logger:     logger,
		now:        now,
	}
}

// UseTransactions commits restriction changes together with the appeal row through tx.
func (s *AppealService) UseTransactions(tx Transactor) {
	if tx != nil {
		s.tx = tx
	}
}

// appealEffects holds the writes committed with a transition and what runs once it is committed.
type appealEffects struct {
	persist func(ctx context.Context) error
	after   func(ctx context.Context)
}

// Create opens an appeal against one of the promoteur's restrictions.
func (s *AppealService) Create(ctx context.Context, req dto.CreateAppealRequest, actor *models.JWTClaims) (*models.Appeal, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid appeal payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	promoteurID := req.PromoteurID
	if actor.Role == models.RolePromoteur {
		promoteurID = actor.PromoteurID
	}
	if promoteurID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "promoteurId is required")
	}
	if !actor.CanAccessPromoteur(promoteurID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot appeal on behalf of another promoteur")
	}

	promoteur, err := s.promoteurs.GetByID(ctx, promoteurID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}
	restriction, ok := findRestriction(promoteur.Restrictions, req.RestrictionID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "restriction not found")
	}
	open, err := s.appeals.HasOpenForRestriction(ctx, restriction.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing appeals")
	}
	if open {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an appeal is already open for this restriction")
	}

	now := s.now()
	projectID := req.ProjectID
	if projectID == nil {
		projectID = restriction.ProjectID
	}
	appeal := &models.Appeal{
		PromoteurID:   promoteurID,
		ProjectID:     projectID,
		RestrictionID: restriction.ID,
		Type:          restriction.Type,
		Reason:        req.Reason,
		Description:   strings.TrimSpace(req.Description),
		OriginalAction: models.OriginalAction{
			RestrictionID: restriction.ID,
			Type:          restriction.Type,
			Code:          restriction.Code,
			Reason:        restriction.Reason,
			AppliedAt:     restriction.AppliedAt,
			ExpiresAt:     restriction.ExpiresAt,
		},
		Status:      models.AppealStatusPending,
		Level:       models.AppealLevelN1,
		SubmittedAt: now,
		Deadline:    now.Add(appealN1Window),
		ReviewNotes: models.ReviewNotes{},
	}
	if err := s.appeals.Create(ctx, appeal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appeal")
	}

	s.metrics.RecordAppealTransition(string(appeal.Status))
	s.notifyRoles(ctx, appealReviewerRoles, NotificationMessage{
		Title:    "Nouvel appel à traiter",
		Message:  fmt.Sprintf("%s conteste une sanction (%s): %s", promoteur.CompanyName, restriction.Type, appeal.Reason),
		Priority: models.PriorityHigh,
		Channels: []string{models.ChannelInApp, models.ChannelEmail},
	})
	s.audit.Log(ctx, AuditEntry{
		ActorID:     actor.UserID,
		Action:      models.AuditActionAppealCreate,
		Category:    models.AuditCategoryModeration,
		Description: "appeal submitted against " + string(restriction.Type),
		Resource:    "appeal",
		ResourceID:  appeal.ID,
		Metadata:    map[string]interface{}{"promoteurId": promoteurID, "restrictionId": restriction.ID},
	})
	return appeal, nil
}

// Get returns one appeal the caller may see.
func (s *AppealService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appeal, error) {
	appeal, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessPromoteur(appeal.PromoteurID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appeal belongs to another promoteur")
	}
	return appeal, nil
}

// List returns appeals; promoteurs only ever see their own.
func (s *AppealService) List(ctx context.Context, query dto.AppealQuery, actor *models.JWTClaims) ([]models.Appeal, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Validation(err, "invalid appeal query")
	}
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = defaultAppealPageSize
	}
	filter := models.AppealFilter{
		PromoteurID: query.PromoteurID,
		Level:       query.Level,
		AssignedTo:  query.AssignedTo,
		Limit:       size,
		Offset:      (page - 1) * size,
	}
	if !actor.Role.IsStaff() {
		filter.PromoteurID = actor.PromoteurID
		filter.AssignedTo = ""
	}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Status = append(filter.Status, models.AppealStatus(part))
			}
		}
	}
	appeals, err := s.appeals.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appeals")
	}
	return appeals, &models.Pagination{Page: page, PageSize: size, TotalCount: len(appeals)}, nil
}

// Assign takes an appeal into review. At N2 the escalated status is kept.
func (s *AppealService) Assign(ctx context.Context, id string, req dto.AssignAppealRequest, actor *models.JWTClaims) (*models.Appeal, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	assignee := strings.TrimSpace(req.AssigneeID)
	if assignee == "" {
		assignee = actor.UserID
	}
	return s.mutate(ctx, id, func(appeal *models.Appeal, now time.Time) (appealEffects, error) {
		if appeal.Status.Terminal() {
			return appealEffects{}, appErrors.Clone(appErrors.ErrInvalidTransition, "appeal is already resolved")
		}
		appeal.AssignedTo = &assignee
		if appeal.Level == models.AppealLevelN1 {
			appeal.Status = models.AppealStatusUnderReview
		}
		appeal.UpdatedAt = now
		return appealEffects{after: func(ctx context.Context) {
			s.audit.Log(ctx, AuditEntry{
				ActorID:     actor.UserID,
				Action:      models.AuditActionAppealAssign,
				Category:    models.AuditCategoryModeration,
				Description: "appeal assigned",
				Resource:    "appeal",
				ResourceID:  appeal.ID,
				Metadata:    map[string]interface{}{"assignee": assignee, "level": appeal.Level},
			})
		}}, nil
	})
}

// AddReviewNote appends a reviewer comment.
func (s *AppealService) AddReviewNote(ctx context.Context, id string, req dto.AddReviewNoteRequest, actor *models.JWTClaims) (*models.Appeal, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	req.Note = strings.TrimSpace(req.Note)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid review note")
	}
	return s.mutate(ctx, id, func(appeal *models.Appeal, now time.Time) (appealEffects, error) {
		if appeal.Status.Terminal() {
			return appealEffects{}, appErrors.Clone(appErrors.ErrInvalidTransition, "appeal is already resolved")
		}
		appeal.ReviewNotes = append(appeal.ReviewNotes, models.ReviewNote{AuthorID: actor.UserID, Note: req.Note, CreatedAt: now})
		appeal.UpdatedAt = now
		return appealEffects{}, nil
	})
}

// Escalate moves a level 1 appeal to the senior tier.
func (s *AppealService) Escalate(ctx context.Context, id string, req dto.EscalateAppealRequest, actor *models.JWTClaims) (*models.Appeal, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid escalation payload")
	}
	return s.mutate(ctx, id, func(appeal *models.Appeal, now time.Time) (appealEffects, error) {
		return s.escalate(appeal, req.Reason, actor.UserID, now)
	})
}

func (s *AppealService) escalate(appeal *models.Appeal, reason, actorID string, now time.Time) (appealEffects, error) {
	if appeal.Level != models.AppealLevelN1 || appeal.Status.Terminal() {
		return appealEffects{}, appErrors.Clone(appErrors.ErrInvalidTransition, "only open level 1 appeals can be escalated")
	}
	appeal.Level = models.AppealLevelN2
	appeal.Status = models.AppealStatusEscalated
	appeal.EscalatedAt = &now
	appeal.EscalationReason = &reason
	appeal.Deadline = now.Add(appealN2Window)
	appeal.AssignedTo = nil
	appeal.UpdatedAt = now

	return appealEffects{after: func(ctx context.Context) {
		s.notifyRoles(ctx, appealSeniorRoles, NotificationMessage{
			Title:    "Appel escaladé en N2",
			Message:  fmt.Sprintf("L'appel %s a été escaladé: %s", appeal.ID, reason),
			Priority: models.PriorityHigh,
			Channels: []string{models.ChannelInApp, models.ChannelEmail},
		})
		s.notifyPromoteur(ctx, appeal.PromoteurID, NotificationMessage{
			Title:    "Votre appel a été transmis en N2",
			Message:  "Votre appel est désormais examiné par un administrateur senior.",
			Priority: models.PriorityNormal,
			Channels: []string{models.ChannelInApp},
		})
		s.audit.Log(ctx, AuditEntry{
			ActorID:     actorID,
			Action:      models.AuditActionAppealEscalate,
			Category:    models.AuditCategoryModeration,
			Description: "appeal escalated: " + reason,
			Resource:    "appeal",
			ResourceID:  appeal.ID,
			Metadata:    map[string]interface{}{"deadline": appeal.Deadline},
		})
	}}, nil
}

// Resolve closes an appeal and applies its effect on the contested restriction.
func (s *AppealService) Resolve(ctx context.Context, id string, req dto.ResolveAppealRequest, actor *models.JWTClaims) (*models.Appeal, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	req.Notes = strings.TrimSpace(req.Notes)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid resolution payload")
	}
	return s.mutate(ctx, id, func(appeal *models.Appeal, now time.Time) (appealEffects, error) {
		if appeal.Status.Terminal() {
			return appealEffects{}, appErrors.Clone(appErrors.ErrConflict, "appeal is already resolved")
		}
		if req.Status == models.AppealStatusPartiallyApproved {
			if err := validateNewAction(req.NewAction, appeal.OriginalAction.Type); err != nil {
				return appealEffects{}, err
			}
		}
		appeal.Status = req.Status
		appeal.Decision = &models.AppealDecision{
			Status:    req.Status,
			Notes:     req.Notes,
			NewAction: req.NewAction,
			DecidedBy: actor.UserID,
			DecidedAt: now,
		}
		appeal.ResolvedAt = &now
		appeal.UpdatedAt = now

		return appealEffects{
			persist: func(ctx context.Context) error {
				return s.applyResolution(ctx, appeal, req, now)
			},
			after: func(ctx context.Context) {
				s.notifyPromoteur(ctx, appeal.PromoteurID, resolutionMessage(req))
				s.audit.Log(ctx, AuditEntry{
					ActorID:     actor.UserID,
					Action:      models.AuditActionAppealResolve,
					Category:    models.AuditCategoryModeration,
					Description: "appeal resolved: " + string(req.Status),
					Resource:    "appeal",
					ResourceID:  appeal.ID,
					Metadata:    appeal.Decision,
				})
			},
		}, nil
	})
}

func validateNewAction(action *models.NewAction, original models.RestrictionType) error {
	if action == nil {
		return appErrors.Clone(appErrors.ErrValidation, "newAction is required for a partial approval")
	}
	if !action.Type.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "newAction.type is invalid")
	}
	if original.Valid() && action.Type.Severity() >= original.Severity() {
		return appErrors.Clone(appErrors.ErrValidation, "newAction must be lighter than the original sanction")
	}
	return nil
}

// applyResolution mutates restrictions; the caller holds the promoteur lock and the transaction.
func (s *AppealService) applyResolution(ctx context.Context, appeal *models.Appeal, req dto.ResolveAppealRequest, now time.Time) error {
	if req.Status == models.AppealStatusRejected {
		return nil
	}
	promoteur, err := s.promoteurs.GetByID(ctx, appeal.PromoteurID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}

	original := appeal.OriginalAction
	for _, r := range promoteur.Restrictions {
		if !r.Matches(original.Type, original.AppliedAt) {
			continue
		}
		if err := s.promoteurs.RemoveRestriction(ctx, appeal.PromoteurID, r.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lift restriction")
		}
		break
	}

	if req.Status == models.AppealStatusPartiallyApproved {
		expiresAt := now.Add(sanctionDuration)
		reason := strings.TrimSpace(req.NewAction.Reason)
		if reason == "" {
			reason = "Sanction réduite suite à appel"
		}
		replacement := &models.Restriction{
			PromoteurID: appeal.PromoteurID,
			ProjectID:   appeal.ProjectID,
			Type:        req.NewAction.Type,
			Code:        models.CodeAppealReduced,
			Reason:      reason,
			AppliedAt:   now,
			ExpiresAt:   &expiresAt,
		}
		if err := s.promoteurs.AddRestriction(ctx, replacement); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply reduced sanction")
		}
	}

	if _, err := reactivateIfCleared(ctx, s.promoteurs, appeal.PromoteurID, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate subscription")
	}
	return nil
}

func resolutionMessage(req dto.ResolveAppealRequest) NotificationMessage {
	msg := NotificationMessage{Priority: models.PriorityHigh, Channels: []string{models.ChannelInApp, models.ChannelEmail}}
	switch req.Status {
	case models.AppealStatusApproved:
		msg.Title = "Appel accepté"
		msg.Message = "Votre appel a été accepté, la sanction a été levée."
	case models.AppealStatusPartiallyApproved:
		msg.Title = "Appel partiellement accepté"
		msg.Message = fmt.Sprintf("Votre sanction a été remplacée par: %s.", req.NewAction.Type)
	default:
		msg.Title = "Appel rejeté"
		msg.Message = "Votre appel a été rejeté, la sanction est maintenue."
	}
	if req.Notes != "" {
		msg.Message += " " + req.Notes
	}
	return msg
}

// ProcessOverdue escalates lapsed N1 appeals and raises urgent alerts for lapsed N2 appeals.
func (s *AppealService) ProcessOverdue(ctx context.Context) (dto.OverdueResult, error) {
	start := time.Now()
	overdue, err := s.appeals.ListOverdue(ctx, s.now())
	if err != nil {
		return dto.OverdueResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue appeals")
	}

	var result dto.OverdueResult
	for _, item := range overdue {
		if item.Level == models.AppealLevelN1 && item.Status != models.AppealStatusEscalated {
			_, err := s.mutate(ctx, item.ID, func(appeal *models.Appeal, now time.Time) (appealEffects, error) {
				return s.escalate(appeal, OverdueEscalationReason, "", now)
			})
			if err != nil {
				result.Failed++
				s.logger.Error("overdue appeal escalation failed", zap.String("appeal_id", item.ID), zap.Error(err))
				continue
			}
			result.Escalated++
			continue
		}
		s.notifyRoles(ctx, appealReviewerRoles, NotificationMessage{
			Title:    "Appel N2 en retard",
			Message:  fmt.Sprintf("L'appel %s a dépassé son échéance du %s.", item.ID, item.Deadline.Format("02/01/2006 15:04")),
			Priority: models.PriorityUrgent,
			Channels: []string{models.ChannelInApp, models.ChannelEmail},
		})
		result.Notified++
	}

	s.metrics.ObserveBatch("appeal_overdue", time.Since(start))
	return result, nil
}

// mutate commits a transition and then runs its notifications and audit entries.
func (s *AppealService) mutate(ctx context.Context, id string, fn func(appeal *models.Appeal, now time.Time) (appealEffects, error)) (*models.Appeal, error) {
	appeal, effects, err := s.commit(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	if effects.after != nil {
		effects.after(ctx)
	}
	return appeal, nil
}

// commit runs fn under the promoteur lock and persists the appeal, guarded on its prior status,
// in the same transaction as the transition's restriction writes.
func (s *AppealService) commit(ctx context.Context, id string, fn func(appeal *models.Appeal, now time.Time) (appealEffects, error)) (*models.Appeal, appealEffects, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, appealEffects{}, err
	}
	unlock, err := s.locker.Lock(ctx, promoteurLockKey(current.PromoteurID))
	if err != nil {
		return nil, appealEffects{}, err
	}
	defer unlock()

	appeal, err := s.load(ctx, id)
	if err != nil {
		return nil, appealEffects{}, err
	}
	previous := appeal.Status
	effects, err := fn(appeal, s.now())
	if err != nil {
		return nil, appealEffects{}, err
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if effects.persist != nil {
			if err := effects.persist(ctx); err != nil {
				return err
			}
		}
		if err := s.appeals.Update(ctx, appeal, previous); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "appeal was modified concurrently")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appeal")
		}
		return nil
	})
	if err != nil {
		return nil, appealEffects{}, err
	}
	if appeal.Status != previous {
		s.metrics.RecordAppealTransition(string(appeal.Status))
	}
	return appeal, effects, nil
}

func (s *AppealService) load(ctx context.Context, id string) (*models.Appeal, error) {
	appeal, err := s.appeals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appeal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appeal")
	}
	return appeal, nil
}

func (s *AppealService) notifyRoles(ctx context.Context, roles []models.UserRole, msg NotificationMessage) {
	if s.notifier != nil {
		s.notifier.NotifyRoles(ctx, roles, msg)
	}
}

func (s *AppealService) notifyPromoteur(ctx context.Context, promoteurID string, msg NotificationMessage) {
	if s.notifier != nil {
		s.notifier.NotifyPromoteur(ctx, promoteurID, msg)
	}
}

func findRestriction(restrictions []models.Restriction, id string) (models.Restriction, bool) {
	for _, r := range restrictions {
		if r.ID == id {
			return r, true
		}
	}
	return models.Restriction{}, false
}

func requireStaff(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsStaff() {
		return appErrors.Clone(appErrors.ErrForbidden, "reviewer role required")
	}
	return nil
}
