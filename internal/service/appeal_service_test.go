package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

type appealStoreStub struct {
	mu        sync.Mutex
	appeals   map[string]models.Appeal
	order     []string
	filter    models.AppealFilter
	updateErr error
}

func newAppealStoreStub() *appealStoreStub {
	return &appealStoreStub{appeals: make(map[string]models.Appeal)}
}

func (s *appealStoreStub) Create(_ context.Context, appeal *models.Appeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appeal.ID = fmt.Sprintf("ap-%d", len(s.appeals)+1)
	s.appeals[appeal.ID] = *appeal
	s.order = append(s.order, appeal.ID)
	return nil
}

func (s *appealStoreStub) GetByID(_ context.Context, id string) (*models.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appeal, ok := s.appeals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	appeal.ReviewNotes = append(models.ReviewNotes(nil), appeal.ReviewNotes...)
	return &appeal, nil
}

func (s *appealStoreStub) HasOpenForRestriction(_ context.Context, restrictionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.appeals {
		if a.RestrictionID == restrictionID && !a.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *appealStoreStub) List(_ context.Context, filter models.AppealFilter) ([]models.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	var out []models.Appeal
	for _, id := range s.order {
		a := s.appeals[id]
		if filter.PromoteurID != "" && a.PromoteurID != filter.PromoteurID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *appealStoreStub) ListOverdue(_ context.Context, now time.Time) ([]models.Appeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appeal
	for _, id := range s.order {
		a := s.appeals[id]
		if !a.Status.Terminal() && a.Deadline.Before(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *appealStoreStub) Update(_ context.Context, appeal *models.Appeal, expected models.AppealStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	current, ok := s.appeals[appeal.ID]
	if !ok || current.Status != expected {
		return sql.ErrNoRows
	}
	s.appeals[appeal.ID] = *appeal
	return nil
}

type appealFixture struct {
	clock      time.Time
	appeals    *appealStoreStub
	promoteurs *promoteurStoreStub
	notifier   *notifierSpy
	audit      *auditWriterStub
	svc        *AppealService
}

var (
	adminClaims     = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	promoteurClaims = &models.JWTClaims{UserID: "user-1", Role: models.RolePromoteur, PromoteurID: "pr-1"}
)

func newAppealFixture(t *testing.T) *appealFixture {
	t.Helper()
	fx := &appealFixture{
		clock:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		appeals:  newAppealStoreStub(),
		notifier: &notifierSpy{},
		audit:    &auditWriterStub{},
	}
	applied := fx.clock.AddDate(0, 0, -2)
	otherApplied := fx.clock.AddDate(0, 0, -1)
	expires := fx.clock.AddDate(0, 0, 28)
	fx.promoteurs = newPromoteurStoreStub(models.Promoteur{
		ID:                 "pr-1",
		CompanyName:        "Batir SA",
		SubscriptionStatus: models.SubscriptionSuspended,
		Restrictions: []models.Restriction{
			{ID: "susp", PromoteurID: "pr-1", Type: models.RestrictionSuspension, Code: models.CodeNoUpdates90Days, AppliedAt: applied, ExpiresAt: &expires},
			{ID: "warn", PromoteurID: "pr-1", Type: models.RestrictionWarning, Code: models.CodeNoUpdates45Days, AppliedAt: otherApplied, ExpiresAt: &expires},
		},
	}, models.Promoteur{ID: "pr-2"})
	fx.svc = NewAppealService(fx.appeals, fx.promoteurs, fx.notifier, NewAuditTrail(fx.audit, nil, ""), nil, nil, nil, nil, func() time.Time { return fx.clock })
	return fx
}

func (fx *appealFixture) create(t *testing.T, restrictionID string) *models.Appeal {
	t.Helper()
	appeal, err := fx.svc.Create(context.Background(), dto.CreateAppealRequest{RestrictionID: restrictionID, Reason: "Chantier en cours, photos envoyées"}, promoteurClaims)
	require.NoError(t, err)
	return appeal
}

func TestAppealServiceCreate(t *testing.T) {
	fx := newAppealFixture(t)

	appeal := fx.create(t, "susp")
	assert.Equal(t, models.AppealStatusPending, appeal.Status)
	assert.Equal(t, models.AppealLevelN1, appeal.Level)
	assert.Equal(t, fx.clock.Add(72*time.Hour), appeal.Deadline)
	assert.Equal(t, models.RestrictionSuspension, appeal.OriginalAction.Type)
	assert.Equal(t, "pr-1", appeal.PromoteurID)
	assert.Equal(t, 1, fx.notifier.count())
	assert.Equal(t, []models.UserRole{models.RoleAdmin, models.RoleSuperAdmin}, fx.notifier.sent[0].Roles)
	assert.Contains(t, fx.audit.actions(), models.AuditActionAppealCreate)

	_, err := fx.svc.Create(context.Background(), dto.CreateAppealRequest{RestrictionID: "susp", Reason: "encore une fois"}, promoteurClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAppealServiceCreateRejectsForeignRestriction(t *testing.T) {
	fx := newAppealFixture(t)

	_, err := fx.svc.Create(context.Background(), dto.CreateAppealRequest{RestrictionID: "nope", Reason: "pas de sanction"}, promoteurClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	other := &models.JWTClaims{UserID: "user-2", Role: models.RolePromoteur, PromoteurID: "pr-2"}
	_, err = fx.svc.Create(context.Background(), dto.CreateAppealRequest{PromoteurID: "pr-1", RestrictionID: "susp", Reason: "pas le mien"}, other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.Create(context.Background(), dto.CreateAppealRequest{RestrictionID: "susp", Reason: "x"}, promoteurClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAppealServiceAssignAndNotes(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "susp")

	assigned, err := fx.svc.Assign(context.Background(), appeal.ID, dto.AssignAppealRequest{}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusUnderReview, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "admin-1", *assigned.AssignedTo)

	noted, err := fx.svc.AddReviewNote(context.Background(), appeal.ID, dto.AddReviewNoteRequest{Note: "photos reçues"}, adminClaims)
	require.NoError(t, err)
	require.Len(t, noted.ReviewNotes, 1)
	assert.Equal(t, "admin-1", noted.ReviewNotes[0].AuthorID)

	_, err = fx.svc.Assign(context.Background(), appeal.ID, dto.AssignAppealRequest{}, promoteurClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAppealServiceEscalate(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "susp")
	_, err := fx.svc.Assign(context.Background(), appeal.ID, dto.AssignAppealRequest{}, adminClaims)
	require.NoError(t, err)

	fx.clock = fx.clock.Add(5 * time.Hour)
	escalated, err := fx.svc.Escalate(context.Background(), appeal.ID, dto.EscalateAppealRequest{Reason: "cas complexe"}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealLevelN2, escalated.Level)
	assert.Equal(t, models.AppealStatusEscalated, escalated.Status)
	assert.Equal(t, fx.clock.Add(7*24*time.Hour), escalated.Deadline)
	assert.Nil(t, escalated.AssignedTo)

	_, err = fx.svc.Escalate(context.Background(), appeal.ID, dto.EscalateAppealRequest{Reason: "encore"}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)

	reassigned, err := fx.svc.Assign(context.Background(), appeal.ID, dto.AssignAppealRequest{AssigneeID: "senior-1"}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusEscalated, reassigned.Status)
	assert.Equal(t, "senior-1", *reassigned.AssignedTo)
}

func TestAppealServiceApproveRemovesOnlyMatchingRestriction(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "susp")

	resolved, err := fx.svc.Resolve(context.Background(), appeal.ID, dto.ResolveAppealRequest{Status: models.AppealStatusApproved, Notes: "erreur"}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusApproved, resolved.Status)
	require.NotNil(t, resolved.Decision)
	assert.Equal(t, "admin-1", resolved.Decision.DecidedBy)
	require.NotNil(t, resolved.ResolvedAt)

	promoteur := fx.promoteurs.get("pr-1")
	require.Len(t, promoteur.Restrictions, 1)
	assert.Equal(t, "warn", promoteur.Restrictions[0].ID)
	assert.Equal(t, models.SubscriptionActive, promoteur.SubscriptionStatus)

	_, err = fx.svc.Resolve(context.Background(), appeal.ID, dto.ResolveAppealRequest{Status: models.AppealStatusRejected}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAppealServicePartialApprovalSubstitutesLighterSanction(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "susp")

	_, err := fx.svc.Resolve(context.Background(), appeal.ID, dto.ResolveAppealRequest{Status: models.AppealStatusPartiallyApproved}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = fx.svc.Resolve(context.Background(), appeal.ID, dto.ResolveAppealRequest{
		Status:    models.AppealStatusPartiallyApproved,
		NewAction: &models.NewAction{Type: models.RestrictionReducedVisibility, Reason: "visibilité réduite à la place"},
	}, adminClaims)
	require.NoError(t, err)

	promoteur := fx.promoteurs.get("pr-1")
	require.Len(t, promoteur.Restrictions, 2)
	var replacement *models.Restriction
	for i := range promoteur.Restrictions {
		if promoteur.Restrictions[i].Code == models.CodeAppealReduced {
			replacement = &promoteur.Restrictions[i]
		}
	}
	require.NotNil(t, replacement)
	assert.Equal(t, models.RestrictionReducedVisibility, replacement.Type)
	require.NotNil(t, replacement.ExpiresAt)
	assert.Equal(t, fx.clock.Add(30*24*time.Hour), *replacement.ExpiresAt)
	assert.Equal(t, models.SubscriptionActive, promoteur.SubscriptionStatus)
}

func TestAppealServiceRejectKeepsRestriction(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "warn")

	resolved, err := fx.svc.Resolve(context.Background(), appeal.ID, dto.ResolveAppealRequest{Status: models.AppealStatusRejected}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusRejected, resolved.Status)
	assert.Len(t, fx.promoteurs.get("pr-1").Restrictions, 2)
	assert.Equal(t, models.SubscriptionSuspended, fx.promoteurs.get("pr-1").SubscriptionStatus)
}

func TestAppealServiceOverdueScenario(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "susp")

	fx.clock = fx.clock.Add(73 * time.Hour)
	result, err := fx.svc.ProcessOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)

	stored, err := fx.svc.Get(context.Background(), appeal.ID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealLevelN2, stored.Level)
	assert.Equal(t, models.AppealStatusEscalated, stored.Status)
	require.NotNil(t, stored.EscalationReason)
	assert.True(t, strings.Contains(*stored.EscalationReason, "Deadline N1 dépassé"))

	fx.clock = fx.clock.Add(8 * 24 * time.Hour)
	result, err = fx.svc.ProcessOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Escalated)
	assert.Equal(t, 1, result.Notified)
	last := fx.notifier.sent[len(fx.notifier.sent)-1]
	assert.Equal(t, models.PriorityUrgent, last.Message.Priority)
}

func TestAppealServiceListScopesPromoteurs(t *testing.T) {
	fx := newAppealFixture(t)
	fx.create(t, "susp")

	_, page, err := fx.svc.List(context.Background(), dto.AppealQuery{PromoteurID: "pr-2", Status: []string{"pending,escalated"}}, promoteurClaims)
	require.NoError(t, err)
	assert.Equal(t, "pr-1", fx.appeals.filter.PromoteurID)
	assert.Equal(t, []models.AppealStatus{models.AppealStatusPending, models.AppealStatusEscalated}, fx.appeals.filter.Status)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultAppealPageSize, page.PageSize)

	other := &models.JWTClaims{UserID: "user-2", Role: models.RolePromoteur, PromoteurID: "pr-2"}
	_, err = fx.svc.Get(context.Background(), "ap-1", other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAppealServiceResolveRollsBackWhenUpdateFails(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "susp")
	fx.svc.UseTransactions(&rollbackTx{promoteurs: fx.promoteurs})
	sentBefore := fx.notifier.count()
	fx.appeals.updateErr = errors.New("db down")

	_, err := fx.svc.Resolve(context.Background(), appeal.ID, dto.ResolveAppealRequest{Status: models.AppealStatusApproved, Notes: "erreur"}, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	stored, err := fx.svc.Get(context.Background(), appeal.ID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusPending, stored.Status)
	promoteur := fx.promoteurs.get("pr-1")
	assert.Len(t, promoteur.Restrictions, 2)
	assert.Equal(t, models.SubscriptionSuspended, promoteur.SubscriptionStatus)
	assert.Equal(t, sentBefore, fx.notifier.count())
	assert.Equal(t, []string{models.AuditActionAppealCreate}, fx.audit.actions())

	fx.appeals.updateErr = nil
	resolved, err := fx.svc.Resolve(context.Background(), appeal.ID, dto.ResolveAppealRequest{Status: models.AppealStatusApproved, Notes: "erreur"}, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusApproved, resolved.Status)
	assert.Len(t, fx.promoteurs.get("pr-1").Restrictions, 1)
	assert.Equal(t, sentBefore+1, fx.notifier.count())
}

func TestAppealServiceEscalateSendsNothingWhenUpdateFails(t *testing.T) {
	fx := newAppealFixture(t)
	appeal := fx.create(t, "susp")
	sentBefore := fx.notifier.count()
	fx.appeals.updateErr = errors.New("db down")

	_, err := fx.svc.Escalate(context.Background(), appeal.ID, dto.EscalateAppealRequest{Reason: "cas complexe"}, adminClaims)
	require.Error(t, err)

	stored, err := fx.svc.Get(context.Background(), appeal.ID, adminClaims)
	require.NoError(t, err)
	assert.Equal(t, models.AppealLevelN1, stored.Level)
	assert.Equal(t, sentBefore, fx.notifier.count())
	assert.Equal(t, []string{models.AuditActionAppealCreate}, fx.audit.actions())
}
