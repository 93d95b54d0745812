package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/internal/repository"
)

// promoteurStoreStub is an in-memory promoteur table shared by the trust, sanction, appeal and badge tests.
type promoteurStoreStub struct {
	mu         sync.Mutex
	promoteurs map[string]*models.Promoteur
	seq        int
	scoreErr   map[string]error
	getErr     error
	subErr     error
	scoreCalls int
}

func newPromoteurStoreStub(items ...models.Promoteur) *promoteurStoreStub {
	s := &promoteurStoreStub{promoteurs: make(map[string]*models.Promoteur), scoreErr: make(map[string]error)}
	for i := range items {
		p := items[i]
		s.promoteurs[p.ID] = &p
	}
	return s
}

func (s *promoteurStoreStub) get(id string) *models.Promoteur {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.promoteurs[id]
	if p == nil {
		return nil
	}
	clone := *p
	clone.Restrictions = append([]models.Restriction(nil), p.Restrictions...)
	return &clone
}

func (s *promoteurStoreStub) GetByID(_ context.Context, id string) (*models.Promoteur, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	p := s.get(id)
	if p == nil {
		return nil, sql.ErrNoRows
	}
	return p, nil
}

func (s *promoteurStoreStub) ListIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.promoteurs))
	for id := range s.promoteurs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *promoteurStoreStub) ListScores(ctx context.Context) ([]repository.PromoteurScore, error) {
	ids, _ := s.ListIDs(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.PromoteurScore, 0, len(ids))
	for _, id := range ids {
		out = append(out, repository.PromoteurScore{ID: id, TrustScore: s.promoteurs[id].TrustScore})
	}
	return out, nil
}

func (s *promoteurStoreStub) UpdateTrustScore(_ context.Context, id string, score int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreCalls++
	if err := s.scoreErr[id]; err != nil {
		return err
	}
	p := s.promoteurs[id]
	if p == nil {
		return sql.ErrNoRows
	}
	p.TrustScore = score
	p.TrustScoreUpdatedAt = &at
	p.Version++
	return nil
}

func (s *promoteurStoreStub) UpdateSubscriptionStatus(_ context.Context, id string, status models.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return s.subErr
	}
	p := s.promoteurs[id]
	if p == nil {
		return sql.ErrNoRows
	}
	p.SubscriptionStatus = status
	p.Version++
	return nil
}

func (s *promoteurStoreStub) UpdateBadges(_ context.Context, id string, badges []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.promoteurs[id]
	if p == nil {
		return sql.ErrNoRows
	}
	p.Badges = append([]string(nil), badges...)
	p.Version++
	return nil
}

func (s *promoteurStoreStub) ListRestrictions(_ context.Context, promoteurID string) ([]models.Restriction, error) {
	p := s.get(promoteurID)
	if p == nil {
		return nil, nil
	}
	return p.Restrictions, nil
}

func (s *promoteurStoreStub) AddRestriction(_ context.Context, r *models.Restriction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.promoteurs[r.PromoteurID]
	if p == nil {
		return sql.ErrNoRows
	}
	s.seq++
	r.ID = fmt.Sprintf("r-%d", s.seq)
	if r.AppliedAt.IsZero() {
		r.AppliedAt = time.Now().UTC()
	}
	p.Restrictions = append(p.Restrictions, *r)
	p.Version++
	return nil
}

func (s *promoteurStoreStub) HasActiveRestriction(_ context.Context, promoteurID, code string, now time.Time) (bool, error) {
	p := s.get(promoteurID)
	if p == nil {
		return false, nil
	}
	for _, r := range p.Restrictions {
		if r.Code == code && r.Active(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *promoteurStoreStub) RemoveRestriction(_ context.Context, promoteurID, restrictionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.promoteurs[promoteurID]
	if p == nil {
		return sql.ErrNoRows
	}
	for i, r := range p.Restrictions {
		if r.ID == restrictionID {
			p.Restrictions = append(p.Restrictions[:i], p.Restrictions[i+1:]...)
			p.Version++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *promoteurStoreStub) ListPromoteursWithExpiredRestrictions(ctx context.Context, now time.Time) ([]string, error) {
	ids, _ := s.ListIDs(ctx)
	var out []string
	for _, id := range ids {
		for _, r := range s.get(id).Restrictions {
			if !r.Active(now) {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (s *promoteurStoreStub) DeleteExpiredRestrictions(_ context.Context, promoteurID string, now time.Time) ([]models.Restriction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.promoteurs[promoteurID]
	if p == nil {
		return nil, nil
	}
	var kept, removed []models.Restriction
	for _, r := range p.Restrictions {
		if r.Active(now) {
			kept = append(kept, r)
		} else {
			removed = append(removed, r)
		}
	}
	p.Restrictions = kept
	if len(removed) > 0 {
		p.Version++
	}
	return removed, nil
}

func (s *promoteurStoreStub) snapshot() map[string]models.Promoteur {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Promoteur, len(s.promoteurs))
	for id, p := range s.promoteurs {
		clone := *p
		clone.Restrictions = append([]models.Restriction(nil), p.Restrictions...)
		clone.Badges = append([]string(nil), p.Badges...)
		out[id] = clone
	}
	return out
}

func (s *promoteurStoreStub) restore(state map[string]models.Promoteur) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promoteurs = make(map[string]*models.Promoteur, len(state))
	for id := range state {
		p := state[id]
		s.promoteurs[id] = &p
	}
}

// rollbackTx discards promoteur writes made by a failed callback.
type rollbackTx struct {
	promoteurs *promoteurStoreStub
	calls      int
}

func (r *rollbackTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	state := r.promoteurs.snapshot()
	if err := fn(ctx); err != nil {
		r.promoteurs.restore(state)
		return err
	}
	return nil
}

type auditWriterStub struct {
	mu   sync.Mutex
	logs []models.AuditLog
	err  error
}

func (s *auditWriterStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, *log)
	return nil
}

func (s *auditWriterStub) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l.Action)
	}
	return out
}

type sentNotification struct {
	PromoteurID string
	Roles       []models.UserRole
	Message     NotificationMessage
}

type notifierSpy struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *notifierSpy) NotifyPromoteur(_ context.Context, promoteurID string, msg NotificationMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{PromoteurID: promoteurID, Message: msg})
}

func (n *notifierSpy) NotifyRoles(_ context.Context, roles []models.UserRole, msg NotificationMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Roles: roles, Message: msg})
}

func (n *notifierSpy) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
