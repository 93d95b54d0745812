package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/internal/repository"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
	"github.com/noah-isme/promoteur-trust-api/pkg/jobs"
)

// JobTypeTrustRecalculation identifies queued single-promoteur recalculations.
const JobTypeTrustRecalculation = "trust.recalculate"

const (
	defaultHistoryLimit = 30
	defaultTrendDays    = 30
	defaultLookbackDays = 30
)

type trustPromoteurStore interface {
	GetByID(ctx context.Context, id string) (*models.Promoteur, error)
	ListIDs(ctx context.Context) ([]string, error)
	ListScores(ctx context.Context) ([]repository.PromoteurScore, error)
	UpdateTrustScore(ctx context.Context, id string, score int, at time.Time) error
}

type trustSignalReader interface {
	DocumentStats(ctx context.Context, promoteurID string) (models.DocumentStats, error)
	MissedSLACount(ctx context.Context, promoteurID string, slaHours float64, now time.Time) (int, error)
}

type projectFreshnessReader interface {
	ListByPromoteur(ctx context.Context, promoteurID string) ([]models.Project, error)
	LatestUpdateAt(ctx context.Context, projectID string, since *time.Time, publishedOnly bool) (*time.Time, error)
}

type snapshotStore interface {
	Create(ctx context.Context, snapshot *models.TrustScoreSnapshot) error
	Latest(ctx context.Context, promoteurID string) (*models.TrustScoreSnapshot, error)
	ListByPromoteur(ctx context.Context, promoteurID string, limit int) ([]models.TrustScoreSnapshot, error)
	ListSince(ctx context.Context, promoteurID string, since time.Time) ([]models.TrustScoreSnapshot, error)
}

type activeConfigSource interface {
	GetActive(ctx context.Context) (models.TrustScoreConfig, error)
}

type gamingChecker interface {
	Detect(ctx context.Context, promoteurID string, settings models.GamingDetectionSettings) (models.GamingResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// TrustScoreConfig tunes the aggregator's runtime behaviour.
type TrustScoreConfig struct {
	CacheTTL    time.Duration
	Concurrency int
	ItemTimeout time.Duration
	Now         func() time.Time
}

// TrustScoreOption customises optional collaborators.
type TrustScoreOption func(*TrustScoreService)

// WithTrustScoreCache enables the write-through breakdown cache.
func WithTrustScoreCache(cache *CacheService) TrustScoreOption {
	return func(s *TrustScoreService) { s.cache = cache }
}

// WithTrustScoreQueue enables asynchronous recalculation.
func WithTrustScoreQueue(queue jobEnqueuer) TrustScoreOption {
	return func(s *TrustScoreService) { s.queue = queue }
}

// WithTrustScoreMetrics records calculation metrics.
func WithTrustScoreMetrics(metrics *MetricsService) TrustScoreOption {
	return func(s *TrustScoreService) { s.metrics = metrics }
}

// WithTrustScoreLocker overrides the per-promoteur locker.
func WithTrustScoreLocker(locker Locker) TrustScoreOption {
	return func(s *TrustScoreService) { s.locker = locker }
}

// TrustScoreService aggregates trust signals into a persisted 0..100 score.
type TrustScoreService struct {
	promoteurs trustPromoteurStore
	signals    trustSignalReader
	projects   projectFreshnessReader
	snapshots  snapshotStore
	configs    activeConfigSource
	gaming     gamingChecker
	audit      *AuditTrail
	logger     *zap.Logger

	cache   *CacheService
	queue   jobEnqueuer
	metrics *MetricsService
	locker  Locker

	cfg TrustScoreConfig
}

// NewTrustScoreService wires the score aggregator.
func NewTrustScoreService(
	promoteurs trustPromoteurStore,
	signals trustSignalReader,
	projects projectFreshnessReader,
	snapshots snapshotStore,
	configs activeConfigSource,
	gaming gamingChecker,
	audit *AuditTrail,
	logger *zap.Logger,
	cfg TrustScoreConfig,
	opts ...TrustScoreOption,
) *TrustScoreService {
	if logger == nil {
		logger = zap.NewNop()
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
	svc := &TrustScoreService{
		promoteurs: promoteurs,
		signals:    signals,
		projects:   projects,
		snapshots:  snapshots,
		configs:    configs,
		gaming:     gaming,
		audit:      audit,
		logger:     logger,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.locker == nil {
		svc.locker = NewLocalLocker()
	}
	return svc
}

func trustScoreCacheKey(promoteurID string) string {
	return "trust:score:" + promoteurID
}

// Calculate recomputes, persists and returns the trust score of one promoteur.
func (s *TrustScoreService) Calculate(ctx context.Context, promoteurID string) (*models.TrustScoreResult, error) {
	unlock, err := s.locker.Lock(ctx, promoteurLockKey(promoteurID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	result, err := s.calculate(ctx, promoteurID)
	if result != nil {
		s.metrics.RecordScoreCalculation(result.TotalScore, result.GamingDetected, err)
	} else {
		s.metrics.RecordScoreCalculation(0, false, err)
	}
	return result, err
}

func (s *TrustScoreService) calculate(ctx context.Context, promoteurID string) (*models.TrustScoreResult, error) {
	promoteur, err := s.promoteurs.GetByID(ctx, promoteurID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}

	config, err := s.configs.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	settings := config.Settings
	now := s.cfg.Now()

	docs, err := s.signals.DocumentStats(ctx, promoteurID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document stats")
	}
	latest, err := s.latestUpdates(ctx, promoteurID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project updates")
	}
	missed, err := s.signals.MissedSLACount(ctx, promoteurID, settings.ResponseTime.AcceptableHours, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead response stats")
	}

	breakdown := models.ScoreBreakdown{
		KYC:           kycSignal(promoteur.KYCStatus),
		Documents:     documentSignal(docs),
		Updates:       updateSignal(inLookback(latest, now, settings.UpdateFrequency), now, settings.UpdateFrequency),
		ResponseTime:  responseTimeSignal(promoteur.AverageResponseTime, settings.ResponseTime),
		Completion:    completionSignal(promoteur.TotalProjects, promoteur.CompletedProjects),
		Badges:        badgeSignal(len(promoteur.Badges)),
		ConfigName:    config.Name,
		ConfigVersion: config.Version,
	}
	breakdown.WeightedTotal = weightedTotal(breakdown, settings.Weights)
	breakdown.Bonuses = bonusPoints(promoteur, latest, now, settings.Bonuses)
	breakdown.Penalties = penaltyPoints(docs.Rejected, missed, settings.Penalties)

	total := clampScore(breakdown.WeightedTotal + breakdown.Bonuses - breakdown.Penalties)

	verdict, err := s.gaming.Detect(ctx, promoteurID, settings.GamingDetection)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to run gaming detection")
	}
	if verdict.IsGaming {
		breakdown.GamingPenalty = gamingPenalty
		breakdown.GamingReason = verdict.Reason
		total -= gamingPenalty
		if total < 0 {
			total = 0
		}
		s.logger.Warn("trust score gaming detected", zap.String("promoteur_id", promoteurID), zap.String("reason", verdict.Reason))
		s.audit.Log(ctx, AuditEntry{
			Action:      models.AuditActionGamingDetected,
			Category:    models.AuditCategorySecurity,
			Description: "suspicious update pattern: " + verdict.Reason,
			Resource:    "promoteur",
			ResourceID:  promoteurID,
			Metadata:    map[string]interface{}{"reason": verdict.Reason, "penalty": gamingPenalty},
		})
	}

	if err := s.promoteurs.UpdateTrustScore(ctx, promoteurID, total, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist trust score")
	}

	snapshot := &models.TrustScoreSnapshot{
		PromoteurID:    promoteurID,
		Score:          total,
		Breakdown:      breakdown,
		GamingDetected: verdict.IsGaming,
		CreatedAt:      now,
	}
	if err := s.snapshots.Create(ctx, snapshot); err != nil {
		s.logger.Warn("failed to append trust score snapshot", zap.String("promoteur_id", promoteurID), zap.Error(err))
	}

	result := &models.TrustScoreResult{
		PromoteurID:    promoteurID,
		TotalScore:     total,
		Breakdown:      breakdown,
		GamingDetected: verdict.IsGaming,
		CalculatedAt:   now,
	}
	view := dto.TrustScoreView{
		PromoteurID:    promoteurID,
		TotalScore:     total,
		Breakdown:      &result.Breakdown,
		GamingDetected: verdict.IsGaming,
		CalculatedAt:   &now,
		Source:         dto.ScoreSourceCache,
	}
	_ = s.cache.Set(ctx, trustScoreCacheKey(promoteurID), view, s.cfg.CacheTTL)

	s.logger.Debug("trust score calculated",
		zap.String("promoteur_id", promoteurID),
		zap.Int("score", total),
		zap.Bool("gaming", verdict.IsGaming),
	)
	return result, nil
}

// latestUpdates returns, per project, the most recent published update ever posted.
func (s *TrustScoreService) latestUpdates(ctx context.Context, promoteurID string) ([]*time.Time, error) {
	projects, err := s.projects.ListByPromoteur(ctx, promoteurID)
	if err != nil {
		return nil, err
	}
	latest := make([]*time.Time, 0, len(projects))
	for _, project := range projects {
		ts, err := s.projects.LatestUpdateAt(ctx, project.ID, nil, true)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", project.ID, err)
		}
		latest = append(latest, ts)
	}
	return latest, nil
}

// inLookback drops timestamps older than the maxPenalty window.
func inLookback(latest []*time.Time, now time.Time, thresholds models.UpdateFrequencyThresholds) []*time.Time {
	window := thresholds.MaxPenaltyDays
	if window <= 0 {
		window = defaultLookbackDays
	}
	since := now.AddDate(0, 0, -window)
	result := make([]*time.Time, len(latest))
	for i, ts := range latest {
		if ts != nil && !ts.Before(since) {
			result[i] = ts
		}
	}
	return result
}

func bonusPoints(p *models.Promoteur, latest []*time.Time, now time.Time, bonuses models.BonusPoints) float64 {
	total := 0.0
	if p.ProfileComplete {
		total += bonuses.CompleteProfile
	}
	if p.HasResponseTimeData() && *p.AverageResponseTime <= quickResponderHours {
		total += bonuses.QuickResponder
	}
	if consistentUpdater(latest, now) {
		total += bonuses.ConsistentUpdater
	}
	return total
}

func consistentUpdater(latest []*time.Time, now time.Time) bool {
	if len(latest) == 0 {
		return false
	}
	for _, ts := range latest {
		if ts == nil || daysSince(*ts, now) > consistentUpdateDays {
			return false
		}
	}
	return true
}

// RecalculateAll recalculates every promoteur with bounded concurrency. Item failures are logged and counted.
func (s *TrustScoreService) RecalculateAll(ctx context.Context) (dto.BatchResult, error) {
	start := time.Now()
	ids, err := s.promoteurs.ListIDs(ctx)
	if err != nil {
		return dto.BatchResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promoteurs")
	}

	var succeeded int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, s.cfg.ItemTimeout)
			defer cancel()
			if _, err := s.Calculate(itemCtx, id); err != nil {
				s.logger.Error("trust score recalculation failed", zap.String("promoteur_id", id), zap.Error(err))
				return nil
			}
			atomic.AddInt64(&succeeded, 1)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	s.metrics.ObserveBatch("trust_recalculate_all", elapsed)
	result := dto.BatchResult{
		Total:     len(ids),
		Succeeded: int(succeeded),
		Failed:    len(ids) - int(succeeded),
		Duration:  elapsed.Round(time.Millisecond).String(),
	}
	s.logger.Info("trust score batch finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ApplyGlobalCorrection scales every score by (1+percent/100), skipping unchanged scores.
func (s *TrustScoreService) ApplyGlobalCorrection(ctx context.Context, req dto.GlobalCorrectionRequest, actor *models.JWTClaims) (dto.GlobalCorrectionResult, error) {
	if req.Percent < -100 || req.Percent > 100 {
		return dto.GlobalCorrectionResult{}, appErrors.Clone(appErrors.ErrValidation, "percent must be between -100 and 100")
	}
	scores, err := s.promoteurs.ListScores(ctx)
	if err != nil {
		return dto.GlobalCorrectionResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trust scores")
	}

	now := s.cfg.Now()
	updated := 0
	for _, item := range scores {
		next := clampScore(float64(item.TrustScore) * (1 + req.Percent/100))
		if next == item.TrustScore {
			continue
		}
		if err := s.applyCorrection(ctx, item.ID, next, now); err != nil {
			s.logger.Error("global correction failed", zap.String("promoteur_id", item.ID), zap.Error(err))
			continue
		}
		updated++
	}

	s.audit.Log(ctx, AuditEntry{
		ActorID:     actorID(actor),
		Action:      models.AuditActionGlobalCorrection,
		Category:    models.AuditCategoryTrust,
		Description: fmt.Sprintf("global trust score correction of %.2f%%", req.Percent),
		Resource:    "trust_score",
		Metadata:    map[string]interface{}{"percent": req.Percent, "updated": updated, "reason": req.Reason},
	})
	return dto.GlobalCorrectionResult{Percent: req.Percent, Updated: updated}, nil
}

func (s *TrustScoreService) applyCorrection(ctx context.Context, promoteurID string, score int, now time.Time) error {
	unlock, err := s.locker.Lock(ctx, promoteurLockKey(promoteurID))
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.promoteurs.UpdateTrustScore(ctx, promoteurID, score, now); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, trustScoreCacheKey(promoteurID))
	return nil
}

// GetScore returns the cached breakdown, else the latest snapshot, else the bare stored score.
func (s *TrustScoreService) GetScore(ctx context.Context, promoteurID string) (*dto.TrustScoreView, error) {
	var cached dto.TrustScoreView
	if hit, err := s.cache.Get(ctx, trustScoreCacheKey(promoteurID), &cached); err == nil && hit {
		cached.Source = dto.ScoreSourceCache
		return &cached, nil
	}

	promoteur, err := s.promoteurs.GetByID(ctx, promoteurID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}

	snapshot, err := s.snapshots.Latest(ctx, promoteurID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trust score snapshot")
	}
	if snapshot != nil && snapshot.Score == promoteur.TrustScore {
		view := &dto.TrustScoreView{
			PromoteurID:    promoteurID,
			TotalScore:     snapshot.Score,
			Breakdown:      &snapshot.Breakdown,
			GamingDetected: snapshot.GamingDetected,
			CalculatedAt:   &snapshot.CreatedAt,
			Source:         dto.ScoreSourceSnapshot,
		}
		_ = s.cache.Set(ctx, trustScoreCacheKey(promoteurID), view, s.cfg.CacheTTL)
		return view, nil
	}

	return &dto.TrustScoreView{
		PromoteurID:  promoteurID,
		TotalScore:   promoteur.TrustScore,
		CalculatedAt: promoteur.TrustScoreUpdatedAt,
		Source:       dto.ScoreSourcePromoteur,
	}, nil
}

// GetHistory lists the most recent snapshots, newest first.
func (s *TrustScoreService) GetHistory(ctx context.Context, promoteurID string, query dto.TrustScoreHistoryQuery) ([]models.TrustScoreSnapshot, error) {
	if err := s.ensurePromoteur(ctx, promoteurID); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	snapshots, err := s.snapshots.ListByPromoteur(ctx, promoteurID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trust score history")
	}
	return snapshots, nil
}

// GetTrend compares the first and last snapshot inside the window.
func (s *TrustScoreService) GetTrend(ctx context.Context, promoteurID string, query dto.TrustScoreTrendQuery) (*dto.TrustScoreTrend, error) {
	promoteur, err := s.promoteurs.GetByID(ctx, promoteurID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}
	days := query.Days
	if days <= 0 {
		days = defaultTrendDays
	}
	snapshots, err := s.snapshots.ListSince(ctx, promoteurID, s.cfg.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list trust score trend")
	}

	trend := &dto.TrustScoreTrend{
		PromoteurID: promoteurID,
		Days:        days,
		StartScore:  promoteur.TrustScore,
		EndScore:    promoteur.TrustScore,
		Direction:   dto.TrendStable,
		Points:      make([]dto.TrendPoint, 0, len(snapshots)),
	}
	for _, snap := range snapshots {
		trend.Points = append(trend.Points, dto.TrendPoint{Score: snap.Score, At: snap.CreatedAt})
	}
	if len(snapshots) > 0 {
		trend.StartScore = snapshots[0].Score
		trend.EndScore = snapshots[len(snapshots)-1].Score
	}
	trend.Delta = trend.EndScore - trend.StartScore
	switch {
	case trend.Delta > 0:
		trend.Direction = dto.TrendUp
	case trend.Delta < 0:
		trend.Direction = dto.TrendDown
	}
	return trend, nil
}

// EnqueueRecalculation schedules an asynchronous recalculation.
func (s *TrustScoreService) EnqueueRecalculation(ctx context.Context, promoteurID string) (*dto.RecalculationAccepted, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "async recalculation is disabled")
	}
	if err := s.ensurePromoteur(ctx, promoteurID); err != nil {
		return nil, err
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeTrustRecalculation, Key: promoteurID, Payload: promoteurID}
	if err := s.queue.Enqueue(job); err != nil {
		var queued *jobs.AlreadyQueuedError
		if errors.As(err, &queued) {
			return &dto.RecalculationAccepted{JobID: queued.JobID, PromoteurID: promoteurID, Coalesced: true}, nil
		}
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrUnavailable, "recalculation queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue recalculation")
	}
	return &dto.RecalculationAccepted{JobID: job.ID, PromoteurID: promoteurID}, nil
}

// HandleRecalculationJob is the queue handler for JobTypeTrustRecalculation.
func (s *TrustScoreService) HandleRecalculationJob(ctx context.Context, job jobs.Job) error {
	promoteurID, ok := job.Payload.(string)
	if !ok || promoteurID == "" {
		return fmt.Errorf("invalid recalculation payload %T", job.Payload)
	}
	_, err := s.Calculate(ctx, promoteurID)
	return err
}

func (s *TrustScoreService) ensurePromoteur(ctx context.Context, promoteurID string) error {
	if _, err := s.promoteurs.GetByID(ctx, promoteurID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "promoteur not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur")
	}
	return nil
}
