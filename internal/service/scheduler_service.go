package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
)

const (
	defaultTrustScoreCron    = "0 3 * * *"
	defaultSanctionsCron     = "0 6 * * *"
	defaultCleanupCron       = "15 * * * *"
	defaultAppealOverdueCron = "*/30 * * * *"
)

type scoreBatchRunner interface {
	RecalculateAll(ctx context.Context) (dto.BatchResult, error)
}

type badgeBatchRunner interface {
	EvaluateAll(ctx context.Context) (dto.BatchResult, error)
}

type sanctionSweeper interface {
	RunSweep(ctx context.Context) (dto.SweepResult, error)
	RemoveExpiredRestrictions(ctx context.Context) (dto.CleanupResult, error)
}

type overdueProcessor interface {
	ProcessOverdue(ctx context.Context) (dto.OverdueResult, error)
}

type reportCleaner interface {
	CleanupExpired(ctx context.Context) int
}

// SchedulerConfig carries cron expressions; empty values fall back to defaults.
type SchedulerConfig struct {
	TrustScoreCron    string
	SanctionsCron     string
	CleanupCron       string
	AppealOverdueCron string
	JobTimeout        time.Duration
}

// SchedulerService runs the periodic trust, sanction and appeal sweeps.
type SchedulerService struct {
	scores   scoreBatchRunner
	badges   badgeBatchRunner
	sanction sanctionSweeper
	appeals  overdueProcessor
	reports  reportCleaner
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      SchedulerConfig

	cron    *cron.Cron
	mu      sync.Mutex
	running map[string]bool
}

// NewSchedulerService wires the jobs. badges and reports may be nil.
func NewSchedulerService(scores scoreBatchRunner, badges badgeBatchRunner, sanction sanctionSweeper, appeals overdueProcessor, reports reportCleaner, metrics *MetricsService, logger *zap.Logger, cfg SchedulerConfig) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TrustScoreCron == "" {
		cfg.TrustScoreCron = defaultTrustScoreCron
	}
	if cfg.SanctionsCron == "" {
		cfg.SanctionsCron = defaultSanctionsCron
	}
	if cfg.CleanupCron == "" {
		cfg.CleanupCron = defaultCleanupCron
	}
	if cfg.AppealOverdueCron == "" {
		cfg.AppealOverdueCron = defaultAppealOverdueCron
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	return &SchedulerService{
		scores:   scores,
		badges:   badges,
		sanction: sanction,
		appeals:  appeals,
		reports:  reports,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		running:  make(map[string]bool),
	}
}

// Start registers every job and starts the cron runner. Jobs stop when ctx is cancelled.
func (s *SchedulerService) Start(ctx context.Context) error {
	c := cron.New()
	entries := []struct {
		name string
		spec string
		fn   func(context.Context) error
	}{
		{"trust_score_recalculation", s.cfg.TrustScoreCron, s.RunTrustScores},
		{"automated_sanctions", s.cfg.SanctionsCron, s.RunSanctions},
		{"restriction_cleanup", s.cfg.CleanupCron, s.RunCleanup},
		{"appeal_overdue", s.cfg.AppealOverdueCron, s.RunOverdueAppeals},
	}
	for _, entry := range entries {
		entry := entry
		if _, err := c.AddFunc(entry.spec, func() { s.run(ctx, entry.name, entry.fn) }); err != nil {
			return fmt.Errorf("register %s cron %q: %w", entry.name, entry.spec, err)
		}
		s.logger.Info("scheduled job registered", zap.String("job", entry.name), zap.String("cron", entry.spec))
	}
	s.cron = c
	c.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the runner and waits for running jobs to return.
func (s *SchedulerService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// run executes fn with the job timeout, skipping overlapping runs of the same job.
func (s *SchedulerService) run(parent context.Context, name string, fn func(context.Context) error) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Warn("scheduled job still running, skipping", zap.String("job", name))
		return
	}
	s.running[name] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
	}
	s.metrics.ObserveBatch(name, time.Since(start))
}

// RunTrustScores evaluates badges then recalculates every trust score.
func (s *SchedulerService) RunTrustScores(ctx context.Context) error {
	if s.badges != nil {
		result, err := s.badges.EvaluateAll(ctx)
		if err != nil {
			s.logger.Error("badge evaluation failed", zap.Error(err))
		} else {
			s.logger.Info("badges evaluated", zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
		}
	}
	result, err := s.scores.RecalculateAll(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("trust scores recalculated",
		zap.Int("total", result.Total), zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
	return nil
}

// RunSanctions applies the automated sanction ladder.
func (s *SchedulerService) RunSanctions(ctx context.Context) error {
	result, err := s.sanction.RunSweep(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("sanctions sweep completed",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("warnings", result.Warnings),
		zap.Int("reduced_visibility", result.ReducedVisibility),
		zap.Int("suspensions", result.Suspensions),
		zap.Int("failed", result.Failed))
	return nil
}

// RunCleanup removes expired restrictions and stale report files.
func (s *SchedulerService) RunCleanup(ctx context.Context) error {
	result, err := s.sanction.RemoveExpiredRestrictions(ctx)
	if s.reports != nil {
		s.reports.CleanupExpired(ctx)
	}
	if err != nil {
		return err
	}
	s.logger.Info("expired restrictions removed", zap.Int("removed", result.Removed), zap.Int("reactivated", result.Reactivated))
	return nil
}

// RunOverdueAppeals escalates or flags appeals past their deadline.
func (s *SchedulerService) RunOverdueAppeals(ctx context.Context) error {
	result, err := s.appeals.ProcessOverdue(ctx)
	if err != nil {
		return err
	}
	if result.Escalated > 0 || result.Notified > 0 || result.Failed > 0 {
		s.logger.Info("overdue appeals processed",
			zap.Int("escalated", result.Escalated), zap.Int("notified", result.Notified), zap.Int("failed", result.Failed))
	}
	return nil
}
