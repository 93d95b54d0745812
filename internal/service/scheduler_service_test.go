package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
)

type schedulerSpy struct {
	mu         sync.Mutex
	calls      []string
	sweepErr   error
	cleanupErr error
	block      chan struct{}
}

func (s *schedulerSpy) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *schedulerSpy) RecalculateAll(ctx context.Context) (dto.BatchResult, error) {
	s.record("scores")
	if s.block != nil {
		<-s.block
	}
	return dto.BatchResult{Total: 1, Succeeded: 1}, nil
}

func (s *schedulerSpy) EvaluateAll(context.Context) (dto.BatchResult, error) {
	s.record("badges")
	return dto.BatchResult{}, nil
}

func (s *schedulerSpy) RunSweep(context.Context) (dto.SweepResult, error) {
	s.record("sweep")
	return dto.SweepResult{}, s.sweepErr
}

func (s *schedulerSpy) RemoveExpiredRestrictions(context.Context) (dto.CleanupResult, error) {
	s.record("cleanup")
	return dto.CleanupResult{Removed: 2}, s.cleanupErr
}

func (s *schedulerSpy) ProcessOverdue(context.Context) (dto.OverdueResult, error) {
	s.record("overdue")
	return dto.OverdueResult{Escalated: 1}, nil
}

func (s *schedulerSpy) CleanupExpired(context.Context) int {
	s.record("reports")
	return 0
}

func (s *schedulerSpy) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newSchedulerFixture(spy *schedulerSpy, cfg SchedulerConfig) *SchedulerService {
	return NewSchedulerService(spy, spy, spy, spy, spy, nil, nil, cfg)
}

func TestSchedulerRunTrustScoresEvaluatesBadgesFirst(t *testing.T) {
	spy := &schedulerSpy{}
	svc := newSchedulerFixture(spy, SchedulerConfig{})

	require.NoError(t, svc.RunTrustScores(context.Background()))
	assert.Equal(t, []string{"badges", "scores"}, spy.snapshot())
}

func TestSchedulerRunCleanupPurgesReportsEvenOnFailure(t *testing.T) {
	spy := &schedulerSpy{cleanupErr: errors.New("db down")}
	svc := newSchedulerFixture(spy, SchedulerConfig{})

	err := svc.RunCleanup(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"cleanup", "reports"}, spy.snapshot())
}

func TestSchedulerRunSanctionsPropagatesError(t *testing.T) {
	spy := &schedulerSpy{sweepErr: errors.New("boom")}
	svc := newSchedulerFixture(spy, SchedulerConfig{})

	assert.Error(t, svc.RunSanctions(context.Background()))
	require.NoError(t, svc.RunOverdueAppeals(context.Background()))
	assert.Equal(t, []string{"sweep", "overdue"}, spy.snapshot())
}

func TestSchedulerStartRejectsInvalidCron(t *testing.T) {
	svc := newSchedulerFixture(&schedulerSpy{}, SchedulerConfig{SanctionsCron: "not a cron"})

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "automated_sanctions")
}

func TestSchedulerStartAndStop(t *testing.T) {
	svc := newSchedulerFixture(&schedulerSpy{}, SchedulerConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, svc.Start(ctx))
	cancel()
	svc.Stop()
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	spy := &schedulerSpy{block: make(chan struct{})}
	svc := newSchedulerFixture(spy, SchedulerConfig{JobTimeout: time.Second})

	done := make(chan struct{})
	go func() {
		svc.run(context.Background(), "scores", func(ctx context.Context) error {
			_, err := spy.RecalculateAll(ctx)
			return err
		})
		close(done)
	}()

	require.Eventually(t, func() bool { return len(spy.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	svc.run(context.Background(), "scores", func(ctx context.Context) error {
		spy.record("second")
		return nil
	})
	close(spy.block)
	<-done

	assert.Equal(t, []string{"scores"}, spy.snapshot())
}
