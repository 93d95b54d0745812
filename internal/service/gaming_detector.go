package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

const gamingWindow = 24 * time.Hour

type projectUpdateReader interface {
	ListByPromoteur(ctx context.Context, promoteurID string) ([]models.Project, error)
	ListUpdatesSince(ctx context.Context, projectID string, since time.Time) ([]models.ProjectUpdate, error)
}

// GamingDetector flags bursts of project updates posted to inflate the update signal.
type GamingDetector struct {
	projects projectUpdateReader
	now      func() time.Time
}

// NewGamingDetector constructs the detector.
func NewGamingDetector(projects projectUpdateReader, now func() time.Time) *GamingDetector {
	if now == nil {
		now = defaultNow
	}
	return &GamingDetector{projects: projects, now: now}
}

// Detect inspects the trailing 24h of published updates of each project and returns the first violation.
// Drafts are ignored, like every other update-based signal.
func (d *GamingDetector) Detect(ctx context.Context, promoteurID string, settings models.GamingDetectionSettings) (models.GamingResult, error) {
	if !settings.SuspiciousPatternsEnabled {
		return models.GamingResult{}, nil
	}
	projects, err := d.projects.ListByPromoteur(ctx, promoteurID)
	if err != nil {
		return models.GamingResult{}, err
	}
	since := d.now().Add(-gamingWindow)
	for _, project := range projects {
		updates, err := d.projects.ListUpdatesSince(ctx, project.ID, since)
		if err != nil {
			return models.GamingResult{}, err
		}
		times := make([]time.Time, 0, len(updates))
		for _, u := range updates {
			if u.Status != models.PublicationPublished {
				continue
			}
			times = append(times, u.CreatedAt)
		}
		if reason, gaming := evaluateUpdateBurst(times, settings); gaming {
			return models.GamingResult{IsGaming: true, Reason: fmt.Sprintf("projet %s: %s", project.ID, reason)}, nil
		}
	}
	return models.GamingResult{}, nil
}

func evaluateUpdateBurst(times []time.Time, settings models.GamingDetectionSettings) (string, bool) {
	if settings.MaxDailyUpdates > 0 && len(times) > settings.MaxDailyUpdates {
		return fmt.Sprintf("%d mises à jour en 24h (max %d)", len(times), settings.MaxDailyUpdates), true
	}
	if len(times) < 2 || settings.MinUpdateIntervalHours <= 0 {
		return "", false
	}
	sorted := append([]time.Time(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	minGap := time.Duration(settings.MinUpdateIntervalHours * float64(time.Hour))
	for i := 1; i < len(sorted); i++ {
		if gap := sorted[i].Sub(sorted[i-1]); gap < minGap {
			return fmt.Sprintf("deux mises à jour à %s d'intervalle (min %.1fh)", gap.Round(time.Minute), settings.MinUpdateIntervalHours), true
		}
	}
	return "", false
}
