package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/internal/repository"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
	"github.com/noah-isme/promoteur-trust-api/pkg/export"
)

var trustReportHeaders = []string{"Promoteur", "Société", "Score", "Niveau de sanction", "Restrictions actives", "Abonnement"}

type reportSummarySource interface {
	ListSummaries(ctx context.Context, now time.Time) ([]repository.PromoteurSummary, error)
}

type reportFileStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type reportTokenSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string) (reportID, relPath string, expiresAt time.Time, err error)
	TTL() time.Duration
}

// ReportServiceConfig governs report links and retention.
type ReportServiceConfig struct {
	DownloadPrefix string
	ResultTTL      time.Duration
	Now            func() time.Time
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ReportService renders admin trust-score reports and serves them through signed links.
type ReportService struct {
	summaries reportSummarySource
	files     reportFileStore
	signer    reportTokenSigner
	audit     *AuditTrail
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// NewReportService constructs the report service.
func NewReportService(summaries reportSummarySource, files reportFileStore, signer reportTokenSigner, audit *AuditTrail, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 && signer != nil {
		cfg.ResultTTL = signer.TTL()
	}
	if cfg.Now == nil {
		cfg.Now = defaultNow
	}
	cfg.DownloadPrefix = strings.TrimRight(cfg.DownloadPrefix, "/")
	return &ReportService{summaries: summaries, files: files, signer: signer, audit: audit, logger: logger, cfg: cfg}
}

// GenerateTrustReport renders every promoteur's score and sanction state and returns a signed link.
func (s *ReportService) GenerateTrustReport(ctx context.Context, query dto.TrustReportQuery, actor *models.JWTClaims) (*dto.ReportLink, error) {
	renderer, err := export.ForFormat(export.Format(query.Format))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	now := s.cfg.Now()
	rows, err := s.summaries.ListSummaries(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promoteur summaries")
	}

	dataset := buildTrustDataset(rows)
	title := "Rapport des scores de confiance - " + now.Format("02/01/2006")
	content, err := renderer.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	name := filepath.Join(now.Format("2006/01/02"), fmt.Sprintf("trust-scores-%s.%s", reportID, renderer.Extension()))
	relPath, err := s.files.Save(name, content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}
	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign report link")
	}

	s.audit.Log(ctx, AuditEntry{
		ActorID:     actorID(actor),
		Action:      "REPORT_GENERATE",
		Category:    models.AuditCategoryTrust,
		Description: "trust score report generated",
		Resource:    "report",
		ResourceID:  reportID,
		Metadata:    map[string]interface{}{"format": renderer.Extension(), "rows": len(rows)},
	})
	return &dto.ReportLink{
		ReportID:    reportID,
		Format:      renderer.Extension(),
		Rows:        len(rows),
		DownloadURL: s.cfg.DownloadPrefix + "/" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

func buildTrustDataset(rows []repository.PromoteurSummary) export.Dataset {
	dataset := export.Dataset{Headers: trustReportHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Promoteur":            row.ID,
			"Société":              row.CompanyName,
			"Score":                strconv.Itoa(row.TrustScore),
			"Niveau de sanction":   string(SanctionLevelFor(row.ActiveRestrictions)),
			"Restrictions actives": strconv.Itoa(row.ActiveRestrictions),
			"Abonnement":           string(row.SubscriptionStatus),
		})
	}
	return dataset
}

// ResolveDownload validates token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	_, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: contentTypeFor(relPath),
		ExpiresAt:   expiresAt,
	}, nil
}

func contentTypeFor(path string) string {
	renderer, err := export.ForFormat(export.Format(strings.TrimPrefix(filepath.Ext(path), ".")))
	if err != nil {
		return "application/octet-stream"
	}
	return renderer.ContentType()
}

// CleanupExpired purges stored reports older than the link TTL.
func (s *ReportService) CleanupExpired(ctx context.Context) int {
	if s.cfg.ResultTTL <= 0 {
		return 0
	}
	deleted, err := s.files.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("report storage cleanup failed", zap.Error(err))
		return 0
	}
	if len(deleted) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(deleted)))
	}
	return len(deleted)
}
