package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditEntry is a single audit trail record as produced by the trust core.
type AuditEntry struct {
	ActorID     string
	Action      string
	Category    string
	Description string
	Resource    string
	ResourceID  string
	Metadata    interface{}
}

// AuditTrail persists audit entries on a best-effort basis.
type AuditTrail struct {
	repo   auditLogWriter
	logger *zap.Logger
	source string
}

// NewAuditTrail constructs an AuditTrail. source tags the user agent column.
func NewAuditTrail(repo auditLogWriter, logger *zap.Logger, source string) *AuditTrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == "" {
		source = "trust-engine"
	}
	return &AuditTrail{repo: repo, logger: logger, source: source}
}

// Log records the entry; failures are logged and swallowed.
func (a *AuditTrail) Log(ctx context.Context, entry AuditEntry) {
	if a == nil || a.repo == nil {
		return
	}
	log := &models.AuditLog{
		UserID:      optionalString(entry.ActorID),
		Action:      entry.Action,
		Category:    entry.Category,
		Resource:    entry.Resource,
		ResourceID:  optionalString(entry.ResourceID),
		Description: entry.Description,
		IPAddress:   "system",
		UserAgent:   a.source,
	}
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			a.logger.Warn("failed to encode audit metadata", zap.String("action", entry.Action), zap.Error(err))
		} else {
			log.NewValues = raw
		}
	}
	if err := a.repo.CreateAuditLog(ctx, log); err != nil {
		a.logger.Warn("failed to persist audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}
