package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/dto"
	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

type trustConfigStoreStub struct {
	configs []models.TrustScoreConfig
	err     error
}

func (s *trustConfigStoreStub) GetActive(context.Context) (*models.TrustScoreConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.configs {
		if s.configs[i].IsActive {
			cfg := s.configs[i]
			return &cfg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *trustConfigStoreStub) GetByID(_ context.Context, id string) (*models.TrustScoreConfig, error) {
	for i := range s.configs {
		if s.configs[i].ID == id {
			cfg := s.configs[i]
			return &cfg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *trustConfigStoreStub) List(context.Context) ([]models.TrustScoreConfig, error) {
	return s.configs, s.err
}

func (s *trustConfigStoreStub) Create(_ context.Context, cfg *models.TrustScoreConfig) error {
	if s.err != nil {
		return s.err
	}
	version := 1
	for _, existing := range s.configs {
		if existing.Name == cfg.Name && existing.Version >= version {
			version = existing.Version + 1
		}
	}
	cfg.ID = fmt.Sprintf("cfg-%d", len(s.configs)+1)
	cfg.Version = version
	cfg.IsActive = false
	s.configs = append(s.configs, *cfg)
	return nil
}

func (s *trustConfigStoreStub) Activate(_ context.Context, id string) error {
	found := false
	for i := range s.configs {
		if s.configs[i].ID == id {
			found = true
		}
	}
	if !found {
		return sql.ErrNoRows
	}
	for i := range s.configs {
		s.configs[i].IsActive = s.configs[i].ID == id
	}
	return nil
}

func TestTrustConfigServiceGetActiveFallsBackToDefault(t *testing.T) {
	svc := NewTrustConfigService(&trustConfigStoreStub{}, nil, nil, nil)

	cfg, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTrustScoreConfigName, cfg.Name)
	assert.Equal(t, 25.0, cfg.Settings.Weights.KYC)
	assert.Equal(t, 100.0, cfg.Settings.Weights.Sum())
}

func TestTrustConfigServiceGetActivePropagatesStoreErrors(t *testing.T) {
	svc := NewTrustConfigService(&trustConfigStoreStub{err: errors.New("db down")}, nil, nil, nil)

	_, err := svc.GetActive(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTrustConfigServiceCreateAndActivate(t *testing.T) {
	store := &trustConfigStoreStub{configs: []models.TrustScoreConfig{{ID: "old", Name: "baseline", Version: 1, IsActive: true}}}
	audit := &auditWriterStub{}
	svc := NewTrustConfigService(store, nil, NewAuditTrail(audit, nil, ""), nil)

	settings := models.DefaultTrustScoreConfig().Settings
	settings.Weights.KYC = 30
	cfg, err := svc.Create(context.Background(), dto.CreateTrustConfigRequest{Name: " baseline ", Settings: settings, Activate: true}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Version)
	assert.True(t, cfg.IsActive)
	require.NotNil(t, cfg.CreatedBy)
	assert.Equal(t, "admin-1", *cfg.CreatedBy)

	active := 0
	for _, c := range store.configs {
		if c.IsActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
	assert.Equal(t, []string{models.AuditActionConfigCreate, models.AuditActionConfigActivate}, audit.actions())
}

func TestTrustConfigServiceCreateValidation(t *testing.T) {
	svc := NewTrustConfigService(&trustConfigStoreStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateTrustConfigRequest{Name: "", Settings: models.DefaultTrustScoreConfig().Settings}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	settings := models.DefaultTrustScoreConfig().Settings
	settings.UpdateFrequency.MinimumDays = 3
	_, err = svc.Create(context.Background(), dto.CreateTrustConfigRequest{Name: "broken", Settings: settings}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateTrustConfigRequest{Name: models.DefaultTrustScoreConfigName, Settings: models.DefaultTrustScoreConfig().Settings}, nil)
	require.Error(t, err)
}

func TestTrustConfigServiceActivateUnknown(t *testing.T) {
	svc := NewTrustConfigService(&trustConfigStoreStub{}, nil, nil, nil)

	_, err := svc.Activate(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
