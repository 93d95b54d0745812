package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	appErrors "github.com/noah-isme/promoteur-trust-api/pkg/errors"
)

func newTestTokenService() *TokenService {
	return NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "promoteur-platform", Audience: []string{"trust-api"}, TTL: time.Minute})
}

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := newTestTokenService()
	token, expires, err := svc.IssueToken("u-1", models.RolePromoteur, "pr-1")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RolePromoteur, claims.Role)
	assert.Equal(t, "pr-1", claims.PromoteurID)
}

func TestTokenServiceRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := newTestTokenService()
	token, _, err := svc.IssueToken("u-1", models.RoleAdmin, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "promoteur-platform", Audience: []string{"trust-api"}})
	foreign, _, err := other.IssueToken("u-2", models.RoleAdmin, "")
	require.NoError(t, err)
	_, err = newTestTokenService().ValidateToken(foreign)
	assert.Error(t, err)
}

func TestTokenServiceRequiresPromoteurIDForPromoteurs(t *testing.T) {
	svc := newTestTokenService()
	token, _, err := svc.IssueToken("u-3", models.RolePromoteur, "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "promoteur_id")
}

func TestTokenServiceRejectsNoneAlgorithm(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u-4", Role: models.RoleSuperAdmin}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestTokenService().ValidateToken(token)
	assert.Error(t, err)
}
