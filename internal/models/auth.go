package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	PromoteurID string   `json:"promoteur_id,omitempty"`
	Email       string   `json:"email"`
	jwt.RegisteredClaims
}

// CanAccessPromoteur reports whether the caller may read or act on the given promoteur.
func (c *JWTClaims) CanAccessPromoteur(promoteurID string) bool {
	if c == nil {
		return false
	}
	if c.Role.IsStaff() {
		return true
	}
	return c.Role == RolePromoteur && c.PromoteurID != "" && c.PromoteurID == promoteurID
}
