package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the subset of identity-provider JWT claims this service reads.
// Tokens are issued by Supabase Auth; only the subject and role matter here.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"` // "authenticated" or "anon"
	SessionID   string `json:"session_id"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *SessionClaims) GetUserID() string {
	return c.Subject
}
