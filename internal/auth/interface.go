package auth

import "webforge/internal/domain/models"

// JWTVerifier verifies bearer tokens issued by the identity provider.
// Middleware only depends on this interface.
type JWTVerifier interface {
	// VerifyToken validates a token and returns its claims, or domain.ErrUnauthorized
	VerifyToken(tokenString string) (*models.SessionClaims, error)

	// Close releases any resources held by the verifier
	Close() error
}
