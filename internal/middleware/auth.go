package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"webforge/internal/auth"
	"webforge/internal/httputil"
)

// publicPrefixes may be called without a session
var publicPrefixes = []string{
	"/health",
	"/metrics",
	"/api/published",
	"/api/plans",
}

// AuthMiddleware authenticates requests with a bearer token.
//
// With a nil verifier (local development) every request runs as devUserID.
// Public routes pass through anonymously when no token is sent.
func AuthMiddleware(verifier auth.JWTVerifier, devUserID string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, hasToken := bearerToken(r)

			switch {
			case hasToken && verifier != nil:
				claims, err := verifier.VerifyToken(token)
				if err != nil {
					httputil.RespondDomainError(w, err)
					return
				}
				r = httputil.WithUserID(r, claims.GetUserID())
			case verifier == nil && devUserID != "":
				r = httputil.WithUserID(r, devUserID)
			case isPublic(r.URL.Path):
				// anonymous
			default:
				logger.Debug("unauthenticated request", "path", r.URL.Path, "method", r.Method)
				httputil.RespondErrorWithExtras(w, http.StatusUnauthorized, "authentication required",
					map[string]interface{}{"code": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func isPublic(path string) bool {
	for _, prefix := range publicPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
