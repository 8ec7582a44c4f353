// Package auth guards HTTP routes with bearer-token authentication.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "riskwatch/pkg/domain-errors"
	"riskwatch/pkg/platform/httputil"
	"riskwatch/pkg/requestcontext"
)

// Claims is what the middleware needs from a validated token.
type Claims struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenValidator checks a raw bearer token.
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// RequireAuth rejects requests without a valid bearer token carrying
// requiredScope (when non-empty) and stores the subject in the context.
func RequireAuth(validator TokenValidator, requiredScope string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}
			if requiredScope != "" && !claims.HasScope(requiredScope) {
				logger.WarnContext(ctx, "unauthorized access - missing scope",
					"subject", claims.Subject,
					"scope", requiredScope,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "token lacks required scope"))
				return
			}

			ctx = requestcontext.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
