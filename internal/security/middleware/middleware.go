package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yourorg/staybook/internal/domain"
	"github.com/yourorg/staybook/internal/identity"
	"github.com/yourorg/staybook/internal/observability/metrics"
	"github.com/yourorg/staybook/internal/security"
	"github.com/yourorg/staybook/internal/security/audit"
	"github.com/yourorg/staybook/internal/security/ratelimit"
)

type IdentityContextKey struct{}
type CredentialContextKey struct{}

// WithIdentity resolves the caller's identity once per request and stores
// it in the context. Anonymous callers pass through with a nil identity;
// individual handlers decide whether that is acceptable.
func WithIdentity(resolver *identity.Resolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken := ""
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				token, err := identity.ExtractToken(authHeader)
				if err == nil {
					rawToken = token
				}
			}
			// Websocket clients can't set headers; fall back to a query param.
			if rawToken == "" {
				rawToken = r.URL.Query().Get("token")
			}

			resolved := resolver.Resolve(r.Context(), rawToken)

			ctx := context.WithValue(r.Context(), IdentityContextKey{}, resolved)
			ctx = context.WithValue(ctx, CredentialContextKey{}, rawToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity rejects anonymous callers with 401
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission gates a handler on a single permission, recording
// denials in the audit log and metrics
func RequirePermission(perm, surface string, auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resolved := GetIdentity(r.Context())
			if !security.HasPermission(resolved, perm) {
				userID := ""
				if resolved != nil {
					userID = resolved.User.ID
				}
				auditLog.LogDenied(r.Context(), userID, surface, perm)
				metrics.ObserveAuthzDenial(surface)
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware limits request rates per resolved user; anonymous
// traffic shares one bucket keyed by remote address
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.RemoteAddr
			if resolved := GetIdentity(r.Context()); resolved != nil {
				key = resolved.User.ID
			}

			if !limiter.Allow(key) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity returns the resolved identity from the context, or nil
func GetIdentity(ctx context.Context) *domain.Identity {
	if v := ctx.Value(IdentityContextKey{}); v != nil {
		if resolved, ok := v.(*domain.Identity); ok {
			return resolved
		}
	}
	return nil
}

// GetCredential returns the raw session credential from the context
func GetCredential(ctx context.Context) string {
	if v := ctx.Value(CredentialContextKey{}); v != nil {
		if raw, ok := v.(string); ok {
			return raw
		}
	}
	return ""
}
