package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/manabi-dev/manabi/internal/domain"
	"github.com/manabi-dev/manabi/internal/logger"
	"github.com/manabi-dev/manabi/internal/token"
	"github.com/manabi-dev/manabi/internal/utils"
)

// Key to store the authenticated user in the request context
type key int

const UserContextKey key = 0

// TokenVerifier is the slice of the token service the gateway needs.
type TokenVerifier interface {
	VerifyAccessToken(tokenStr string) (*token.AccessClaims, error)
}

// Blacklist answers whether an access token was revoked before its expiry.
type Blacklist interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

// UserStore loads the user record behind a verified token.
type UserStore interface {
	UserById(id domain.UserId) (domain.User, error)
}

// Auth is the per-request authentication gateway. Each request walks
// extract -> blacklist check -> verify -> load user -> attach identity, and
// any failed step short-circuits with a 401 before a handler runs.
type Auth struct {
	tokens   TokenVerifier
	registry Blacklist
	users    UserStore
}

func NewAuth(tokens TokenVerifier, registry Blacklist, users UserStore) *Auth {
	return &Auth{
		tokens:   tokens,
		registry: registry,
		users:    users,
	}
}

// extractToken pulls the access token from the cookie, falling back to the
// Authorization header for API clients.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	if bearer, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return bearer
	}
	return ""
}

// Authenticate rejects the request unless it carries a live, non-blacklisted
// access token belonging to an existing active user. A deactivated account
// and a missing one are indistinguishable to the caller: both are a plain
// 401. Blacklist lookups fail closed: if the registry cannot answer, the
// token is treated as revoked.
func (a *Auth) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := extractToken(r)
			if tokenStr == "" {
				utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
				return
			}

			blacklisted, err := a.registry.IsTokenBlacklisted(r.Context(), tokenStr)
			if err != nil {
				logger.Log.Error("blacklist check failed, rejecting token", "error", err)
				utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid access token"})
				return
			}
			if blacklisted {
				utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid access token"})
				return
			}

			claims, err := a.tokens.VerifyAccessToken(tokenStr)
			if err != nil {
				utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid access token"})
				return
			}

			user, err := a.users.UserById(claims.UserId)
			if err != nil || !user.IsActive {
				utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid access token"})
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, &user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles gates a route on the authenticated user's role. Runs after
// Authenticate; a request that skipped the gateway gets a 401, a wrong role
// a 403.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r)
			if user == nil {
				utils.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
				return
			}
			if !allowed[user.Role] {
				utils.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "You do not have permission to perform this action"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext retrieves the authenticated user attached by Authenticate.
func UserFromContext(r *http.Request) *domain.User {
	user, ok := r.Context().Value(UserContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}
