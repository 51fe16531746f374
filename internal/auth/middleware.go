package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pmo-dashboard/internal/models"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login.html"

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for the inspected token claims
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for the raw bearer token
	TokenKey contextKey = "token"
	// UserKey is the context key for the resolved user
	UserKey contextKey = "user"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Fields   []string `json:"fields,omitempty"`
	Redirect string   `json:"redirect,omitempty"`
}

// ClaimsFromContext extracts the token claims from the request context
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// TokenFromContext returns the bearer token to forward upstream.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(TokenKey).(string); ok {
		return v
	}
	return ""
}

// WithToken returns a copy of ctx carrying token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}

// UserFromContext returns the user resolved by LoadUser.
func UserFromContext(ctx context.Context) *models.User {
	if u, ok := ctx.Value(UserKey).(*models.User); ok {
		return u
	}
	return nil
}

// Public paths that don't require authentication
var publicPaths = map[string]bool{
	"/health":        true,
	"/metrics":       true,
	"/auth/login":    true,
	"/auth/register": true,
}

// isPublicPath checks if the given path is public (no auth required)
func isPublicPath(path string) bool {
	return publicPaths[path]
}

// SendError writes the standard error envelope.
func SendError(w http.ResponseWriter, message, code string, statusCode int) {
	sendErrorResponse(w, ErrorResponse{Error: message, Code: code}, statusCode)
}

// SendErrorResponse writes a fully populated envelope.
func SendErrorResponse(w http.ResponseWriter, response ErrorResponse, statusCode int) {
	sendErrorResponse(w, response, statusCode)
}

// SendUnauthorized writes a 401 that points the browser at the login page.
func SendUnauthorized(w http.ResponseWriter, message, code string) {
	sendErrorResponse(w, ErrorResponse{Error: message, Code: code, Redirect: LoginPath}, http.StatusUnauthorized)
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, response ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sendTokenExpirationWarning adds a warning header when token expires soon
func sendTokenExpirationWarning(w http.ResponseWriter, expiresAt, now time.Time) {
	timeUntilExpiry := expiresAt.Sub(now)
	if timeUntilExpiry <= time.Hour && timeUntilExpiry > 0 {
		w.Header().Set("X-Token-Expires-At", expiresAt.Format(time.RFC3339))
		w.Header().Set("X-Token-Expires-In", timeUntilExpiry.Round(time.Second).String())
	}
}

// AuthMiddleware extracts the bearer token, rejects tokens that are malformed
// or already expired, and stores token and claims in the request context.
// Signatures are left to the backend. now may be nil.
func AuthMiddleware(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				SendUnauthorized(w, "Authorization header required", "MISSING_AUTH_HEADER")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				SendUnauthorized(w, "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
				return
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			at := now()
			claims, err := Inspect(tokenString, at)
			switch {
			case errors.Is(err, ErrMissingToken):
				SendUnauthorized(w, "Token is required", "MISSING_TOKEN")
				return
			case errors.Is(err, ErrTokenExpired):
				SendUnauthorized(w, "Token has expired", "TOKEN_EXPIRED")
				return
			case err != nil:
				SendUnauthorized(w, "Token is malformed", "MALFORMED_TOKEN")
				return
			}

			if _, err := claims.UserID(); err != nil {
				SendUnauthorized(w, "Invalid user ID in token", "INVALID_USER_ID")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = WithToken(ctx, tokenString)

			if claims.ExpiresAt != nil {
				sendTokenExpirationWarning(w, claims.ExpiresAt.Time, at)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserResolver looks up the user owning the request's token.
type UserResolver func(ctx context.Context) (*models.User, error)

// LoadUser resolves the current user once per request and stores it in the context.
// Resolution failures are reported as 401 so the browser logs in again.
func LoadUser(resolve UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := resolve(r.Context())
			if err != nil || u == nil {
				SendUnauthorized(w, "Could not resolve the current user", "USER_UNRESOLVED")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, u)))
		})
	}
}

// MustRole creates middleware that requires one of the given roles.
// It must run after LoadUser.
func MustRole(requiredRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				SendUnauthorized(w, "Authentication required", "AUTHENTICATION_REQUIRED")
				return
			}

			if len(requiredRoles) == 0 {
				SendError(w, "No roles specified for this endpoint", "NO_ROLES_SPECIFIED", http.StatusInternalServerError)
				return
			}

			if !u.HasAnyRole(requiredRoles...) {
				SendError(w, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
