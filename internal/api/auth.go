package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenCookie is the cookie browsers carry the access token in.
const AccessTokenCookie = "access-token"

type contextKey string

const ownerContextKey contextKey = "owner_id"

// Claims are the access token claims. UID identifies the owner.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies HS256 access tokens.
type AuthMiddleware struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthMiddleware creates auth middleware for the given signing secret.
func NewAuthMiddleware(secret []byte) *AuthMiddleware {
	return &AuthMiddleware{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()),
	}
}

// Authenticate resolves the owner from the Authorization header or the access-token cookie.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractToken(r)
		if raw == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}

		claims := &Claims{}
		if _, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return m.secret, nil
		}); err != nil {
			slog.Warn("rejected access token", "error", err, "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}
		if strings.TrimSpace(claims.UID) == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithOwner(r.Context(), claims.UID)))
	})
}

// SignToken issues an HS256 access token.
func SignToken(secret []byte, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// OwnerFromContext returns the authenticated owner, or "".
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}

// ContextWithOwner attaches the authenticated owner to ctx.
func ContextWithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey, ownerID)
}
