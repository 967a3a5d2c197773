package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/danghamo/robomap/internal/api/jsonrpcx"
	"github.com/danghamo/robomap/internal/domain/auth"
	"github.com/danghamo/robomap/pkg/logger"
)

// ClientContextKey is the key type for storing client info in request context
type ClientContextKey string

const (
	// ClientIDContextKey stores the dashboard client ID in context
	ClientIDContextKey ClientContextKey = "client_id"
)

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	jwtService *auth.JWTService
	logger     *logger.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtService *auth.JWTService, logger *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		logger:     logger.WithComponent("auth-middleware"),
	}
}

// RequireAuth returns a middleware that requires JWT authentication
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.logger.Debug("Missing Authorization header")
			jsonrpcx.WithError(r, nil, jsonrpcx.InvalidRequest, "Missing Authorization header")
			return
		}

		// Check Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.logger.Debug("Invalid Authorization header format")
			jsonrpcx.WithError(r, nil, jsonrpcx.InvalidRequest, "Invalid Authorization header format")
			return
		}

		tokenString := parts[1]

		// Validate JWT token
		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Debug("Invalid JWT token", zap.Error(err))
			jsonrpcx.WithError(r, nil, jsonrpcx.InvalidRequest, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClientIDContextKey, claims.ClientID)

		m.logger.Debug("JWT authentication successful",
			zap.String("clientId", claims.ClientID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSSEAuth returns a middleware that authenticates SSE connections.
// EventSource cannot set request headers, so the token is passed as a
// "token" query parameter instead of an Authorization header.
func (m *AuthMiddleware) RequireSSEAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			m.logger.Debug("Missing token query parameter for SSE")
			http.Error(w, "Missing token", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Debug("Invalid SSE token", zap.Error(err))
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClientIDContextKey, claims.ClientID)

		m.logger.Debug("SSE authentication successful",
			zap.String("clientId", claims.ClientID))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientID extracts the dashboard client ID from request context
func GetClientID(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(ClientIDContextKey).(string)
	return clientID, ok
}
