package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/robomap/internal/api/jsonrpcx"
	"github.com/danghamo/robomap/internal/domain/auth"
	"github.com/danghamo/robomap/pkg/logger"
)

// AuthHandler handles authentication requests with JSON-RPC 2.0 format
type AuthHandler struct {
	logger      *logger.Logger
	credentials *auth.Credentials
	jwtService  *auth.JWTService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(logger *logger.Logger, credentials *auth.Credentials, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		logger:      logger.WithComponent("auth-handler"),
		credentials: credentials,
		jwtService:  jwtService,
	}
}

type TokenRequest struct {
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	ClientID  string `json:"client_id"`
}

// HandleToken handles POST /api/v1/auth.Token
// @Summary Issue an access token
// @Description Exchange the bridge access password for a JWT used on all other endpoints
// @Tags auth
// @Accept json
// @Produce json
// @Param request body jsonrpcx.JSONRPCRequest true "JSON-RPC request with TokenRequest params"
// @Success 200 {object} jsonrpcx.JSONRPCResponse "Access token"
// @Router /api/v1/auth.Token [post]
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	var params TokenRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "Invalid params")
		return
	}

	if err := h.credentials.Verify(params.Password); err != nil {
		h.logger.Warn("Failed token request", zap.String("remoteAddr", r.RemoteAddr))
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidRequest, "Invalid credentials")
		return
	}

	clientID := uuid.New().String()
	token, expiresAt, err := h.jwtService.GenerateToken(clientID)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.Error(err))
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InternalError, "Failed to generate token")
		return
	}

	h.logger.Info("Issued access token", zap.String("clientId", clientID))

	jsonrpcx.Success(w, req.ID, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		ClientID:  clientID,
	})
}
