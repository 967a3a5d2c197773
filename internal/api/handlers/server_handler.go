package handlers

import (
	"net/http"

	"github.com/danghamo/robomap/internal/api/jsonrpcx"
)

// ServerHandler handles bridge information requests
type ServerHandler struct {
	deviceID string
	name     string
	model    string
}

// NewServerHandler creates a new server handler
func NewServerHandler(deviceID, name, model string) *ServerHandler {
	return &ServerHandler{
		deviceID: deviceID,
		name:     name,
		model:    model,
	}
}

// ServerInfoResponse represents bridge and robot identity information
type ServerInfoResponse struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Model    string `json:"model,omitempty"`
}

// HandleServerInfo handles POST /api/v1/server.Info
func (h *ServerHandler) HandleServerInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	jsonrpcx.Success(w, req.ID, ServerInfoResponse{
		DeviceID: h.deviceID,
		Name:     h.name,
		Model:    h.model,
	})
}
