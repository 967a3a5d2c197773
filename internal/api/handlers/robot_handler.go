package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"

	"github.com/danghamo/robomap/internal/api/jsonrpcx"
	cqrsevents "github.com/danghamo/robomap/internal/cqrs"
	"github.com/danghamo/robomap/internal/domain/robot"
	"github.com/danghamo/robomap/pkg/logger"
)

// RobotState is the serialized view of the robot the handler reads and writes.
// Implemented by service.StateHolder, which owns the locking.
type RobotState interface {
	UpdatePosition(x, y float64)
	SetMapData(mapBytes []byte)
	State() robot.MapState
	MapImage() (string, bool)
	Snapshot() robot.State
}

// ActivityTracker marks the robot as actively reporting so the bridge keeps
// rebroadcasting its position while it moves
type ActivityTracker interface {
	MarkActive(ctx context.Context)
}

// RobotHandler handles robot-related HTTP requests with JSON-RPC 2.0 format
type RobotHandler struct {
	logger     *logger.Logger
	state      RobotState
	repository robot.Repository
	eventBus   *cqrs.EventBus
	activity   ActivityTracker
	deviceID   string
}

// NewRobotHandler creates a new robot handler
func NewRobotHandler(
	logger *logger.Logger,
	state RobotState,
	repository robot.Repository,
	eventBus *cqrs.EventBus,
	activity ActivityTracker,
	deviceID string,
) *RobotHandler {
	return &RobotHandler{
		logger:     logger.WithComponent("robot-handler"),
		state:      state,
		repository: repository,
		eventBus:   eventBus,
		activity:   activity,
		deviceID:   deviceID,
	}
}

// Request parameter structures
type UpdatePositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type SetMapRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type StateRequest struct {
	// No parameters - the bridge serves a single robot
}

type MapImageRequest struct {
	// No parameters - the bridge serves a single robot
}

// Response structures
type UpdatePositionResponse struct {
	State   robot.MapState         `json:"state"`
	Changes map[string]interface{} `json:"changes"`
}

type SetMapResponse struct {
	HasMap    bool `json:"has_map"`
	SizeBytes int  `json:"size_bytes"`
}

type StateResponse = robot.MapState

type MapImageResponse struct {
	Image  string `json:"image,omitempty"`
	HasMap bool   `json:"has_map"`
}

// HandleUpdatePosition handles POST /api/v1/robot.UpdatePosition
// @Summary Update robot position
// @Description Record the robot's last known position and stamp the update time
// @Tags robot
// @Accept json
// @Produce json
// @Param request body jsonrpcx.JSONRPCRequest true "JSON-RPC request with UpdatePositionRequest params"
// @Success 200 {object} jsonrpcx.JSONRPCResponse "Updated state with changed fields"
// @Security BearerAuth
// @Router /api/v1/robot.UpdatePosition [post]
func (h *RobotHandler) HandleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	var params UpdatePositionRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "Invalid params")
		return
	}

	original := h.state.State()
	h.state.UpdatePosition(params.X, params.Y)
	updated := h.state.State()

	changes, err := h.createStateChanges(original, updated)
	if err != nil {
		h.logger.Warn("Failed to create changes patch", zap.Error(err))
		changes = make(map[string]interface{})
	}

	h.activity.MarkActive(r.Context())

	// Persist best-effort; the in-memory state is authoritative
	if err := h.repository.Save(r.Context(), h.deviceID, h.state.Snapshot()); err != nil {
		h.logger.Warn("Failed to persist robot state",
			zap.Error(err),
			zap.String("deviceId", h.deviceID))
	}

	requestID := fmt.Sprintf("%s-%d", h.deviceID, time.Now().UnixNano())
	event := &cqrsevents.RobotPositionUpdatedEvent{
		DeviceID:  h.deviceID,
		Position:  updated.Position,
		Timestamp: time.Now(),
		RequestID: requestID,
		Changes:   changes,
	}

	if err := h.eventBus.Publish(r.Context(), event); err != nil {
		h.logger.Error("Failed to publish position updated event",
			zap.Error(err),
			zap.String("deviceId", h.deviceID))
		// Don't fail the request if event publishing fails
	}

	h.logger.Info("Robot position updated",
		zap.Float64("x", params.X),
		zap.Float64("y", params.Y))

	jsonrpcx.Success(w, req.ID, UpdatePositionResponse{
		State:   updated,
		Changes: changes,
	})
}

// HandleSetMap handles POST /api/v1/robot.SetMap
// @Summary Cache a map image
// @Description Cache the robot's map image from a base64 encoded payload. An empty payload leaves any previously cached map untouched.
// @Tags robot
// @Accept json
// @Produce json
// @Param request body jsonrpcx.JSONRPCRequest true "JSON-RPC request with SetMapRequest params"
// @Success 200 {object} jsonrpcx.JSONRPCResponse "Map cache status"
// @Security BearerAuth
// @Router /api/v1/robot.SetMap [post]
func (h *RobotHandler) HandleSetMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	var params SetMapRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "Invalid params")
		return
	}

	mapBytes, err := base64.StdEncoding.DecodeString(params.ImageBase64)
	if err != nil {
		jsonrpcx.WithError(r, req.ID, jsonrpcx.InvalidParams, "image_base64 is not valid base64")
		return
	}

	// An empty payload is accepted but changes nothing
	h.state.SetMapData(mapBytes)

	state := h.state.State()
	result := SetMapResponse{
		HasMap:    state.HasMap,
		SizeBytes: len(mapBytes),
	}

	if len(mapBytes) == 0 {
		jsonrpcx.Success(w, req.ID, result)
		return
	}

	if err := h.repository.Save(r.Context(), h.deviceID, h.state.Snapshot()); err != nil {
		h.logger.Warn("Failed to persist robot state",
			zap.Error(err),
			zap.String("deviceId", h.deviceID))
	}

	requestID := fmt.Sprintf("%s-%d", h.deviceID, time.Now().UnixNano())
	event := &cqrsevents.RobotMapUpdatedEvent{
		DeviceID:  h.deviceID,
		HasMap:    true,
		SizeBytes: len(mapBytes),
		Timestamp: time.Now(),
		RequestID: requestID,
	}

	if err := h.eventBus.Publish(r.Context(), event); err != nil {
		h.logger.Error("Failed to publish map updated event",
			zap.Error(err),
			zap.String("deviceId", h.deviceID))
	}

	h.logger.Info("Robot map cached",
		zap.Int("sizeBytes", len(mapBytes)))

	jsonrpcx.Success(w, req.ID, result)
}

// HandleState handles POST /api/v1/robot.State
// @Summary Get robot status
// @Description Get the robot's last known position, map availability and update timestamp
// @Tags robot
// @Accept json
// @Produce json
// @Param request body jsonrpcx.JSONRPCRequest true "JSON-RPC request with empty params"
// @Success 200 {object} jsonrpcx.JSONRPCResponse "Robot status"
// @Security BearerAuth
// @Router /api/v1/robot.State [post]
func (h *RobotHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	jsonrpcx.Success(w, req.ID, h.state.State())
}

// HandleMapImage handles POST /api/v1/robot.MapImage
// @Summary Get cached map image
// @Description Get the cached map image as a base64 string, if one exists
// @Tags robot
// @Accept json
// @Produce json
// @Param request body jsonrpcx.JSONRPCRequest true "JSON-RPC request with empty params"
// @Success 200 {object} jsonrpcx.JSONRPCResponse "Base64 map image or has_map false"
// @Security BearerAuth
// @Router /api/v1/robot.MapImage [post]
func (h *RobotHandler) HandleMapImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonrpcx.WithError(r, nil, jsonrpcx.MethodNotFound, "Method not allowed")
		return
	}

	req, err := jsonrpcx.ParseRequest(r)
	if err != nil {
		jsonrpcx.WithError(r, nil, jsonrpcx.ParseError, "Invalid JSON-RPC request")
		return
	}

	image, ok := h.state.MapImage()

	jsonrpcx.Success(w, req.ID, MapImageResponse{
		Image:  image,
		HasMap: ok,
	})
}

// createStateChanges creates a JSON merge patch between original and updated state
func (h *RobotHandler) createStateChanges(original, updated robot.MapState) (map[string]interface{}, error) {
	originalJSON, err := json.Marshal(original)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal original state: %w", err)
	}

	updatedJSON, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal updated state: %w", err)
	}

	patchBytes, err := jsonpatch.CreateMergePatch(originalJSON, updatedJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch: %w", err)
	}

	var changes map[string]interface{}
	if err := json.Unmarshal(patchBytes, &changes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal merge patch: %w", err)
	}

	return changes, nil
}
