package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/robomap/internal/api/jsonrpcx"
	cqrsevents "github.com/danghamo/robomap/internal/cqrs"
	"github.com/danghamo/robomap/pkg/logger"
)

// SSEBroadcaster interface for broadcasting SSE messages
type SSEBroadcaster interface {
	BroadcastToAll(notification jsonrpcx.JsonRpcNotification)
}

// SSEEventHandler handles events and converts them to SSE notifications
type SSEEventHandler struct {
	sseBroadcaster SSEBroadcaster
	logger         *logger.Logger
}

// NewSSEEventHandler creates a new SSE event handler
func NewSSEEventHandler(
	sseBroadcaster SSEBroadcaster,
	logger *logger.Logger,
) *SSEEventHandler {
	return &SSEEventHandler{
		sseBroadcaster: sseBroadcaster,
		logger:         logger.WithComponent("sse-event-handler"),
	}
}

// HandleRobotPositionUpdatedEvent handles RobotPositionUpdatedEvent and broadcasts to SSE clients
func (h *SSEEventHandler) HandleRobotPositionUpdatedEvent(ctx context.Context, event *cqrsevents.RobotPositionUpdatedEvent) error {
	h.logger.Debug("Handling robot position updated event",
		zap.String("deviceId", event.DeviceID),
		zap.String("requestId", event.RequestID))

	notification := jsonrpcx.JsonRpcNotification{
		Jsonrpc: "2.0",
		Method:  "robot.position.updated",
		Params: map[string]interface{}{
			"device_id": event.DeviceID,
			"position":  event.Position,
			"changes":   event.Changes,
			"timestamp": event.Timestamp.Format(time.RFC3339),
		},
	}

	h.sseBroadcaster.BroadcastToAll(notification)

	return nil
}

// HandleRobotMapUpdatedEvent handles RobotMapUpdatedEvent and broadcasts to SSE clients.
// The map image itself is not pushed over SSE; dashboards fetch it through
// robot.MapImage once notified.
func (h *SSEEventHandler) HandleRobotMapUpdatedEvent(ctx context.Context, event *cqrsevents.RobotMapUpdatedEvent) error {
	h.logger.Debug("Handling robot map updated event",
		zap.String("deviceId", event.DeviceID),
		zap.Int("sizeBytes", event.SizeBytes),
		zap.String("requestId", event.RequestID))

	notification := jsonrpcx.JsonRpcNotification{
		Jsonrpc: "2.0",
		Method:  "robot.map.updated",
		Params: map[string]interface{}{
			"device_id":  event.DeviceID,
			"has_map":    event.HasMap,
			"size_bytes": event.SizeBytes,
			"timestamp":  event.Timestamp.Format(time.RFC3339),
		},
	}

	h.sseBroadcaster.BroadcastToAll(notification)

	return nil
}

// HandleSSENotificationEvent handles SSENotificationEvent for distributed SSE messaging
func (h *SSEEventHandler) HandleSSENotificationEvent(ctx context.Context, event *cqrsevents.SSENotificationEvent) error {
	h.logger.Debug("Handling SSE notification event",
		zap.String("type", event.Type),
		zap.String("method", event.Method),
		zap.String("requestId", event.RequestID))

	notification := jsonrpcx.JsonRpcNotification{
		Jsonrpc: "2.0",
		Method:  event.Method,
		Params:  event.Params,
	}

	switch event.Type {
	case cqrsevents.SSENotificationTypeBroadcast:
		h.sseBroadcaster.BroadcastToAll(notification)
	default:
		h.logger.Warn("Unknown SSE notification type", zap.String("type", event.Type))
	}

	return nil
}
