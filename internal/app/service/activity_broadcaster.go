package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cqrsevents "github.com/danghamo/robomap/internal/cqrs"
	"github.com/danghamo/robomap/pkg/logger"
)

// Redis key pattern for the active robot marker: "active:robot:{deviceID}"
const activeRobotKeyPrefix = "active:robot:"

// ActivityBroadcaster rebroadcasts the robot's position periodically while it
// is actively reporting. The robot is considered active for ActiveTTL after
// its last position update, tracked with a Redis TTL key so every bridge
// instance sees the same activity window.
type ActivityBroadcaster struct {
	logger        *logger.Logger
	state         *StateHolder
	eventBus      *cqrs.EventBus
	redisClient   *redis.Client
	deviceID      string
	activeTTL     time.Duration
	refreshPeriod time.Duration
	stopChan      chan struct{}
	ticker        *time.Ticker
}

// NewActivityBroadcaster creates a new Redis-based activity broadcaster
func NewActivityBroadcaster(
	logger *logger.Logger,
	state *StateHolder,
	eventBus *cqrs.EventBus,
	redisClient *redis.Client,
	deviceID string,
	activeTTL time.Duration,
	refreshPeriod time.Duration,
) *ActivityBroadcaster {
	return &ActivityBroadcaster{
		logger:        logger.WithComponent("activity-broadcaster"),
		state:         state,
		eventBus:      eventBus,
		redisClient:   redisClient,
		deviceID:      deviceID,
		activeTTL:     activeTTL,
		refreshPeriod: refreshPeriod,
		stopChan:      make(chan struct{}),
	}
}

func (ab *ActivityBroadcaster) activeKey() string {
	return activeRobotKeyPrefix + ab.deviceID
}

// Start begins the periodic broadcasting
func (ab *ActivityBroadcaster) Start(ctx context.Context) {
	ab.ticker = time.NewTicker(ab.refreshPeriod)

	ab.logger.Info("Starting activity broadcaster",
		zap.String("deviceId", ab.deviceID),
		zap.Duration("refreshPeriod", ab.refreshPeriod),
		zap.Duration("activeTTL", ab.activeTTL))

	go ab.broadcastLoop(ctx)
}

// Stop stops the periodic broadcasting
func (ab *ActivityBroadcaster) Stop() {
	ab.logger.Info("Stopping activity broadcaster")

	if ab.ticker != nil {
		ab.ticker.Stop()
	}

	close(ab.stopChan)
}

// MarkActive marks the robot as actively reporting, extending the activity window
func (ab *ActivityBroadcaster) MarkActive(ctx context.Context) {
	err := ab.redisClient.Set(ctx, ab.activeKey(), ab.deviceID, ab.activeTTL).Err()
	if err != nil {
		ab.logger.Error("Failed to mark robot active",
			zap.String("deviceId", ab.deviceID),
			zap.Error(err))
	}
}

// ClearActive removes the activity marker immediately
func (ab *ActivityBroadcaster) ClearActive(ctx context.Context) {
	err := ab.redisClient.Del(ctx, ab.activeKey()).Err()
	if err != nil {
		ab.logger.Error("Failed to clear robot activity",
			zap.String("deviceId", ab.deviceID),
			zap.Error(err))
	}
}

// IsActive reports whether the robot is inside its activity window
func (ab *ActivityBroadcaster) IsActive(ctx context.Context) bool {
	exists, err := ab.redisClient.Exists(ctx, ab.activeKey()).Result()
	if err != nil {
		ab.logger.Debug("Failed to check robot activity", zap.Error(err))
		return false
	}
	return exists > 0
}

// broadcastLoop periodically rebroadcasts the robot position while active
func (ab *ActivityBroadcaster) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ab.stopChan:
			return
		case <-ab.ticker.C:
			ab.broadcastIfActive(ctx)
		}
	}
}

// broadcastIfActive publishes the current position when the activity marker is present
func (ab *ActivityBroadcaster) broadcastIfActive(ctx context.Context) {
	if !ab.IsActive(ctx) {
		return
	}

	state := ab.state.State()

	event := &cqrsevents.RobotPositionUpdatedEvent{
		DeviceID:  ab.deviceID,
		Position:  state.Position,
		Timestamp: time.Now(),
		RequestID: fmt.Sprintf("broadcast-%s-%s", ab.deviceID, time.Now().Format("150405.000")),
		Changes:   nil, // No changes for periodic rebroadcasts
	}

	if err := ab.eventBus.Publish(ctx, event); err != nil {
		ab.logger.Error("Failed to publish activity broadcast",
			zap.String("deviceId", ab.deviceID),
			zap.Error(err))
	}
}
