package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/danghamo/robomap/internal/api/jsonrpcx"
	"github.com/danghamo/robomap/pkg/logger"
)

func addTestClient(b *SSEBroadcaster, id string) {
	b.AddClient(&SSEClient{
		ID:       id,
		Writer:   nil, // Mock writers not needed for these tests
		Flusher:  nil,
		Done:     make(chan bool),
		LastSeen: time.Now(),
	})
}

func TestSSEBroadcaster_BroadcastToAll(t *testing.T) {
	testLogger := logger.NewDefault()
	broadcaster := NewSSEBroadcaster(testLogger)

	addTestClient(broadcaster, "dashboard1")
	addTestClient(broadcaster, "dashboard2")

	notification := jsonrpcx.JsonRpcNotification{
		Jsonrpc: "2.0",
		Method:  "robot.position.updated",
		Params: map[string]interface{}{
			"x": 1.0,
			"y": 2.0,
		},
	}

	assert.Equal(t, 2, broadcaster.GetClientCount())

	// Broadcast must enqueue without blocking or panicking
	broadcaster.BroadcastToAll(notification)
}

func TestSSEBroadcaster_AddRemoveClient(t *testing.T) {
	testLogger := logger.NewDefault()
	broadcaster := NewSSEBroadcaster(testLogger)

	addTestClient(broadcaster, "dashboard1")
	assert.Equal(t, 1, broadcaster.GetClientCount())

	broadcaster.RemoveClient("dashboard1")
	assert.Equal(t, 0, broadcaster.GetClientCount())

	// Removing an unknown client is a no-op
	broadcaster.RemoveClient("dashboard-unknown")
	assert.Equal(t, 0, broadcaster.GetClientCount())
}

func TestSSEBroadcaster_Close(t *testing.T) {
	testLogger := logger.NewDefault()
	broadcaster := NewSSEBroadcaster(testLogger)

	addTestClient(broadcaster, "dashboard1")
	addTestClient(broadcaster, "dashboard2")

	broadcaster.Close()

	assert.Equal(t, 0, broadcaster.GetClientCount())
}
