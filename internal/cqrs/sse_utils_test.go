package cqrs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEventPublisher captures published events for assertions
type mockEventPublisher struct {
	published []interface{}
	failWith  error
}

func (m *mockEventPublisher) Publish(ctx context.Context, event interface{}) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.published = append(m.published, event)
	return nil
}

func TestSSEBroadcastHelper_BroadcastToAll(t *testing.T) {
	t.Run("should publish broadcast notification event", func(t *testing.T) {
		publisher := &mockEventPublisher{}
		helper := NewSSEBroadcastHelper(publisher)

		params := map[string]interface{}{"x": 1.5, "y": -2.0}
		err := helper.BroadcastToAll(context.Background(), "robot.position.updated", params)

		require.NoError(t, err)
		require.Len(t, publisher.published, 1)

		event, ok := publisher.published[0].(*SSENotificationEvent)
		require.True(t, ok)
		assert.Equal(t, SSENotificationTypeBroadcast, event.Type)
		assert.Equal(t, "robot.position.updated", event.Method)
		assert.Equal(t, params, event.Params)
		assert.NotEmpty(t, event.RequestID)
		assert.False(t, event.Timestamp.IsZero())
	})

	t.Run("should propagate publisher errors", func(t *testing.T) {
		publisher := &mockEventPublisher{failWith: errors.New("stream unavailable")}
		helper := NewSSEBroadcastHelper(publisher)

		err := helper.BroadcastToAll(context.Background(), "robot.map.updated", nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "stream unavailable")
	})

	t.Run("should assign a unique request id per broadcast", func(t *testing.T) {
		publisher := &mockEventPublisher{}
		helper := NewSSEBroadcastHelper(publisher)

		require.NoError(t, helper.BroadcastToAll(context.Background(), "robot.position.updated", nil))
		require.NoError(t, helper.BroadcastToAll(context.Background(), "robot.position.updated", nil))

		first := publisher.published[0].(*SSENotificationEvent)
		second := publisher.published[1].(*SSENotificationEvent)
		assert.NotEqual(t, first.RequestID, second.RequestID)
	})
}
