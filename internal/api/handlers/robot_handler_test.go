package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/robomap/internal/api/middleware"
	"github.com/danghamo/robomap/internal/app/service"
	"github.com/danghamo/robomap/internal/domain/robot"
	"github.com/danghamo/robomap/pkg/logger"
)

// memoryRepository is an in-memory robot.Repository for handler tests
type memoryRepository struct {
	states map[string]robot.State
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{states: make(map[string]robot.State)}
}

func (m *memoryRepository) Load(ctx context.Context, deviceID string) (*robot.State, error) {
	state, ok := m.states[deviceID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (m *memoryRepository) Save(ctx context.Context, deviceID string, state robot.State) error {
	m.states[deviceID] = state
	return nil
}

func (m *memoryRepository) Delete(ctx context.Context, deviceID string) error {
	delete(m.states, deviceID)
	return nil
}

// fakeActivity records MarkActive calls
type fakeActivity struct {
	marked int
}

func (f *fakeActivity) MarkActive(ctx context.Context) {
	f.marked++
}

func newTestEventBus(t *testing.T) *cqrs.EventBus {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	eventBus, err := cqrs.NewEventBusWithConfig(
		pubSub,
		cqrs.EventBusConfig{
			GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
				return fmt.Sprintf("robot-events.%s", params.EventName), nil
			},
			Marshaler: cqrs.JSONMarshaler{},
			Logger:    watermill.NopLogger{},
		},
	)
	require.NoError(t, err)
	return eventBus
}

type handlerFixture struct {
	handler  *RobotHandler
	holder   *service.StateHolder
	repo     *memoryRepository
	activity *fakeActivity
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	log := logger.NewDefault()
	holder := service.NewStateHolder(robot.NewMapService(log, nil))
	repo := newMemoryRepository()
	activity := &fakeActivity{}

	handler := NewRobotHandler(log, holder, repo, newTestEventBus(t), activity, "test-robovac")
	return &handlerFixture{handler: handler, holder: holder, repo: repo, activity: activity}
}

// doRPC wraps a handler with the error adapter and posts a JSON-RPC request
func doRPC(t *testing.T, handlerFunc http.HandlerFunc, params interface{}) *httptest.ResponseRecorder {
	t.Helper()

	paramsJSON, err := json.Marshal(params)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "test",
		"params":  json.RawMessage(paramsJSON),
		"id":      1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/test", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	wrapped := middleware.ErrorAdapter(logger.NewDefault())(handlerFunc)
	wrapped.ServeHTTP(rec, req)

	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder, result interface{}) {
	t.Helper()

	var response struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Nil(t, response.Error, "unexpected JSON-RPC error: %+v", response.Error)
	require.NoError(t, json.Unmarshal(response.Result, result))
}

func TestRobotHandler_HandleUpdatePosition(t *testing.T) {
	fixture := newHandlerFixture(t)

	rec := doRPC(t, fixture.handler.HandleUpdatePosition, UpdatePositionRequest{X: 3.5, Y: -2.0})
	assert.Equal(t, http.StatusOK, rec.Code)

	var result UpdatePositionResponse
	decodeResult(t, rec, &result)

	assert.Equal(t, 3.5, result.State.Position.X)
	assert.Equal(t, -2.0, result.State.Position.Y)
	assert.NotNil(t, result.State.Timestamp)
	assert.NotEmpty(t, result.Changes)

	// Handler side effects: activity marked, state persisted
	assert.Equal(t, 1, fixture.activity.marked)
	saved, err := fixture.repo.Load(context.Background(), "test-robovac")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 3.5, saved.Position.X)
}

func TestRobotHandler_HandleSetMap(t *testing.T) {
	t.Run("should cache a valid base64 payload", func(t *testing.T) {
		fixture := newHandlerFixture(t)
		payload := []byte("\x89PNG fake image")

		rec := doRPC(t, fixture.handler.HandleSetMap, SetMapRequest{
			ImageBase64: base64.StdEncoding.EncodeToString(payload),
		})
		assert.Equal(t, http.StatusOK, rec.Code)

		var result SetMapResponse
		decodeResult(t, rec, &result)
		assert.True(t, result.HasMap)
		assert.Equal(t, len(payload), result.SizeBytes)

		image, ok := fixture.holder.MapImage()
		require.True(t, ok)
		decoded, err := base64.StdEncoding.DecodeString(image)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	})

	t.Run("empty payload leaves prior map untouched", func(t *testing.T) {
		fixture := newHandlerFixture(t)
		fixture.holder.SetMapData([]byte("existing map"))

		rec := doRPC(t, fixture.handler.HandleSetMap, SetMapRequest{ImageBase64: ""})
		assert.Equal(t, http.StatusOK, rec.Code)

		var result SetMapResponse
		decodeResult(t, rec, &result)
		assert.True(t, result.HasMap)
		assert.Equal(t, 0, result.SizeBytes)

		image, ok := fixture.holder.MapImage()
		require.True(t, ok)
		decoded, err := base64.StdEncoding.DecodeString(image)
		require.NoError(t, err)
		assert.Equal(t, []byte("existing map"), decoded)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		fixture := newHandlerFixture(t)

		rec := doRPC(t, fixture.handler.HandleSetMap, SetMapRequest{ImageBase64: "!!! not base64 !!!"})
		assert.Equal(t, http.StatusOK, rec.Code) // JSON-RPC always returns HTTP 200

		var response struct {
			Error *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		require.NotNil(t, response.Error)
		assert.Equal(t, -32602, response.Error.Code)
	})
}

func TestRobotHandler_HandleState(t *testing.T) {
	fixture := newHandlerFixture(t)

	t.Run("initial state", func(t *testing.T) {
		rec := doRPC(t, fixture.handler.HandleState, struct{}{})

		var result robot.MapState
		decodeResult(t, rec, &result)
		assert.Equal(t, 0.0, result.Position.X)
		assert.False(t, result.HasMap)
		assert.Nil(t, result.Timestamp)
	})

	t.Run("after updates", func(t *testing.T) {
		fixture.holder.UpdatePosition(1.0, 2.0)
		fixture.holder.SetMapData([]byte("map"))

		rec := doRPC(t, fixture.handler.HandleState, struct{}{})

		var result robot.MapState
		decodeResult(t, rec, &result)
		assert.Equal(t, 1.0, result.Position.X)
		assert.True(t, result.HasMap)
		assert.NotNil(t, result.Timestamp)
	})
}

func TestRobotHandler_HandleMapImage(t *testing.T) {
	fixture := newHandlerFixture(t)

	t.Run("no map cached", func(t *testing.T) {
		rec := doRPC(t, fixture.handler.HandleMapImage, struct{}{})

		var result MapImageResponse
		decodeResult(t, rec, &result)
		assert.False(t, result.HasMap)
		assert.Empty(t, result.Image)
	})

	t.Run("map cached", func(t *testing.T) {
		fixture.holder.SetMapData([]byte("kitchen"))

		rec := doRPC(t, fixture.handler.HandleMapImage, struct{}{})

		var result MapImageResponse
		decodeResult(t, rec, &result)
		assert.True(t, result.HasMap)

		decoded, err := base64.StdEncoding.DecodeString(result.Image)
		require.NoError(t, err)
		assert.Equal(t, []byte("kitchen"), decoded)
	})
}
