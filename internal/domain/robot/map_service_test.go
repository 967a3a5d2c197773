package robot

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/robomap/internal/domain/shared"
	"github.com/danghamo/robomap/pkg/logger"
)

func newTestService(t *testing.T, clock shared.Clock) *MapService {
	t.Helper()
	return NewMapService(logger.NewDefault(), clock)
}

func TestMapService_InitialState(t *testing.T) {
	svc := newTestService(t, nil)

	state := svc.State()
	assert.Equal(t, shared.NewPosition(0, 0), state.Position)
	assert.False(t, state.HasMap)
	assert.Nil(t, state.Timestamp)

	image, ok := svc.MapImage()
	assert.False(t, ok)
	assert.Empty(t, image)
}

func TestMapService_UpdatePosition(t *testing.T) {
	instant := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	svc := newTestService(t, shared.FixedClock{Instant: instant})

	t.Run("should overwrite position and stamp timestamp", func(t *testing.T) {
		svc.UpdatePosition(3.5, -2.0)

		state := svc.State()
		assert.Equal(t, 3.5, state.Position.X)
		assert.Equal(t, -2.0, state.Position.Y)
		require.NotNil(t, state.Timestamp)
		assert.Equal(t, instant.Format(time.RFC3339Nano), *state.Timestamp)
	})

	t.Run("should replace position wholesale on each update", func(t *testing.T) {
		svc.UpdatePosition(12.25, 7.75)

		state := svc.State()
		assert.Equal(t, 12.25, state.Position.X)
		assert.Equal(t, 7.75, state.Position.Y)
	})

	t.Run("should not touch map state", func(t *testing.T) {
		assert.False(t, svc.State().HasMap)
	})
}

func TestMapService_SetMapData(t *testing.T) {
	t.Run("empty input is a silent no-op", func(t *testing.T) {
		svc := newTestService(t, nil)

		svc.SetMapData(nil)
		assert.False(t, svc.State().HasMap)

		svc.SetMapData([]byte{})
		assert.False(t, svc.State().HasMap)

		_, ok := svc.MapImage()
		assert.False(t, ok)
	})

	t.Run("empty input retains a previously cached map", func(t *testing.T) {
		svc := newTestService(t, nil)

		svc.SetMapData([]byte("original map payload"))
		before, ok := svc.MapImage()
		require.True(t, ok)

		svc.SetMapData(nil)
		after, ok := svc.MapImage()
		require.True(t, ok)
		assert.Equal(t, before, after)
		assert.True(t, svc.State().HasMap)
	})

	t.Run("encoded image round-trips to original bytes", func(t *testing.T) {
		svc := newTestService(t, nil)
		payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff, 0xfe}

		svc.SetMapData(payload)

		image, ok := svc.MapImage()
		require.True(t, ok)

		decoded, err := base64.StdEncoding.DecodeString(image)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	})

	t.Run("second payload replaces the first", func(t *testing.T) {
		svc := newTestService(t, nil)

		svc.SetMapData([]byte("first floor"))
		svc.SetMapData([]byte("second floor"))

		image, ok := svc.MapImage()
		require.True(t, ok)

		decoded, err := base64.StdEncoding.DecodeString(image)
		require.NoError(t, err)
		assert.Equal(t, []byte("second floor"), decoded)
	})
}

func TestMapService_FullScenario(t *testing.T) {
	instant := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	svc := newTestService(t, shared.FixedClock{Instant: instant})

	svc.UpdatePosition(3.5, -2.0)
	svc.SetMapData([]byte("\x89PNG fake image"))

	state := svc.State()
	assert.Equal(t, shared.Position{X: 3.5, Y: -2.0}, state.Position)
	assert.True(t, state.HasMap)
	require.NotNil(t, state.Timestamp)

	parsed, err := time.Parse(time.RFC3339Nano, *state.Timestamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(instant))
}

func TestMapService_SnapshotRestore(t *testing.T) {
	instant := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	svc := newTestService(t, shared.FixedClock{Instant: instant})

	svc.UpdatePosition(1.0, 2.0)
	svc.SetMapData([]byte("kitchen map"))

	exported := svc.Snapshot()
	require.NotNil(t, exported.Map)
	require.NotNil(t, exported.UpdateTimestamp)

	restored := newTestService(t, nil)
	restored.Restore(exported)

	assert.Equal(t, svc.State(), restored.State())

	origImage, ok := svc.MapImage()
	require.True(t, ok)
	restoredImage, ok := restored.MapImage()
	require.True(t, ok)
	assert.Equal(t, origImage, restoredImage)
}

func TestMapService_SnapshotIsDetached(t *testing.T) {
	svc := newTestService(t, nil)
	svc.UpdatePosition(5, 5)
	svc.SetMapData([]byte("before"))

	exported := svc.Snapshot()

	// Mutating the service after export must not leak into the snapshot
	svc.SetMapData([]byte("after"))
	svc.UpdatePosition(9, 9)

	decoded, err := base64.StdEncoding.DecodeString(exported.Map.Image)
	require.NoError(t, err)
	assert.Equal(t, []byte("before"), decoded)
	assert.Equal(t, 5.0, exported.Position.X)
}
