package service

import (
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/robomap/internal/domain/robot"
	"github.com/danghamo/robomap/pkg/logger"
)

func newTestHolder() *StateHolder {
	return NewStateHolder(robot.NewMapService(logger.NewDefault(), nil))
}

func TestStateHolder_DelegatesToMapService(t *testing.T) {
	holder := newTestHolder()

	holder.UpdatePosition(1.5, -3.0)
	holder.SetMapData([]byte("floor plan"))

	state := holder.State()
	assert.Equal(t, 1.5, state.Position.X)
	assert.Equal(t, -3.0, state.Position.Y)
	assert.True(t, state.HasMap)

	image, ok := holder.MapImage()
	require.True(t, ok)

	decoded, err := base64.StdEncoding.DecodeString(image)
	require.NoError(t, err)
	assert.Equal(t, []byte("floor plan"), decoded)
}

func TestStateHolder_SnapshotRestore(t *testing.T) {
	holder := newTestHolder()
	holder.UpdatePosition(7, 8)
	holder.SetMapData([]byte("saved map"))

	exported := holder.Snapshot()

	restored := newTestHolder()
	restored.Restore(exported)

	assert.Equal(t, holder.State(), restored.State())
}

func TestStateHolder_ConcurrentAccess(t *testing.T) {
	holder := newTestHolder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			holder.UpdatePosition(float64(n), float64(n))
		}(i)
		go func() {
			defer wg.Done()
			_ = holder.State()
			_, _ = holder.MapImage()
		}()
	}
	wg.Wait()

	state := holder.State()
	assert.GreaterOrEqual(t, state.Position.X, 0.0)
	assert.Less(t, state.Position.X, 50.0)
	require.NotNil(t, state.Timestamp)
}
