package robot

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/robomap/internal/domain/shared"
)

// setupTestRedis creates a Redis client for testing
func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL environment variable not set, skipping Redis integration tests")
	}

	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err, "Failed to parse Redis URL")

	client := redis.NewClient(opt)

	ctx := context.Background()
	_, err = client.Ping(ctx).Result()
	require.NoError(t, err, "Failed to connect to Redis")

	return client
}

// createTestState creates a robot state with a map snapshot
func createTestState() State {
	ts := time.Date(2025, 6, 14, 9, 30, 0, 0, time.UTC)
	return State{
		Position: shared.Position{X: 10.0, Y: 20.0},
		Map: &MapSnapshot{
			Image:     "aGVsbG8gbWFw",
			Timestamp: ts,
		},
		UpdateTimestamp: &ts,
	}
}

func TestRedisRepository_Load(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisRepository(client)
	ctx := context.Background()

	t.Run("should return nil when state does not exist", func(t *testing.T) {
		result, err := repo.Load(ctx, "non-existent-device")

		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("should return state after save and load", func(t *testing.T) {
		deviceID := fmt.Sprintf("test-load-%s", t.Name())
		state := createTestState()

		err := repo.Save(ctx, deviceID, state)
		require.NoError(t, err)

		result, err := repo.Load(ctx, deviceID)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, state.Position.X, result.Position.X)
		assert.Equal(t, state.Position.Y, result.Position.Y)
		require.NotNil(t, result.Map)
		assert.Equal(t, state.Map.Image, result.Map.Image)

		repo.Delete(ctx, deviceID)
	})
}

func TestRedisRepository_Save(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisRepository(client)
	ctx := context.Background()

	t.Run("should replace prior state wholesale", func(t *testing.T) {
		deviceID := fmt.Sprintf("test-save-%s", t.Name())

		first := createTestState()
		err := repo.Save(ctx, deviceID, first)
		require.NoError(t, err)

		second := createTestState()
		second.Position = shared.Position{X: 50.0, Y: 60.0}
		second.Map = nil
		err = repo.Save(ctx, deviceID, second)
		require.NoError(t, err)

		result, err := repo.Load(ctx, deviceID)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 50.0, result.Position.X)
		assert.Nil(t, result.Map)

		repo.Delete(ctx, deviceID)
	})
}

func TestRedisRepository_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisRepository(client)
	ctx := context.Background()

	t.Run("should delete existing state", func(t *testing.T) {
		deviceID := fmt.Sprintf("test-delete-%s", t.Name())

		err := repo.Save(ctx, deviceID, createTestState())
		require.NoError(t, err)

		err = repo.Delete(ctx, deviceID)
		require.NoError(t, err)

		result, err := repo.Load(ctx, deviceID)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("should return error when state not found", func(t *testing.T) {
		err := repo.Delete(ctx, "non-existent-delete")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}
