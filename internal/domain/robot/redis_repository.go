package robot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danghamo/robomap/internal/domain/shared"
)

// RedisRepository implements Repository using Redis JSON
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis JSON-based robot state repository
func NewRedisRepository(client *redis.Client) Repository {
	return &RedisRepository{
		client: client,
	}
}

func stateKey(deviceID string) string {
	return fmt.Sprintf("robot:state:%s", deviceID)
}

// Load retrieves the persisted robot state using Redis JSON
func (r *RedisRepository) Load(ctx context.Context, deviceID string) (*State, error) {
	key := stateKey(deviceID)

	jsonData, err := r.client.JSONGet(ctx, key, "$").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get robot state from Redis: %w", err)
	}

	// JSON.GET with a path returns an array; empty or null means no state
	if jsonData == "" || jsonData == "null" {
		return nil, nil
	}

	var jsonArray []json.RawMessage
	if err := json.Unmarshal([]byte(jsonData), &jsonArray); err != nil {
		return nil, fmt.Errorf("failed to parse JSON array from Redis: %w", err)
	}

	if len(jsonArray) == 0 {
		return nil, nil
	}

	state := &State{}
	if err := json.Unmarshal(jsonArray[0], state); err != nil {
		return nil, fmt.Errorf("failed to deserialize robot state: %w", err)
	}

	return state, nil
}

// Save stores the full robot state using Redis JSON
func (r *RedisRepository) Save(ctx context.Context, deviceID string, state State) error {
	key := stateKey(deviceID)

	jsonBytes, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize robot state: %w", err)
	}

	if err := r.client.JSONSet(ctx, key, "$", string(jsonBytes)).Err(); err != nil {
		return fmt.Errorf("failed to store robot state in Redis: %w", err)
	}

	return nil
}

// Delete removes the persisted robot state
func (r *RedisRepository) Delete(ctx context.Context, deviceID string) error {
	key := stateKey(deviceID)

	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		jsonData, err := tx.JSONGet(ctx, key, "$").Result()
		if err == redis.Nil {
			return shared.ErrNotFound("robot state")
		}
		if err != nil {
			return err
		}

		if jsonData == "" || jsonData == "null" {
			return shared.ErrNotFound("robot state")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.JSONDel(ctx, key, "$")
			return nil
		})

		return err
	}, key)
}
