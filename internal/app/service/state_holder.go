package service

import (
	"sync"

	"github.com/danghamo/robomap/internal/domain/robot"
)

// StateHolder wraps a MapService with a read-write mutex. The map service
// itself carries no locking, so every concurrent caller (HTTP handlers, the
// activity broadcaster, startup restore) goes through this holder.
type StateHolder struct {
	mu      sync.RWMutex
	service *robot.MapService
}

// NewStateHolder creates a state holder around the given map service
func NewStateHolder(service *robot.MapService) *StateHolder {
	return &StateHolder{
		service: service,
	}
}

// UpdatePosition records the robot's last known position
func (h *StateHolder) UpdatePosition(x, y float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.service.UpdatePosition(x, y)
}

// SetMapData caches a map image from raw bytes
func (h *StateHolder) SetMapData(mapBytes []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.service.SetMapData(mapBytes)
}

// State returns the serialized robot status
func (h *StateHolder) State() robot.MapState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.service.State()
}

// MapImage returns the cached base64 map image, if any
func (h *StateHolder) MapImage() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.service.MapImage()
}

// Snapshot exports the full state for persistence
func (h *StateHolder) Snapshot() robot.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.service.Snapshot()
}

// Restore replaces the full state, typically from persistence at startup
func (h *StateHolder) Restore(state robot.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.service.Restore(state)
}
