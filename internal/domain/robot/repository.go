package robot

import (
	"context"
)

// Repository persists the exported robot state so a restarted bridge can
// repopulate its in-memory holder. Single-device: keyed by device ID.
type Repository interface {
	// Load retrieves the persisted state for a device, nil if none exists
	Load(ctx context.Context, deviceID string) (*State, error)

	// Save stores the full state for a device, replacing any prior state
	Save(ctx context.Context, deviceID string, state State) error

	// Delete removes the persisted state for a device
	Delete(ctx context.Context, deviceID string) error
}
