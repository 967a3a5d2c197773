package robot

import (
	"encoding/base64"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/robomap/internal/domain/shared"
	"github.com/danghamo/robomap/pkg/logger"
)

// MapSnapshot is the cached, base64-encoded map image together with its
// capture time. Replaced wholesale on every update; no history is kept.
type MapSnapshot struct {
	Image     string    `json:"image"`
	Timestamp time.Time `json:"timestamp"`
}

// MapState is the snapshot dictionary exposed to the entity layer.
// Timestamp is nil until the first position update.
type MapState struct {
	Position  shared.Position `json:"position"`
	HasMap    bool            `json:"has_map"`
	Timestamp *string         `json:"timestamp"`
}

// State is the full exportable state of the service, used by the
// persistence layer to survive process restarts.
type State struct {
	Position        shared.Position `json:"position"`
	Map             *MapSnapshot    `json:"map,omitempty"`
	UpdateTimestamp *time.Time      `json:"update_timestamp,omitempty"`
}

// MapService holds the robot's last-known position and the cached house map.
// It is deliberately unsynchronized: all in-memory reads and writes are
// immediate, and callers must serialize access (see app/service.StateHolder).
type MapService struct {
	logger *logger.Logger
	clock  shared.Clock

	position        shared.Position
	mapData         *MapSnapshot
	updateTimestamp *time.Time
}

// NewMapService creates a map service with position (0,0), no map and no
// update timestamp. A nil clock falls back to the system wall clock.
func NewMapService(log *logger.Logger, clock shared.Clock) *MapService {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if clock == nil {
		clock = shared.SystemClock()
	}
	return &MapService{
		logger: log.WithComponent("map-service"),
		clock:  clock,
	}
}

// UpdatePosition overwrites the current robot position and stamps the update
// timestamp with the current wall-clock time. Coordinates are taken as-is;
// there is no range validation.
func (s *MapService) UpdatePosition(x, y float64) {
	s.position = shared.NewPosition(x, y)
	now := s.clock.Now()
	s.updateTimestamp = &now

	s.logger.Debug("Robot position updated",
		zap.Float64("x", s.position.X),
		zap.Float64("y", s.position.Y))
}

// SetMapData caches the house map image. Empty or nil input leaves the
// current snapshot untouched; any prior map survives. Non-empty bytes are
// stored base64-encoded with a fresh capture timestamp, replacing whatever
// was cached before. The bytes are not validated as a well-formed image.
func (s *MapService) SetMapData(mapBytes []byte) {
	if len(mapBytes) == 0 {
		return
	}

	s.mapData = &MapSnapshot{
		Image:     base64.StdEncoding.EncodeToString(mapBytes),
		Timestamp: s.clock.Now(),
	}

	s.logger.Debug("Map data updated", zap.Int("size_bytes", len(mapBytes)))
}

// State returns the current map state: position, whether a map snapshot
// exists, and the last position-update time as RFC3339 text (nil if the
// position was never updated). Pure read.
func (s *MapService) State() MapState {
	var ts *string
	if s.updateTimestamp != nil {
		formatted := s.updateTimestamp.Format(time.RFC3339Nano)
		ts = &formatted
	}

	return MapState{
		Position:  s.position,
		HasMap:    s.mapData != nil,
		Timestamp: ts,
	}
}

// MapImage returns the base64-encoded map image, or false if no map has
// been cached. Pure read.
func (s *MapService) MapImage() (string, bool) {
	if s.mapData == nil {
		return "", false
	}
	return s.mapData.Image, true
}

// Snapshot exports the full service state for persistence.
func (s *MapService) Snapshot() State {
	state := State{
		Position: s.position,
	}
	if s.mapData != nil {
		snapshot := *s.mapData
		state.Map = &snapshot
	}
	if s.updateTimestamp != nil {
		ts := *s.updateTimestamp
		state.UpdateTimestamp = &ts
	}
	return state
}

// Restore loads a previously exported state, replacing all fields. Used once
// at startup to repopulate the holder from the persistence layer.
func (s *MapService) Restore(state State) {
	s.position = state.Position
	s.mapData = nil
	if state.Map != nil {
		snapshot := *state.Map
		s.mapData = &snapshot
	}
	s.updateTimestamp = nil
	if state.UpdateTimestamp != nil {
		ts := *state.UpdateTimestamp
		s.updateTimestamp = &ts
	}

	s.logger.Debug("Map service state restored",
		zap.Bool("has_map", s.mapData != nil))
}
