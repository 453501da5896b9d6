package watchdog

import "time"

// EventType represents a watchdog event type.
type EventType int

const (
	EventTrackChanged EventType = iota // Reference player moved to another media
	EventResynced                      // All players were seeked back to the start offset
	EventShortTrack                    // Track too short to be resynced
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventResynced:
		return "resynced"
	case EventShortTrack:
		return "short_track"
	default:
		return "unknown"
	}
}

// Event represents a watchdog event.
type Event struct {
	Type      EventType
	MediaID   string        // Media of the reference player
	Position  time.Duration // Reference position when the event fired
	Threshold time.Duration // Resync threshold in effect (zero if unknown)
}
