// Package playback provides the player handle abstraction and the shared handle set.
package playback

import "strings"

// LoopMode represents how a player continues when the current track ends.
type LoopMode int

const (
	LoopModeDefault LoopMode = iota // Play the playlist once
	LoopModeLoop                    // Repeat the whole playlist
	LoopModeRepeat                  // Repeat the current track
)

// LoopModes is the fixed cyclic order used when the loop mode is toggled.
var LoopModes = []LoopMode{LoopModeDefault, LoopModeLoop, LoopModeRepeat}

// String returns the string representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopModeDefault:
		return "default"
	case LoopModeLoop:
		return "loop"
	case LoopModeRepeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// ParseLoopMode converts a string to a LoopMode.
func ParseLoopMode(s string) (LoopMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default", "":
		return LoopModeDefault, true
	case "loop":
		return LoopModeLoop, true
	case "repeat":
		return LoopModeRepeat, true
	default:
		return LoopModeDefault, false
	}
}
