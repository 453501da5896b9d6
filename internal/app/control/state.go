// Package control provides the shared controller state and the keyboard command dispatcher.
package control

import (
	"sync"
	"sync/atomic"

	"github.com/osa030/syncscreen/internal/app/playback"
)

// State is the controller state shared by the dispatcher and the watchdog.
//
// The exit flag may be set and read from any goroutine. Everything else
// belongs to the dispatcher goroutine and must not be touched elsewhere.
type State struct {
	exited   atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	loopModes *Cycle[playback.LoopMode]
	volumes   *Cycle[int]

	loopMode  playback.LoopMode
	volume    int
	minimized bool
}

// NewState creates a state with fresh cursors. loopMode and volume are the
// values the players were started with; they are reported until the first
// cursor advance.
func NewState(loopMode playback.LoopMode, volume int) *State {
	return &State{
		done:      make(chan struct{}),
		loopModes: NewLoopModeCycle(),
		volumes:   NewVolumeCycle(),
		loopMode:  loopMode,
		volume:    volume,
	}
}

// RequestExit sets the exit flag. It is idempotent and safe for concurrent use.
func (s *State) RequestExit() {
	s.exited.Store(true)
	s.doneOnce.Do(func() { close(s.done) })
}

// Exited reports whether exit was requested.
func (s *State) Exited() bool {
	return s.exited.Load()
}

// Done is closed once exit is requested.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// NextLoopMode advances the loop-mode cursor. After exit it returns the
// current mode and false without advancing.
func (s *State) NextLoopMode() (playback.LoopMode, bool) {
	if s.Exited() {
		return s.loopMode, false
	}
	s.loopMode = s.loopModes.Next()
	return s.loopMode, true
}

// NextVolume advances the volume cursor. After exit it returns the current
// volume and false without advancing.
func (s *State) NextVolume() (int, bool) {
	if s.Exited() {
		return s.volume, false
	}
	s.volume = s.volumes.Next()
	return s.volume, true
}

// ToggleMinimized flips the minimized flag and returns the new value.
func (s *State) ToggleMinimized() bool {
	s.minimized = !s.minimized
	return s.minimized
}

// LoopMode returns the current loop mode.
func (s *State) LoopMode() playback.LoopMode { return s.loopMode }

// Volume returns the current volume.
func (s *State) Volume() int { return s.volume }

// Minimized reports whether the windows are hidden.
func (s *State) Minimized() bool { return s.minimized }
