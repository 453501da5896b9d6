package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrHalted is returned by Set operations once the exit gate is closed.
var ErrHalted = errors.New("player set halted")

// Gate reports whether the application is shutting down.
type Gate interface {
	Exited() bool
}

// Set owns every player handle of a run. A single coarse lock serialises
// all calls into the handles, so a watchdog resync never overlaps a user
// command and no call races the final release.
type Set struct {
	mu       sync.Mutex
	handles  []Handle
	gate     Gate
	released bool
}

// NewSet creates a set over already created handles. gate may be nil.
func NewSet(handles []Handle, gate Gate) *Set {
	hs := make([]Handle, len(handles))
	copy(hs, handles)
	return &Set{
		handles: hs,
		gate:    gate,
	}
}

// CreateAll creates n handles. Every creation failure is collected; if any
// handle fails, the ones already created are released and the combined
// error is returned so that a run never starts with a partial set.
func CreateAll(ctx context.Context, factory Factory, n int) ([]Handle, error) {
	if n < 1 {
		return nil, errors.Newf("invalid player count: %d", n)
	}

	handles := make([]Handle, 0, n)
	var createErr error
	for i := 0; i < n; i++ {
		h, err := factory.Create(ctx, i)
		if err != nil {
			createErr = errors.CombineErrors(createErr, errors.Wrapf(err, "player %d", i))
			continue
		}
		zlog.Debug().Msgf("playback: created player: index=%d id=%s", i, h.ID())
		handles = append(handles, h)
	}

	if createErr != nil {
		for _, h := range handles {
			if err := h.Release(); err != nil {
				zlog.Warn().Err(err).Msgf("playback: failed to release player %s", h.ID())
			}
		}
		return nil, errors.Wrap(createErr, "failed to create players")
	}
	return handles, nil
}

// Len returns the number of handles.
func (s *Set) Len() int {
	return len(s.handles)
}

// Broadcast applies fn to every handle in order while holding the set lock.
// Errors from individual handles are combined; every handle is attempted.
func (s *Set) Broadcast(name string, fn func(Handle) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(); err != nil {
		return err
	}

	var result error
	for i, h := range s.handles {
		if err := fn(h); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "%s on player %d", name, i))
		}
	}
	zlog.Debug().Msgf("playback: broadcast %s to %d players", name, len(s.handles))
	return result
}

// Reference calls fn with handle #0, the playhead every other handle follows.
// An empty set has no reference and reports ErrNotReady.
func (s *Set) Reference(fn func(Handle) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if len(s.handles) == 0 {
		return ErrNotReady
	}
	return fn(s.handles[0])
}

// LoadPlaylist loads paths into every handle.
func (s *Set) LoadPlaylist(paths []string) error {
	return s.Broadcast("load playlist", func(h Handle) error { return h.LoadPlaylist(paths) })
}

// Play starts playback on every handle.
func (s *Set) Play() error {
	return s.Broadcast("play", Handle.Play)
}

// TogglePause pauses or resumes every handle.
func (s *Set) TogglePause() error {
	return s.Broadcast("toggle pause", Handle.TogglePause)
}

// Seek moves every handle to pos.
func (s *Set) Seek(pos time.Duration) error {
	return s.Broadcast("seek", func(h Handle) error { return h.Seek(pos) })
}

// SetVolume sets the volume of every handle.
func (s *Set) SetVolume(volume int) error {
	return s.Broadcast("set volume", func(h Handle) error { return h.SetVolume(volume) })
}

// SetLoopMode sets the loop mode of every handle.
func (s *Set) SetLoopMode(mode LoopMode) error {
	return s.Broadcast("set loop mode", func(h Handle) error { return h.SetLoopMode(mode) })
}

// ToggleFullscreen toggles fullscreen on every handle.
func (s *Set) ToggleFullscreen() error {
	return s.Broadcast("toggle fullscreen", Handle.ToggleFullscreen)
}

// Next advances every handle to the next track.
func (s *Set) Next() error {
	return s.Broadcast("next", Handle.Next)
}

// Previous moves every handle to the previous track.
func (s *Set) Previous() error {
	return s.Broadcast("previous", Handle.Previous)
}

// SuppressLogging silences engine output on every handle.
func (s *Set) SuppressLogging() error {
	return s.Broadcast("suppress logging", Handle.SuppressLogging)
}

// Release stops and releases every handle. It ignores the exit gate and
// is safe to call more than once.
func (s *Set) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	var result error
	for i, h := range s.handles {
		if err := h.Stop(); err != nil {
			zlog.Debug().Err(err).Msgf("playback: failed to stop player %d", i)
		}
		if err := h.Release(); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "release player %d", i))
		}
	}
	return result
}

func (s *Set) checkLocked() error {
	if s.released {
		return ErrReleased
	}
	if s.gate != nil && s.gate.Exited() {
		return ErrHalted
	}
	return nil
}
