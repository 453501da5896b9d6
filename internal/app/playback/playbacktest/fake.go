// Package playbacktest provides in-memory player handles for tests.
package playbacktest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/syncscreen/internal/app/playback"
)

var _ playback.Handle = (*Handle)(nil)

// Handle is an in-memory playback.Handle that records every command.
// Media identifiers are the loaded paths; Next and Previous move through
// them like a real playlist.
type Handle struct {
	mu sync.Mutex

	id        string
	paths     []string
	index     int
	position  time.Duration
	durations map[string]time.Duration
	volume    int
	loopMode  playback.LoopMode
	paused    bool
	fullscr   bool
	quiet     bool
	released  bool
	notReady  bool
	calls     []string
	active    int
	overlaps  int
}

// NewHandle creates a fake handle with the given id.
func NewHandle(id string) *Handle {
	return &Handle{
		id:        id,
		durations: make(map[string]time.Duration),
		volume:    100,
	}
}

// SetDuration sets the duration reported for a media path.
func (h *Handle) SetDuration(path string, d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.durations[path] = d
}

// SetPosition simulates the playhead moving.
func (h *Handle) SetPosition(pos time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = pos
}

// SetNotReady makes every read return playback.ErrNotReady.
func (h *Handle) SetNotReady(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notReady = v
}

// Calls returns a copy of the recorded commands.
func (h *Handle) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]string, len(h.calls))
	copy(result, h.calls)
	return result
}

// ResetCalls clears the recorded commands.
func (h *Handle) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

// Overlaps returns how many commands started while another was running.
func (h *Handle) Overlaps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.overlaps
}

// Snapshot returns the observable state of the fake.
func (h *Handle) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return State{
		Index:      h.index,
		Position:   h.position,
		Volume:     h.volume,
		LoopMode:   h.loopMode,
		Paused:     h.paused,
		Fullscreen: h.fullscr,
		Quiet:      h.quiet,
		Released:   h.released,
	}
}

// State is a point-in-time copy of a fake handle.
type State struct {
	Index      int
	Position   time.Duration
	Volume     int
	LoopMode   playback.LoopMode
	Paused     bool
	Fullscreen bool
	Quiet      bool
	Released   bool
}

func (h *Handle) ID() string { return h.id }

func (h *Handle) LoadPlaylist(paths []string) error {
	return h.command("load", func() {
		h.paths = append([]string(nil), paths...)
		h.index = 0
		h.position = 0
	})
}

func (h *Handle) Play() error {
	return h.command("play", func() { h.paused = false })
}

func (h *Handle) TogglePause() error {
	return h.command("toggle-pause", func() { h.paused = !h.paused })
}

func (h *Handle) Stop() error {
	return h.command("stop", func() { h.position = 0 })
}

func (h *Handle) Seek(pos time.Duration) error {
	return h.command(fmt.Sprintf("seek %v", pos), func() { h.position = pos })
}

func (h *Handle) SetVolume(volume int) error {
	return h.command(fmt.Sprintf("volume %d", volume), func() { h.volume = volume })
}

func (h *Handle) SetLoopMode(mode playback.LoopMode) error {
	return h.command(fmt.Sprintf("loop %s", mode), func() { h.loopMode = mode })
}

func (h *Handle) ToggleFullscreen() error {
	return h.command("fullscreen", func() { h.fullscr = !h.fullscr })
}

func (h *Handle) Next() error {
	return h.command("next", func() {
		if h.index < len(h.paths)-1 {
			h.index++
		} else if h.loopMode == playback.LoopModeLoop {
			h.index = 0
		}
		h.position = 0
	})
}

func (h *Handle) Previous() error {
	return h.command("previous", func() {
		if h.index > 0 {
			h.index--
		}
		h.position = 0
	})
}

func (h *Handle) SuppressLogging() error {
	return h.command("quiet", func() { h.quiet = true })
}

func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return playback.ErrReleased
	}
	h.released = true
	h.calls = append(h.calls, "release")
	return nil
}

func (h *Handle) Position() (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.readableLocked(); err != nil {
		return 0, err
	}
	return h.position, nil
}

func (h *Handle) MediaID() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.readableLocked(); err != nil {
		return "", err
	}
	return h.paths[h.index], nil
}

func (h *Handle) Duration() (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.readableLocked(); err != nil {
		return 0, err
	}
	d, ok := h.durations[h.paths[h.index]]
	if !ok || d <= 0 {
		return 0, playback.ErrNotReady
	}
	return d, nil
}

func (h *Handle) readableLocked() error {
	if h.released {
		return playback.ErrReleased
	}
	if h.notReady || len(h.paths) == 0 {
		return playback.ErrNotReady
	}
	return nil
}

// command records a call and detects overlapping commands. The lock is
// dropped around a short sleep so that unsynchronised callers would be seen.
func (h *Handle) command(name string, apply func()) error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return playback.ErrReleased
	}
	h.active++
	if h.active > 1 {
		h.overlaps++
	}
	h.mu.Unlock()

	time.Sleep(50 * time.Microsecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.active--
	apply()
	h.calls = append(h.calls, name)
	return nil
}

// Factory creates fake handles and remembers them.
type Factory struct {
	mu      sync.Mutex
	Handles []*Handle
	FailAt  map[int]error
	Setup   func(h *Handle)
}

// Create implements playback.Factory.
func (f *Factory) Create(_ context.Context, index int) (playback.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.FailAt[index]; ok {
		return nil, err
	}
	h := NewHandle(fmt.Sprintf("fake-%d", index))
	if f.Setup != nil {
		f.Setup(h)
	}
	f.Handles = append(f.Handles, h)
	return h, nil
}

// Created returns the handles created so far.
func (f *Factory) Created() []*Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*Handle, len(f.Handles))
	copy(result, f.Handles)
	return result
}

// ErrCreate is a convenience error for FailAt.
var ErrCreate = errors.New("engine unavailable")
