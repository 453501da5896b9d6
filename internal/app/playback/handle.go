package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNotReady = errors.New("player not ready")
	ErrReleased = errors.New("player released")
)

// Handle is one playback engine instance driving one output window.
// Implementations must be safe for use from multiple goroutines; the Set
// additionally serialises every call made through it.
type Handle interface {
	// ID returns the engine instance id.
	ID() string

	LoadPlaylist(paths []string) error
	Play() error
	TogglePause() error
	Stop() error
	Seek(pos time.Duration) error
	SetVolume(volume int) error
	SetLoopMode(mode LoopMode) error
	ToggleFullscreen() error
	Next() error
	Previous() error

	// Position, MediaID and Duration may return ErrNotReady while the
	// engine is loading media.
	Position() (time.Duration, error)
	MediaID() (string, error)
	Duration() (time.Duration, error)

	// SuppressLogging silences the engine's own diagnostic output.
	SuppressLogging() error

	// Release frees the engine instance. Further calls return ErrReleased.
	Release() error
}

// Factory creates player handles. index is the zero-based window number.
type Factory interface {
	Create(ctx context.Context, index int) (Handle, error)
}

// IsTransient reports whether err is a temporary engine condition that
// should be retried rather than surfaced.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotReady)
}
