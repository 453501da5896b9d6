// Package watchdog keeps every player aligned with the reference player.
package watchdog

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/syncscreen/internal/app/playback"
)

// ErrInvalidConfig is returned for non-positive timings.
var ErrInvalidConfig = errors.New("invalid watchdog config")

// Defaults
const (
	DefaultAdjustTime   = 2000 * time.Millisecond
	DefaultStartOffset  = 1000 * time.Millisecond
	DefaultPollInterval = 20 * time.Millisecond
)

// Config holds watchdog configuration.
type Config struct {
	AdjustTime   time.Duration // Resync this long before the end of a track
	StartOffset  time.Duration // Position every player is seeked to on resync
	PollInterval time.Duration // Time between two samples of the reference player
}

// Validate rejects non-positive timings.
func (c Config) Validate() error {
	if c.AdjustTime <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "adjust time must be positive: %v", c.AdjustTime)
	}
	if c.StartOffset <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "start offset must be positive: %v", c.StartOffset)
	}
	if c.PollInterval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "poll interval must be positive: %v", c.PollInterval)
	}
	return nil
}

// Exit is the shutdown signal shared with the dispatcher.
type Exit interface {
	Exited() bool
	Done() <-chan struct{}
}

// Watchdog polls the reference player (handle #0) and seeks every player
// back to the start offset shortly before the current track ends. It is
// not safe to call Tick concurrently with Run.
type Watchdog struct {
	players *playback.Set
	exit    Exit
	config  Config

	currentMediaID string
	threshold      time.Duration
	thresholdKnown bool
	resyncable     bool

	resyncs atomic.Int64
	eventCh chan Event
}

// New creates a watchdog.
func New(players *playback.Set, exit Exit, config Config) (*Watchdog, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Watchdog{
		players: players,
		exit:    exit,
		config:  config,
		eventCh: make(chan Event, 16),
	}, nil
}

// Events returns the event channel. It is closed when Run returns.
func (w *Watchdog) Events() <-chan Event {
	return w.eventCh
}

// Resyncs returns how many resync broadcasts were issued.
func (w *Watchdog) Resyncs() int64 {
	return w.resyncs.Load()
}

// Run polls until the exit flag is set.
func (w *Watchdog) Run() {
	defer close(w.eventCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	zlog.Debug().Msgf("watchdog: started: poll=%v adjust=%v offset=%v",
		w.config.PollInterval, w.config.AdjustTime, w.config.StartOffset)

	for {
		select {
		case <-w.exit.Done():
			zlog.Debug().Msg("watchdog: stopped")
			return
		case <-ticker.C:
			if w.exit.Exited() {
				zlog.Debug().Msg("watchdog: stopped")
				return
			}
			w.Tick()
		}
	}
}

type sample struct {
	mediaID  string
	duration time.Duration
	durErr   error
	position time.Duration
}

// Tick samples the reference player once and resyncs if needed. It returns
// true when a resync was broadcast. Errors never escape a tick.
func (w *Watchdog) Tick() (resynced bool) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("watchdog: recovered from panic: %v", r)
			resynced = false
		}
	}()

	if w.exit.Exited() {
		return false
	}

	var s sample
	err := w.players.Reference(func(h playback.Handle) error {
		id, err := h.MediaID()
		if err != nil {
			return err
		}
		s.mediaID = id
		if id != w.currentMediaID || !w.thresholdKnown {
			s.duration, s.durErr = h.Duration()
		}
		s.position, err = h.Position()
		return err
	})

	if s.mediaID != "" && s.mediaID != w.currentMediaID {
		w.currentMediaID = s.mediaID
		w.thresholdKnown = false
		zlog.Debug().Msgf("watchdog: track changed: media=%s", s.mediaID)
		w.sendEvent(Event{Type: EventTrackChanged, MediaID: s.mediaID})
	}
	if !w.thresholdKnown && s.mediaID != "" {
		w.refreshThreshold(s)
	}

	if err != nil {
		if !playback.IsTransient(err) {
			zlog.Debug().Err(err).Msg("watchdog: failed to sample reference player")
		}
		return false
	}

	if !w.thresholdKnown || !w.resyncable || s.position < w.threshold {
		return false
	}

	if err := w.players.Seek(w.config.StartOffset); err != nil {
		if errors.Is(err, playback.ErrHalted) || errors.Is(err, playback.ErrReleased) {
			return false
		}
		// Some players may have been seeked; count it and let the next tick retry.
		zlog.Warn().Err(err).Msg("watchdog: resync failed")
	}

	w.resyncs.Add(1)
	zlog.Debug().Msgf("watchdog: resynced: media=%s position=%v threshold=%v", s.mediaID, s.position, w.threshold)
	w.sendEvent(Event{
		Type:      EventResynced,
		MediaID:   s.mediaID,
		Position:  s.position,
		Threshold: w.threshold,
	})
	return true
}

func (w *Watchdog) refreshThreshold(s sample) {
	if s.durErr != nil || s.duration <= 0 {
		// Engine still loading; try again on the next tick.
		return
	}

	w.threshold = s.duration - w.config.AdjustTime
	w.thresholdKnown = true
	w.resyncable = w.threshold > w.config.StartOffset

	if !w.resyncable {
		zlog.Warn().Msgf("watchdog: track too short to resync: media=%s duration=%v", s.mediaID, s.duration)
		w.sendEvent(Event{Type: EventShortTrack, MediaID: s.mediaID, Threshold: w.threshold})
		return
	}
	zlog.Debug().Msgf("watchdog: threshold set: media=%s duration=%v threshold=%v", s.mediaID, s.duration, w.threshold)
}

// sendEvent sends an event without blocking.
func (w *Watchdog) sendEvent(e Event) {
	select {
	case w.eventCh <- e:
	default:
		// Channel full, drop event
	}
}
