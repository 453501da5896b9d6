// Package session runs one synchronized playback session from startup to teardown.
package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/syncscreen/internal/app/control"
	"github.com/osa030/syncscreen/internal/app/playback"
	"github.com/osa030/syncscreen/internal/app/watchdog"
	"github.com/osa030/syncscreen/internal/domain/playlist"
	"github.com/osa030/syncscreen/internal/infra/terminal"
	"github.com/osa030/syncscreen/internal/infra/window"
)

var (
	// ErrAlreadyRun is returned when Run is called twice.
	ErrAlreadyRun = errors.New("session already run")
	// ErrWindowsDetached is returned by window commands before the output
	// windows are found, or after finding them failed.
	ErrWindowsDetached = errors.New("output windows not attached")
)

// Config holds session configuration.
type Config struct {
	Windows     int
	TitlePrefix string
	Verbose     bool // Keep engine logging on
	LoadDelay   time.Duration
	LoopMode    playback.LoopMode
	Volume      int

	Placement    bool // Move windows onto monitors
	FindRetries  int
	FindInterval time.Duration

	Watchdog watchdog.Config
}

// Manager orchestrates the players, the watchdog and the dispatcher.
type Manager struct {
	mu    sync.RWMutex
	phase Phase

	config   Config
	playlist *playlist.Playlist
	factory  playback.Factory
	windows  window.Manager
	out      io.Writer

	resyncs atomic.Int64
}

// NewManager creates a session manager. windows may be nil to skip window
// handling entirely.
func NewManager(cfg Config, pl *playlist.Playlist, factory playback.Factory, windows window.Manager, out io.Writer) (*Manager, error) {
	if pl == nil || pl.Len() == 0 {
		return nil, playlist.ErrEmptyPlaylist
	}
	if cfg.Windows < 1 {
		return nil, errors.Newf("window count must be at least 1, got %d", cfg.Windows)
	}
	if err := cfg.Watchdog.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = io.Discard
	}

	return &Manager{
		phase:    PhaseIdle,
		config:   cfg,
		playlist: pl,
		factory:  factory,
		windows:  windows,
		out:      out,
	}, nil
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Resyncs returns how many resyncs the watchdog broadcast.
func (m *Manager) Resyncs() int64 {
	return m.resyncs.Load()
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = p
	zlog.Debug().Msgf("session: phase=%s", p)
}

// Run starts the players, runs the dispatcher on keys until exit, and tears
// everything down. Cancelling ctx requests exit. Errors are returned only
// for startup failures.
func (m *Manager) Run(ctx context.Context, keys <-chan terminal.Key) error {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return ErrAlreadyRun
	}
	m.phase = PhaseStarting
	m.mu.Unlock()
	defer m.setPhase(PhaseTerminated)

	state := control.NewState(m.config.LoopMode, m.config.Volume)

	handles, err := playback.CreateAll(ctx, m.factory, m.config.Windows)
	if err != nil {
		return err
	}
	players := playback.NewSet(handles, state)
	zlog.Info().Msgf("session: %d players, %d tracks", players.Len(), m.playlist.Len())

	if err := m.start(ctx, state, players); err != nil {
		m.release(players)
		return err
	}

	wd, err := watchdog.New(players, state, m.config.Watchdog)
	if err != nil {
		m.release(players)
		return err
	}

	stop := context.AfterFunc(ctx, state.RequestExit)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		wd.Run()
	}()
	go func() {
		defer wg.Done()
		m.logEvents(wd.Events())
	}()

	// Windows are looked up while playback is already being watched.
	attachCtx, cancelAttach := context.WithCancel(ctx)
	defer cancelAttach()

	var windows control.Windows
	if m.windows != nil {
		attached := &attachedWindows{}
		windows = attached
		wg.Add(1)
		go func() {
			defer wg.Done()
			group := m.attachWindows(attachCtx)
			attached.set(group)
			m.placeWindows(group)
		}()
	}

	m.setPhase(PhaseRunning)

	control.NewDispatcher(state, players, windows, m.out, control.Config{
		StartOffset: m.config.Watchdog.StartOffset,
	}).Run(keys)

	m.setPhase(PhaseStopping)
	state.RequestExit()
	cancelAttach()
	wg.Wait()
	m.resyncs.Store(wd.Resyncs())

	m.release(players)
	fmt.Fprintln(m.out)
	zlog.Info().Msgf("session: finished, resyncs=%d", m.Resyncs())
	return nil
}

// start loads the playlist and brings every player to the start offset.
func (m *Manager) start(ctx context.Context, state *control.State, players *playback.Set) error {
	if err := players.LoadPlaylist(m.playlist.Paths()); err != nil {
		return errors.Wrap(err, "failed to load playlist")
	}
	if err := players.Play(); err != nil {
		return errors.Wrap(err, "failed to start playback")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.config.LoadDelay):
	}

	if !m.config.Verbose {
		warn("suppress logging", players.SuppressLogging())
	}
	warn("set loop mode", players.SetLoopMode(state.LoopMode()))
	warn("set volume", players.SetVolume(state.Volume()))
	warn("seek to start offset", players.Seek(m.config.Watchdog.StartOffset))
	return nil
}

// attachWindows finds the output windows. Failures only disable placement
// and minimize.
func (m *Manager) attachWindows(ctx context.Context) *window.Group {
	group, err := window.Attach(ctx, m.windows, m.config.TitlePrefix,
		m.config.Windows, m.config.FindRetries, m.config.FindInterval)
	switch {
	case errors.Is(err, context.Canceled):
		zlog.Debug().Msg("session: window lookup canceled")
		return nil
	case err != nil:
		zlog.Warn().Err(err).Msg("session: output windows not found, placement disabled")
		return nil
	}
	return group
}

// placeWindows moves the output windows onto monitors.
func (m *Manager) placeWindows(group *window.Group) {
	if group == nil || !m.config.Placement {
		return
	}
	monitors, err := m.windows.Monitors()
	if err != nil {
		zlog.Warn().Err(err).Msg("session: failed to list monitors")
		return
	}
	warn("place windows", group.Place(window.Targets(monitors, m.config.Windows)))
}

// attachedWindows is the dispatcher's view of the output windows, filled in
// once the lookup finishes.
type attachedWindows struct {
	mu    sync.Mutex
	group *window.Group
}

func (a *attachedWindows) set(g *window.Group) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.group = g
}

func (a *attachedWindows) SetVisible(shown bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.group == nil {
		return ErrWindowsDetached
	}
	return a.group.SetVisible(shown)
}

func (m *Manager) logEvents(events <-chan watchdog.Event) {
	for e := range events {
		switch e.Type {
		case watchdog.EventTrackChanged:
			if i := m.playlist.IndexOf(e.MediaID); i >= 0 {
				zlog.Info().Msgf("session: playing %d/%d: %s", i+1, m.playlist.Len(), m.playlist.At(i).Name)
			} else {
				zlog.Info().Msgf("session: playing %s", e.MediaID)
			}
		case watchdog.EventResynced:
			zlog.Debug().Msgf("session: resynced at %v (threshold %v)", e.Position, e.Threshold)
		case watchdog.EventShortTrack:
			zlog.Info().Msgf("session: %s is too short to resync (threshold %v)", e.MediaID, e.Threshold)
		}
	}
}

func (m *Manager) release(players *playback.Set) {
	if err := players.Release(); err != nil {
		zlog.Warn().Err(err).Msg("session: failed to release players")
	}
}

func warn(action string, err error) {
	if err != nil {
		zlog.Warn().Err(err).Msgf("session: %s", action)
	}
}
