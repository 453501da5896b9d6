package control

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/syncscreen/internal/app/playback"
	"github.com/osa030/syncscreen/internal/infra/terminal"
)

// Windows changes the visibility of every output window.
// Windows are a display concept; they are indexed like the players but are
// not the players themselves.
type Windows interface {
	SetVisible(shown bool) error
}

// Config holds dispatcher configuration.
type Config struct {
	StartOffset time.Duration // Position used by the restart command
}

// Dispatcher reads keys and broadcasts the bound command to every player.
// It runs on a single goroutine; a command is fully applied before the next
// key is read.
type Dispatcher struct {
	state   *State
	players *playback.Set
	windows Windows
	out     io.Writer
	config  Config
}

// NewDispatcher creates a dispatcher. windows may be nil when there is no
// window system; minimize then only flips the state.
func NewDispatcher(state *State, players *playback.Set, windows Windows, out io.Writer, config Config) *Dispatcher {
	if out == nil {
		out = io.Discard
	}
	return &Dispatcher{
		state:   state,
		players: players,
		windows: windows,
		out:     out,
		config:  config,
	}
}

// Run processes keys until the exit flag is set. A closed key channel is
// treated like the quit key.
func (d *Dispatcher) Run(keys <-chan terminal.Key) {
	d.render()
	for !d.state.Exited() {
		select {
		case <-d.state.Done():
			return
		case key, ok := <-keys:
			if !ok {
				zlog.Debug().Msg("control: key input closed")
				d.state.RequestExit()
				return
			}
			if key.Err != nil {
				zlog.Debug().Err(key.Err).Msg("control: ignoring key")
				continue
			}
			d.Dispatch(key.Rune)
			d.render()
		}
	}
}

// Dispatch applies the command bound to key and returns it.
func (d *Dispatcher) Dispatch(key rune) Command {
	cmd := Lookup(key)
	if d.state.Exited() {
		return CommandNone
	}

	var err error
	switch cmd {
	case CommandQuit:
		d.state.RequestExit()
	case CommandTogglePause:
		err = d.players.TogglePause()
	case CommandRestart:
		err = d.players.Seek(d.config.StartOffset)
	case CommandFullscreen:
		err = d.players.ToggleFullscreen()
	case CommandNext:
		err = d.players.Next()
	case CommandPrevious:
		err = d.players.Previous()
	case CommandLoopCycle:
		if mode, ok := d.state.NextLoopMode(); ok {
			err = d.players.SetLoopMode(mode)
		}
	case CommandVolumeCycle:
		if volume, ok := d.state.NextVolume(); ok {
			err = d.players.SetVolume(volume)
		}
	case CommandMinimize:
		minimized := d.state.ToggleMinimized()
		if d.windows != nil {
			err = d.windows.SetVisible(!minimized)
		}
	case CommandNone:
		return cmd
	}

	if err != nil && !errors.Is(err, playback.ErrHalted) {
		zlog.Warn().Err(err).Msgf("control: %s failed", cmd)
	}
	zlog.Debug().Msgf("control: dispatched %s", cmd)
	return cmd
}

// render redraws the help line in place.
func (d *Dispatcher) render() {
	minimized := ""
	if d.state.Minimized() {
		minimized = " hidden"
	}
	fmt.Fprintf(d.out, "\r%s | loop=%s vol=%d%s\x1b[K",
		HelpLine(), d.state.LoopMode(), d.state.Volume(), minimized)
}
