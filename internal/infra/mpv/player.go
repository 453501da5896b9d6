package mpv

import (
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/syncscreen/internal/app/playback"
	zlog "github.com/rs/zerolog/log"
)

const releaseTimeout = 2 * time.Second

// loop-file / loop-playlist values per loop mode.
var loopProperties = map[playback.LoopMode][2]string{
	playback.LoopModeDefault: {"no", "no"},
	playback.LoopModeLoop:    {"no", "inf"},
	playback.LoopModeRepeat:  {"inf", "no"},
}

// Player is a playback.Handle backed by one mpv process.
type Player struct {
	id     string
	client *Client
	proc   *process
	output *quietWriter

	mu       sync.Mutex
	released bool
}

var _ playback.Handle = (*Player)(nil)

func newPlayer(id string, client *Client, proc *process, output *quietWriter) *Player {
	return &Player{id: id, client: client, proc: proc, output: output}
}

// ID returns the engine instance id.
func (p *Player) ID() string {
	return p.id
}

// LoadPlaylist replaces the playlist with paths; playback starts on the first entry.
func (p *Player) LoadPlaylist(paths []string) error {
	if len(paths) == 0 {
		return errors.New("empty playlist")
	}
	return p.do(func() error {
		if _, err := p.client.Call("loadfile", paths[0], "replace"); err != nil {
			return errors.Wrapf(err, "failed to load %s", paths[0])
		}
		for _, path := range paths[1:] {
			if _, err := p.client.Call("loadfile", path, "append"); err != nil {
				return errors.Wrapf(err, "failed to append %s", path)
			}
		}
		return nil
	})
}

func (p *Player) Play() error {
	return p.do(func() error { return p.client.Set("pause", false) })
}

func (p *Player) TogglePause() error {
	return p.do(func() error { return p.command("cycle", "pause") })
}

func (p *Player) Stop() error {
	return p.do(func() error { return p.command("stop") })
}

func (p *Player) Seek(pos time.Duration) error {
	return p.do(func() error { return p.command("seek", pos.Seconds(), "absolute") })
}

func (p *Player) SetVolume(volume int) error {
	return p.do(func() error { return p.client.Set("volume", volume) })
}

func (p *Player) SetLoopMode(mode playback.LoopMode) error {
	props, ok := loopProperties[mode]
	if !ok {
		return errors.Newf("unknown loop mode %d", mode)
	}
	return p.do(func() error {
		if err := p.client.Set("loop-file", props[0]); err != nil {
			return err
		}
		return p.client.Set("loop-playlist", props[1])
	})
}

func (p *Player) ToggleFullscreen() error {
	return p.do(func() error { return p.command("cycle", "fullscreen") })
}

func (p *Player) Next() error {
	return p.do(func() error { return p.command("playlist-next", "force") })
}

func (p *Player) Previous() error {
	return p.do(func() error { return p.command("playlist-prev", "force") })
}

// Position returns the playback position of the current media.
func (p *Player) Position() (time.Duration, error) {
	var secs float64
	err := p.do(func() error { return p.client.Get("time-pos", &secs) })
	if err != nil {
		return 0, err
	}
	return seconds(secs), nil
}

// MediaID returns the absolute path of the current media. URLs are
// returned unchanged.
func (p *Player) MediaID() (string, error) {
	var path string
	if err := p.do(func() error { return p.client.Get("path", &path) }); err != nil {
		return "", err
	}
	if path == "" || strings.Contains(path, "://") || filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", path)
	}
	return abs, nil
}

// Duration returns the length of the current media.
func (p *Player) Duration() (time.Duration, error) {
	var secs float64
	err := p.do(func() error { return p.client.Get("duration", &secs) })
	if err != nil {
		return 0, err
	}
	if secs <= 0 {
		return 0, playback.ErrNotReady
	}
	return seconds(secs), nil
}

// SuppressLogging silences mpv's terminal messages and stops forwarding its output.
func (p *Player) SuppressLogging() error {
	if p.output != nil {
		p.output.quiet.Store(true)
	}
	return p.do(func() error { return p.client.Set("msg-level", "all=no") })
}

// Release quits mpv and waits for the process to exit.
func (p *Player) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.released = true

	if _, err := p.client.Call("quit"); err != nil && !errors.Is(err, ErrClosed) {
		zlog.Debug().Err(err).Msgf("mpv %s: quit", p.id)
	}
	_ = p.client.Close()

	if p.proc != nil {
		return p.proc.stop(releaseTimeout)
	}
	return nil
}

func (p *Player) command(args ...any) error {
	_, err := p.client.Call(args...)
	return err
}

// do runs fn under the handle lock and maps IPC errors onto playback errors.
func (p *Player) do(fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return playback.ErrReleased
	}

	err := fn()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPropertyUnavailable):
		return errors.Mark(err, playback.ErrNotReady)
	case errors.Is(err, ErrClosed):
		return errors.Mark(err, playback.ErrReleased)
	}
	return err
}

func seconds(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// quietWriter forwards process output until silenced.
type quietWriter struct {
	w     io.Writer
	quiet atomic.Bool
}

func (q *quietWriter) Write(b []byte) (int, error) {
	if q.quiet.Load() {
		return len(b), nil
	}
	return q.w.Write(b)
}

// process is a running mpv instance.
type process struct {
	cmd         *exec.Cmd
	socket      string
	done        chan struct{}
	err         error
	closeOutput func()
}

func startProcess(cmd *exec.Cmd, socket string, closeOutput func()) (*process, error) {
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", cmd.Path)
	}
	proc := &process{
		cmd:         cmd,
		socket:      socket,
		done:        make(chan struct{}),
		closeOutput: closeOutput,
	}
	go func() {
		proc.err = proc.cmd.Wait()
		close(proc.done)
	}()
	return proc, nil
}

// stop waits up to timeout for the process to exit, then kills it.
func (proc *process) stop(timeout time.Duration) error {
	defer func() {
		if proc.closeOutput != nil {
			proc.closeOutput()
		}
		if err := os.Remove(proc.socket); err != nil && !os.IsNotExist(err) {
			zlog.Debug().Err(err).Msgf("mpv: failed to remove %s", proc.socket)
		}
	}()

	select {
	case <-proc.done:
		return nil
	case <-time.After(timeout):
	}

	zlog.Warn().Msgf("mpv: pid %d did not exit, killing", proc.cmd.Process.Pid)
	if err := proc.cmd.Process.Kill(); err != nil {
		return errors.Wrap(err, "failed to kill mpv")
	}
	<-proc.done
	return nil
}
