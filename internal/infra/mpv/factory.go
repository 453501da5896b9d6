package mpv

import (
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/osa030/syncscreen/internal/app/playback"
	"github.com/osa030/syncscreen/internal/infra/logger"
	"github.com/osa030/syncscreen/internal/infra/window"
	zlog "github.com/rs/zerolog/log"
)

const dialInterval = 50 * time.Millisecond

// ErrExited is returned when mpv exits before its IPC socket is ready.
var ErrExited = errors.New("mpv exited during startup")

// Factory launches one mpv process per output window.
type Factory struct {
	settings    Settings
	titlePrefix string
}

var _ playback.Factory = (*Factory)(nil)

// NewFactory creates a factory. Windows are titled "<titlePrefix> <n>".
func NewFactory(settings Settings, titlePrefix string) *Factory {
	return &Factory{settings: settings, titlePrefix: titlePrefix}
}

// Create starts mpv for window index and connects to it.
func (f *Factory) Create(ctx context.Context, index int) (playback.Handle, error) {
	id := uuid.New().String()
	socket := filepath.Join(f.settings.SocketDir, "syncscreen-"+id+".sock")

	log := logger.Component("mpv").With().Int("window", index).Logger()
	lines, closeOutput := logger.LineWriter(log)
	output := &quietWriter{w: lines}

	cmd := exec.Command(f.settings.Binary, f.args(index, socket)...)
	cmd.Stdout = output
	cmd.Stderr = output

	proc, err := startProcess(cmd, socket, closeOutput)
	if err != nil {
		closeOutput()
		return nil, err
	}
	log.Debug().Msgf("started pid %d, ipc %s", cmd.Process.Pid, socket)

	client, err := f.connect(ctx, proc)
	if err != nil {
		if stopErr := proc.stop(0); stopErr != nil {
			zlog.Debug().Err(stopErr).Msg("mpv: cleanup after failed start")
		}
		return nil, errors.Wrapf(err, "window %d", index)
	}

	return newPlayer(id, client, proc, output), nil
}

func (f *Factory) args(index int, socket string) []string {
	args := []string{
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--input-terminal=no",
		"--msg-color=no",
		"--input-ipc-server=" + socket,
		"--title=" + window.Title(f.titlePrefix, index),
	}
	if f.settings.Hwdec != "" {
		args = append(args, "--hwdec="+f.settings.Hwdec)
	}
	return append(args, f.settings.ExtraArgs...)
}

// connect dials the IPC socket until it is up, mpv exits, or the start timeout passes.
func (f *Factory) connect(ctx context.Context, proc *process) (*Client, error) {
	deadline := time.Now().Add(f.settings.StartTimeout())
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-proc.done:
			return nil, errors.Wrapf(ErrExited, "%v", proc.err)
		default:
		}

		client, err := Dial(ctx, proc.socket, f.settings.CallTimeout())
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.Wrap(err, "timed out waiting for mpv ipc")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-proc.done:
			return nil, errors.Wrapf(ErrExited, "%v", proc.err)
		case <-time.After(dialInterval):
		}
	}
}
