package control

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/syncscreen/internal/app/playback"
	"github.com/osa030/syncscreen/internal/app/playback/playbacktest"
	"github.com/osa030/syncscreen/internal/infra/terminal"
)

type fakeWindows struct {
	calls []bool
}

func (w *fakeWindows) SetVisible(shown bool) error {
	w.calls = append(w.calls, shown)
	return nil
}

type fixture struct {
	state      *State
	players    *playback.Set
	handles    []*playbacktest.Handle
	windows    *fakeWindows
	out        *bytes.Buffer
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	factory := &playbacktest.Factory{}
	hs, err := playback.CreateAll(context.Background(), factory, n)
	require.NoError(t, err)

	f := &fixture{
		state:   NewState(playback.LoopModeLoop, 100),
		handles: factory.Created(),
		windows: &fakeWindows{},
		out:     &bytes.Buffer{},
	}
	f.players = playback.NewSet(hs, f.state)
	require.NoError(t, f.players.LoadPlaylist([]string{"/m/a.mp4", "/m/b.mp4", "/m/c.mp4"}))
	for _, h := range f.handles {
		h.ResetCalls()
	}
	f.dispatcher = NewDispatcher(f.state, f.players, f.windows, f.out, Config{StartOffset: time.Second})
	return f
}

func TestLookup(t *testing.T) {
	tests := []struct {
		key  rune
		want Command
	}{
		{key: 'q', want: CommandQuit},
		{key: 'Q', want: CommandQuit},
		{key: '\x03', want: CommandQuit},
		{key: 'p', want: CommandTogglePause},
		{key: ' ', want: CommandTogglePause},
		{key: 'R', want: CommandRestart},
		{key: 'f', want: CommandFullscreen},
		{key: 'n', want: CommandNext},
		{key: 'b', want: CommandPrevious},
		{key: 'l', want: CommandLoopCycle},
		{key: 'V', want: CommandVolumeCycle},
		{key: 'm', want: CommandMinimize},
		{key: 'x', want: CommandNone},
		{key: '1', want: CommandNone},
		{key: 'é', want: CommandNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			assert.Equal(t, tt.want, Lookup(tt.key))
		})
	}
}

func TestHelpLine(t *testing.T) {
	line := HelpLine()
	assert.Contains(t, line, "[q]: Quit")
	assert.Contains(t, line, "[p/' ']: Play/Pause")
	assert.Contains(t, line, "[l]: Toggle Loop Mode")
	assert.NotContains(t, line, "\n")
}

func TestDispatcher_BroadcastsToEveryPlayer(t *testing.T) {
	tests := []struct {
		name string
		key  rune
		want []string
	}{
		{name: "pause", key: 'p', want: []string{"toggle-pause"}},
		{name: "space", key: ' ', want: []string{"toggle-pause"}},
		{name: "restart", key: 'r', want: []string{"seek 1s"}},
		{name: "fullscreen", key: 'F', want: []string{"fullscreen"}},
		{name: "next", key: 'n', want: []string{"next"}},
		{name: "previous", key: 'b', want: []string{"previous"}},
		{name: "loop", key: 'l', want: []string{"loop default"}},
		{name: "volume", key: 'v', want: []string{"volume 0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)

			f.dispatcher.Dispatch(tt.key)

			for _, h := range f.handles {
				assert.Equal(t, tt.want, h.Calls())
			}
			assert.False(t, f.state.Exited())
			assert.Empty(t, f.windows.calls)
		})
	}
}

func TestDispatcher_UnknownKeyHasNoEffect(t *testing.T) {
	f := newFixture(t, 2)

	cmd := f.dispatcher.Dispatch('x')

	assert.Equal(t, CommandNone, cmd)
	for _, h := range f.handles {
		assert.Empty(t, h.Calls())
	}
	assert.Equal(t, playback.LoopModeLoop, f.state.LoopMode())
	assert.Equal(t, 100, f.state.Volume())
	assert.False(t, f.state.Minimized())
	assert.False(t, f.state.Exited())
}

func TestDispatcher_Minimize(t *testing.T) {
	f := newFixture(t, 2)

	f.dispatcher.Dispatch('m')
	f.dispatcher.Dispatch('M')

	assert.Equal(t, []bool{false, true}, f.windows.calls)
	assert.False(t, f.state.Minimized())
	for _, h := range f.handles {
		assert.Empty(t, h.Calls())
	}
}

func TestDispatcher_MinimizeWithoutWindows(t *testing.T) {
	f := newFixture(t, 1)
	d := NewDispatcher(f.state, f.players, nil, nil, Config{StartOffset: time.Second})

	assert.Equal(t, CommandMinimize, d.Dispatch('m'))
	assert.True(t, f.state.Minimized())
}

func TestDispatcher_CyclesAreGlobal(t *testing.T) {
	f := newFixture(t, 3)

	for i := 0; i < 4; i++ {
		f.dispatcher.Dispatch('v')
	}
	f.dispatcher.Dispatch('l')
	f.dispatcher.Dispatch('l')

	for _, h := range f.handles {
		st := h.Snapshot()
		assert.Equal(t, 15, st.Volume)
		assert.Equal(t, playback.LoopModeLoop, st.LoopMode)
	}
	assert.Equal(t, 15, f.state.Volume())
	assert.Equal(t, playback.LoopModeLoop, f.state.LoopMode())
}

func TestDispatcher_QuitStopsBroadcasts(t *testing.T) {
	f := newFixture(t, 2)

	assert.Equal(t, CommandQuit, f.dispatcher.Dispatch('q'))
	assert.True(t, f.state.Exited())

	assert.Equal(t, CommandNone, f.dispatcher.Dispatch('n'))
	require.ErrorIs(t, f.players.Next(), playback.ErrHalted)
	for _, h := range f.handles {
		assert.Empty(t, h.Calls())
	}
}

func TestDispatcher_Run(t *testing.T) {
	f := newFixture(t, 2)
	keys := make(chan terminal.Key, 8)
	keys <- terminal.Key{Rune: 'n'}
	keys <- terminal.Key{Err: terminal.ErrDecode}
	keys <- terminal.Key{Rune: 'x'}
	keys <- terminal.Key{Rune: 'P'}
	keys <- terminal.Key{Rune: 'q'}
	keys <- terminal.Key{Rune: 'n'}

	done := make(chan struct{})
	go func() {
		f.dispatcher.Run(keys)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	assert.True(t, f.state.Exited())
	for _, h := range f.handles {
		assert.Equal(t, []string{"next", "toggle-pause"}, h.Calls())
	}
	// The key after quit is never read.
	assert.Len(t, keys, 1)
	assert.Contains(t, f.out.String(), "[q]: Quit")
}

func TestDispatcher_RunStopsOnExternalExit(t *testing.T) {
	f := newFixture(t, 1)
	keys := make(chan terminal.Key)

	done := make(chan struct{})
	go func() {
		f.dispatcher.Run(keys)
		close(done)
	}()

	f.state.RequestExit()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcher_RunStopsOnClosedInput(t *testing.T) {
	f := newFixture(t, 1)
	keys := make(chan terminal.Key)
	close(keys)

	f.dispatcher.Run(keys)

	assert.True(t, f.state.Exited())
}
