package watchdog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/syncscreen/internal/app/playback"
	"github.com/osa030/syncscreen/internal/app/playback/playbacktest"
)

type exitFlag struct {
	mu     sync.Mutex
	exited bool
	done   chan struct{}
}

func newExitFlag() *exitFlag { return &exitFlag{done: make(chan struct{})} }

func (e *exitFlag) Exited() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exited
}

func (e *exitFlag) Done() <-chan struct{} { return e.done }

func (e *exitFlag) set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.exited {
		e.exited = true
		close(e.done)
	}
}

var testPaths = []string{"/m/a.mp4", "/m/b.mp4", "/m/c.mp4"}

func testConfig() Config {
	return Config{
		AdjustTime:   DefaultAdjustTime,
		StartOffset:  DefaultStartOffset,
		PollInterval: 5 * time.Millisecond,
	}
}

func newPlayers(t *testing.T, n int, exit *exitFlag) (*playback.Set, []*playbacktest.Handle) {
	t.Helper()
	factory := &playbacktest.Factory{
		Setup: func(h *playbacktest.Handle) {
			h.SetDuration("/m/a.mp4", 10*time.Second)
			h.SetDuration("/m/b.mp4", 5*time.Second)
			h.SetDuration("/m/c.mp4", 2500*time.Millisecond)
		},
	}
	hs, err := playback.CreateAll(context.Background(), factory, n)
	require.NoError(t, err)
	set := playback.NewSet(hs, exit)
	require.NoError(t, set.LoadPlaylist(testPaths))
	handles := factory.Created()
	for _, h := range handles {
		h.ResetCalls()
	}
	return set, handles
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "zero adjust time", modify: func(c *Config) { c.AdjustTime = 0 }, wantErr: true},
		{name: "negative adjust time", modify: func(c *Config) { c.AdjustTime = -time.Second }, wantErr: true},
		{name: "zero start offset", modify: func(c *Config) { c.StartOffset = 0 }, wantErr: true},
		{name: "zero poll interval", modify: func(c *Config) { c.PollInterval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)

			_, err := New(nil, newExitFlag(), cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTick_ResyncsAtThreshold(t *testing.T) {
	exit := newExitFlag()
	players, handles := newPlayers(t, 2, exit)
	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	handles[0].SetPosition(7999 * time.Millisecond)
	handles[1].SetPosition(7900 * time.Millisecond)
	assert.False(t, w.Tick())

	handles[0].SetPosition(8 * time.Second)
	assert.True(t, w.Tick())

	for _, h := range handles {
		assert.Equal(t, []string{"seek 1s"}, h.Calls())
		assert.Equal(t, time.Second, h.Snapshot().Position)
	}
	assert.EqualValues(t, 1, w.Resyncs())

	// Back at the start offset: nothing more to do.
	assert.False(t, w.Tick())
}

func TestTick_TrackChangeRefreshesThreshold(t *testing.T) {
	exit := newExitFlag()
	players, handles := newPlayers(t, 2, exit)
	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	handles[0].SetPosition(2 * time.Second)
	assert.False(t, w.Tick())

	// b.mp4 lasts 5s: threshold becomes 3s, well below the 8s of a.mp4.
	require.NoError(t, players.Next())
	for _, h := range handles {
		h.ResetCalls()
	}
	handles[0].SetPosition(3 * time.Second)
	assert.True(t, w.Tick())

	for _, h := range handles {
		assert.Equal(t, []string{"seek 1s"}, h.Calls())
	}

	events := drain(w)
	require.Len(t, events, 3)
	assert.Equal(t, EventTrackChanged, events[0].Type)
	assert.Equal(t, "/m/a.mp4", events[0].MediaID)
	assert.Equal(t, EventTrackChanged, events[1].Type)
	assert.Equal(t, "/m/b.mp4", events[1].MediaID)
	assert.Equal(t, EventResynced, events[2].Type)
	assert.Equal(t, 3*time.Second, events[2].Threshold)
}

func TestTick_DurationNotAvailableYet(t *testing.T) {
	exit := newExitFlag()
	players, handles := newPlayers(t, 2, exit)
	handles[0].SetDuration("/m/a.mp4", 0)
	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	handles[0].SetPosition(9 * time.Second)
	assert.False(t, w.Tick())
	assert.False(t, w.Tick())

	handles[0].SetDuration("/m/a.mp4", 10*time.Second)
	assert.True(t, w.Tick())
}

func TestTick_SwallowsTransientErrors(t *testing.T) {
	exit := newExitFlag()
	players, handles := newPlayers(t, 2, exit)
	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	handles[0].SetNotReady(true)
	handles[0].SetPosition(9 * time.Second)
	assert.NotPanics(t, func() { assert.False(t, w.Tick()) })

	handles[0].SetNotReady(false)
	assert.True(t, w.Tick())
}

func TestTick_ShortTrackIsNeverResynced(t *testing.T) {
	exit := newExitFlag()
	players, handles := newPlayers(t, 1, exit)
	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	require.NoError(t, players.Next())
	require.NoError(t, players.Next())
	handles[0].ResetCalls()

	handles[0].SetPosition(2400 * time.Millisecond)
	assert.False(t, w.Tick())
	assert.False(t, w.Tick())
	assert.Empty(t, handles[0].Calls())

	events := drain(w)
	require.Len(t, events, 2)
	assert.Equal(t, EventShortTrack, events[1].Type)
}

type panickingHandle struct {
	*playbacktest.Handle
}

func (panickingHandle) Position() (time.Duration, error) {
	panic("engine crashed")
}

func TestTick_RecoversFromPanic(t *testing.T) {
	exit := newExitFlag()
	h := panickingHandle{playbacktest.NewHandle("panic")}
	require.NoError(t, h.LoadPlaylist(testPaths))
	players := playback.NewSet([]playback.Handle{h}, exit)

	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	assert.NotPanics(t, func() { assert.False(t, w.Tick()) })
}

func TestTick_NoBroadcastAfterExit(t *testing.T) {
	exit := newExitFlag()
	players, handles := newPlayers(t, 2, exit)
	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	handles[0].SetPosition(9 * time.Second)
	exit.set()

	assert.False(t, w.Tick())
	for _, h := range handles {
		assert.Empty(t, h.Calls())
	}
}

func TestRun_ResyncsWithinPollInterval(t *testing.T) {
	exit := newExitFlag()
	players, handles := newPlayers(t, 2, exit)
	w, err := New(players, exit, testConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run()
	}()

	handles[0].SetPosition(8500 * time.Millisecond)
	handles[1].SetPosition(8400 * time.Millisecond)

	require.Eventually(t, func() bool { return w.Resyncs() >= 1 }, 2*time.Second, 5*time.Millisecond)
	for _, h := range handles {
		assert.Contains(t, h.Calls(), "seek 1s")
	}

	exit.set()
	wg.Wait()

	// The event channel is closed once Run returns.
	for range w.Events() {
	}

	before := make([]int, len(handles))
	for i, h := range handles {
		before[i] = len(h.Calls())
	}
	handles[0].SetPosition(9 * time.Second)
	time.Sleep(30 * time.Millisecond)
	for i, h := range handles {
		assert.Len(t, h.Calls(), before[i])
	}
}

func drain(w *Watchdog) []Event {
	var events []Event
	for {
		select {
		case e := <-w.eventCh:
			events = append(events, e)
		default:
			return events
		}
	}
}
