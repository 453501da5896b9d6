package playlist

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/syncscreen/internal/domain/track"
)

func writeMedia(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(paths[i], []byte(name), 0o644))
	}
	return paths
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	valid := writeMedia(t, dir, "a.mp4", "b.mp4", "c.mp4")
	missing := filepath.Join(dir, "missing.mp4")

	tests := []struct {
		name      string
		paths     []string
		wantLen   int
		wantErrs  int
		wantEmpty bool
	}{
		{
			name:    "all valid",
			paths:   valid,
			wantLen: 3,
		},
		{
			name:     "missing file is skipped",
			paths:    []string{valid[0], missing, valid[2]},
			wantLen:  2,
			wantErrs: 1,
		},
		{
			name:      "no valid files",
			paths:     []string{missing, dir},
			wantErrs:  3,
			wantEmpty: true,
		},
		{
			name:      "no input",
			paths:     nil,
			wantErrs:  1,
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, errs := Collect(tt.paths)
			assert.Len(t, errs, tt.wantErrs)

			if tt.wantEmpty {
				assert.Nil(t, p)
				require.NotEmpty(t, errs)
				assert.True(t, errors.Is(errs[len(errs)-1], ErrEmptyPlaylist))
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.wantLen, p.Len())
		})
	}
}

func TestCollect_PerFileErrors(t *testing.T) {
	dir := t.TempDir()
	valid := writeMedia(t, dir, "a.mp4")
	missing := filepath.Join(dir, "missing.mp4")

	p, errs := Collect([]string{missing, valid[0], dir})
	require.NotNil(t, p)
	require.Len(t, errs, 2)
	assert.True(t, errors.Is(errs[0], track.ErrNotFound))
	assert.True(t, errors.Is(errs[1], track.ErrNotAccessible))
	assert.Equal(t, []string{valid[0]}, p.Paths())
}

func TestPlaylist_IsImmutable(t *testing.T) {
	tracks := []track.Track{
		{ID: "/m/a.mp4", Name: "a.mp4"},
		{ID: "/m/b.mp4", Name: "b.mp4"},
	}
	p, err := New(tracks)
	require.NoError(t, err)

	tracks[0].ID = "/m/changed.mp4"
	assert.Equal(t, "/m/a.mp4", p.At(0).ID)

	got := p.Tracks()
	got[1].ID = "/m/changed.mp4"
	assert.Equal(t, "/m/b.mp4", p.At(1).ID)
}

func TestPlaylist_IndexOf(t *testing.T) {
	p, err := New([]track.Track{
		{ID: "/m/a.mp4", Path: "a.mp4"},
		{ID: "/m/b.mp4", Path: "b.mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, p.IndexOf("/m/a.mp4"))
	assert.Equal(t, 1, p.IndexOf("b.mp4"))
	assert.Equal(t, -1, p.IndexOf("/m/c.mp4"))
}

func TestPlaylist_Shuffled(t *testing.T) {
	tracks := make([]track.Track, 20)
	for i := range tracks {
		tracks[i] = track.New(filepath.Join("/m", string(rune('a'+i))+".mp4"))
	}
	p, err := New(tracks)
	require.NoError(t, err)

	shuffled := p.Shuffled(rand.New(rand.NewPCG(1, 2)))

	assert.Equal(t, p.Len(), shuffled.Len())
	assert.ElementsMatch(t, p.Paths(), shuffled.Paths())
	assert.NotEqual(t, p.Paths(), shuffled.Paths())
	// Original order is untouched.
	assert.Equal(t, tracks[0].ID, p.At(0).ID)

	again := p.Shuffled(rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, shuffled.Paths(), again.Paths())
}
