// Package playlist provides the Playlist domain entity.
package playlist

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"

	"github.com/osa030/syncscreen/internal/domain/track"
)

// ErrEmptyPlaylist is returned when no valid media file remains after validation.
var ErrEmptyPlaylist = errors.New("no valid media files")

// Playlist is an ordered, immutable sequence of tracks shared by all players.
type Playlist struct {
	tracks []track.Track
}

// New creates a playlist from the given tracks.
func New(tracks []track.Track) (*Playlist, error) {
	if len(tracks) == 0 {
		return nil, ErrEmptyPlaylist
	}
	p := &Playlist{tracks: make([]track.Track, len(tracks))}
	copy(p.tracks, tracks)
	return p, nil
}

// Collect validates every path and builds a playlist from the valid ones.
// Invalid paths are reported individually and skipped. The returned error
// slice is in input order. If nothing is valid, the playlist is nil and
// ErrEmptyPlaylist is the last element of the slice.
func Collect(paths []string) (*Playlist, []error) {
	var (
		tracks []track.Track
		errs   []error
	)
	for _, path := range paths {
		t, err := track.Open(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tracks = append(tracks, t)
	}

	p, err := New(tracks)
	if err != nil {
		errs = append(errs, err)
		return nil, errs
	}
	return p, errs
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Tracks returns a copy of the tracks.
func (p *Playlist) Tracks() []track.Track {
	result := make([]track.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// At returns the track at index i.
func (p *Playlist) At(i int) track.Track {
	return p.tracks[i]
}

// Paths returns the absolute paths of all tracks, in order.
func (p *Playlist) Paths() []string {
	paths := make([]string, len(p.tracks))
	for i, t := range p.tracks {
		paths[i] = t.ID
	}
	return paths
}

// IndexOf returns the position of the track matching mediaID, or -1.
func (p *Playlist) IndexOf(mediaID string) int {
	for i, t := range p.tracks {
		if t.Matches(mediaID) {
			return i
		}
	}
	return -1
}

// Shuffled returns a new playlist with the same tracks in random order.
func (p *Playlist) Shuffled(rng *rand.Rand) *Playlist {
	tracks := p.Tracks()
	rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
	return &Playlist{tracks: tracks}
}
