// Package track provides the Track domain entity.
package track

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Validation errors
var (
	ErrNotFound      = errors.New("media file does not exist")
	ErrNotAccessible = errors.New("media file is not accessible")
)

// Track represents a local media file reference.
// A track is immutable once created.
type Track struct {
	ID   string // Absolute path, reported by players as the current media identifier
	Path string // Path as given by the user
	Name string // File name without directory
}

// New creates a Track from a path without touching the filesystem.
func New(path string) Track {
	id := path
	if abs, err := filepath.Abs(path); err == nil {
		id = abs
	}
	return Track{
		ID:   id,
		Path: path,
		Name: filepath.Base(path),
	}
}

// Open validates that the media file exists and is readable and returns the Track.
// os.Stat alone is not enough: permission problems only show up on open.
func Open(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return Track{}, errors.Wrapf(ErrNotFound, "%s", path)
		case os.IsPermission(err):
			return Track{}, errors.Wrapf(ErrNotAccessible, "%s", path)
		default:
			return Track{}, errors.Wrapf(ErrNotAccessible, "%s: %v", path, err)
		}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Track{}, errors.Wrapf(ErrNotAccessible, "%s: %v", path, err)
	}
	if info.IsDir() {
		return Track{}, errors.Wrapf(ErrNotAccessible, "%s is a directory", path)
	}

	return New(path), nil
}

// Matches reports whether a media identifier reported by a player refers to this track.
// Players may report either the absolute path or the path as loaded.
func (t Track) Matches(mediaID string) bool {
	if mediaID == "" {
		return false
	}
	if mediaID == t.ID || mediaID == t.Path {
		return true
	}
	return strings.TrimPrefix(mediaID, "file://") == t.ID
}
