// Package window provides monitor discovery and window placement/visibility.
package window

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no window has the requested title.
var ErrNotFound = errors.New("window not found")

// Rect is a screen rectangle in pixels.
type Rect struct {
	X, Y int
	W, H int
}

// Monitor is one physical output.
type Monitor struct {
	Name    string
	Rect    Rect
	Primary bool
}

// Manager is the OS window system.
type Manager interface {
	Monitors() ([]Monitor, error)
	FindByTitle(title string) (string, error)
	Move(id string, r Rect) error
	SetVisible(id string, shown bool) error
}

// Title returns the title of the output window with the given index.
func Title(prefix string, index int) string {
	return fmt.Sprintf("%s %d", prefix, index+1)
}

// DefaultCount returns one window per secondary monitor, or 1 when there is
// at most one monitor.
func DefaultCount(monitors []Monitor) int {
	if len(monitors) <= 1 {
		return 1
	}
	n := 0
	for _, m := range monitors {
		if !m.Primary {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

// Targets returns where each of n windows should go. Secondary monitors
// are used first; the primary is only used when windows outnumber the
// secondaries, and the assignment wraps after that.
func Targets(monitors []Monitor, n int) []Rect {
	if len(monitors) == 0 || n <= 0 {
		return nil
	}

	var secondary, primary []Monitor
	for _, m := range monitors {
		if m.Primary {
			primary = append(primary, m)
		} else {
			secondary = append(secondary, m)
		}
	}

	ordered := secondary
	if len(secondary) == 0 || n > len(secondary) {
		ordered = append(append([]Monitor(nil), secondary...), primary...)
	}

	rects := make([]Rect, n)
	for i := range rects {
		rects[i] = ordered[i%len(ordered)].Rect
	}
	return rects
}

// Group is the set of output windows, indexed like the players.
type Group struct {
	manager Manager
	ids     []string
}

// Attach looks up the n output windows by title, retrying while the
// engines are still opening them. Every window is looked up at least once.
func Attach(ctx context.Context, manager Manager, prefix string, n, retries int, interval time.Duration) (*Group, error) {
	if retries < 1 {
		retries = 1
	}
	g := &Group{manager: manager, ids: make([]string, n)}

	for i := 0; i < n; i++ {
		title := Title(prefix, i)
		var lastErr error
		for attempt := 0; attempt < retries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(interval):
				}
			}
			id, err := manager.FindByTitle(title)
			if err == nil {
				g.ids[i] = id
				lastErr = nil
				break
			}
			lastErr = err
		}
		if lastErr != nil {
			return nil, errors.Wrapf(lastErr, "window %q", title)
		}
		zlog.Debug().Msgf("window: found %q: id=%s", title, g.ids[i])
	}
	return g, nil
}

// IDs returns the window ids.
func (g *Group) IDs() []string {
	result := make([]string, len(g.ids))
	copy(result, g.ids)
	return result
}

// Place moves every window onto its target rectangle.
func (g *Group) Place(targets []Rect) error {
	var result error
	for i, id := range g.ids {
		if i >= len(targets) {
			break
		}
		if err := g.manager.Move(id, targets[i]); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "move window %d", i))
		}
	}
	return result
}

// SetVisible shows or hides every window.
func (g *Group) SetVisible(shown bool) error {
	var result error
	for i, id := range g.ids {
		if err := g.manager.SetVisible(id, shown); err != nil {
			result = errors.CombineErrors(result, errors.Wrapf(err, "window %d", i))
		}
	}
	return result
}

// Noop is a Manager for runs without a window system.
type Noop struct{}

func (Noop) Monitors() ([]Monitor, error)            { return nil, nil }
func (Noop) FindByTitle(title string) (string, error) { return title, nil }
func (Noop) Move(string, Rect) error                  { return nil }
func (Noop) SetVisible(string, bool) error            { return nil }
