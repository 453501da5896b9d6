package window

import (
	"bufio"
	"bytes"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Runner executes an external command and returns its standard output.
type Runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// X11 manages windows with xrandr and xdotool.
type X11 struct {
	run Runner
}

// NewX11 creates an X11 manager. It fails if the required tools are missing.
func NewX11() (*X11, error) {
	for _, tool := range []string{"xrandr", "xdotool"} {
		if _, err := exec.LookPath(tool); err != nil {
			return nil, errors.Wrapf(err, "%s is required for window management", tool)
		}
	}
	return &X11{run: execRunner}, nil
}

// NewX11WithRunner creates an X11 manager using run to execute tools.
func NewX11WithRunner(run Runner) *X11 {
	return &X11{run: run}
}

// Monitors lists the active monitors.
func (x *X11) Monitors() ([]Monitor, error) {
	out, err := x.run("xrandr", "--listmonitors")
	if err != nil {
		return nil, errors.Wrap(err, "xrandr --listmonitors")
	}
	return ParseMonitors(out)
}

// FindByTitle returns the id of the first window whose title is exactly title.
func (x *X11) FindByTitle(title string) (string, error) {
	out, err := x.run("xdotool", "search", "--name", "^"+regexp.QuoteMeta(title)+"$")
	if err != nil {
		// xdotool exits with status 1 when nothing matches.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", ErrNotFound
		}
		return "", errors.Wrap(err, "xdotool search")
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return "", ErrNotFound
	}
	return fields[0], nil
}

// Move moves and resizes a window.
func (x *X11) Move(id string, r Rect) error {
	_, err := x.run("xdotool",
		"windowmove", id, strconv.Itoa(r.X), strconv.Itoa(r.Y),
		"windowsize", id, strconv.Itoa(r.W), strconv.Itoa(r.H))
	return errors.Wrap(err, "xdotool windowmove")
}

// SetVisible minimizes or restores a window.
func (x *X11) SetVisible(id string, shown bool) error {
	var err error
	if shown {
		_, err = x.run("xdotool", "windowmap", id, "windowraise", id)
	} else {
		_, err = x.run("xdotool", "windowminimize", id)
	}
	return errors.Wrap(err, "xdotool")
}

// " 1: +HDMI-1 2560/597x1440/336+1920+0  HDMI-1"
var monitorLine = regexp.MustCompile(`^\s*\d+:\s+\+?(\*?)(\S+)\s+(\d+)/\d+x(\d+)/\d+\+(-?\d+)\+(-?\d+)`)

// ParseMonitors parses the output of `xrandr --listmonitors`.
func ParseMonitors(out []byte) ([]Monitor, error) {
	var monitors []Monitor
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := monitorLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[3])
		h, _ := strconv.Atoi(m[4])
		x, _ := strconv.Atoi(m[5])
		y, _ := strconv.Atoi(m[6])
		monitors = append(monitors, Monitor{
			Name:    m[2],
			Rect:    Rect{X: x, Y: y, W: w, H: h},
			Primary: m[1] == "*",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read monitor list")
	}
	return monitors, nil
}
