// Package terminal provides single-keystroke input from the controlling terminal.
package terminal

import (
	"bufio"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// ErrDecode is reported for a byte sequence that is not valid UTF-8.
var ErrDecode = errors.New("undecodable key")

// Key is one keystroke. Err is set instead of Rune when the input could not be decoded.
type Key struct {
	Rune rune
	Err  error
}

// ReadKeys pumps keystrokes from r into the returned channel until r
// fails or reaches EOF; then the channel is closed.
func ReadKeys(r io.Reader) <-chan Key {
	keys := make(chan Key)
	go func() {
		defer close(keys)
		br := bufio.NewReader(r)
		for {
			ch, size, err := br.ReadRune()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					zlog.Debug().Err(err).Msg("terminal: input closed")
				}
				return
			}
			if ch == utf8.RuneError && size == 1 {
				keys <- Key{Err: ErrDecode}
				continue
			}
			keys <- Key{Rune: ch}
		}
	}()
	return keys
}

// Keyboard reads raw keystrokes from stdin.
type Keyboard struct {
	fd    int
	state *term.State
	keys  <-chan Key
}

// OpenKeyboard switches stdin into raw mode when it is a terminal and starts
// reading keys. Close must be called to restore the terminal.
func OpenKeyboard() (*Keyboard, error) {
	fd := int(os.Stdin.Fd())
	k := &Keyboard{fd: fd}

	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, errors.Wrap(err, "failed to enter raw mode")
		}
		k.state = state
	} else {
		zlog.Warn().Msg("terminal: stdin is not a terminal, keys are read line-buffered")
	}

	k.keys = ReadKeys(os.Stdin)
	return k, nil
}

// Keys returns the keystroke channel.
func (k *Keyboard) Keys() <-chan Key {
	return k.keys
}

// Raw reports whether the terminal is in raw mode.
func (k *Keyboard) Raw() bool {
	return k.state != nil
}

// Close restores the terminal. The reader goroutine stays blocked on stdin
// until the process exits.
func (k *Keyboard) Close() error {
	if k.state == nil {
		return nil
	}
	state := k.state
	k.state = nil
	return term.Restore(k.fd, state)
}

// CRLFWriter translates "\n" to "\r\n", since raw mode turns off output
// post-processing and plain newlines would not return the cursor.
type CRLFWriter struct {
	W io.Writer
}

func (w CRLFWriter) Write(p []byte) (int, error) {
	s := strings.ReplaceAll(string(p), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if _, err := io.WriteString(w.W, s); err != nil {
		return 0, err
	}
	return len(p), nil
}
