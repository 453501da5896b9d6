package mpv

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// IPC errors
var (
	ErrClosed              = errors.New("ipc connection closed")
	ErrTimeout             = errors.New("ipc call timed out")
	ErrPropertyUnavailable = errors.New("property unavailable")
)

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type message struct {
	Event     string          `json:"event,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID int64           `json:"request_id,omitempty"`
}

// Client speaks mpv's line-delimited JSON IPC protocol over a unix socket.
// Replies are matched to requests by request_id; event lines are ignored.
type Client struct {
	conn    net.Conn
	timeout time.Duration

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[int64]chan message
	nextID  atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the mpv IPC socket at path.
func Dial(ctx context.Context, path string, timeout time.Duration) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", path)
	}
	return NewClient(conn, timeout), nil
}

// NewClient wraps an established connection and starts reading replies.
func NewClient(conn net.Conn, timeout time.Duration) *Client {
	c := &Client{
		conn:    conn,
		timeout: timeout,
		pending: make(map[int64]chan message),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends a command and waits for its reply.
func (c *Client) Call(args ...any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	replyCh := make(chan message, 1)

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil, ErrClosed
	default:
	}
	c.pending[id] = replyCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode command")
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.Close()
		return nil, errors.Wrap(ErrClosed, err.Error())
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return replyData(args, reply)
	case <-c.closed:
		return nil, ErrClosed
	case <-timer.C:
		return nil, errors.Wrapf(ErrTimeout, "%v", args)
	}
}

// Get reads a property into v.
func (c *Client) Get(name string, v any) error {
	data, err := c.Call("get_property", name)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		return errors.Wrap(ErrPropertyUnavailable, name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to decode property %s", name)
	}
	return nil
}

// Set writes a property.
func (c *Client) Set(name string, value any) error {
	_, err := c.Call("set_property", name, value)
	return err
}

// Close closes the connection and fails every pending call.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

func (c *Client) readLoop() {
	defer c.Close()

	dec := json.NewDecoder(c.conn)
	for {
		var msg message
		if err := dec.Decode(&msg); err != nil {
			select {
			case <-c.closed:
			default:
				zlog.Debug().Err(err).Msg("mpv: ipc read ended")
			}
			return
		}
		if msg.Event != "" || msg.RequestID == 0 {
			continue
		}

		c.mu.Lock()
		replyCh, ok := c.pending[msg.RequestID]
		c.mu.Unlock()
		if ok {
			replyCh <- msg
		}
	}
}

func replyData(args []any, reply message) (json.RawMessage, error) {
	switch reply.Error {
	case "success", "":
		return reply.Data, nil
	case "property unavailable":
		return nil, errors.Wrapf(ErrPropertyUnavailable, "%v", args)
	default:
		return nil, errors.Newf("mpv: %v: %s", args, reply.Error)
	}
}
