package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrUnavailable is returned when nothing is listening on the socket.
var ErrUnavailable = errors.New("schemadrift daemon is not running")

// DefaultTimeout bounds a whole request/response exchange.
const DefaultTimeout = 5 * time.Second

// Client talks to a running schemadrift daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for the daemon listening on socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: DefaultTimeout}
}

func (c *Client) Ping() error {
	_, err := c.send(Request{Command: CmdPing})
	return err
}

// Status fetches the daemon's current branch, baseline state and ledger
// counters.
func (c *Client) Status() (*StatusData, error) {
	var status StatusData
	if err := c.call(Request{Command: CmdStatus}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// RequestSync asks the daemon to run a poll cycle without waiting for the
// next tick. It returns once the request is queued, not when the cycle ends.
func (c *Client) RequestSync() error {
	_, err := c.send(Request{Command: CmdSync})
	return err
}

// RequestStop asks the daemon to shut down.
func (c *Client) RequestStop() error {
	_, err := c.send(Request{Command: CmdStop})
	return err
}

// reply mirrors Response but keeps Data raw so callers can decode it into
// their own type.
type reply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (c *Client) call(req Request, out interface{}) error {
	r, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", req.Command, err)
	}
	return nil
}

// send writes one newline-terminated request and reads one reply line.
func (c *Client) send(req Request) (*reply, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Command, err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Command, err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read %s reply: %w", req.Command, err)
		}
		return nil, fmt.Errorf("%s: daemon closed the connection without replying", req.Command)
	}

	var r reply
	if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", req.Command, err)
	}
	if !r.OK {
		return nil, fmt.Errorf("%s: %s", req.Command, r.Error)
	}
	return &r, nil
}
