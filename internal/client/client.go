// Package client is a minimal synchronous client for the server's RESP
// protocol, for use by the CLI and by tests exercising the server
// end-to-end over a real socket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/server"
)

// Client holds a single connection to a server. Methods are not safe
// for concurrent use by more than one goroutine.
type Client struct {
	conn *server.Connection
	raw  net.Conn
}

// Dial connects to addr ("host:port") within timeout.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	raw, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: server.NewConnection(raw), raw: raw}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.raw.Close() }

// Ping sends PING, optionally with msg, and returns the server's echo.
func (c *Client) Ping(ctx context.Context, msg []byte) ([]byte, error) {
	f := resp.NewArray()
	f.PushBulk([]byte("ping"))
	if msg != nil {
		f.PushBulk(msg)
	}
	if err := c.conn.WriteFrame(f); err != nil {
		return nil, err
	}

	frame, err := c.readResponse(ctx)
	if err != nil {
		return nil, err
	}
	switch frame.Kind {
	case resp.KindSimple:
		return []byte(frame.Str), nil
	case resp.KindBulk:
		return frame.Bulk, nil
	default:
		return nil, resp.ToError(frame)
	}
}

// Get fetches key. The second return value is false if the key does
// not exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f := resp.NewArray()
	f.PushBulk([]byte("get"))
	f.PushBulk([]byte(key))
	if err := c.conn.WriteFrame(f); err != nil {
		return nil, false, err
	}

	frame, err := c.readResponse(ctx)
	if err != nil {
		return nil, false, err
	}
	switch frame.Kind {
	case resp.KindBulk:
		return frame.Bulk, true, nil
	case resp.KindNull:
		return nil, false, nil
	default:
		return nil, false, resp.ToError(frame)
	}
}

// Set stores value under key. ttl nil sends no expiration option, so
// the key never expires; a non-nil ttl is sent as PX, including a
// zero duration (which expires the key immediately).
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl *time.Duration) error {
	f := resp.NewArray()
	f.PushBulk([]byte("set"))
	f.PushBulk([]byte(key))
	f.PushBulk(value)
	if ttl != nil {
		f.PushBulk([]byte("PX"))
		f.PushInt(uint64(ttl.Milliseconds()))
	}
	if err := c.conn.WriteFrame(f); err != nil {
		return err
	}

	frame, err := c.readResponse(ctx)
	if err != nil {
		return err
	}
	if frame.Kind == resp.KindSimple && frame.Str == "OK" {
		return nil
	}
	return resp.ToError(frame)
}

// Publish posts message to channel and returns the number of
// subscribers that received it.
func (c *Client) Publish(ctx context.Context, channel string, message []byte) (int64, error) {
	f := resp.NewArray()
	f.PushBulk([]byte("publish"))
	f.PushBulk([]byte(channel))
	f.PushBulk(message)
	if err := c.conn.WriteFrame(f); err != nil {
		return 0, err
	}

	frame, err := c.readResponse(ctx)
	if err != nil {
		return 0, err
	}
	if frame.Kind == resp.KindInteger {
		return int64(frame.Int), nil
	}
	return 0, resp.ToError(frame)
}

// Subscribe enters subscription mode for channels, confirming each
// one, and returns a Subscriber for receiving published messages.
func (c *Client) Subscribe(ctx context.Context, channels []string) (*Subscriber, error) {
	if err := c.subscribeCmd(ctx, channels); err != nil {
		return nil, err
	}
	return &Subscriber{client: c, channels: append([]string(nil), channels...)}, nil
}

func (c *Client) subscribeCmd(ctx context.Context, channels []string) error {
	f := resp.NewArray()
	f.PushBulk([]byte("subscribe"))
	for _, ch := range channels {
		f.PushBulk([]byte(ch))
	}
	if err := c.conn.WriteFrame(f); err != nil {
		return err
	}

	for _, ch := range channels {
		frame, err := c.readResponse(ctx)
		if err != nil {
			return err
		}
		if !isAckFor(frame, "subscribe", ch) {
			return resp.ToError(frame)
		}
	}
	return nil
}

func (c *Client) readResponse(ctx context.Context) (resp.Frame, error) {
	frame, err := c.conn.ReadFrame(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return resp.Frame{}, err
		}
		return resp.Frame{}, fmt.Errorf("connection reset by server: %w", err)
	}
	if frame.Kind == resp.KindError {
		return resp.Frame{}, errors.New(frame.Str)
	}
	return frame, nil
}

// isAckFor reports whether frame is a ["subscribe"|"unsubscribe",
// channel, ...] acknowledgement array for verb and channel.
func isAckFor(frame resp.Frame, verb, channel string) bool {
	if frame.Kind != resp.KindArray || len(frame.Array) < 2 {
		return false
	}
	name, ok := bulkOrSimple(frame.Array[0])
	if !ok || name != verb {
		return false
	}
	ch, ok := bulkOrSimple(frame.Array[1])
	return ok && ch == channel
}

func bulkOrSimple(f resp.Frame) (string, bool) {
	switch f.Kind {
	case resp.KindBulk:
		return string(f.Bulk), true
	case resp.KindSimple:
		return f.Str, true
	default:
		return "", false
	}
}
