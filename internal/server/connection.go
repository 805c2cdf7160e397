package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/fredguile/miniredis/internal/command"
	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

// readBufferSize is the Connection's initial growable read buffer
// capacity; it grows by appending as larger frames demand more.
const readBufferSize = 4 * 1024

// Connection decorates a TCP socket with the RESP frame codec: a
// buffered writer plus a growable read buffer that accumulates bytes
// until a full frame can be checked and parsed out of it. Any data
// left over after a frame is parsed stays buffered for the next call.
type Connection struct {
	raw     net.Conn
	w       *bufio.Writer
	buf     []byte
	scratch []byte
}

// NewConnection wraps conn for frame I/O.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		raw:     conn,
		w:       bufio.NewWriter(conn),
		buf:     make([]byte, 0, readBufferSize),
		scratch: make([]byte, readBufferSize),
	}
}

// RemoteAddr returns the peer address, for logging.
func (c *Connection) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Close closes the underlying socket.
func (c *Connection) Close() error { return c.raw.Close() }

// WriteFrame encodes and flushes f as a single top-level frame. The
// caller is responsible for not invoking WriteFrame concurrently from
// more than one goroutine on the same Connection.
func (c *Connection) WriteFrame(f resp.Frame) error {
	return resp.Write(c.w, f)
}

// ReadFrame returns the next frame, reading more from the socket as
// needed. It returns io.EOF if the peer performed a clean half-close
// with no partial frame buffered, and a "connection reset by peer"
// error if the peer disconnects mid-frame; any other read failure is
// returned verbatim.
//
// ctx cancellation unblocks an in-progress socket read by forcing its
// deadline, the one portable way to make a blocking net.Conn.Read
// respect a context without tearing down the whole connection.
func (c *Connection) ReadFrame(ctx context.Context) (resp.Frame, error) {
	for {
		if n, err := resp.Check(c.buf); err == nil {
			frame, _, perr := resp.Parse(c.buf[:n])
			c.buf = c.buf[n:]
			return frame, perr
		} else if !errors.Is(err, resp.ErrIncomplete) {
			return resp.Frame{}, err
		}

		if err := c.fill(ctx); err != nil {
			return resp.Frame{}, err
		}
	}
}

func (c *Connection) fill(ctx context.Context) error {
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			c.raw.SetReadDeadline(time.Now())
		case <-watchDone:
		}
	}()

	n, err := c.raw.Read(c.scratch)
	if n > 0 {
		c.buf = append(c.buf, c.scratch[:n]...)
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			if len(c.buf) == 0 {
				return io.EOF
			}
			return errors.New("connection reset by peer")
		}
		return err
	}
	c.raw.SetReadDeadline(time.Time{})
	return nil
}

// Serve runs the connection's command loop: read a frame, dispatch it,
// apply it, repeat, until shutdown fires, the peer disconnects, or an
// unrecoverable transport error occurs. A SUBSCRIBE command hands the
// loop over to its own state machine for the remainder of the
// connection's life.
func Serve(ctx context.Context, conn *Connection, st *store.Store, shutdown <-chan struct{}, log *zap.Logger, metrics *Metrics) error {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-readCtx.Done():
		}
	}()

	for {
		frame, err := conn.ReadFrame(readCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		cmd, err := command.FromFrame(frame)
		if err != nil {
			log.Debug("protocol error", zap.Error(err))
			if werr := conn.WriteFrame(resp.Err("ERR " + err.Error())); werr != nil {
				return werr
			}
			continue
		}

		log.Debug("applying command", zap.String("verb", cmd.Name()))
		metrics.CommandsTotal.WithLabelValues(cmd.Name()).Inc()
		if err := command.Apply(ctx, cmd, st, conn, shutdown); err != nil {
			return err
		}
	}
}
