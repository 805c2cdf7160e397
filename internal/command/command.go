// Package command implements the server's supported RESP verbs: one
// type per verb with parse, encode (into_frame) and apply operations,
// plus the dispatch that turns a received array Frame into one of them.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

// Command is any parsed, ready-to-apply verb.
type Command interface {
	// Name returns the verb's lowercase name, used for logging and for
	// the Unknown-command error message.
	Name() string
}

// Conn is the minimal surface Commands need from a connection: write a
// response frame, and, for SUBSCRIBE, read the next request frame.
type Conn interface {
	WriteFrame(resp.Frame) error
	ReadFrame(ctx context.Context) (resp.Frame, error)
}

// FromFrame parses frame into a Command. frame must be an Array of the
// verb name followed by its arguments; an unrecognized verb yields
// Unknown rather than an error, matching Redis's own tolerance for
// unknown commands.
func FromFrame(frame resp.Frame) (Command, error) {
	parser, err := resp.NewParser(frame)
	if err != nil {
		return nil, err
	}

	name, err := parser.NextString()
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(name)

	var cmd Command
	switch name {
	case "get":
		cmd, err = parseGet(parser)
	case "set":
		cmd, err = parseSet(parser)
	case "publish":
		cmd, err = parsePublish(parser)
	case "subscribe":
		cmd, err = parseSubscribe(parser)
	case "unsubscribe":
		cmd, err = parseUnsubscribe(parser)
	case "ping":
		cmd, err = parsePing(parser)
	default:
		return Unknown{CommandName: name}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := parser.Finish(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// Apply executes cmd against the shared store, writing its response(s)
// through conn. shutdown is only consulted by SUBSCRIBE, which loops
// for the remainder of the connection's subscribe-mode lifetime.
func Apply(ctx context.Context, cmd Command, st *store.Store, conn Conn, shutdown <-chan struct{}) error {
	switch c := cmd.(type) {
	case Get:
		return c.Apply(st, conn)
	case Set:
		return c.Apply(st, conn)
	case Publish:
		return c.Apply(st, conn)
	case Ping:
		return c.Apply(conn)
	case Unknown:
		return c.Apply(conn)
	case Subscribe:
		return c.Apply(ctx, st, conn, shutdown)
	case Unsubscribe:
		return fmt.Errorf("unsubscribe is unsupported outside of subscribe mode")
	default:
		return fmt.Errorf("command: unhandled type %T", cmd)
	}
}
