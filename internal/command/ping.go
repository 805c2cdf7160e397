package command

import "github.com/fredguile/miniredis/internal/resp"

// Ping returns PONG if no argument is given, otherwise a copy of the
// argument.
type Ping struct {
	Msg    []byte
	HasMsg bool
}

func parsePing(p *resp.Parser) (Ping, error) {
	msg, err := p.NextBytes()
	switch err {
	case nil:
		return Ping{Msg: msg, HasMsg: true}, nil
	case resp.ErrEndOfStream:
		return Ping{}, nil
	default:
		return Ping{}, err
	}
}

// Name honors the Command interface.
func (c Ping) Name() string { return "ping" }

// Apply responds Simple("PONG") or Bulk(msg).
func (c Ping) Apply(conn Conn) error {
	if !c.HasMsg {
		return conn.WriteFrame(resp.Simple("PONG"))
	}
	return conn.WriteFrame(resp.BulkBytes(c.Msg))
}

// IntoFrame converts the command into its wire representation.
func (c Ping) IntoFrame() resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("ping"))
	if c.HasMsg {
		f.PushBulk(c.Msg)
	}
	return f
}
