package command

import "github.com/fredguile/miniredis/internal/resp"

// Unknown stands in for any verb the server does not recognize. It is
// not a real command the protocol defines; the server synthesizes one
// so unrecognized verbs answer with an error rather than closing the
// connection.
type Unknown struct {
	CommandName string
}

// Name honors the Command interface.
func (c Unknown) Name() string { return c.CommandName }

// Apply responds with an "unknown command" error frame.
func (c Unknown) Apply(conn Conn) error {
	return conn.WriteFrame(resp.Err("ERR unknown command '" + c.CommandName + "'"))
}
