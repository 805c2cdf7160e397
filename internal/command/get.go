package command

import (
	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

// Get reads the value of a key.
type Get struct {
	Key string
}

func parseGet(p *resp.Parser) (Get, error) {
	key, err := p.NextString()
	if err != nil {
		return Get{}, err
	}
	return Get{Key: key}, nil
}

// Name honors the Command interface.
func (c Get) Name() string { return "get" }

// Apply responds Bulk(value) if key is present, Null otherwise.
func (c Get) Apply(st *store.Store, conn Conn) error {
	var response resp.Frame
	if value, ok := st.Get(c.Key); ok {
		response = resp.BulkBytes(value)
	} else {
		response = resp.Null()
	}
	return conn.WriteFrame(response)
}

// IntoFrame converts the command into its wire representation.
func (c Get) IntoFrame() resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("get"))
	f.PushBulk([]byte(c.Key))
	return f
}
