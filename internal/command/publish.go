package command

import (
	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

// Publish posts a message to a channel.
type Publish struct {
	Channel string
	Message []byte
}

func parsePublish(p *resp.Parser) (Publish, error) {
	channel, err := p.NextString()
	if err != nil {
		return Publish{}, err
	}
	message, err := p.NextBytes()
	if err != nil {
		return Publish{}, err
	}
	return Publish{Channel: channel, Message: message}, nil
}

// Name honors the Command interface.
func (c Publish) Name() string { return "publish" }

// Apply responds with the number of receivers that accepted message.
func (c Publish) Apply(st *store.Store, conn Conn) error {
	count := st.Publish(c.Channel, c.Message)
	return conn.WriteFrame(resp.Integer(uint64(count)))
}

// IntoFrame converts the command into its wire representation.
func (c Publish) IntoFrame() resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("publish"))
	f.PushBulk([]byte(c.Channel))
	f.PushBulk(c.Message)
	return f
}
