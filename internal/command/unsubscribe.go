package command

import "github.com/fredguile/miniredis/internal/resp"

// Unsubscribe removes the connection from one or more channels. An
// empty channel list means "all currently subscribed". It is only
// meaningful inside the subscribe-mode loop that Subscribe.Apply
// drives; passing it to the package-level Apply returns an error.
type Unsubscribe struct {
	Channels []string
}

func parseUnsubscribe(p *resp.Parser) (Unsubscribe, error) {
	var channels []string
	for {
		ch, err := p.NextString()
		if err == resp.ErrEndOfStream {
			break
		}
		if err != nil {
			return Unsubscribe{}, err
		}
		channels = append(channels, ch)
	}
	return Unsubscribe{Channels: channels}, nil
}

// Name honors the Command interface.
func (c Unsubscribe) Name() string { return "unsubscribe" }

// IntoFrame converts the command into its wire representation.
func (c Unsubscribe) IntoFrame() resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("unsubscribe"))
	for _, ch := range c.Channels {
		f.PushBulk([]byte(ch))
	}
	return f
}
