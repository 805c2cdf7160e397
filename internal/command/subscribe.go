package command

import (
	"context"
	"errors"
	"io"

	"github.com/fredguile/miniredis/internal/pubsub"
	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

// Subscribe enters the connection into subscribe mode, listening on
// one or more channels.
type Subscribe struct {
	Channels []string
}

func parseSubscribe(p *resp.Parser) (Subscribe, error) {
	first, err := p.NextString()
	if err != nil {
		return Subscribe{}, err
	}
	channels := []string{first}
	for {
		ch, err := p.NextString()
		if err == resp.ErrEndOfStream {
			break
		}
		if err != nil {
			return Subscribe{}, err
		}
		channels = append(channels, ch)
	}
	return Subscribe{Channels: channels}, nil
}

// Name honors the Command interface.
func (c Subscribe) Name() string { return "subscribe" }

// IntoFrame converts the command into its wire representation.
func (c Subscribe) IntoFrame() resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("subscribe"))
	for _, ch := range c.Channels {
		f.PushBulk([]byte(ch))
	}
	return f
}

type subMsg struct {
	channel string
	msg     pubsub.Message
}

type readResult struct {
	frame resp.Frame
	err   error
}

// Apply runs the subscribe-mode state machine for the remainder of the
// connection's lifetime: it materializes pending subscriptions, fans
// in messages from every subscribed channel, honors further
// SUBSCRIBE/UNSUBSCRIBE requests from the client, and exits cleanly on
// shutdown or client disconnect. Any other verb received while
// subscribed - including PING - is answered as Unknown, matching the
// reference server's behavior of routing every frame through the same
// command dispatch.
func (c Subscribe) Apply(ctx context.Context, st *store.Store, conn Conn, shutdown <-chan struct{}) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	receivers := make(map[string]*pubsub.Receiver)
	pumpCancels := make(map[string]context.CancelFunc)
	defer func() {
		for _, c := range pumpCancels {
			c()
		}
		for _, r := range receivers {
			r.Close()
		}
	}()

	messages := make(chan subMsg, 16)
	frames := make(chan readResult)
	go func() {
		for {
			f, err := conn.ReadFrame(loopCtx)
			select {
			case frames <- readResult{frame: f, err: err}:
			case <-loopCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	pending := c.Channels
	for {
		for _, channel := range pending {
			if _, already := receivers[channel]; !already {
				recv := st.Subscribe(channel)
				receivers[channel] = recv

				pumpCtx, pumpCancel := context.WithCancel(loopCtx)
				pumpCancels[channel] = pumpCancel
				go pumpChannel(pumpCtx, channel, recv, messages)
			}

			if err := conn.WriteFrame(subscribeFrame(channel, len(receivers))); err != nil {
				return err
			}
		}
		pending = nil

		select {
		case m := <-messages:
			if m.msg.Lagged {
				// a lagged receiver has resynchronized to the oldest
				// still-available message; missed ones are not redelivered.
				continue
			}
			if err := conn.WriteFrame(messageFrame(m.channel, m.msg.Data)); err != nil {
				return err
			}

		case r := <-frames:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return nil
				}
				return r.err
			}

			cmd, err := FromFrame(r.frame)
			if err != nil {
				return err
			}

			switch sc := cmd.(type) {
			case Subscribe:
				pending = append(pending, sc.Channels...)

			case Unsubscribe:
				channels := sc.Channels
				if len(channels) == 0 {
					for channel := range receivers {
						channels = append(channels, channel)
					}
				}
				for _, channel := range channels {
					if pumpCancel, ok := pumpCancels[channel]; ok {
						pumpCancel()
						delete(pumpCancels, channel)
					}
					if recv, ok := receivers[channel]; ok {
						recv.Close()
						delete(receivers, channel)
					}
					if err := conn.WriteFrame(unsubscribeFrame(channel, len(receivers))); err != nil {
						return err
					}
				}

			default:
				unknown := Unknown{CommandName: cmd.Name()}
				if err := unknown.Apply(conn); err != nil {
					return err
				}
			}

		case <-shutdown:
			return nil
		}
	}
}

func pumpChannel(ctx context.Context, channel string, recv *pubsub.Receiver, out chan<- subMsg) {
	for {
		msg, err := recv.Recv(ctx)
		if err != nil {
			return
		}
		select {
		case out <- subMsg{channel: channel, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func subscribeFrame(channel string, count int) resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("subscribe"))
	f.PushBulk([]byte(channel))
	f.PushInt(uint64(count))
	return f
}

func unsubscribeFrame(channel string, count int) resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("unsubscribe"))
	f.PushBulk([]byte(channel))
	f.PushInt(uint64(count))
	return f
}

func messageFrame(channel string, data []byte) resp.Frame {
	f := resp.NewArray()
	f.PushBulk([]byte("message"))
	f.PushBulk([]byte(channel))
	f.PushBulk(data)
	return f
}
