package client

import (
	"context"
	"errors"
	"io"

	"github.com/fredguile/miniredis/internal/resp"
)

// Message is a published value delivered to a Subscriber.
type Message struct {
	Channel string
	Content []byte
}

// Subscriber is a Client that has entered subscription mode. It can
// no longer run ordinary commands; only NextMessage, Subscribe, and
// Unsubscribe are valid.
type Subscriber struct {
	client   *Client
	channels []string
}

// Channels returns the channels currently subscribed to.
func (s *Subscriber) Channels() []string { return append([]string(nil), s.channels...) }

// NextMessage blocks for the next published message. It returns
// (nil, nil) if the server closed the connection without sending one.
func (s *Subscriber) NextMessage(ctx context.Context) (*Message, error) {
	frame, err := s.client.conn.ReadFrame(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if frame.Kind == resp.KindError {
		return nil, errors.New(frame.Str)
	}
	if frame.Kind != resp.KindArray || len(frame.Array) != 3 {
		return nil, resp.ToError(frame)
	}
	name, ok := bulkOrSimple(frame.Array[0])
	if !ok || name != "message" {
		return nil, resp.ToError(frame)
	}
	channel, ok := bulkOrSimple(frame.Array[1])
	if !ok {
		return nil, resp.ToError(frame)
	}
	content, ok := bulkOrSimple(frame.Array[2])
	if !ok {
		return nil, resp.ToError(frame)
	}
	return &Message{Channel: channel, Content: []byte(content)}, nil
}

// Subscribe adds channels to the subscription.
func (s *Subscriber) Subscribe(ctx context.Context, channels []string) error {
	if err := s.client.subscribeCmd(ctx, channels); err != nil {
		return err
	}
	s.channels = append(s.channels, channels...)
	return nil
}

// Unsubscribe removes channels from the subscription. An empty list
// unsubscribes from everything currently subscribed.
func (s *Subscriber) Unsubscribe(ctx context.Context, channels []string) error {
	f := resp.NewArray()
	f.PushBulk([]byte("unsubscribe"))
	for _, ch := range channels {
		f.PushBulk([]byte(ch))
	}
	if err := s.client.conn.WriteFrame(f); err != nil {
		return err
	}

	expected := len(channels)
	if expected == 0 {
		expected = len(s.channels)
	}

	for i := 0; i < expected; i++ {
		frame, err := s.client.conn.ReadFrame(ctx)
		if err != nil {
			return err
		}
		if frame.Kind != resp.KindArray || len(frame.Array) < 2 {
			return resp.ToError(frame)
		}
		name, ok := bulkOrSimple(frame.Array[0])
		if !ok || name != "unsubscribe" {
			return resp.ToError(frame)
		}
		ch, ok := bulkOrSimple(frame.Array[1])
		if !ok {
			return resp.ToError(frame)
		}
		s.channels = removeChannel(s.channels, ch)
	}
	return nil
}

func removeChannel(channels []string, target string) []string {
	out := channels[:0]
	for _, ch := range channels {
		if ch != target {
			out = append(out, ch)
		}
	}
	return out
}
