package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

// fakeConn is an in-memory Conn that records every frame written to
// it and serves a fixed queue of frames to ReadFrame.
type fakeConn struct {
	written []resp.Frame
	toRead  []resp.Frame
}

func (c *fakeConn) WriteFrame(f resp.Frame) error {
	c.written = append(c.written, f)
	return nil
}

func (c *fakeConn) ReadFrame(ctx context.Context) (resp.Frame, error) {
	if len(c.toRead) == 0 {
		<-ctx.Done()
		return resp.Frame{}, ctx.Err()
	}
	f := c.toRead[0]
	c.toRead = c.toRead[1:]
	return f, nil
}

func buildCommand(parts ...string) resp.Frame {
	f := resp.NewArray()
	for _, p := range parts {
		f.PushBulk([]byte(p))
	}
	return f
}

func TestFromFrameParsesKnownVerbsCaseInsensitively(t *testing.T) {
	cmd, err := FromFrame(buildCommand("GET", "key"))
	require.NoError(t, err)
	assert.Equal(t, Get{Key: "key"}, cmd)
}

func TestFromFrameYieldsUnknownForUnrecognizedVerb(t *testing.T) {
	cmd, err := FromFrame(buildCommand("frobnicate", "x"))
	require.NoError(t, err)
	assert.Equal(t, "frobnicate", cmd.Name())
	_, ok := cmd.(Unknown)
	assert.True(t, ok)
}

func TestFromFrameRejectsTrailingArguments(t *testing.T) {
	_, err := FromFrame(buildCommand("ping", "hello", "extra"))
	assert.Error(t, err)
}

func TestGetApplyRespondsNullForMissingKey(t *testing.T) {
	st := store.New(zap.NewNop())
	defer st.Close()

	conn := &fakeConn{}
	require.NoError(t, Get{Key: "missing"}.Apply(st, conn))
	require.Len(t, conn.written, 1)
	assert.Equal(t, resp.KindNull, conn.written[0].Kind)
}

func TestSetThenGetRoundTrip(t *testing.T) {
	st := store.New(zap.NewNop())
	defer st.Close()
	conn := &fakeConn{}

	require.NoError(t, Set{Key: "k", Value: []byte("v")}.Apply(st, conn))
	require.NoError(t, Get{Key: "k"}.Apply(st, conn))

	require.Len(t, conn.written, 2)
	assert.True(t, conn.written[0].Equal(resp.Simple("OK")))
	assert.Equal(t, []byte("v"), conn.written[1].Bulk)
}

func TestParseSetWithPXOption(t *testing.T) {
	frame := buildCommand("set", "k", "v")
	frame.PushBulk([]byte("PX"))
	frame.PushInt(1000)

	cmd, err := FromFrame(frame)
	require.NoError(t, err)
	set, ok := cmd.(Set)
	require.True(t, ok)
	assert.Equal(t, time.Second, set.TTL)
}

func TestParseSetRejectsUnsupportedOption(t *testing.T) {
	frame := buildCommand("set", "k", "v", "XX")
	_, err := FromFrame(frame)
	assert.Error(t, err)
}

func TestPingWithoutMessageRespondsPong(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, Ping{}.Apply(conn))
	require.Len(t, conn.written, 1)
	assert.True(t, conn.written[0].Equal(resp.Simple("PONG")))
}

func TestPingWithMessageEchoes(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, Ping{Msg: []byte("hi"), HasMsg: true}.Apply(conn))
	require.Len(t, conn.written, 1)
	assert.Equal(t, []byte("hi"), conn.written[0].Bulk)
}

func TestPublishWithNoSubscribersRespondsZero(t *testing.T) {
	st := store.New(zap.NewNop())
	defer st.Close()
	conn := &fakeConn{}

	require.NoError(t, Publish{Channel: "news", Message: []byte("hi")}.Apply(st, conn))
	require.Len(t, conn.written, 1)
	assert.Equal(t, uint64(0), conn.written[0].Int)
}

func TestUnsubscribeOutsideSubscribeModeIsRejected(t *testing.T) {
	st := store.New(zap.NewNop())
	defer st.Close()
	conn := &fakeConn{}

	err := Apply(context.Background(), Unsubscribe{}, st, conn, nil)
	assert.Error(t, err)
}

func TestUnknownCommandRespondsWithError(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, Unknown{CommandName: "frobnicate"}.Apply(conn))
	require.Len(t, conn.written, 1)
	assert.Equal(t, resp.KindError, conn.written[0].Kind)
}
