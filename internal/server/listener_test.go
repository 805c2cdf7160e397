package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fredguile/miniredis/internal/resp"
	"github.com/fredguile/miniredis/internal/store"
)

func startTestListener(t *testing.T) (addr string, shutdown func()) {
	t.Helper()

	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	st := store.New(zap.NewNop())
	l := NewListener(tcp, st, 10, zap.NewNop(), NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(runDone)
	}()

	return tcp.Addr().String(), func() {
		cancel()
		<-runDone
		st.Close()
	}
}

func TestListenerServesPingOverRealSocket(t *testing.T) {
	addr, shutdown := startTestListener(t)
	defer shutdown()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	c := NewConnection(conn)
	f := resp.NewArray()
	f.PushBulk([]byte("ping"))
	require.NoError(t, c.WriteFrame(f))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := c.ReadFrame(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(resp.Simple("PONG")))
}

func TestListenerDefersBeyondMaxConnections(t *testing.T) {
	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	st := store.New(zap.NewNop())
	defer st.Close()
	l := NewListener(tcp, st, 1, zap.NewNop(), NewMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	first, err := net.DialTimeout("tcp", tcp.Addr().String(), time.Second)
	require.NoError(t, err)
	defer first.Close()

	// The first connection holds the single admission slot; a second
	// client can still complete its TCP handshake (the OS backlog
	// accepts it) but the server won't call Accept for it until a slot
	// frees, so it receives no response to its PING within a short
	// deadline.
	second, err := net.DialTimeout("tcp", tcp.Addr().String(), time.Second)
	require.NoError(t, err)
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	c := NewConnection(second)
	f := resp.NewArray()
	f.PushBulk([]byte("ping"))
	require.NoError(t, c.WriteFrame(f))

	_, err = c.ReadFrame(context.Background())
	assert.Error(t, err)
}

func TestCommandsTotalMetricIncrementsPerVerb(t *testing.T) {
	st := store.New(zap.NewNop())
	defer st.Close()
	metrics := NewMetrics()

	client, srv := net.Pipe()
	defer client.Close()

	srvConn := NewConnection(srv)
	go Serve(context.Background(), srvConn, st, nil, zap.NewNop(), metrics)

	clientConn := NewConnection(client)
	f := resp.NewArray()
	f.PushBulk([]byte("ping"))
	require.NoError(t, clientConn.WriteFrame(f))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := clientConn.ReadFrame(ctx)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CommandsTotal.WithLabelValues("ping")))
}
