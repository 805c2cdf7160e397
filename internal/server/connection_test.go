package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredguile/miniredis/internal/resp"
)

func TestWriteFrameThenReadFrameRoundTrip(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	clientConn := NewConnection(client)
	srvConn := NewConnection(srv)

	go func() {
		f := resp.NewArray()
		f.PushBulk([]byte("ping"))
		clientConn.WriteFrame(f)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := srvConn.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.KindArray, got.Kind)
	assert.Equal(t, []byte("ping"), got.Array[0].Bulk)
}

func TestReadFrameReturnsEOFOnCleanClose(t *testing.T) {
	client, srv := net.Pipe()
	srvConn := NewConnection(srv)

	go client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := srvConn.ReadFrame(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameRespectsContextCancellation(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	srvConn := NewConnection(srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := srvConn.ReadFrame(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("ReadFrame did not respect context cancellation")
	}
}
