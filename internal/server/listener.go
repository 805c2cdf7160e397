package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fredguile/miniredis/internal/store"
)

// MaxBackoff bounds the accept-retry backoff; once the next delay
// would exceed it, a failing accept loop surfaces the error and stops.
const MaxBackoff = 64 * time.Second

// Listener owns the accept loop: admission control via a counting
// semaphore, exponential backoff on transient accept failures, and the
// shutdown broadcast + barrier that lets every in-flight handler drain
// before the process exits.
type Listener struct {
	tcp     net.Listener
	store   *store.Store
	sem     *semaphore.Weighted
	log     *zap.Logger
	metrics *Metrics

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewListener binds no socket itself; it wraps an already-listening
// tcp.Listener, matching how the caller chooses the bind address.
func NewListener(tcp net.Listener, st *store.Store, maxConnections int64, log *zap.Logger, metrics *Metrics) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Listener{
		tcp:      tcp,
		store:    st,
		sem:      semaphore.NewWeighted(maxConnections),
		log:      log,
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}
}

// Run accepts connections until ctx is canceled, then broadcasts
// shutdown to every handler and blocks until all of them return.
func (l *Listener) Run(ctx context.Context) error {
	acceptDone := make(chan error, 1)
	go func() { acceptDone <- l.acceptLoop(ctx) }()

	var acceptErr error
	select {
	case acceptErr = <-acceptDone:
		if acceptErr != nil {
			l.log.Error("failed to accept", zap.Error(acceptErr))
		}
	case <-ctx.Done():
		l.log.Info("shutting down")
	}

	close(l.shutdown)
	l.wg.Wait()
	return acceptErr
}

func (l *Listener) acceptLoop(ctx context.Context) error {
	l.log.Info("accepting inbound connections")
	for {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		conn, err := l.accept(ctx)
		if err != nil {
			l.sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		l.wg.Add(1)
		l.metrics.ConnectionsActive.Inc()
		go l.handle(ctx, conn)
	}
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	defer l.wg.Done()
	defer l.sem.Release(1)
	defer l.metrics.ConnectionsActive.Dec()

	c := NewConnection(conn)
	defer c.Close()

	connLog := l.log.With(
		zap.String("conn_id", uuid.NewString()),
		zap.Stringer("remote", c.RemoteAddr()),
	)
	connLog.Info("connection accepted")

	if err := Serve(ctx, c, l.store, l.shutdown, connLog, l.metrics); err != nil {
		connLog.Error("connection error", zap.Error(err))
	} else {
		connLog.Info("connection closed")
	}
}

// accept retries a failing Accept with exponential backoff: 1, 2, 4,
// ..., 64 seconds. Once a failure's backoff already exceeds
// MaxBackoff, the error is returned instead of retried again.
func (l *Listener) accept(ctx context.Context) (net.Conn, error) {
	backoff := time.Second
	for {
		conn, err := l.tcp.Accept()
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if backoff > MaxBackoff {
			return nil, err
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
}
