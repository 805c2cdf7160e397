// Package store implements the server's shared key/value state: a
// single-mutex map with per-key TTL eviction and pub/sub fan-out.
package store

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fredguile/miniredis/internal/pubsub"
)

type entry struct {
	data      []byte
	expiresAt time.Time // zero value means no expiry
	hasExpiry bool
}

type expiryKey struct {
	when time.Time
	key  string
}

// Store is the server's shared key/value state. A background task
// evicts expired entries for the Store's lifetime; call Close to stop
// it and release its goroutine.
type Store struct {
	log *zap.Logger

	mu          sync.Mutex
	entries     map[string]entry
	expirations []expiryKey // kept sorted by (when, key)
	shutdown    bool

	pubsub *pubsub.Registry

	// pending is a capacity-1 notify signal: a send here must never be
	// lost between the mutex unlock and the eviction task's wait, so it
	// is filled non-blockingly by the signaler and the buffered value
	// stays there until the eviction task's next receive consumes it.
	pending chan struct{}
	done    chan struct{}

	onSweep   func()
	onPublish func(count int)
}

// Option configures optional Store behavior, such as metrics hooks.
type Option func(*Store)

// WithEvictionHook calls fn once per eviction task wakeup, after any
// expired entries for that wakeup have been removed.
func WithEvictionHook(fn func()) Option {
	return func(s *Store) { s.onSweep = fn }
}

// WithPublishHook calls fn after every Publish with the number of
// receivers that accepted the message.
func WithPublishHook(fn func(count int)) Option {
	return func(s *Store) { s.onPublish = fn }
}

// New allocates a Store and starts its eviction task.
func New(log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		log:     log,
		entries: make(map[string]entry),
		pubsub:  pubsub.New(),
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.purgeLoop()
	return s
}

// Get returns the value stored for key, if present. Expiry is not
// checked here: an expired entry is returned until the eviction task
// removes it.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Set stores value under key with an optional TTL. ttl nil means no
// expiration option was given, so the key never expires; a non-nil ttl
// expires the key after that duration even when the duration is zero
// (an immediate expiry), matching the wire protocol's EX/PX options.
// Overwrites any prior entry and its expiration bookkeeping.
func (s *Store) Set(key string, value []byte, ttl *time.Duration) {
	s.mu.Lock()

	var expiresAt time.Time
	hasExpiry := ttl != nil
	notify := false
	if hasExpiry {
		expiresAt = time.Now().Add(*ttl)
		next, ok := s.nextExpiration()
		notify = !ok || expiresAt.Before(next)
	}

	prev, hadPrev := s.entries[key]
	s.entries[key] = entry{data: value, expiresAt: expiresAt, hasExpiry: hasExpiry}

	if hadPrev && prev.hasExpiry {
		s.removeExpiration(prev.expiresAt, key)
	}
	if hasExpiry {
		s.insertExpiration(expiresAt, key)
	}

	s.mu.Unlock()

	if notify {
		s.signal()
	}
}

// Subscribe returns a receiver for channel, creating its topic on
// first use.
func (s *Store) Subscribe(channel string) *pubsub.Receiver {
	return s.pubsub.Subscribe(channel)
}

// Publish broadcasts message to channel and returns the number of
// receivers that accepted it.
func (s *Store) Publish(channel string, message []byte) int {
	count := s.pubsub.Publish(channel, message)
	if s.onPublish != nil {
		s.onPublish(count)
	}
	return count
}

// Close signals the eviction task to shut down and waits for it to
// exit.
func (s *Store) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.signal()
	<-s.done
	return nil
}

// signal delivers one pending wakeup without blocking and without
// losing a concurrent signal: if the buffered slot is already full the
// eviction task has not yet consumed the previous notification, so
// this one is redundant.
func (s *Store) signal() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *Store) nextExpiration() (time.Time, bool) {
	if len(s.expirations) == 0 {
		return time.Time{}, false
	}
	return s.expirations[0].when, true
}

func (s *Store) insertExpiration(when time.Time, key string) {
	k := expiryKey{when: when, key: key}
	i := sort.Search(len(s.expirations), func(i int) bool {
		return expiryKeyLess(k, s.expirations[i]) || expiryKeyEqual(k, s.expirations[i])
	})
	s.expirations = append(s.expirations, expiryKey{})
	copy(s.expirations[i+1:], s.expirations[i:])
	s.expirations[i] = k
}

func (s *Store) removeExpiration(when time.Time, key string) {
	k := expiryKey{when: when, key: key}
	for i, e := range s.expirations {
		if expiryKeyEqual(e, k) {
			s.expirations = append(s.expirations[:i], s.expirations[i+1:]...)
			return
		}
	}
}

func expiryKeyLess(a, b expiryKey) bool {
	if !a.when.Equal(b.when) {
		return a.when.Before(b.when)
	}
	return a.key < b.key
}

func expiryKeyEqual(a, b expiryKey) bool {
	return a.when.Equal(b.when) && a.key == b.key
}

// purgeLoop runs for the Store's lifetime, removing expired entries
// and sleeping until either the next expiry or a signal.
func (s *Store) purgeLoop() {
	defer close(s.done)
	for {
		when, wait := s.purgeExpired()
		if s.onSweep != nil {
			s.onSweep()
		}
		if !wait {
			s.log.Debug("eviction task shut down")
			return
		}

		if when.IsZero() {
			<-s.pending
			continue
		}

		timer := time.NewTimer(time.Until(when))
		select {
		case <-timer.C:
		case <-s.pending:
			timer.Stop()
		}
	}
}

// purgeExpired removes every entry whose expiry has passed. It returns
// the next pending expiry (zero value if none) and whether the loop
// should keep waiting (false once shutdown is observed).
func (s *Store) purgeExpired() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return time.Time{}, false
	}

	now := time.Now()
	for len(s.expirations) > 0 && !s.expirations[0].when.After(now) {
		key := s.expirations[0].key
		delete(s.entries, key)
		s.expirations = s.expirations[1:]
	}

	if len(s.expirations) == 0 {
		return time.Time{}, true
	}
	return s.expirations[0].when, true
}
