// Package redislock serializes merge runs per owner across processes.
//
// A lock is a Redis key holding a random token, set with SET NX PX so it
// expires if the holder dies. Unlock deletes the key only when it still holds
// the caller's token, so an expired holder cannot release a successor's lock.
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/eventmerge/internal/engine"
)

// KeyPrefix namespaces lock keys.
const KeyPrefix = "eventmerge:lock:owner:"

const (
	DefaultTTL   = 30 * time.Second
	DefaultRetry = 50 * time.Millisecond

	unlockTimeout = 5 * time.Second
)

// unlockScript deletes KEYS[1] only if it still holds ARGV[1].
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a Redis-backed engine.Locker.
type Locker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

var _ engine.Locker = (*Locker)(nil)

// Option configures a Locker.
type Option func(*Locker)

// WithTTL sets how long a lock survives without being released.
// It must exceed the longest expected merge.
//
// Default: 30s
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) { l.ttl = ttl }
}

// WithRetry sets the polling interval while waiting for a held lock.
//
// Default: 50ms
func WithRetry(retry time.Duration) Option {
	return func(l *Locker) { l.retry = retry }
}

// WithLogger sets the logger used to report failed releases.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) { l.logger = logger }
}

// New creates a Locker on an existing client.
func New(client redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client: client,
		ttl:    DefaultTTL,
		retry:  DefaultRetry,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewFromURL parses a redis:// URL and creates a Locker with its own client.
// The caller owns the client and should Close the Locker when done.
func NewFromURL(url string, opts ...Option) (*Locker, error) {
	redisOpt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(redisOpt), opts...), nil
}

// Close closes the underlying client.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Lock implements engine.Locker. It polls every retry interval until the key
// is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, ownerID string) (func(), error) {
	key := KeyPrefix + ownerID
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, token) })
	}, nil
}

// release runs on its own context so a cancelled merge still frees the key.
func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
	defer cancel()

	n, err := unlockScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		l.logger.Warn("redis lock release failed", "key", key, "error", err)
		return
	}
	if n == 0 {
		l.logger.Warn("redis lock expired before release", "key", key)
	}
}
