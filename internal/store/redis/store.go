package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	verdictPrefix = "trend:verdict:"
	summaryPrefix = "trend:summary:"
	channelPrefix = "pub:trend:"

	defaultSummaryTTL = 30 * time.Minute
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	// OnStateChange, when set, observes breaker transitions.
	OnStateChange func(from, to State)
	// OnFlush, when set, receives the number of held verdicts written back
	// after the breaker closed.
	OnFlush func(count int)
}

// Store keeps the last verdict per symbol and publishes summaries.
//
// Verdict writes go through a circuit breaker. While it is open the latest
// verdict per symbol is held locally, served by Previous, and written once
// the breaker closes again.
type Store struct {
	client *goredis.Client
	cb     *CircuitBreaker

	mu      sync.Mutex
	pending map[string]string // symbol -> verdict awaiting write

	// OnFlush is called after pending verdicts were written back.
	OnFlush func(count int)
}

// New connects to Redis, pings it and returns a Store with a default
// breaker (5 failures, 10s reset).
func New(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info().Str("component", "redis").Str("addr", cfg.Addr).Msg("connected")
	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = cfg.OnStateChange
	s := NewWithClient(client, cb)
	s.OnFlush = cfg.OnFlush
	return s, nil
}

// NewWithClient wraps an existing client. The breaker's OnStateChange is
// chained so pending verdicts flush when it closes.
func NewWithClient(client *goredis.Client, cb *CircuitBreaker) *Store {
	s := &Store{
		client:  client,
		cb:      cb,
		pending: make(map[string]string),
	}
	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go s.flush()
		}
	}
	return s
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the circuit breaker guarding writes.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// Previous returns the stored verdict for symbol. ok is false when none was
// ever saved.
func (s *Store) Previous(ctx context.Context, symbol string) (verdict string, ok bool, err error) {
	s.mu.Lock()
	v, pending := s.pending[symbol]
	s.mu.Unlock()
	if pending {
		return v, true, nil
	}

	err = s.cb.Execute(ctx, func(ctx context.Context) error {
		var getErr error
		verdict, getErr = s.client.Get(ctx, verdictPrefix+symbol).Result()
		if errors.Is(getErr, goredis.Nil) {
			return nil
		}
		ok = getErr == nil
		return getErr
	})
	if err != nil {
		return "", false, fmt.Errorf("redis get verdict %s: %w", symbol, err)
	}
	return verdict, ok, nil
}

// Save stores verdict for symbol. When the breaker is open the verdict is
// kept locally and nil is returned.
func (s *Store) Save(ctx context.Context, symbol, verdict string) error {
	err := s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.client.Set(ctx, verdictPrefix+symbol, verdict, 0).Err()
	})
	if errors.Is(err, ErrCircuitOpen) {
		s.mu.Lock()
		s.pending[symbol] = verdict
		s.mu.Unlock()
		log.Warn().Str("component", "redis").Str("symbol", symbol).Msg("circuit open, verdict held locally")
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set verdict %s: %w", symbol, err)
	}
	return nil
}

// PublishSummary stores payload as the latest summary for symbol and
// publishes it on pub:trend:{symbol}.
func (s *Store) PublishSummary(ctx context.Context, symbol string, payload []byte) error {
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		pipe := s.client.Pipeline()
		pipe.Set(ctx, summaryPrefix+symbol, payload, defaultSummaryTTL)
		pipe.Publish(ctx, channelPrefix+symbol, payload)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Channel returns the pub/sub channel summaries for symbol are published on.
func Channel(symbol string) string { return channelPrefix + symbol }

// Subscribe returns a subscription to summaries published for symbol.
func (s *Store) Subscribe(ctx context.Context, symbol string) *goredis.PubSub {
	return s.client.Subscribe(ctx, channelPrefix+symbol)
}

// PendingCount returns the number of verdicts waiting to be written.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Store) flush() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	toFlush := s.pending
	s.pending = make(map[string]string)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	flushed := 0
	for symbol, verdict := range toFlush {
		if err := s.client.Set(ctx, verdictPrefix+symbol, verdict, 0).Err(); err != nil {
			log.Error().Str("component", "redis").Str("symbol", symbol).Err(err).Msg("flush verdict failed")
			s.mu.Lock()
			if _, newer := s.pending[symbol]; !newer {
				s.pending[symbol] = verdict
			}
			s.mu.Unlock()
			continue
		}
		flushed++
	}

	log.Info().Str("component", "redis").Int("count", flushed).Msg("flushed pending verdicts")
	if s.OnFlush != nil {
		s.OnFlush(flushed)
	}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-process verdict store for tests and runs without Redis.
type MemoryStore struct {
	mu       sync.RWMutex
	verdicts map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{verdicts: make(map[string]string)}
}

// Previous returns the stored verdict for symbol.
func (m *MemoryStore) Previous(_ context.Context, symbol string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.verdicts[symbol]
	return v, ok, nil
}

// Save stores verdict for symbol.
func (m *MemoryStore) Save(_ context.Context, symbol, verdict string) error {
	m.mu.Lock()
	m.verdicts[symbol] = verdict
	m.mu.Unlock()
	return nil
}
