// Package ratelimit throttles API requests per client. Counters live either in
// process (token buckets) or in Redis (fixed windows) so several replicas can
// share one budget.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Info describes the outcome of one rate limit check.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Store keeps the counters behind a Limiter.
type Store interface {
	Take(ctx context.Context, key string, rule Rule) (Info, error)
}

// tokenBucket refills continuously at limit/window tokens per second up to
// its burst capacity.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
	}
}

// take refills the bucket and consumes one token when available. It returns
// whether the token was granted, the whole tokens left and when the bucket is
// full again.
func (b *tokenBucket) take(now time.Time) (bool, int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed.Seconds()*b.refillRate)
		b.lastRefill = now
	}

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	full := now
	if missing := b.capacity - b.tokens; missing > 0 {
		full = now.Add(time.Duration(missing / b.refillRate * float64(time.Second)))
	}
	return allowed, int(b.tokens), full
}

// nextToken is how long until one token is available again.
func (b *tokenBucket) nextToken() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
}

// MemoryStore keeps token buckets in process. Buckets idle for longer than
// an hour are dropped by a background sweep.
type MemoryStore struct {
	mu         sync.Mutex
	buckets    map[string]*tokenBucket
	lastAccess map[string]time.Time
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryStore creates an in-process store. A positive cleanupInterval
// starts the idle bucket sweep; Stop ends it.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		buckets:    make(map[string]*tokenBucket),
		lastAccess: make(map[string]time.Time),
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanupLoop(cleanupInterval)
	}
	return s
}

// Take consumes one token from the bucket for key.
func (s *MemoryStore) Take(_ context.Context, key string, rule Rule) (Info, error) {
	now := s.now()

	s.mu.Lock()
	bucket, ok := s.buckets[key]
	if !ok {
		bucket = newTokenBucket(rule.capacity(), float64(rule.Limit)/rule.Window.Seconds(), now)
		s.buckets[key] = bucket
	}
	s.lastAccess[key] = now
	s.mu.Unlock()

	allowed, remaining, reset := bucket.take(now)
	info := Info{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetTime: reset,
	}
	if !allowed {
		info.RetryAfter = bucket.nextToken()
	}
	return info, nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictIdle(s.now().Add(-time.Hour))
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) evictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for key, seen := range s.lastAccess {
		if seen.Before(cutoff) {
			delete(s.buckets, key)
			delete(s.lastAccess, key)
			evicted++
		}
	}
	return evicted
}

func (s *MemoryStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Limiter applies a Config to requests using a Store.
type Limiter struct {
	config *Config
	store  Store
	logger *slog.Logger
}

// NewLimiter creates a limiter. A nil store means an in-process MemoryStore;
// a nil config means DefaultConfig.
func NewLimiter(config *Config, store Store, logger *slog.Logger) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if store == nil {
		store = NewMemoryStore(config.CleanupInterval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{config: config, store: store, logger: logger}
}

// Allow reports whether clientID may call method on path now. Store failures
// let the request through.
func (l *Limiter) Allow(ctx context.Context, clientID, path, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{}
	}

	rule := MatchRule(path, method, l.config.Rules)
	if rule == nil {
		rule = &Rule{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	}
	if rule.Unlimited() {
		return true, Info{Allowed: true}
	}

	info, err := l.store.Take(ctx, rule.key(clientID, method), *rule)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request",
			slog.String("client", clientID),
			slog.String("path", path),
			slog.Any("error", err))
		return true, Info{Allowed: true, Limit: rule.Limit}
	}
	return info.Allowed, info
}

// Stop releases background resources held by the store.
func (l *Limiter) Stop() {
	if s, ok := l.store.(interface{ Stop() }); ok {
		s.Stop()
	}
}
