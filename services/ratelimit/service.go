package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the token-bucket parameters applied to every key.
type Config struct {
	RequestsPerMinute int           // Sustained rate; zero or less disables limiting
	Burst             int           // Bucket size
	IdleTTL           time.Duration // Buckets unused for this long are evicted
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 10,
		Burst:             5,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimitService keeps one token bucket per key (client IP for the
// credential endpoints) in process memory.
type RateLimitService struct {
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Option configures a RateLimitService.
type Option func(*RateLimitService)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(s *RateLimitService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(cfg Config, logger *zap.Logger, opts ...Option) *RateLimitService {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultConfig().IdleTTL
	}
	s := &RateLimitService{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether limiting is active.
func (s *RateLimitService) Enabled() bool {
	return s.cfg.RequestsPerMinute > 0
}

// CheckLimit consumes one token for key.
func (s *RateLimitService) CheckLimit(key string) RateLimitResult {
	if !s.Enabled() {
		return RateLimitResult{Allowed: true}
	}

	now := s.now()

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		every := time.Minute / time.Duration(s.cfg.RequestsPerMinute)
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), s.cfg.Burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	if b.lim.AllowN(now, 1) {
		return RateLimitResult{Allowed: true}
	}

	r := b.lim.ReserveN(now, 1)
	retry := r.DelayFrom(now)
	r.CancelAt(now)

	s.logger.Debug("rate limit exceeded", zap.String("key", key), zap.Duration("retry_after", retry))
	return RateLimitResult{Allowed: false, RetryAfter: retry}
}

// CleanupIdle evicts buckets not used within IdleTTL and returns how many were removed.
func (s *RateLimitService) CleanupIdle() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker evicts idle buckets every interval until ctx is cancelled.
func (s *RateLimitService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("rate limit cleanup worker stopped")
				return
			case <-ticker.C:
				if removed := s.CleanupIdle(); removed > 0 {
					s.logger.Debug("evicted idle rate limit buckets", zap.Int("count", removed))
				}
			}
		}
	}()
}

// Size returns the number of tracked keys.
func (s *RateLimitService) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
