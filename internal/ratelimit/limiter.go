// Package ratelimit is a single-process fixed-window request counter.
//
// Counters live in a sharded table: each shard has its own mutex and is a
// size-capped LRU, so one key's read-check-increment is atomic while
// different keys rarely contend. Expired windows are removed by Sweep, which
// Serve runs periodically under a supervisor. Counts are not shared between
// processes; N instances admit up to N times the configured maximum.
package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/thejerf/abtime"

	"github.com/GoliathLabs/applica/internal/logging"
	"github.com/GoliathLabs/applica/internal/telemetry"
)

const (
	shardCount = 32

	defaultMaxEntries    = 100_000
	defaultSweepInterval = time.Minute
)

type entry struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, *entry]
}

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed    bool
	Count      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Options configures a Limiter.
type Options struct {
	Window        time.Duration
	Max           int
	MaxEntries    int
	SweepInterval time.Duration
	Clock         abtime.AbstractTime
	Metrics       *telemetry.Metrics
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	window        time.Duration
	max           int
	sweepInterval time.Duration
	clock         abtime.AbstractTime
	metrics       *telemetry.Metrics
	shards        [shardCount]*shard
}

// New builds a limiter. Window and Max must be positive.
func New(opts Options) (*Limiter, error) {
	if opts.Window <= 0 {
		return nil, errors.New("rate limit window must be positive")
	}
	if opts.Max <= 0 {
		return nil, errors.New("rate limit max must be positive")
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = abtime.NewRealTime()
	}

	perShard := opts.MaxEntries / shardCount
	if perShard < 1 {
		perShard = 1
	}

	l := &Limiter{
		window:        opts.Window,
		max:           opts.Max,
		sweepInterval: opts.SweepInterval,
		clock:         opts.Clock,
		metrics:       opts.Metrics,
	}
	for i := range l.shards {
		lru, err := simplelru.NewLRU[string, *entry](perShard, nil)
		if err != nil {
			return nil, err
		}
		l.shards[i] = &shard{entries: lru}
	}
	return l, nil
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// Allow counts one request for key. A window starts on the first request and
// is replaced once now is past its reset instant. Rejected requests still
// count.
func (l *Limiter) Allow(key string) Decision {
	now := l.clock.Now()
	s := l.shardFor(key)

	s.mu.Lock()
	e, ok := s.entries.Get(key)
	if !ok || now.After(e.resetAt) {
		e = &entry{resetAt: now.Add(l.window)}
		s.entries.Add(key, e)
	}
	e.count++
	d := Decision{
		Allowed: e.count <= l.max,
		Count:   e.count,
		ResetAt: e.resetAt,
	}
	s.mu.Unlock()

	if !d.Allowed {
		d.RetryAfter = d.ResetAt.Sub(now)
	}
	return d
}

// Sweep removes every entry whose window has ended and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for _, key := range s.entries.Keys() {
			if e, ok := s.entries.Peek(key); ok && now.After(e.resetAt) {
				s.entries.Remove(key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live counters.
func (l *Limiter) Len() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += s.entries.Len()
		s.mu.Unlock()
	}
	return n
}

// Serve sweeps expired entries every sweep interval until ctx is done.
// It satisfies suture.Service.
func (l *Limiter) Serve(ctx context.Context) error {
	log := logging.FromContext(ctx).WithField(logging.FieldComponent, "ratelimit")
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := l.Sweep()
			l.metrics.RateLimitSweep(ctx, removed)
			if removed > 0 {
				log.WithField("removed", removed).Debug("swept expired rate limit windows")
			}
		}
	}
}

func (l *Limiter) String() string {
	return "ratelimit-sweeper"
}
