// Package reply coordinates assistant reply requests: identical conversation
// windows are answered from a cache, and upstream calls are throttled by a
// minimum-interval gate bound to a scope (the whole process, one user or one
// chatroom).
package reply

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YikKhai0303/ChatApp/internal/gemini"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// FallbackReply is stored as the assistant's answer whenever a reply could
// not be obtained.
const FallbackReply = "Sorry, I couldn't get a reply from the AI."

const DefaultMinInterval = 2 * time.Second

var (
	ErrNoTurns    = errors.New("conversation window is empty")
	ErrEmptyReply = errors.New("upstream returned an empty reply")
)

// RateLimitError is returned when a call arrives before the scope's minimum
// interval has elapsed. Nothing is queued.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Too many requests. Please wait %.1fs before next message.", e.Wait.Seconds())
}

// Upstream produces a reply for a conversation window.
type Upstream interface {
	GenerateContent(ctx context.Context, turns []gemini.Content) (string, error)
}

type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeUser   Scope = "user"
	ScopeRoom   Scope = "room"
)

// Key returns the gate key for a request made by ownerID in chatroomID.
func (s Scope) Key(ownerID uint, chatroomID string) string {
	switch s {
	case ScopeUser:
		return fmt.Sprintf("user:%d", ownerID)
	case ScopeRoom:
		return "room:" + chatroomID
	default:
		return string(ScopeGlobal)
	}
}

type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	UpstreamCalls uint64 `json:"upstream_calls"`
	RateLimited   uint64 `json:"rate_limited"`
	Errors        uint64 `json:"errors"`
}

type Coordinator struct {
	// first, so the atomically updated counters stay 64-bit aligned on 32-bit platforms
	stats Stats

	upstream Upstream
	cache    Cache
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	gates map[string]*rate.Limiter

	group singleflight.Group
}

type Option func(*Coordinator)

func WithCache(c Cache) Option {
	return func(co *Coordinator) {
		co.cache = c
	}
}

// WithMinInterval sets the gate interval; zero disables the gate.
func WithMinInterval(d time.Duration) Option {
	return func(co *Coordinator) {
		co.interval = d
	}
}

func New(upstream Upstream, opts ...Option) *Coordinator {
	c := &Coordinator{
		upstream: upstream,
		cache:    NewMemoryCache(),
		interval: DefaultMinInterval,
		now:      time.Now,
		gates:    map[string]*rate.Limiter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key is the exact structural serialization of the ordered window.
func Key(turns []gemini.Content) (string, error) {
	b, err := json.Marshal(turns)
	if err != nil {
		return "", errors.Wrap(err, "serialize window")
	}
	return string(b), nil
}

// Reply returns the cached reply for turns, or asks the upstream if the gate
// for scopeKey admits a call. Concurrent identical windows share one call.
func (c *Coordinator) Reply(ctx context.Context, scopeKey string, turns []gemini.Content) (string, error) {
	if len(turns) == 0 {
		return "", ErrNoTurns
	}

	key, err := Key(turns)
	if err != nil {
		return "", err
	}

	text, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		log.Printf("reply: cache get failed: %v", err)
	}
	if ok {
		atomic.AddUint64(&c.stats.Hits, 1)
		return text, nil
	}
	atomic.AddUint64(&c.stats.Misses, 1)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a call that finished between our lookup and Do has filled the cache
		if text, ok, _ := c.cache.Get(ctx, key); ok {
			return text, nil
		}
		if err := c.admit(scopeKey); err != nil {
			atomic.AddUint64(&c.stats.RateLimited, 1)
			return "", err
		}

		atomic.AddUint64(&c.stats.UpstreamCalls, 1)
		text, err := c.upstream.GenerateContent(ctx, turns)
		if err != nil {
			atomic.AddUint64(&c.stats.Errors, 1)
			return "", errors.Wrap(err, "upstream")
		}
		if strings.TrimSpace(text) == "" {
			atomic.AddUint64(&c.stats.Errors, 1)
			return "", ErrEmptyReply
		}

		if err := c.cache.Set(ctx, key, text); err != nil {
			log.Printf("reply: cache set failed: %v", err)
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// admit consumes the scope's single token or reports how long to wait.
func (c *Coordinator) admit(scopeKey string) error {
	if c.interval <= 0 {
		return nil
	}

	c.mu.Lock()
	lim, ok := c.gates[scopeKey]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.interval), 1)
		c.gates[scopeKey] = lim
	}
	c.mu.Unlock()

	now := c.now()
	r := lim.ReserveN(now, 1)
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return &RateLimitError{Wait: d}
	}
	return nil
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Hits:          atomic.LoadUint64(&c.stats.Hits),
		Misses:        atomic.LoadUint64(&c.stats.Misses),
		UpstreamCalls: atomic.LoadUint64(&c.stats.UpstreamCalls),
		RateLimited:   atomic.LoadUint64(&c.stats.RateLimited),
		Errors:        atomic.LoadUint64(&c.stats.Errors),
	}
}
