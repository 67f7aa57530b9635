package reply

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/YikKhai0303/ChatApp/internal/gemini"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	mu    sync.Mutex
	calls int
	reply func(turns []gemini.Content) (string, error)
	gate  chan struct{}
}

func (f *fakeUpstream) GenerateContent(_ context.Context, turns []gemini.Content) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	if f.reply != nil {
		return f.reply(turns)
	}
	return "reply to " + turns[len(turns)-1].Parts[0].Text, nil
}

func (f *fakeUpstream) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

func newTestCoordinator(up Upstream, opts ...Option) (*Coordinator, *clock) {
	clk := &clock{cur: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(up, opts...)
	c.now = clk.Now
	return c, clk
}

func window(texts ...string) []gemini.Content {
	turns := make([]gemini.Content, 0, len(texts))
	for i, text := range texts {
		role := gemini.RoleUser
		if i%2 == 1 {
			role = gemini.RoleModel
		}
		turns = append(turns, gemini.NewContent(role, text))
	}
	return turns
}

func TestReply_CachesIdenticalWindows(t *testing.T) {
	up := &fakeUpstream{}
	c, _ := newTestCoordinator(up)
	ctx := context.Background()

	first, err := c.Reply(ctx, "global", window("Plan a day in Paris"))
	require.NoError(t, err)

	// within the interval, but served from cache
	second, err := c.Reply(ctx, "global", window("Plan a day in Paris"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, up.Calls())
	assert.Equal(t, Stats{Hits: 1, Misses: 1, UpstreamCalls: 1}, c.Stats())
}

func TestReply_RoleIsPartOfKey(t *testing.T) {
	a, err := Key([]gemini.Content{gemini.NewContent(gemini.RoleUser, "x")})
	require.NoError(t, err)
	b, err := Key([]gemini.Content{gemini.NewContent(gemini.RoleModel, "x")})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestReply_MinimumInterval(t *testing.T) {
	up := &fakeUpstream{}
	c, clk := newTestCoordinator(up)
	ctx := context.Background()

	_, err := c.Reply(ctx, "global", window("one"))
	require.NoError(t, err)

	clk.Advance(500 * time.Millisecond)
	_, err = c.Reply(ctx, "global", window("two"))

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 1500*time.Millisecond, rl.Wait)
	assert.Equal(t, "Too many requests. Please wait 1.5s before next message.", rl.Error())
	assert.Equal(t, 1, up.Calls())

	// the rejected call must not push the next slot further out
	clk.Advance(1500 * time.Millisecond)
	_, err = c.Reply(ctx, "global", window("two"))
	require.NoError(t, err)
	assert.Equal(t, 2, up.Calls())
	assert.Equal(t, uint64(1), c.Stats().RateLimited)
}

func TestReply_ScopesAreIndependent(t *testing.T) {
	up := &fakeUpstream{}
	c, _ := newTestCoordinator(up)
	ctx := context.Background()

	_, err := c.Reply(ctx, ScopeRoom.Key(1, "a"), window("one"))
	require.NoError(t, err)
	_, err = c.Reply(ctx, ScopeRoom.Key(1, "b"), window("two"))
	require.NoError(t, err)

	_, err = c.Reply(ctx, ScopeRoom.Key(1, "a"), window("three"))
	var rl *RateLimitError
	assert.ErrorAs(t, err, &rl)
	assert.Equal(t, 2, up.Calls())
}

func TestScopeKey(t *testing.T) {
	assert.Equal(t, "global", ScopeGlobal.Key(3, "r"))
	assert.Equal(t, "global", Scope("").Key(3, "r"))
	assert.Equal(t, "user:3", ScopeUser.Key(3, "r"))
	assert.Equal(t, "room:r", ScopeRoom.Key(3, "r"))
}

func TestReply_ZeroIntervalDisablesGate(t *testing.T) {
	up := &fakeUpstream{}
	c, _ := newTestCoordinator(up, WithMinInterval(0))
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_, err := c.Reply(ctx, "global", window(text))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, up.Calls())
}

func TestReply_UpstreamFailureIsNotCached(t *testing.T) {
	boom := errors.New("boom")
	up := &fakeUpstream{reply: func([]gemini.Content) (string, error) { return "", boom }}
	c, clk := newTestCoordinator(up)
	ctx := context.Background()

	_, err := c.Reply(ctx, "global", window("hi"))
	assert.ErrorIs(t, err, boom)

	up.reply = func([]gemini.Content) (string, error) { return "   ", nil }
	clk.Advance(2 * time.Second)
	_, err = c.Reply(ctx, "global", window("hi"))
	assert.ErrorIs(t, err, ErrEmptyReply)

	up.reply = nil
	clk.Advance(2 * time.Second)
	text, err := c.Reply(ctx, "global", window("hi"))
	require.NoError(t, err)
	assert.Equal(t, "reply to hi", text)
	assert.Equal(t, 3, up.Calls())
	assert.Equal(t, uint64(2), c.Stats().Errors)
}

func TestReply_EmptyWindow(t *testing.T) {
	c, _ := newTestCoordinator(&fakeUpstream{})
	_, err := c.Reply(context.Background(), "global", nil)
	assert.ErrorIs(t, err, ErrNoTurns)
}

func TestReply_ConcurrentIdenticalWindowsShareOneCall(t *testing.T) {
	up := &fakeUpstream{gate: make(chan struct{})}
	c, _ := newTestCoordinator(up)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Reply(ctx, "global", window("same"))
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(up.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "reply to same", results[i])
	}
	assert.Equal(t, 1, up.Calls())
}

func TestMemoryCache(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v"))
	text, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", text)
	assert.Equal(t, 1, m.size())
}

// requires Redis on localhost:6379
func TestRedisCache(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	rc := NewRedisCache(client, "test:reply:", time.Minute)
	key, err := Key(window("redis window"))
	require.NoError(t, err)
	defer client.Del(ctx, rc.key(key))

	_, ok, err := rc.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rc.Set(ctx, key, "cached"))
	text, ok, err := rc.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cached", text)
}

// the counters are updated with 64-bit atomics, which need 8-byte alignment
// on 32-bit platforms; only the start of an allocation guarantees that
func TestCoordinator_StatsAreFirstField(t *testing.T) {
	var c Coordinator
	assert.Zero(t, unsafe.Offsetof(c.stats))
	assert.Zero(t, unsafe.Sizeof(c.stats)%8)
}
