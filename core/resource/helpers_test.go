package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeLoader counts hook calls and can block, fail or panic on Load.
type fakeLoader struct {
	size int64

	loads   atomic.Int32
	unloads atomic.Int32

	loadErr     error
	unloadErr   error
	panicOnLoad bool

	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func newFakeLoader(size int64) *fakeLoader {
	return &fakeLoader{size: size}
}

// blocking makes Load wait until release is called.
func (l *fakeLoader) blocking() *fakeLoader {
	l.block = make(chan struct{})
	l.started = make(chan struct{})
	return l
}

func (l *fakeLoader) release() { close(l.block) }

func (l *fakeLoader) Load() error {
	if l.started != nil {
		l.once.Do(func() { close(l.started) })
	}
	if l.block != nil {
		<-l.block
	}
	if l.panicOnLoad {
		panic("corrupt asset")
	}
	if l.loadErr != nil {
		return l.loadErr
	}
	l.loads.Add(1)
	return nil
}

func (l *fakeLoader) Unload() error {
	if l.unloadErr != nil {
		return l.unloadErr
	}
	l.unloads.Add(1)
	return nil
}

func (l *fakeLoader) Size() int64 { return l.size }

// stepLoader records post-sync percentages.
type stepLoader struct {
	fakeLoader

	mu        sync.Mutex
	loadSteps []int
	dropSteps []int
	stepDelay time.Duration
	failAt    int
}

func newStepLoader(size int64) *stepLoader {
	return &stepLoader{fakeLoader: fakeLoader{size: size}, failAt: -1}
}

func (l *stepLoader) LoadPostSync(pct int) error {
	time.Sleep(l.stepDelay)
	if pct == l.failAt {
		return errors.New("device lost")
	}
	l.mu.Lock()
	l.loadSteps = append(l.loadSteps, pct)
	l.mu.Unlock()
	return nil
}

func (l *stepLoader) UnloadPostSync(pct int) error {
	l.mu.Lock()
	l.dropSteps = append(l.dropSteps, pct)
	l.mu.Unlock()
	return nil
}

func (l *stepLoader) steps() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.loadSteps...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// testConfig keeps the periodic sub-tasks out of the way; tests trigger them
// with RunMaintenance.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GenUpdateInterval = time.Hour
	cfg.CollectInterval = time.Hour
	cfg.IdleSleep = time.Millisecond
	return cfg
}

func newAsyncManager(t *testing.T, clock *fakeClock, budget int64, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now), WithBudget(budget)}, opts...)
	m, err := NewManager("test", testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newSyncManager(t *testing.T, budget int64) *Manager {
	t.Helper()
	cfg := testConfig()
	cfg.Async = false
	m, err := NewManager("sync", cfg, WithBudget(budget))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// occupyWorker parks the worker inside a blocking load so tests can inspect
// the queue before anything else runs. The returned function unblocks it.
func occupyWorker(t *testing.T, m *Manager) func() {
	t.Helper()
	l := newFakeLoader(1).blocking()
	r, err := m.NewResource("__blocker", l)
	require.NoError(t, err)
	r.Use()
	select {
	case <-l.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the blocking load")
	}
	return l.release
}

// loadedSum recomputes the used bytes from the loaded resources.
func loadedSum(m *Manager) int64 {
	var sum int64
	for _, k := range m.Keys() {
		if r := m.Exists(k); r != nil && r.State() == Loaded {
			sum += r.Size()
		}
	}
	return sum
}
