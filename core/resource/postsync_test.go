package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithPostSync(t *testing.T, m *Manager, key string, l *stepLoader) Resource {
	t.Helper()
	r, err := m.NewResource(key, l, WithPostSync())
	require.NoError(t, err)
	r.Use()
	require.NoError(t, m.WaitForIdle(testContext(t)))
	return r
}

func TestPostSync_CompletesOnOwnerGoroutine(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newStepLoader(64)
	r := loadWithPostSync(t, m, "texture", l)

	assert.Equal(t, Loading, r.State())
	assert.Equal(t, 1, m.Stats().PendingPostSync)
	assert.Zero(t, m.UsedBytes())

	left, err := m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	assert.Positive(t, left)

	assert.Equal(t, Loaded, r.State())
	assert.Equal(t, []int{0, 25, 50, 75, 100}, l.steps())
	assert.Equal(t, int64(64), m.UsedBytes())
	assert.Zero(t, m.Stats().PendingPostSync)
}

func TestPostSync_RespectsBudget(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newStepLoader(64)
	l.stepDelay = 5 * time.Millisecond
	r := loadWithPostSync(t, m, "texture", l)

	left, err := m.ProcessPostSync(time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Equal(t, []int{0}, l.steps())
	assert.Equal(t, Loading, r.State())

	_, err = m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 25, 50, 75, 100}, l.steps())
	assert.Equal(t, Loaded, r.State())
}

func TestPostSync_ZeroBudgetDoesNothing(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newStepLoader(64)
	loadWithPostSync(t, m, "texture", l)

	left, err := m.ProcessPostSync(0)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Empty(t, l.steps())
}

func TestPostSync_FailedStepUnloads(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newStepLoader(64)
	l.failAt = 50
	r := loadWithPostSync(t, m, "texture", l)

	_, err := m.ProcessPostSync(time.Second)
	require.NoError(t, err)

	assert.Equal(t, Unloaded, r.State())
	assert.Equal(t, []int{0, 25}, l.steps())
	assert.Equal(t, int32(1), l.unloads.Load())
	assert.Zero(t, m.UsedBytes())
}

func TestPostSync_Unload(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newStepLoader(64)
	r := loadWithPostSync(t, m, "texture", l)
	_, err := m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	require.Equal(t, Loaded, r.State())

	require.NoError(t, r.Unload())
	require.NoError(t, m.WaitForIdle(testContext(t)))
	assert.Equal(t, Unloading, r.State())
	assert.Equal(t, int64(64), m.UsedBytes())

	_, err = m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	assert.Equal(t, Unloaded, r.State())
	assert.Zero(t, m.UsedBytes())
	l.mu.Lock()
	assert.Equal(t, []int{0, 25, 50, 75, 100}, l.dropSteps)
	l.mu.Unlock()
}

func TestPostSync_UseSyncFinishesPendingWork(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newStepLoader(64)
	r := loadWithPostSync(t, m, "texture", l)

	require.NoError(t, r.UseSync(testContext(t)))
	assert.Equal(t, Loaded, r.State())
	assert.Equal(t, []int{0, 25, 50, 75, 100}, l.steps())
	assert.Equal(t, int32(1), l.loads.Load())
}

func TestPostSync_ReleaseCancelsPendingWork(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newStepLoader(64)
	r := loadWithPostSync(t, m, "texture", l)

	r.Release()
	assert.Zero(t, m.Stats().PendingPostSync)

	_, err := m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	assert.Empty(t, l.steps())
	assert.Zero(t, m.UsedBytes())
}

func TestPostSync_PlainLoaderSteps(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	l := newFakeLoader(12)
	r, err := m.NewResource("plain", l, WithPostSync())
	require.NoError(t, err)
	r.Use()
	require.NoError(t, m.WaitForIdle(testContext(t)))

	_, err = m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	assert.Equal(t, Loaded, r.State())
	assert.Equal(t, int32(1), l.loads.Load())
}

func TestRegistry_PerformAllPostSync(t *testing.T) {
	reg := NewRegistry()
	clock := newFakeClock()
	a := newAsyncManager(t, clock, 1000, WithRegistry(reg))
	b := newAsyncManager(t, clock, 1000, WithRegistry(reg))
	inline := newSyncManager(t, 1000)
	reg.Register(inline)
	reg.Register(a)
	require.Len(t, reg.Managers(), 3)

	la, lb := newStepLoader(1), newStepLoader(2)
	ra := loadWithPostSync(t, a, "a", la)
	rb := loadWithPostSync(t, b, "b", lb)

	left := reg.PerformAllPostSync(time.Second)
	assert.Positive(t, left)
	assert.Equal(t, Loaded, ra.State())
	assert.Equal(t, Loaded, rb.State())

	require.NoError(t, a.Close())
	assert.Len(t, reg.Managers(), 2)
	reg.Unregister(inline)
	assert.Equal(t, []*Manager{b}, reg.Managers())
}

func TestRegistry_SharedBudget(t *testing.T) {
	reg := NewRegistry()
	clock := newFakeClock()
	a := newAsyncManager(t, clock, 1000, WithRegistry(reg))
	b := newAsyncManager(t, clock, 1000, WithRegistry(reg))

	la := newStepLoader(1)
	la.stepDelay = 5 * time.Millisecond
	lb := newStepLoader(1)
	loadWithPostSync(t, a, "a", la)
	loadWithPostSync(t, b, "b", lb)

	assert.Zero(t, reg.PerformAllPostSync(time.Millisecond))
	assert.Len(t, la.steps(), 1)
	assert.Empty(t, lb.steps())
}

func TestPostSync_ReloadWaitsForPendingUnload(t *testing.T) {
	m := newAsyncManager(t, newFakeClock(), 1000)
	ctx := testContext(t)
	l := newStepLoader(8)
	r := loadWithPostSync(t, m, "texture", l)
	_, err := m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	require.Equal(t, Loaded, r.State())

	require.NoError(t, r.Reload())
	require.NoError(t, m.WaitForIdle(ctx))
	assert.Equal(t, Unloading, r.State())

	_, err = m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	require.NoError(t, m.WaitForIdle(ctx))
	assert.Contains(t, []State{Loading, Loaded}, r.State())

	_, err = m.ProcessPostSync(time.Second)
	require.NoError(t, err)
	assert.Equal(t, Loaded, r.State())
	assert.Equal(t, int32(2), l.loads.Load())
	assert.Equal(t, int32(1), l.unloads.Load())
	assert.Equal(t, int64(8), m.UsedBytes())
}
