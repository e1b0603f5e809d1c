package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLifetimes = []time.Duration{3 * time.Second, 10 * time.Second, 20 * time.Second}

func TestClassifier_Thresholds(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		age  time.Duration
		want int
	}{
		{0, 0},
		{3 * time.Second, 0},
		{3*time.Second + time.Nanosecond, 1},
		{10 * time.Second, 1},
		{15 * time.Second, 2},
		{20 * time.Second, 2},
		{25 * time.Second, 3},
		{time.Hour, 3},
	}
	for _, tt := range tests {
		t.Run(tt.age.String(), func(t *testing.T) {
			c := newClassifier(t0)
			c.use(t0)
			assert.Equal(t, tt.want, c.reclassify(t0.Add(tt.age), testLifetimes))
			assert.Equal(t, tt.want, c.current())
		})
	}
}

func TestClassifier_UseResetsGeneration(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newClassifier(t0)
	require.Equal(t, 3, c.reclassify(t0.Add(time.Minute), testLifetimes))

	c.use(t0.Add(time.Minute))
	assert.Equal(t, 0, c.current())
}

func TestClassifier_Window(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newClassifier(t0)
	assert.Equal(t, t0, c.lastUse())
	assert.Zero(t, c.recentUses())

	for i := 1; i <= 8; i++ {
		c.use(t0.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, useWindow, c.recentUses())
	assert.Equal(t, t0.Add(8*time.Second), c.lastUse())
}

func TestGenerationTable_AgesAndResets(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 1000)
	ctx := testContext(t)

	r, err := m.NewResource("a", newFakeLoader(1))
	require.NoError(t, err)
	r.Use()
	require.NoError(t, m.WaitForIdle(ctx))

	steps := []struct {
		advance time.Duration
		gen     int
	}{
		{time.Second, 0},
		{3 * time.Second, 1},
		{7 * time.Second, 2},
		{10 * time.Second, 3},
	}
	for _, s := range steps {
		clock.Advance(s.advance)
		require.NoError(t, m.RunMaintenance(ctx))
		assert.Equal(t, s.gen, r.Generation())
	}
	assert.Equal(t, []int{0, 0, 0, 1}, m.Table().BucketSizes())

	r.Use()
	assert.Equal(t, 0, r.Generation())
	assert.Equal(t, []int{0, 0, 0, 1}, m.Table().BucketSizes())

	require.NoError(t, m.RunMaintenance(ctx))
	assert.Equal(t, []int{1, 0, 0, 0}, m.Table().BucketSizes())
}

func TestGenerationTable_NewResourceStartsHot(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 1000)

	r, err := m.NewResource("a", newFakeLoader(1))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Generation())
	assert.Equal(t, 4, m.Table().Generations())
	assert.Equal(t, []int{1, 0, 0, 0}, m.Table().BucketSizes())
}

// A cold resource over budget is evicted once a newer one is in use.
func TestCollect_EvictsColdResource(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 50)
	ctx := testContext(t)

	l := newFakeLoader(100)
	r, err := m.NewResource("R", l)
	require.NoError(t, err)
	r.Use()
	require.NoError(t, m.WaitForIdle(ctx))
	require.Equal(t, Loaded, r.State())

	clock.Advance(25 * time.Second)
	r2, err := m.NewResource("R2", newFakeLoader(80))
	require.NoError(t, err)
	r2.Use()
	require.NoError(t, m.WaitForIdle(ctx))
	require.Equal(t, int64(180), m.UsedBytes())

	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, 3, r.Generation())
	assert.Equal(t, Unloaded, r.State())
	assert.Equal(t, Loaded, r2.State())
	assert.Equal(t, int32(1), l.unloads.Load())
	assert.LessOrEqual(t, m.UsedBytes(), int64(80))
	assert.Equal(t, loadedSum(m), m.UsedBytes())
}

func TestCollect_SkipsPinnedResource(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 50)
	ctx := testContext(t)

	r, err := m.NewResource("R", newFakeLoader(100))
	require.NoError(t, err)
	r.LockUnloadable()
	r.Use()
	require.NoError(t, m.WaitForIdle(ctx))

	clock.Advance(25 * time.Second)
	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, 3, r.Generation())
	assert.Equal(t, Loaded, r.State())
	assert.Equal(t, int64(100), m.UsedBytes())
}

func TestCollect_SkipsReferencedResource(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 50)
	ctx := testContext(t)

	r, err := m.NewResource("R", newFakeLoader(100))
	require.NoError(t, err)
	h, err := NewHandle[*fakeLoader](r)
	require.NoError(t, err)
	defer h.Close()
	h.Touch()
	require.NoError(t, m.WaitForIdle(ctx))

	clock.Advance(25 * time.Second)
	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, Loaded, r.State())
}

func TestCollect_StopsOnceUnderBudget(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 100)
	ctx := testContext(t)

	var rs []Resource
	for _, k := range []string{"a", "b", "c"} {
		r, err := m.NewResource(k, newFakeLoader(40))
		require.NoError(t, err)
		r.Use()
		rs = append(rs, r)
		clock.Advance(time.Second)
	}
	require.NoError(t, m.WaitForIdle(ctx))
	require.Equal(t, int64(120), m.UsedBytes())

	clock.Advance(30 * time.Second)
	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, Unloaded, rs[0].State(), "least recently used goes first")
	assert.Equal(t, Loaded, rs[1].State())
	assert.Equal(t, Loaded, rs[2].State())
	assert.Equal(t, int64(80), m.UsedBytes())
}

func TestCollect_LeavesHotGenerationsAlone(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 10)
	ctx := testContext(t)

	r, err := m.NewResource("a", newFakeLoader(100))
	require.NoError(t, err)
	r.Use()
	require.NoError(t, m.WaitForIdle(ctx))

	clock.Advance(5 * time.Second)
	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, 1, r.Generation())
	assert.Equal(t, Loaded, r.State())
}

func TestCollect_UnderBudgetKeepsEverything(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 1000)
	ctx := testContext(t)

	r, err := m.NewResource("a", newFakeLoader(100))
	require.NoError(t, err)
	r.Use()
	require.NoError(t, m.WaitForIdle(ctx))

	clock.Advance(time.Minute)
	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, Loaded, r.State())
}

func TestCollect_PurgeColdest(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.PurgeColdest = true
	m, err := NewManager("purge", cfg, WithClock(clock.Now), WithBudget(1000))
	require.NoError(t, err)
	defer m.Close()
	ctx := testContext(t)

	cold, err := m.NewResource("cold", newFakeLoader(10))
	require.NoError(t, err)
	cold.Use()
	require.NoError(t, m.WaitForIdle(ctx))

	clock.Advance(time.Minute)
	warm, err := m.NewResource("warm", newFakeLoader(10))
	require.NoError(t, err)
	warm.Use()
	require.NoError(t, m.WaitForIdle(ctx))

	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, Unloaded, cold.State())
	assert.Equal(t, Loaded, warm.State())
	assert.Equal(t, int64(10), m.UsedBytes())
}

func TestCollect_NeverEvictsLoadingResource(t *testing.T) {
	clock := newFakeClock()
	m := newAsyncManager(t, clock, 10)
	ctx := testContext(t)

	l := newStepLoader(100)
	r, err := m.NewResource("a", l, WithPostSync())
	require.NoError(t, err)
	r.Use()
	require.NoError(t, m.WaitForIdle(ctx))
	require.Equal(t, Loading, r.State())

	clock.Advance(time.Minute)
	require.NoError(t, m.RunMaintenance(ctx))
	require.NoError(t, m.WaitForIdle(ctx))

	assert.Equal(t, Loading, r.State())
	n, _ := m.OperationCount()
	assert.Zero(t, n)
}
