package resource

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GenerationTable buckets the resources of an async manager by generation and
// runs the periodic reclassify and collect passes. Both passes run on the
// processor's worker goroutine.
type GenerationTable struct {
	mgr          *Manager
	lifetimes    []time.Duration
	collectFrom  int
	purgeColdest bool

	mu       sync.Mutex
	buckets  []map[*asyncResource]struct{}
	members  []*asyncResource
	bucketOf map[*asyncResource]int
}

func newGenerationTable(mgr *Manager, lifetimes []time.Duration, collectFrom int, purgeColdest bool) *GenerationTable {
	gens := len(lifetimes) + 1
	if collectFrom < 1 {
		collectFrom = 1
	}
	if collectFrom > gens-1 {
		collectFrom = gens - 1
	}
	t := &GenerationTable{
		mgr:          mgr,
		lifetimes:    lifetimes,
		collectFrom:  collectFrom,
		purgeColdest: purgeColdest,
		buckets:      make([]map[*asyncResource]struct{}, gens),
		bucketOf:     make(map[*asyncResource]int),
	}
	for i := range t.buckets {
		t.buckets[i] = make(map[*asyncResource]struct{})
	}
	return t
}

// Generations returns the number of generations.
func (t *GenerationTable) Generations() int { return len(t.buckets) }

// AddResource starts tracking res in generation 0.
func (t *GenerationTable) AddResource(res Resource) {
	r, ok := res.(*asyncResource)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, tracked := t.bucketOf[r]; tracked {
		return
	}
	t.buckets[0][r] = struct{}{}
	t.bucketOf[r] = 0
	t.members = append(t.members, r)
}

// RemoveResource stops tracking res.
func (t *GenerationTable) RemoveResource(res Resource) {
	r, ok := res.(*asyncResource)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	g, tracked := t.bucketOf[r]
	if !tracked {
		return
	}
	delete(t.buckets[g], r)
	delete(t.bucketOf, r)
	for i, m := range t.members {
		if m == r {
			t.members = append(t.members[:i], t.members[i+1:]...)
			break
		}
	}
}

// UpdateGeneration moves res from bucket oldGen to bucket newGen.
func (t *GenerationTable) UpdateGeneration(oldGen, newGen int, res Resource) {
	r, ok := res.(*asyncResource)
	if !ok || newGen < 0 || newGen >= len(t.buckets) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, tracked := t.bucketOf[r]; !tracked {
		return
	}
	if oldGen >= 0 && oldGen < len(t.buckets) {
		delete(t.buckets[oldGen], r)
	}
	t.buckets[newGen][r] = struct{}{}
	t.bucketOf[r] = newGen
}

// BucketSizes returns the number of resources per generation.
func (t *GenerationTable) BucketSizes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, len(t.buckets))
	for i, b := range t.buckets {
		out[i] = len(b)
	}
	return out
}

// SubTaskGenUpdate reclassifies every tracked resource against the current
// time and moves the ones whose generation changed.
func (t *GenerationTable) SubTaskGenUpdate() {
	now := t.mgr.now()

	t.mu.Lock()
	members := make([]*asyncResource, len(t.members))
	copy(members, t.members)
	t.mu.Unlock()

	for _, r := range members {
		ng := r.gen.reclassify(now, t.lifetimes)
		t.mu.Lock()
		og, tracked := t.bucketOf[r]
		t.mu.Unlock()
		if tracked && og != ng {
			t.UpdateGeneration(og, ng, r)
		}
	}
}

// SubTaskCollect enqueues unloads for cold resources while the manager is over
// budget, coldest generation first, and stops once the predicted usage is back
// under budget. It returns the number of unloads requested.
func (t *GenerationTable) SubTaskCollect() int {
	budget := t.mgr.Budget()
	predicted := t.mgr.UsedBytes()
	requested := 0

	for g := len(t.buckets) - 1; g >= t.collectFrom && predicted > budget; g-- {
		for _, r := range t.candidates(g) {
			if !t.evictable(r, g) {
				continue
			}
			if err := r.Unload(); err != nil {
				continue
			}
			requested++
			predicted -= r.accounted.Load()
			if predicted <= budget {
				break
			}
		}
	}

	if t.purgeColdest {
		coldest := len(t.buckets) - 1
		for _, r := range t.candidates(coldest) {
			if t.evictable(r, coldest) && r.Unload() == nil {
				requested++
			}
		}
	}

	if requested > 0 {
		t.mgr.logger.Debug("Eviction sweep",
			zap.String("manager", t.mgr.name),
			zap.Int("unloads", requested),
			zap.Int64("used", t.mgr.UsedBytes()),
			zap.Int64("budget", budget))
	}
	return requested
}

// candidates snapshots bucket g, least recently used first, ties broken by
// fewer recent uses.
func (t *GenerationTable) candidates(g int) []*asyncResource {
	t.mu.Lock()
	out := make([]*asyncResource, 0, len(t.buckets[g]))
	for r := range t.buckets[g] {
		out = append(out, r)
	}
	t.mu.Unlock()

	type ranked struct {
		r    *asyncResource
		last time.Time
		uses int
	}
	rs := make([]ranked, len(out))
	for i, r := range out {
		rs[i] = ranked{r: r, last: r.gen.lastUse(), uses: r.gen.recentUses()}
	}
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].last.Equal(rs[j].last) {
			return rs[i].last.Before(rs[j].last)
		}
		if rs[i].uses != rs[j].uses {
			return rs[i].uses < rs[j].uses
		}
		return rs[i].r.key < rs[j].r.key
	})
	for i := range rs {
		out[i] = rs[i].r
	}
	return out
}

// evictable reports whether r may be unloaded by a sweep of generation g. A
// resource touched since the last reclassify is hot again and is skipped.
func (t *GenerationTable) evictable(r *asyncResource, g int) bool {
	return r.RefCount() == 0 &&
		r.IsUnloadable() &&
		r.State() == Loaded &&
		r.gen.current() >= g
}
