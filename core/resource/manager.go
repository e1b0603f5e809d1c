package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Clock returns the current time. Managers use it for generation tracking.
type Clock func() time.Time

// Manager is a registry of resources sharing one cache budget. Built with
// Config.Async it owns a GenerationTable and a Processor; otherwise every
// load and unload runs inline on the caller's goroutine.
//
// The manager does not own the memory of its resources: callers create them
// through NewResource and tear them down with Resource.Release.
type Manager struct {
	name     string
	budget   int64
	logger   *zap.Logger
	clock    Clock
	registry *Registry

	mu        sync.RWMutex
	resources map[string]Resource
	used      atomic.Int64
	shutDown  atomic.Bool

	table *GenerationTable
	proc  *Processor
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	logger   *zap.Logger
	registry *Registry
	clock    Clock
	budget   *int64
}

// WithLogger sets the logger used for leak warnings and hook failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *managerOptions) { o.logger = l }
}

// WithRegistry registers the manager into r for PerformAllPostSync.
func WithRegistry(r *Registry) Option {
	return func(o *managerOptions) { o.registry = r }
}

// WithClock replaces time.Now for generation tracking.
func WithClock(c Clock) Option {
	return func(o *managerOptions) { o.clock = c }
}

// WithBudget sets the budget in bytes, overriding Config.Budget.
func WithBudget(bytes int64) Option {
	return func(o *managerOptions) { o.budget = &bytes }
}

// NewManager creates a manager. With cfg.Async the background worker starts
// immediately; Close stops it.
func NewManager(name string, cfg Config, opts ...Option) (*Manager, error) {
	o := managerOptions{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var budget int64
	if o.budget != nil {
		budget = *o.budget
	} else {
		b, err := cfg.BudgetBytes()
		if err != nil {
			return nil, err
		}
		budget = b
	}

	m := &Manager{
		name:      name,
		budget:    budget,
		logger:    o.logger.With(zap.String("manager", name)),
		clock:     o.clock,
		registry:  o.registry,
		resources: make(map[string]Resource),
	}

	if cfg.Async {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		lifetimes, err := cfg.Lifetimes()
		if err != nil {
			return nil, err
		}
		if cfg.IdleSleep <= 0 {
			cfg.IdleSleep = 10 * time.Millisecond
		}
		m.table = newGenerationTable(m, lifetimes, cfg.CollectFromGeneration, cfg.PurgeColdest)
		m.proc = newProcessor(m.table, cfg, m.logger, m.resourceLoaded, m.resourceUnloaded)
	}

	if m.registry != nil {
		m.registry.Register(m)
	}
	return m, nil
}

func (m *Manager) now() time.Time { return m.clock() }

// Name returns the manager's name.
func (m *Manager) Name() string { return m.name }

// UsesAsync reports whether the manager has a background processor.
func (m *Manager) UsesAsync() bool { return m.proc != nil }

// Budget returns the cache budget in bytes.
func (m *Manager) Budget() int64 { return m.budget }

// UsedBytes returns the summed size of the loaded resources.
func (m *Manager) UsedBytes() int64 { return m.used.Load() }

// IsShutDown reports whether Close has been called.
func (m *Manager) IsShutDown() bool { return m.shutDown.Load() }

// Table returns the generation table, or nil for a sync manager.
func (m *Manager) Table() *GenerationTable { return m.table }

// NewResource creates a managed resource for key and registers it. On a sync
// manager the resource is loaded before NewResource returns; a load failure is
// returned together with the registered resource.
func (m *Manager) NewResource(key string, loader Loader, opts ...ResourceOption) (Resource, error) {
	if m.IsShutDown() {
		return nil, ErrManagerClosed
	}
	var r Resource
	if m.UsesAsync() {
		r = newAsyncResource(m, key, loader, opts)
	} else {
		sr := &syncResource{mgr: m}
		sr.initBase(key, loader, opts)
		r = sr
	}
	if err := m.NotifyNewResource(r); err != nil {
		if errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrManagerClosed) {
			return nil, err
		}
		return r, err
	}
	return r, nil
}

// Exists returns the resource registered under key, or nil.
func (m *Manager) Exists(key string) Resource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resources[key]
}

// Keys returns the registered keys in sorted order.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.resources))
	for k := range m.resources {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// NotifyNewResource registers r. Sync managers load it right away.
func (m *Manager) NotifyNewResource(r Resource) error {
	if r.Manager() != m {
		return ErrForeignResource
	}
	if m.IsShutDown() {
		return ErrManagerClosed
	}

	m.mu.Lock()
	if _, exists := m.resources[r.Key()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%q: %w", r.Key(), ErrDuplicateKey)
	}
	m.resources[r.Key()] = r
	m.mu.Unlock()

	if m.table != nil {
		m.table.AddResource(r)
	}
	if !m.UsesAsync() {
		return r.Load()
	}
	return nil
}

// NotifyReleaseResource removes r from the registry and the generation table.
// It is called by Resource.Release.
func (m *Manager) NotifyReleaseResource(r Resource) {
	if m.IsShutDown() {
		return
	}
	m.mu.Lock()
	if cur, ok := m.resources[r.Key()]; ok && cur == r {
		delete(m.resources, r.Key())
	}
	m.mu.Unlock()

	if m.table != nil {
		m.table.RemoveResource(r)
	}
	m.used.Add(-r.base().accounted.Swap(0))
}

func (m *Manager) resourceLoaded(r Resource) {
	b := r.base()
	if b.released.Load() {
		return
	}
	size := r.Size()
	b.accounted.Store(size)
	m.used.Add(size)
	// A Release racing with the lines above may have swapped out zero; take
	// the size back here in that case. Swap hands it out only once.
	if b.released.Load() {
		m.used.Add(-b.accounted.Swap(0))
	}
}

func (m *Manager) resourceUnloaded(r Resource) {
	m.used.Add(-r.base().accounted.Swap(0))
}

func (m *Manager) snapshot() []Resource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Resource, 0, len(m.resources))
	for _, r := range m.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// ReloadAll reloads every loaded resource.
func (m *Manager) ReloadAll() error {
	var errs []error
	for _, r := range m.snapshot() {
		if r.State() != Loaded {
			continue
		}
		if err := r.Reload(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CalculateTotalResourceSize sums Size over every registered resource,
// loaded or not.
func (m *Manager) CalculateTotalResourceSize() int64 {
	var total int64
	for _, r := range m.snapshot() {
		total += r.Size()
	}
	return total
}

// IsIdle reports whether the operation queue is drained.
func (m *Manager) IsIdle() (bool, error) {
	if m.proc == nil {
		return false, ErrNotSupported
	}
	return m.proc.TaskCompleted(), nil
}

// WaitForIdle blocks until the operation queue is drained.
func (m *Manager) WaitForIdle(ctx context.Context) error {
	if m.proc == nil {
		return ErrNotSupported
	}
	return m.proc.WaitForCompletion(ctx)
}

// OperationCount returns the number of queued operations.
func (m *Manager) OperationCount() (int, error) {
	if m.proc == nil {
		return 0, ErrNotSupported
	}
	return m.proc.OperationCount(), nil
}

// ProcessPostSync drains post-sync work for at most budget and returns the
// unused part. Call it only from the goroutine owning the shared context.
func (m *Manager) ProcessPostSync(budget time.Duration) (time.Duration, error) {
	if m.proc == nil {
		return budget, ErrNotSupported
	}
	return m.proc.ProcessPostSync(budget), nil
}

// RunMaintenance makes the worker reclassify generations and run an eviction
// sweep now.
func (m *Manager) RunMaintenance(ctx context.Context) error {
	if m.proc == nil {
		return ErrNotSupported
	}
	return m.proc.RunMaintenance(ctx)
}

// Stats is a point-in-time view of a manager.
type Stats struct {
	Name            string `json:"name"`
	Async           bool   `json:"async"`
	Budget          int64  `json:"budget"`
	Used            int64  `json:"used"`
	Resources       int    `json:"resources"`
	Loaded          int    `json:"loaded"`
	Pinned          int    `json:"pinned"`
	Referenced      int    `json:"referenced"`
	PendingOps      int    `json:"pending_ops"`
	PendingPostSync int    `json:"pending_post_sync"`
	Generations     []int  `json:"generations,omitempty"`
}

// Stats collects a snapshot of the manager's state.
func (m *Manager) Stats() Stats {
	s := Stats{
		Name:   m.name,
		Async:  m.UsesAsync(),
		Budget: m.budget,
		Used:   m.UsedBytes(),
	}
	for _, r := range m.snapshot() {
		s.Resources++
		if r.State() == Loaded {
			s.Loaded++
		}
		if !r.IsUnloadable() {
			s.Pinned++
		}
		if r.RefCount() > 0 {
			s.Referenced++
		}
	}
	if m.proc != nil {
		s.PendingOps = m.proc.OperationCount()
		s.PendingPostSync = m.proc.PostSyncCount()
		s.Generations = m.table.BucketSizes()
	}
	return s
}

// Close shuts the manager down. Every resource still loaded is reported as a
// leak. The background worker is stopped and the manager leaves its registry.
func (m *Manager) Close() error {
	if !m.shutDown.CompareAndSwap(false, true) {
		return nil
	}
	for _, r := range m.snapshot() {
		if r.State() == Loaded {
			m.logger.Warn("Resource leak detected",
				zap.String("key", r.Key()),
				zap.Int64("size", r.Size()),
				zap.Int("refs", r.RefCount()))
		}
	}
	if m.proc != nil {
		m.proc.Shutdown()
	}
	if m.registry != nil {
		m.registry.Unregister(m)
	}
	return nil
}
