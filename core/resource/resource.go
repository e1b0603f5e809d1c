package resource

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Resource is one cached entity identified by a unique key. Three variants
// exist behind this interface: unmanaged resources (no automatic lifecycle),
// resources of a sync manager (inline, lock free) and resources of an async
// manager (background processor, generation tracking).
type Resource interface {
	// Key returns the string uniquely identifying the resource.
	Key() string
	// State returns the current lifecycle state.
	State() State
	// IsLoaded reports whether State is Loaded.
	IsLoaded() bool

	// Use touches the resource, loading it if it is not loaded yet.
	Use()
	// UseSync loads the resource on the calling goroutine and blocks until it
	// is loaded, ctx is done or the load fails.
	UseSync(ctx context.Context) error
	// Load requests a load. Async resources enqueue it; sync resources load inline.
	Load() error
	// Unload requests an unload.
	Unload() error
	// Reload unloads and loads again if the resource is loaded.
	Reload() error

	// LockUnloadable pins the resource so the collector never evicts it.
	LockUnloadable()
	// UnlockUnloadable removes the pin.
	UnlockUnloadable()
	// IsUnloadable reports whether the collector may evict the resource.
	IsUnloadable() bool

	// Generation returns the recency class (0 is hottest), or -1 when the
	// resource has no classifier.
	Generation() int
	// RefCount returns the number of live counting handles.
	RefCount() int
	// Size returns the loader's byte estimate.
	Size() int64
	IsIndependent() bool
	RequiresPostSync() bool
	IsManaged() bool
	// Manager returns the owning manager, or nil for unmanaged resources.
	Manager() *Manager
	// Loader returns the hooks backing this resource.
	Loader() Loader
	// Release tears the resource down: it is removed from its manager and every
	// queued operation targeting it is invalidated.
	Release()

	ref()
	unref() int
	base() *resourceBase
}

// ResourceOption configures a resource at construction.
type ResourceOption func(*resourceOptions)

type resourceOptions struct {
	independent bool
	postSync    bool
	pinned      bool
}

func defaultResourceOptions() resourceOptions {
	return resourceOptions{independent: true}
}

// WithIndependent sets whether queued load and unload operations may cancel
// each other. Resources are independent by default.
func WithIndependent(independent bool) ResourceOption {
	return func(o *resourceOptions) { o.independent = independent }
}

// WithPostSync marks the resource as needing the post-sync phase.
func WithPostSync() ResourceOption {
	return func(o *resourceOptions) { o.postSync = true }
}

// WithPinned creates the resource with the unloadable lock already set.
func WithPinned() ResourceOption {
	return func(o *resourceOptions) { o.pinned = true }
}

// resourceBase holds the fields shared by every variant.
type resourceBase struct {
	key         string
	loader      Loader
	independent bool
	postSync    bool

	refs     atomic.Int32
	pinned   atomic.Bool
	released atomic.Bool
	// accounted is the size added to the manager's usage when the resource
	// reached Loaded; it is given back exactly once.
	accounted atomic.Int64
}

// initBase sets up b in place; the atomics must not be copied afterwards.
func (b *resourceBase) initBase(key string, loader Loader, opts []ResourceOption) {
	o := defaultResourceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b.key = key
	b.loader = loader
	b.independent = o.independent
	b.postSync = o.postSync
	b.pinned.Store(o.pinned)
}

func (b *resourceBase) Key() string { return b.key }
func (b *resourceBase) Loader() Loader { return b.loader }
func (b *resourceBase) Size() int64 { return b.loader.Size() }
func (b *resourceBase) IsIndependent() bool { return b.independent }
func (b *resourceBase) RequiresPostSync() bool { return b.postSync }
func (b *resourceBase) RefCount() int { return int(b.refs.Load()) }
func (b *resourceBase) LockUnloadable() { b.pinned.Store(true) }
func (b *resourceBase) UnlockUnloadable() { b.pinned.Store(false) }
func (b *resourceBase) IsUnloadable() bool { return !b.pinned.Load() }
func (b *resourceBase) base() *resourceBase { return b }

func (b *resourceBase) ref() { b.refs.Add(1) }
func (b *resourceBase) unref() int { return int(b.refs.Add(-1)) }

// unmanagedResource is never loaded or unloaded automatically. All lifecycle
// calls are no-ops; the owner drives the loader directly.
type unmanagedResource struct {
	resourceBase
}

// NewUnmanaged creates a resource outside any manager.
func NewUnmanaged(key string, loader Loader, opts ...ResourceOption) Resource {
	r := &unmanagedResource{}
	r.initBase(key, loader, opts)
	return r
}

func (r *unmanagedResource) State() State { return Unloaded }
func (r *unmanagedResource) IsLoaded() bool { return false }
func (r *unmanagedResource) Use() {}
func (r *unmanagedResource) UseSync(context.Context) error { return nil }
func (r *unmanagedResource) Load() error { return nil }
func (r *unmanagedResource) Unload() error { return nil }
func (r *unmanagedResource) Reload() error { return nil }
func (r *unmanagedResource) Generation() int { return -1 }
func (r *unmanagedResource) IsManaged() bool { return false }
func (r *unmanagedResource) Manager() *Manager { return nil }
func (r *unmanagedResource) Release() { r.released.Store(true) }
func (r *unmanagedResource) ref() {}
func (r *unmanagedResource) unref() int { return 0 }
func (r *unmanagedResource) String() string { return describe(r) }

// callHook runs a loader hook, turning a panic into an error so a misbehaving
// asset cannot take the worker goroutine down.
func callHook(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook panicked: %v", rec)
		}
	}()
	return fn()
}

func describe(r Resource) string {
	return fmt.Sprintf("%s(%s)", r.Key(), r.State())
}
