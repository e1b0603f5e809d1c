package resource

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// asyncResource belongs to a manager with a background processor. Its state
// is shared between client goroutines and the worker and is therefore locked.
type asyncResource struct {
	resourceBase
	mgr *Manager
	gen *classifier

	mu      sync.Mutex
	settled *sync.Cond
	state   State
}

func newAsyncResource(mgr *Manager, key string, loader Loader, opts []ResourceOption) *asyncResource {
	r := &asyncResource{
		mgr: mgr,
		gen: newClassifier(mgr.now()),
	}
	r.initBase(key, loader, opts)
	r.settled = sync.NewCond(&r.mu)
	return r
}

func (r *asyncResource) IsManaged() bool { return true }
func (r *asyncResource) Manager() *Manager { return r.mgr }
func (r *asyncResource) Generation() int { return r.gen.current() }
func (r *asyncResource) IsLoaded() bool { return r.State() == Loaded }
func (r *asyncResource) String() string { return describe(r) }

func (r *asyncResource) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *asyncResource) setState(s State) {
	r.mu.Lock()
	r.state = s
	if s == Loaded || s == Unloaded {
		r.settled.Broadcast()
	}
	r.mu.Unlock()
}

// transition moves from one state to another if the resource is still in from.
func (r *asyncResource) transition(from, to State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != from {
		return false
	}
	r.state = to
	return true
}

func (r *asyncResource) Use() {
	r.gen.use(r.mgr.now())
	if r.State() == Unloaded {
		if err := r.Load(); err != nil {
			r.mgr.logger.Error("Resource load request failed", zap.String("key", r.key), zap.Error(err))
		}
	}
}

// UseSync loads the resource inline. A transition already running on the
// worker is waited for; a post-sync phase pending for this resource is
// finished on the calling goroutine, which must own the shared context.
func (r *asyncResource) UseSync(ctx context.Context) error {
	r.gen.use(r.mgr.now())

	for {
		if r.mgr.proc.finishPostSync(r) {
			continue
		}
		st, err := r.waitSettled(ctx)
		if err != nil {
			return err
		}
		if st == Loaded {
			return nil
		}
		if !r.transition(Unloaded, Loading) {
			continue
		}
		return r.mgr.proc.loadInline(r)
	}
}

// wake lets goroutines blocked in waitSettled re-check their condition.
func (r *asyncResource) wake() {
	r.mu.Lock()
	r.settled.Broadcast()
	r.mu.Unlock()
}

// waitSettled blocks while a transition is in flight on the worker.
func (r *asyncResource) waitSettled(ctx context.Context) (State, error) {
	stop := context.AfterFunc(ctx, r.wake)
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.state == Loading || r.state == Unloading {
		if r.released.Load() {
			return r.state, fmt.Errorf("resource %q released: %w", r.key, ErrInvalidState)
		}
		if r.mgr.proc.hasPostSync(r) {
			// Only the owner can advance it; let the caller finish it.
			return r.state, nil
		}
		if err := ctx.Err(); err != nil {
			return r.state, err
		}
		r.settled.Wait()
	}
	return r.state, nil
}

func (r *asyncResource) Load() error {
	switch r.State() {
	case Loading, Unloading, Loaded:
		return nil
	}
	r.mgr.proc.Schedule(Operation{Resource: r, Kind: OpLoad}, false)
	return nil
}

func (r *asyncResource) Unload() error {
	op := Operation{Resource: r, Kind: OpUnload}
	switch st := r.State(); st {
	case Loading, Unloading:
		return nil
	case Loaded:
		r.mgr.proc.Schedule(op, false)
		return nil
	default:
		// Only legal when it cancels or follows a load that has not run yet.
		if r.mgr.proc.Schedule(op, true) != scheduleRejected {
			return nil
		}
		return fmt.Errorf("unload %q while %s: %w", r.key, st, ErrInvalidState)
	}
}

func (r *asyncResource) Reload() error {
	if r.State() != Loaded {
		return nil
	}
	r.mgr.proc.AddTask(Operation{Resource: r, Kind: OpUnload})
	r.mgr.proc.AddTask(Operation{Resource: r, Kind: OpLoad})
	return nil
}

func (r *asyncResource) Release() {
	if r.released.Swap(true) {
		return
	}
	r.mgr.NotifyReleaseResource(r)
	r.mgr.proc.RemoveResource(r)
	r.wake()
}
