package resource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// syncResource belongs to a manager without async infrastructure. Only the
// owning goroutine drives it, so its state is not locked.
type syncResource struct {
	resourceBase
	mgr   *Manager
	state State
}

func (r *syncResource) State() State { return r.state }
func (r *syncResource) IsLoaded() bool { return r.state == Loaded }
func (r *syncResource) Generation() int { return -1 }
func (r *syncResource) IsManaged() bool { return true }
func (r *syncResource) Manager() *Manager { return r.mgr }
func (r *syncResource) String() string { return describe(r) }

func (r *syncResource) Use() {
	if err := r.UseSync(context.Background()); err != nil {
		r.mgr.logger.Error("Resource load failed", zap.String("key", r.key), zap.Error(err))
	}
}

func (r *syncResource) UseSync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Load()
}

func (r *syncResource) Load() error {
	if r.state != Unloaded {
		return nil
	}
	r.state = Loading
	if err := callHook(r.loader.Load); err != nil {
		r.state = Unloaded
		return fmt.Errorf("load %q: %w", r.key, err)
	}
	if r.postSync {
		for _, pct := range PostSyncSteps {
			if err := callHook(func() error { return loadStep(r.loader, pct) }); err != nil {
				_ = callHook(r.loader.Unload)
				r.state = Unloaded
				return fmt.Errorf("load %q post-sync at %d%%: %w", r.key, pct, err)
			}
		}
	}
	r.mgr.resourceLoaded(r)
	r.state = Loaded
	return nil
}

func (r *syncResource) Unload() error {
	if r.state != Loaded {
		return nil
	}
	r.state = Unloading
	if err := callHook(r.loader.Unload); err != nil {
		r.state = Loaded
		return fmt.Errorf("unload %q: %w", r.key, err)
	}
	if r.postSync {
		for _, pct := range PostSyncSteps {
			if err := callHook(func() error { return unloadStep(r.loader, pct) }); err != nil {
				r.mgr.logger.Error("Post-sync unload step failed",
					zap.String("key", r.key), zap.Int("percentage", pct), zap.Error(err))
			}
		}
	}
	r.mgr.resourceUnloaded(r)
	r.state = Unloaded
	return nil
}

func (r *syncResource) Reload() error {
	if r.state != Loaded {
		return nil
	}
	if err := r.Unload(); err != nil {
		return err
	}
	return r.Load()
}

func (r *syncResource) Release() {
	if r.released.Swap(true) {
		return
	}
	r.mgr.NotifyReleaseResource(r)
}
