package resource

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Flag alters how a Handle treats its resource.
type Flag uint8

const (
	// Untouching handles never call Use, which avoids overhead when every
	// resource is preloaded.
	Untouching Flag = 1 << iota
	// ForceDisposal releases the resource when the handle is closed.
	ForceDisposal
	// NoRefCounting handles do not change the reference count.
	NoRefCounting

	// ContainerHandle owns its resource outright.
	ContainerHandle = Untouching | ForceDisposal
	// ReferenceWrapper only adapts a resource to a handle-typed API.
	ReferenceWrapper = Untouching | NoRefCounting
)

// Handle is the client-side reference to a resource. Creating it counts a
// reference, Close gives it back. T is the concrete loader type exposed by Get.
//
// Under a sync manager the last Close unloads and releases the resource, since
// nothing else would. Under an async manager cleanup is left to the collector.
type Handle[T Loader] struct {
	res    Resource
	loader T
	flags  Flag
	closed atomic.Bool
}

// NewHandle wraps r. It fails if r's loader is not a T.
func NewHandle[T Loader](r Resource, flags ...Flag) (*Handle[T], error) {
	loader, ok := r.Loader().(T)
	if !ok {
		var zero T
		return nil, fmt.Errorf("resource %q: loader is %T, not %T", r.Key(), r.Loader(), zero)
	}
	h := &Handle[T]{res: r, loader: loader}
	for _, f := range flags {
		h.flags |= f
	}
	if h.counts() {
		r.ref()
	}
	return h, nil
}

func (h *Handle[T]) counts() bool {
	return h.flags&NoRefCounting == 0 && h.res.IsManaged()
}

func (h *Handle[T]) touches() bool {
	return h.flags&Untouching == 0
}

// Resource returns the wrapped resource.
func (h *Handle[T]) Resource() Resource { return h.res }

// State returns the resource's state.
func (h *Handle[T]) State() State { return h.res.State() }

// Weak returns the loader without touching the resource.
func (h *Handle[T]) Weak() T { return h.loader }

// Touch marks the resource as used, requesting a load if needed.
func (h *Handle[T]) Touch() {
	if h.touches() {
		h.res.Use()
	}
}

// TouchSync marks the resource as used and blocks until it is loaded.
func (h *Handle[T]) TouchSync(ctx context.Context) error {
	if !h.touches() {
		return nil
	}
	return h.res.UseSync(ctx)
}

// Get touches the resource and returns its loader, loaded or not.
func (h *Handle[T]) Get() T {
	h.Touch()
	return h.loader
}

// GetSync touches the resource, waits until it is loaded and returns it.
func (h *Handle[T]) GetSync(ctx context.Context) (T, error) {
	if err := h.TouchSync(ctx); err != nil {
		var zero T
		return zero, err
	}
	return h.loader, nil
}

// GetLoaded touches the resource and returns its loader only if it is
// already loaded. Unmanaged resources are always returned.
func (h *Handle[T]) GetLoaded() (T, bool) {
	if h.res.IsManaged() && h.touches() {
		h.Touch()
		if h.res.State() != Loaded {
			var zero T
			return zero, false
		}
	}
	return h.loader, true
}

// Close releases the reference. It is safe to call more than once.
func (h *Handle[T]) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	remaining := -1
	if h.counts() {
		remaining = h.res.unref()
	}

	if h.flags&ForceDisposal != 0 {
		return h.dispose()
	}
	if remaining == 0 && h.res.IsManaged() && !h.res.Manager().UsesAsync() {
		return h.dispose()
	}
	return nil
}

func (h *Handle[T]) dispose() error {
	var err error
	if m := h.res.Manager(); m != nil && !m.UsesAsync() {
		err = h.res.Unload()
	}
	h.res.Release()
	return err
}
