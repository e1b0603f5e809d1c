package resource

// Loader is implemented by every concrete asset type. The core never depends on
// concrete assets, only on these hooks.
type Loader interface {
	// Load brings the asset's data into memory. It may block on I/O.
	// Async managers call it on the worker goroutine.
	Load() error
	// Unload releases the asset's data.
	Unload() error
	// Size returns a stable byte estimate used for budget accounting.
	Size() int64
}

// PostSyncLoader is a Loader with a second phase that must run on the
// goroutine owning the shared context (the frame loop). The phase is invoked
// once per step in PostSyncSteps so large assets can be spread across frames.
type PostSyncLoader interface {
	Loader
	LoadPostSync(percentage int) error
	UnloadPostSync(percentage int) error
}

// PostSyncSteps are the percentages passed to the post-sync hooks, in order.
var PostSyncSteps = [...]int{0, 25, 50, 75, 100}

func loadStep(l Loader, pct int) error {
	if ps, ok := l.(PostSyncLoader); ok {
		return ps.LoadPostSync(pct)
	}
	return nil
}

func unloadStep(l Loader, pct int) error {
	if ps, ok := l.(PostSyncLoader); ok {
		return ps.UnloadPostSync(pct)
	}
	return nil
}
