// Package resource manages the lifecycle of heavy assets that are expensive to
// load and must fit in a memory budget.
//
// It decides when an asset is loaded, when it is safe to evict and how loading
// and unloading are scheduled without blocking the goroutine that owns the
// shared context (the frame loop).
//
// # Components
//
//   - Resource: one cached entity with a state machine
//     (Unloaded -> Loading -> Loaded -> Unloading -> Unloaded), a reference
//     count and an unloadable pin. Concrete assets plug in through Loader.
//   - Manager: key registry, budget accounting and sync/async mode selection.
//   - Processor: the single background worker of an async manager. It drains a
//     FIFO of load/unload operations and ticks the GenerationTable.
//   - GenerationTable: buckets resources by recency (generation 0 is hottest)
//     and sweeps cold, unreferenced, unpinned resources when over budget.
//   - Handle: the client reference that counts and touches a resource.
//   - Registry: the set of live managers, used to drain post-sync work.
//
// # Modes
//
// A sync manager loads inline on the caller's goroutine and the last handle to
// close unloads the resource. An async manager enqueues work for its worker;
// queued opposite operations on independent resources cancel each other
// (neutralization) and eviction is left to the generation collector.
//
// # Post-sync
//
// Resources built WithPostSync get a second phase that runs on the owning
// goroutine in steps (0, 25, 50, 75, 100 percent) through
// Manager.ProcessPostSync or Registry.PerformAllPostSync. UseSync finishes a
// pending post-sync phase of its own resource inline. An operation reaching the
// worker while the opposite one is still in post-sync runs after it completes.
//
// # Usage
//
//	reg := resource.NewRegistry()
//	mgr, err := resource.NewManager("textures", cfg, resource.WithRegistry(reg), resource.WithLogger(log))
//	res, err := mgr.NewResource("hero.png", tex)
//	h, err := resource.NewHandle[*Texture](res)
//	defer h.Close()
//	tex, err := h.GetSync(ctx)
//
//	// On the frame loop:
//	reg.PerformAllPostSync(4 * time.Millisecond)
package resource
