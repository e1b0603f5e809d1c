package resource

// State describes where a resource is in its load lifecycle.
//
// Loading and Unloading are transient. They are only observable from another
// goroutine while the worker (or an inline sync call) runs a hook.
type State int32

const (
	// Unloaded means the resource holds no data.
	Unloaded State = iota
	// Loaded means the resource is ready for use and counts against the budget.
	Loaded
	// Loading means a load hook is running or a post-sync load is pending.
	Loading
	// Unloading means an unload hook is running or a post-sync unload is pending.
	Unloading
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Loading:
		return "loading"
	case Unloading:
		return "unloading"
	default:
		return "unknown"
	}
}

// OpKind is the kind of a queued operation.
type OpKind uint8

const (
	// OpLoad brings a resource from Unloaded to Loaded.
	OpLoad OpKind = iota
	// OpUnload brings a resource from Loaded to Unloaded.
	OpUnload
)

func (k OpKind) String() string {
	if k == OpLoad {
		return "load"
	}
	return "unload"
}

// opposite returns the kind that cancels k during neutralization.
func (k OpKind) opposite() OpKind {
	if k == OpLoad {
		return OpUnload
	}
	return OpLoad
}

// Operation is a unit of background work targeting one resource.
type Operation struct {
	Resource Resource
	Kind     OpKind
}
