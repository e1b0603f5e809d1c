package resource

import "errors"

var (
	// ErrNotSupported is returned by async-only APIs on a manager built without
	// async infrastructure.
	ErrNotSupported = errors.New("async processing not enabled")
	// ErrInvalidState is returned when an operation is requested from a state
	// that cannot originate it (e.g. Unload on an unloaded async resource).
	ErrInvalidState = errors.New("invalid resource state")
	// ErrDuplicateKey is returned when a key is already registered.
	ErrDuplicateKey = errors.New("resource key already registered")
	// ErrManagerClosed is returned when registering into a closed manager.
	ErrManagerClosed = errors.New("resource manager is shut down")
	// ErrNotManaged is returned by handle operations that need a manager.
	ErrNotManaged = errors.New("resource is not managed")
	// ErrForeignResource is returned when a resource is handed to a manager
	// that did not create it.
	ErrForeignResource = errors.New("resource belongs to another manager")
)
