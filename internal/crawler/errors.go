package crawler

import "errors"

var (
	// ErrStaleElement indicates an element handle no longer matches a live node.
	ErrStaleElement = errors.New("stale element")
	// ErrNavigationTimeout indicates the page did not become ready within the wait timeout.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrSession indicates the browser crashed or could not be rebuilt.
	ErrSession = errors.New("browser session failure")
	// ErrPersistence indicates an output record or image could not be written.
	ErrPersistence = errors.New("persistence failure")
)
