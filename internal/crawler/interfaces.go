package crawler

import (
	"context"
	"time"
)

// Capability selects a family of elements the browser layer knows how to find.
type Capability int

// Supported element capabilities.
const (
	// CapabilityClickable matches hyperlinks, buttons, submit inputs and
	// anything carrying an explicit click handler attribute.
	CapabilityClickable Capability = iota
	// CapabilityTitled matches elements carrying a title attribute.
	CapabilityTitled
	// CapabilityAll matches every element in the document.
	CapabilityAll
)

func (c Capability) String() string {
	switch c {
	case CapabilityClickable:
		return "clickable"
	case CapabilityTitled:
		return "titled"
	case CapabilityAll:
		return "all"
	default:
		return "unknown"
	}
}

// Element is a live handle on a DOM node. Every accessor may fail with
// ErrStaleElement once the node is detached.
type Element interface {
	// Key identifies the underlying node across queries of the same page.
	Key() string
	Rect(ctx context.Context) (Rect, error)
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Visible(ctx context.Context) (bool, error)
	InnerHTML(ctx context.Context) (string, error)
	ChildCount(ctx context.Context) (int, error)
}

// Session is one browser process driving one page.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector matches a node, bounded by the wait timeout.
	WaitReady(ctx context.Context, selector string) error
	Query(ctx context.Context, capability Capability) ([]Element, error)
	Hover(ctx context.Context, el Element) error
	PageSource(ctx context.Context) (string, error)
	ContentSize(ctx context.Context) (Viewport, error)
	SetViewport(ctx context.Context, vp Viewport) error
	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Err reports a non-nil error once the browser is no longer usable.
	Err() error
	Close() error
}

// SessionOpener acquires new browser sessions.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// ResultSink receives every CaptureResult produced by a worker.
type ResultSink interface {
	Write(ctx context.Context, result CaptureResult) error
}

// Hasher computes digests used for artifact naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Clock supplies capture timestamps.
type Clock interface {
	Now() time.Time
}
