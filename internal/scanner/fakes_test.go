package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

type fakeElement struct {
	key      string
	rect     crawler.Rect
	text     string
	attrs    map[string]string
	visible  bool
	html     string
	children int
	stale    bool
	onHover  func(s *fakeSession)
}

func (e *fakeElement) Key() string { return e.key }

func (e *fakeElement) err() error {
	if e.stale {
		return fmt.Errorf("element %s: %w", e.key, crawler.ErrStaleElement)
	}
	return nil
}

func (e *fakeElement) Rect(context.Context) (crawler.Rect, error) { return e.rect, e.err() }

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, e.err() }

func (e *fakeElement) Attribute(_ context.Context, name string) (string, error) {
	return e.attrs[name], e.err()
}

func (e *fakeElement) Visible(context.Context) (bool, error) { return e.visible, e.err() }

func (e *fakeElement) InnerHTML(context.Context) (string, error) { return e.html, e.err() }

func (e *fakeElement) ChildCount(context.Context) (int, error) { return e.children, e.err() }

type fakeSession struct {
	mu       sync.Mutex
	byCap    map[crawler.Capability][]*fakeElement
	source   string
	hovered  []string
	queryErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{byCap: map[crawler.Capability][]*fakeElement{}, source: "<html></html>"}
}

func (s *fakeSession) add(c crawler.Capability, els ...*fakeElement) *fakeSession {
	s.byCap[c] = append(s.byCap[c], els...)
	if c != crawler.CapabilityAll {
		s.byCap[crawler.CapabilityAll] = append(s.byCap[crawler.CapabilityAll], els...)
	}
	return s
}

func (s *fakeSession) Navigate(context.Context, string) error { return nil }

func (s *fakeSession) WaitReady(context.Context, string) error { return nil }

func (s *fakeSession) Query(_ context.Context, c crawler.Capability) ([]crawler.Element, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]crawler.Element, 0, len(s.byCap[c]))
	for _, el := range s.byCap[c] {
		out = append(out, el)
	}
	return out, nil
}

func (s *fakeSession) Hover(_ context.Context, el crawler.Element) error {
	fe, ok := el.(*fakeElement)
	if !ok {
		return fmt.Errorf("unexpected element %T", el)
	}
	s.mu.Lock()
	s.hovered = append(s.hovered, fe.key)
	s.mu.Unlock()
	if fe.onHover != nil {
		fe.onHover(s)
	}
	return nil
}

func (s *fakeSession) PageSource(context.Context) (string, error) { return s.source, nil }

func (s *fakeSession) ContentSize(context.Context) (crawler.Viewport, error) {
	return crawler.Viewport{Width: 1920, Height: 1080}, nil
}

func (s *fakeSession) SetViewport(context.Context, crawler.Viewport) error { return nil }

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) { return nil, nil }

func (s *fakeSession) Err() error { return nil }

func (s *fakeSession) Close() error { return nil }

func box(x, y, w, h int) crawler.Rect {
	return crawler.Rect{X: x, Y: y, Width: w, Height: h}
}
