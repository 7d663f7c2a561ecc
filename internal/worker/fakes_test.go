package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

type fakeElement struct {
	key   string
	rect  crawler.Rect
	text  string
	title string
}

func (e *fakeElement) Key() string { return e.key }

func (e *fakeElement) Rect(context.Context) (crawler.Rect, error) { return e.rect, nil }

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(_ context.Context, name string) (string, error) {
	if name == "title" {
		return e.title, nil
	}
	return "", nil
}

func (e *fakeElement) Visible(context.Context) (bool, error) { return true, nil }

func (e *fakeElement) InnerHTML(context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) ChildCount(context.Context) (int, error) { return 0, nil }

type fakeSession struct {
	mu        sync.Mutex
	id        int
	png       []byte
	visited   []string
	failOn    map[string]error
	deadAfter string
	dead      error
	closed    bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, url)
	if url == s.deadAfter {
		s.dead = errors.New("target closed")
		return fmt.Errorf("navigate %s: %w", url, crawler.ErrSession)
	}
	if err := s.failOn[url]; err != nil {
		return err
	}
	return nil
}

func (s *fakeSession) WaitReady(context.Context, string) error { return nil }

func (s *fakeSession) Query(_ context.Context, c crawler.Capability) ([]crawler.Element, error) {
	switch c {
	case crawler.CapabilityClickable:
		return []crawler.Element{&fakeElement{key: "btn", rect: crawler.Rect{X: 1, Y: 1, Width: 4, Height: 3}, text: "Go"}}, nil
	case crawler.CapabilityTitled:
		return []crawler.Element{&fakeElement{key: "icon", rect: crawler.Rect{X: 6, Y: 1, Width: 2, Height: 2}, title: "Info"}}, nil
	default:
		return nil, nil
	}
}

func (s *fakeSession) Hover(context.Context, crawler.Element) error { return nil }

func (s *fakeSession) PageSource(context.Context) (string, error) { return "<html></html>", nil }

func (s *fakeSession) ContentSize(context.Context) (crawler.Viewport, error) {
	return crawler.Viewport{Width: 16, Height: 12}, nil
}

func (s *fakeSession) SetViewport(context.Context, crawler.Viewport) error { return nil }

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) { return s.png, nil }

func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeOpener struct {
	mu       sync.Mutex
	sessions []*fakeSession
	failAt   int // 1-based Open call that fails; 0 never
	template fakeSession
	png      []byte
}

func newFakeOpener() *fakeOpener {
	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(16, 12, color.White)); err != nil {
		panic(err)
	}
	return &fakeOpener{png: buf.Bytes()}
}

func (o *fakeOpener) Open(ctx context.Context) (crawler.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.failAt == len(o.sessions)+1 {
		return nil, errors.New("chrome failed to start")
	}
	s := &fakeSession{
		id:        len(o.sessions),
		png:       o.png,
		failOn:    o.template.failOn,
		deadAfter: o.template.deadAfter,
	}
	o.sessions = append(o.sessions, s)
	return s, nil
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

func (o *fakeOpener) allClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sessions {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			return false
		}
	}
	return true
}

type fakeHasher struct{}

func (fakeHasher) Hash(data []byte) (string, error) {
	return strings.NewReplacer(":", "_", "/", "_", ".", "_").Replace(string(data)), nil
}

type recordingSink struct {
	mu      sync.Mutex
	results []crawler.CaptureResult
	err     error
}

func (s *recordingSink) Write(_ context.Context, r crawler.CaptureResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.err
}
