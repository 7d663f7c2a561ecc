// Package headless drives a headless Chrome through chromedp and exposes it as
// a crawler.Session.
package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

const (
	defaultWidth       = 1920
	defaultHeight      = 1080
	defaultWaitTimeout = 10 * time.Second
	defaultNavTimeout  = 30 * time.Second
)

// Config controls how each browser process is launched.
type Config struct {
	ExecPath          string
	Width             int
	Height            int
	WaitTimeout       time.Duration
	NavigationTimeout time.Duration
	Headless          bool
	DownloadDir       string
	UserAgent         string
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = defaultWidth
	}
	if c.Height <= 0 {
		c.Height = defaultHeight
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = defaultWaitTimeout
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavTimeout
	}
	return c
}

func (c Config) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(c.Width, c.Height),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	if c.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.UserAgent))
	}
	return opts
}

// Opener launches one Chrome process per Open call.
type Opener struct {
	cfg    Config
	logger *zap.Logger
}

// NewOpener creates an Opener for the provided configuration.
func NewOpener(cfg Config, logger *zap.Logger) *Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Opener{cfg: cfg.withDefaults(), logger: logger}
}

// Open starts a browser and returns a session bound to its first tab.
func (o *Opener) Open(ctx context.Context) (crawler.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: open canceled: %w", crawler.ErrSession, err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), o.cfg.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	setup := []chromedp.Action{
		chromedp.EmulateViewport(int64(o.cfg.Width), int64(o.cfg.Height)),
	}
	if o.cfg.DownloadDir != "" {
		setup = append(setup, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(o.cfg.DownloadDir))
	}
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: chromedp warmup: %w", crawler.ErrSession, err)
	}
	o.logger.Debug("browser session opened", zap.Int("width", o.cfg.Width), zap.Int("height", o.cfg.Height))
	return &Session{
		cfg:         o.cfg,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		logger:      o.logger,
	}, nil
}

// Session is a crawler.Session backed by a chromedp tab.
type Session struct {
	cfg         Config
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	closeOnce   sync.Once
	closeErr    error
}

// Navigate loads url, bounded by the navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("access url", zap.String("url", url))
	err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url))
	if err != nil {
		return s.classify(fmt.Sprintf("navigate %s", url), err)
	}
	return nil
}

// WaitReady waits for selector to be present in the document.
func (s *Session) WaitReady(ctx context.Context, selector string) error {
	err := s.run(ctx, s.cfg.WaitTimeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		return s.classify(fmt.Sprintf("wait for %q", selector), err)
	}
	return nil
}

// Query returns every node matching capability, in document order.
func (s *Session) Query(ctx context.Context, capability crawler.Capability) ([]crawler.Element, error) {
	xpath, err := capabilityXPath(capability)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	err = s.run(ctx, s.cfg.WaitTimeout, chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	if err != nil {
		return nil, s.classify(fmt.Sprintf("query %s elements", capability), err)
	}
	out := make([]crawler.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.NodeType != cdp.NodeTypeElement {
			continue
		}
		out = append(out, &element{node: n, session: s})
	}
	return out, nil
}

// Hover moves the pointer over the centre of el.
func (s *Session) Hover(ctx context.Context, el crawler.Element) error {
	target, ok := el.(*element)
	if !ok || target.session != s {
		return fmt.Errorf("hover: element %T does not belong to this session", el)
	}
	var centre struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := target.call(ctx, hoverPointScript, &centre); err != nil {
		return err
	}
	err := s.run(ctx, s.cfg.WaitTimeout, input.DispatchMouseEvent(input.MouseMoved, centre.X, centre.Y))
	if err != nil {
		return s.classify("dispatch mouse move", err)
	}
	return nil
}

// PageSource returns the serialized document markup.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.WaitTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", s.classify("read page source", err)
	}
	return html, nil
}

// ContentSize returns the body's scrollable size.
func (s *Session) ContentSize(ctx context.Context) (crawler.Viewport, error) {
	var size struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := s.run(ctx, s.cfg.WaitTimeout, chromedp.Evaluate(contentSizeScript, &size)); err != nil {
		return crawler.Viewport{}, s.classify("read content size", err)
	}
	return crawler.Viewport{Width: size.Width, Height: size.Height}, nil
}

// SetViewport resizes the emulated viewport.
func (s *Session) SetViewport(ctx context.Context, vp crawler.Viewport) error {
	if vp.Width <= 0 || vp.Height <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", vp.Width, vp.Height)
	}
	err := s.run(ctx, s.cfg.WaitTimeout, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height)))
	if err != nil {
		return s.classify("set viewport", err)
	}
	return nil
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, s.classify("capture screenshot", err)
	}
	return buf, nil
}

// Err reports whether the browser context has gone away.
func (s *Session) Err() error {
	if err := s.tabCtx.Err(); err != nil {
		return fmt.Errorf("%w: %w", crawler.ErrSession, err)
	}
	return nil
}

// Close shuts the browser down and waits for the process to exit.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("%w: close browser: %w", crawler.ErrSession, err)
		}
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("browser session closed")
	})
	return s.closeErr
}

// run executes actions on the tab, bounded by timeout and by the caller's context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.Err(); err != nil {
		return err
	}
	taskCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", crawler.ErrNavigationTimeout, err)
		}
		return err
	}
	return nil
}

// classify prefixes err and promotes it to ErrSession when the tab is gone.
func (s *Session) classify(op string, err error) error {
	if errors.Is(err, crawler.ErrSession) || errors.Is(err, crawler.ErrNavigationTimeout) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.tabCtx.Err() != nil {
		return fmt.Errorf("%s: %w: %w", op, crawler.ErrSession, err)
	}
	if isStaleNodeError(err) {
		return fmt.Errorf("%s: %w: %w", op, crawler.ErrStaleElement, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func capabilityXPath(c crawler.Capability) (string, error) {
	switch c {
	case crawler.CapabilityClickable:
		return clickableXPath, nil
	case crawler.CapabilityTitled:
		return titledXPath, nil
	case crawler.CapabilityAll:
		return allXPath, nil
	default:
		return "", fmt.Errorf("unsupported capability %d", int(c))
	}
}

func isStaleNodeError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range staleNodeMessages {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
