// Package scanner discovers clickable and tooltip-bearing elements on a loaded
// page and turns them into deduplicated crawler.PageElement records.
package scanner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// Hover strategies.
const (
	StrategyAttribute = "attribute"
	StrategyDiff      = "diff"
)

// Page is the scan target: a navigated session plus the capture coordinate space.
type Page struct {
	URL      string
	Session  crawler.Session
	Bounded  bool
	Viewport crawler.Viewport
}

func (p Page) inBounds(r crawler.Rect) bool {
	return !p.Bounded || p.Viewport.Contains(r)
}

// Config selects the hover strategy and the leaf check used by the diff strategy.
type Config struct {
	HoverStrategy string
	Leaf          LeafFunc
}

// Scanner runs element discovery against a Page.
type Scanner struct {
	strategy string
	leaf     LeafFunc
	logger   *zap.Logger
}

// New builds a Scanner.
func New(cfg Config, logger *zap.Logger) (*Scanner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.HoverStrategy {
	case "":
		cfg.HoverStrategy = StrategyAttribute
	case StrategyAttribute, StrategyDiff:
	default:
		return nil, fmt.Errorf("unknown hover strategy %q", cfg.HoverStrategy)
	}
	if cfg.Leaf == nil {
		cfg.Leaf = MarkupLeaf
	}
	return &Scanner{strategy: cfg.HoverStrategy, leaf: cfg.Leaf, logger: logger}, nil
}

// Hover runs the configured hover strategy.
func (s *Scanner) Hover(ctx context.Context, page Page) []crawler.PageElement {
	if s.strategy == StrategyDiff {
		return s.HoverDiff(ctx, page)
	}
	return s.Titled(ctx, page)
}

// signatures is a page-scoped geometry dedup set for one type pool.
type signatures map[string]struct{}

// claim records r and reports whether it was new.
func (s signatures) claim(r crawler.Rect) bool {
	key := r.Signature()
	if _, ok := s[key]; ok {
		return false
	}
	s[key] = struct{}{}
	return true
}

func (s *Scanner) query(ctx context.Context, page Page, c crawler.Capability) []crawler.Element {
	elements, err := page.Session.Query(ctx, c)
	if err != nil {
		s.logger.Warn("element query failed",
			zap.String("url", page.URL),
			zap.Stringer("capability", c),
			zap.Error(err),
		)
		return nil
	}
	return elements
}

func (s *Scanner) skip(page Page, el crawler.Element, err error) {
	s.logger.Warn("skipping element",
		zap.String("url", page.URL),
		zap.String("element", el.Key()),
		zap.Error(err),
	)
}

// drop records an element left out of the visible set or tooltip text.
func (s *Scanner) drop(page Page, el crawler.Element, err error) {
	s.logger.Debug("dropping element",
		zap.String("url", page.URL),
		zap.String("element", el.Key()),
		zap.Error(err),
	)
}

func (s *Scanner) found(page Page, el crawler.PageElement) {
	s.logger.Debug("element found",
		zap.String("url", page.URL),
		zap.String("type", string(el.Type)),
		zap.Int("x", el.LeftTop.X),
		zap.Int("y", el.LeftTop.Y),
		zap.Int("w", el.Size.W),
		zap.Int("h", el.Size.H),
		zap.String("text", el.Text),
	)
}
