package scanner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// tipSeparator joins every tooltip text revealed by a single hover.
const tipSeparator = "@@"

// HoverDiff hovers every visible leaf element and reports the text of leaves
// that become visible as a result.
//
// The markup and visible-set baselines are taken once before the loop, so a
// hover whose effect persists is attributed to later candidates as well. Cost
// is one visible-set query per hover that changes the markup.
func (s *Scanner) HoverDiff(ctx context.Context, page Page) []crawler.PageElement {
	baseline, err := page.Session.PageSource(ctx)
	if err != nil {
		s.logger.Warn("read baseline markup failed", zap.String("url", page.URL), zap.Error(err))
		return nil
	}
	candidates := s.visible(ctx, page)
	before := make(map[string]struct{}, len(candidates))
	for _, el := range candidates {
		before[el.Key()] = struct{}{}
	}

	seen := signatures{}
	var out []crawler.PageElement
	for _, el := range candidates {
		found, ok, err := s.hoverDiff(ctx, page, el, baseline, before, seen)
		if err != nil {
			s.skip(page, el, err)
			continue
		}
		if !ok {
			continue
		}
		s.found(page, found)
		out = append(out, found)
	}
	return out
}

func (s *Scanner) hoverDiff(
	ctx context.Context,
	page Page,
	el crawler.Element,
	baseline string,
	before map[string]struct{},
	seen signatures,
) (crawler.PageElement, bool, error) {
	leaf, err := s.leaf(ctx, el)
	if err != nil || !leaf {
		return crawler.PageElement{}, false, err
	}
	rect, err := el.Rect(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read geometry: %w", err)
	}
	visible, err := el.Visible(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read visibility: %w", err)
	}
	if !visible || rect.Empty() || !page.inBounds(rect) || !seen.claim(rect) {
		return crawler.PageElement{}, false, nil
	}

	if err := page.Session.Hover(ctx, el); err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("hover: %w", err)
	}
	after, err := page.Session.PageSource(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read markup after hover: %w", err)
	}
	if after == baseline {
		return crawler.PageElement{}, false, nil
	}

	var tips []string
	for _, shown := range s.visible(ctx, page) {
		if _, ok := before[shown.Key()]; ok {
			continue
		}
		text, ok := s.tipText(ctx, page, shown)
		if ok {
			tips = append(tips, text)
		}
	}
	if len(tips) == 0 {
		return crawler.PageElement{}, false, nil
	}
	return crawler.NewPageElement(rect, strings.Join(tips, tipSeparator), crawler.ElementHover), true, nil
}

// tipText returns the text of a newly shown leaf, if any. Failures on the
// revealed element only drop that element.
func (s *Scanner) tipText(ctx context.Context, page Page, el crawler.Element) (string, bool) {
	leaf, err := s.leaf(ctx, el)
	if err != nil {
		s.drop(page, el, fmt.Errorf("leaf check: %w", err))
		return "", false
	}
	if !leaf {
		return "", false
	}
	text, err := el.Text(ctx)
	if err != nil {
		s.drop(page, el, fmt.Errorf("read text: %w", err))
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// visible lists the elements currently displayed, in document order.
func (s *Scanner) visible(ctx context.Context, page Page) []crawler.Element {
	all := s.query(ctx, page, crawler.CapabilityAll)
	out := make([]crawler.Element, 0, len(all))
	for _, el := range all {
		ok, err := el.Visible(ctx)
		if err != nil {
			s.drop(page, el, fmt.Errorf("read visibility: %w", err))
			continue
		}
		if !ok {
			continue
		}
		out = append(out, el)
	}
	return out
}
