package scanner

import (
	"context"
	"fmt"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// Clickable returns the deduplicated clickable elements of page. A failing
// element is logged and skipped; the scan never aborts.
func (s *Scanner) Clickable(ctx context.Context, page Page) []crawler.PageElement {
	seen := signatures{}
	var out []crawler.PageElement
	for _, el := range s.query(ctx, page, crawler.CapabilityClickable) {
		found, ok, err := s.clickable(ctx, page, el, seen)
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

func (s *Scanner) clickable(
	ctx context.Context,
	page Page,
	el crawler.Element,
	seen signatures,
) (crawler.PageElement, bool, error) {
	rect, err := el.Rect(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read geometry: %w", err)
	}
	text, err := el.Text(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read text: %w", err)
	}
	if text == "" {
		text, err = el.Attribute(ctx, "value")
		if err != nil {
			return crawler.PageElement{}, false, fmt.Errorf("read value: %w", err)
		}
	}
	if text == "" || rect.Empty() || !page.inBounds(rect) {
		return crawler.PageElement{}, false, nil
	}
	if !seen.claim(rect) {
		return crawler.PageElement{}, false, nil
	}
	return crawler.NewPageElement(rect, text, crawler.ElementClickable), true, nil
}
