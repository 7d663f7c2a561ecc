package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// Titled returns visible elements carrying a title attribute, labelled by
// their text or, when blank, by the title itself.
func (s *Scanner) Titled(ctx context.Context, page Page) []crawler.PageElement {
	seen := signatures{}
	var out []crawler.PageElement
	for _, el := range s.query(ctx, page, crawler.CapabilityTitled) {
		found, ok, err := s.titled(ctx, page, el, seen)
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

func (s *Scanner) titled(
	ctx context.Context,
	page Page,
	el crawler.Element,
	seen signatures,
) (crawler.PageElement, bool, error) {
	rect, err := el.Rect(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read geometry: %w", err)
	}
	visible, err := el.Visible(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read visibility: %w", err)
	}
	if !visible || rect.Empty() || !page.inBounds(rect) {
		return crawler.PageElement{}, false, nil
	}
	label, err := el.Text(ctx)
	if err != nil {
		return crawler.PageElement{}, false, fmt.Errorf("read text: %w", err)
	}
	if strings.TrimSpace(label) == "" {
		label, err = el.Attribute(ctx, "title")
		if err != nil {
			return crawler.PageElement{}, false, fmt.Errorf("read title: %w", err)
		}
	}
	if strings.TrimSpace(label) == "" || !seen.claim(rect) {
		return crawler.PageElement{}, false, nil
	}
	return crawler.NewPageElement(rect, label, crawler.ElementHover), true, nil
}
