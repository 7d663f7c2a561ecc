package scanner

import (
	"context"
	"fmt"
	"regexp"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// Leaf checks.
const (
	LeafMarkup     = "markup"
	LeafStructural = "structural"
)

// LeafFunc decides whether el has no nested structure.
type LeafFunc func(ctx context.Context, el crawler.Element) (bool, error)

// nestedTags matches two tags anywhere in the serialized inner markup.
var nestedTags = regexp.MustCompile(`(?s)<[^>]*>.*?<[^>]*>`)

// MarkupLeaf treats el as a leaf when its inner markup does not contain one
// tag followed by another. Text-pattern heuristic; `<b>x</b>` is not a leaf.
func MarkupLeaf(ctx context.Context, el crawler.Element) (bool, error) {
	html, err := el.InnerHTML(ctx)
	if err != nil {
		return false, fmt.Errorf("read inner markup: %w", err)
	}
	return !nestedTags.MatchString(html), nil
}

// StructuralLeaf treats el as a leaf when it has no child elements.
func StructuralLeaf(ctx context.Context, el crawler.Element) (bool, error) {
	n, err := el.ChildCount(ctx)
	if err != nil {
		return false, fmt.Errorf("count children: %w", err)
	}
	return n == 0, nil
}

// LeafByName resolves a configured leaf check.
func LeafByName(name string) (LeafFunc, error) {
	switch name {
	case "", LeafMarkup:
		return MarkupLeaf, nil
	case LeafStructural:
		return StructuralLeaf, nil
	default:
		return nil, fmt.Errorf("unknown leaf check %q", name)
	}
}
