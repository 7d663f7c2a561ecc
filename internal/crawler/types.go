// Package crawler defines core types shared across subsystems.
package crawler

import (
	"encoding/json"
	"fmt"
)

// ElementType distinguishes the pool an element was discovered in.
type ElementType string

// Element types emitted by the scanners.
const (
	ElementClickable ElementType = "clickable"
	ElementHover     ElementType = "hover"
)

// WireName returns the value written to the "type" field of a Record.
func (t ElementType) WireName() string {
	if t == ElementClickable {
		return "text"
	}
	return string(t)
}

// Point is a page-space coordinate.
type Point struct {
	X int
	Y int
}

// Size is a width/height pair in CSS pixels.
type Size struct {
	W int
	H int
}

// Rect is an element's bounding box in page coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either side of the box is zero.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Signature is the page-scoped dedup key "x-y-w-h".
func (r Rect) Signature() string {
	return fmt.Sprintf("%d-%d-%d-%d", r.X, r.Y, r.Width, r.Height)
}

// Viewport is the capture coordinate space shared by scanners and the annotator.
type Viewport struct {
	Width  int
	Height int
}

// Contains reports whether the box's bottom-right corner lies strictly inside the viewport.
func (v Viewport) Contains(r Rect) bool {
	return r.X+r.Width < v.Width && r.Y+r.Height < v.Height
}

// PageElement is one discovered element on a page.
type PageElement struct {
	LeftTop Point
	Size    Size
	Text    string
	Type    ElementType
}

// NewPageElement builds an element from a bounding box.
func NewPageElement(r Rect, text string, kind ElementType) PageElement {
	return PageElement{
		LeftTop: Point{X: r.X, Y: r.Y},
		Size:    Size{W: r.Width, H: r.Height},
		Text:    text,
		Type:    kind,
	}
}

// Rect returns the element's bounding box.
func (e PageElement) Rect() Rect {
	return Rect{X: e.LeftTop.X, Y: e.LeftTop.Y, Width: e.Size.W, Height: e.Size.H}
}

// Signature is the geometry key of the element.
func (e PageElement) Signature() string {
	return e.Rect().Signature()
}

// CaptureResult is the output of processing one URL.
type CaptureResult struct {
	URL       string
	ImagePath string
	Elements  []PageElement
}

// Records flattens the result into one Record per element, preserving order.
func (r CaptureResult) Records() []Record {
	out := make([]Record, 0, len(r.Elements))
	for _, el := range r.Elements {
		out = append(out, Record{
			LeftTop:   [2]int{el.LeftTop.X, el.LeftTop.Y},
			Size:      [2]int{el.Size.W, el.Size.H},
			Text:      el.Text,
			Type:      el.Type.WireName(),
			URL:       r.URL,
			ImagePath: r.ImagePath,
		})
	}
	return out
}

// Record is the JSON-Lines row persisted per element.
type Record struct {
	LeftTop   [2]int `json:"left-top"`
	Size      [2]int `json:"size"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	ImagePath string `json:"image_path"`
}

// MarshalLine encodes the record as a single JSON line without the trailing newline.
func (r Record) MarshalLine() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// BlockPaths lists the files owned by one worker.
type BlockPaths struct {
	TaskFile   string
	OutputFile string
	ImageDir   string
}

// WorkerBlock is a static slice of the URL list assigned to one worker.
type WorkerBlock struct {
	WorkerID int
	URLs     []string
	Paths    BlockPaths
}
