package annotator

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// drawBox outlines r on dst with a stroke of the given width drawn inwards
// from the box edge. Parts outside dst are clipped.
func drawBox(dst draw.Image, r crawler.Rect, c color.Color, stroke int) {
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.Width+1, r.Y+r.Height+1
	if stroke > r.Width || stroke > r.Height {
		stroke = min(r.Width, r.Height) + 1
	}
	src := &image.Uniform{C: c}
	sides := []image.Rectangle{
		image.Rect(x0, y0, x1, y0+stroke),
		image.Rect(x0, y1-stroke, x1, y1),
		image.Rect(x0, y0, x0+stroke, y1),
		image.Rect(x1-stroke, y0, x1, y1),
	}
	for _, side := range sides {
		draw.Draw(dst, side.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}
