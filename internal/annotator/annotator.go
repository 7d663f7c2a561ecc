// Package annotator waits for a page to settle, captures its screenshot and
// draws the discovered element boxes onto it.
package annotator

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

const (
	defaultReadySelector = "div"
	defaultBoxWidth      = 2
)

// BoxColor is the outline colour of drawn element boxes.
var BoxColor = color.NRGBA{R: 255, A: 255}

// Config controls page preparation and annotation.
type Config struct {
	// Bounded keeps the configured viewport; otherwise the viewport grows to the page content.
	Bounded       bool
	Width         int
	Height        int
	// SettleDelay is waited after the page is ready. Zero disables it.
	SettleDelay   time.Duration
	ReadySelector string
	BoxWidth      int
}

// Annotator prepares pages for scanning and writes annotated screenshots.
type Annotator struct {
	cfg    Config
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New builds an Annotator, filling unset fields with defaults.
func New(cfg Config, logger *zap.Logger) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.ReadySelector == "" {
		cfg.ReadySelector = defaultReadySelector
	}
	if cfg.BoxWidth <= 0 {
		cfg.BoxWidth = defaultBoxWidth
	}
	return &Annotator{cfg: cfg, logger: logger, sleep: sleepContext}
}

// Prepare waits for the page to be minimally ready, applies the settle delay
// and resolves the capture viewport. In auto mode the viewport is resized to
// the page's scrollable size so element coordinates match the final image.
// Rendering may still be incomplete afterwards.
func (a *Annotator) Prepare(ctx context.Context, sess crawler.Session) (crawler.Viewport, error) {
	if err := sess.WaitReady(ctx, a.cfg.ReadySelector); err != nil {
		return crawler.Viewport{}, fmt.Errorf("wait for page: %w", err)
	}
	if err := a.sleep(ctx, a.cfg.SettleDelay); err != nil {
		return crawler.Viewport{}, fmt.Errorf("settle delay: %w", err)
	}

	configured := crawler.Viewport{Width: a.cfg.Width, Height: a.cfg.Height}
	if a.cfg.Bounded {
		return configured, nil
	}
	size, err := sess.ContentSize(ctx)
	if err != nil {
		return crawler.Viewport{}, fmt.Errorf("resolve content size: %w", err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		a.logger.Warn("empty content size, keeping configured viewport",
			zap.Int("width", size.Width), zap.Int("height", size.Height))
		size = configured
	}
	if err := sess.SetViewport(ctx, size); err != nil {
		return crawler.Viewport{}, fmt.Errorf("apply viewport: %w", err)
	}
	return size, nil
}

// Capture writes the screenshot of sess to outputPath, rescaled to width x
// height, with one box per element when drawBoxes is set. A file is left at
// outputPath on every return path that reaches the screenshot step; when the
// browser cannot produce a screenshot a blank placeholder is written and the
// capture error is still returned.
func (a *Annotator) Capture(
	ctx context.Context,
	sess crawler.Session,
	outputPath string,
	elements []crawler.PageElement,
	drawBoxes bool,
	width, height int,
) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid capture size %dx%d", width, height)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("%w: create image dir: %w", crawler.ErrPersistence, err)
	}

	a.logger.Info("save screenshot", zap.String("path", outputPath))
	shot, shotErr := sess.Screenshot(ctx)
	if shotErr != nil {
		if err := imaging.Save(imaging.New(width, height, color.White), outputPath); err != nil {
			return fmt.Errorf("%w: write placeholder %s: %w", crawler.ErrPersistence, outputPath, err)
		}
		return fmt.Errorf("capture screenshot: %w", shotErr)
	}
	if err := os.WriteFile(outputPath, shot, 0o600); err != nil {
		return fmt.Errorf("%w: write screenshot %s: %w", crawler.ErrPersistence, outputPath, err)
	}

	img, err := imaging.Open(outputPath)
	if err != nil {
		return fmt.Errorf("reload screenshot %s: %w", outputPath, err)
	}
	canvas := fit(img, width, height)
	if drawBoxes {
		for _, el := range elements {
			drawBox(canvas, el.Rect(), BoxColor, a.cfg.BoxWidth)
		}
	}
	if err := imaging.Save(canvas, outputPath); err != nil {
		return fmt.Errorf("%w: save annotated image %s: %w", crawler.ErrPersistence, outputPath, err)
	}
	return nil
}

// fit returns a mutable copy of img scaled to exactly width x height.
func fit(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// ImageName returns explicit when set, otherwise the hex digest of url; both with a .png suffix.
func ImageName(h crawler.Hasher, url, explicit string) (string, error) {
	if explicit != "" {
		return explicit + ".png", nil
	}
	sum, err := h.Hash([]byte(url))
	if err != nil {
		return "", fmt.Errorf("hash url: %w", err)
	}
	return sum + ".png", nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
