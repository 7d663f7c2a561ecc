// Package worker runs one browser session over a static block of URLs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/element-crawler/internal/annotator"
	"github.com/JakeFAU/element-crawler/internal/crawler"
	"github.com/JakeFAU/element-crawler/internal/metrics"
	"github.com/JakeFAU/element-crawler/internal/scanner"
	"github.com/JakeFAU/element-crawler/internal/storage/local"
)

// Config controls Worker behavior.
type Config struct {
	// RestartInterval recycles the browser after this many processed URLs. Zero disables restarts.
	RestartInterval int
	// MaxQPS caps navigations per second for this worker. Zero means unlimited.
	MaxQPS      float64
	Bounded     bool
	ScrapeHover bool
	DrawBoxes   bool
}

// Mirror is an optional sink whose failures are logged and counted but never
// stop the worker.
type Mirror struct {
	Name string
	Sink crawler.ResultSink
}

// Stats summarizes one Run.
type Stats struct {
	Processed int
	Failed    int
	Restarts  int
}

// Worker processes a WorkerBlock strictly in order with one browser session.
type Worker struct {
	id        int
	opener    crawler.SessionOpener
	scanner   *scanner.Scanner
	annotator *annotator.Annotator
	hasher    crawler.Hasher
	mirrors   []Mirror
	limiter   *rate.Limiter
	cfg       Config
	logger    *zap.Logger

	stats Stats
}

// New constructs a Worker.
func New(
	id int,
	opener crawler.SessionOpener,
	scan *scanner.Scanner,
	annot *annotator.Annotator,
	hasher crawler.Hasher,
	mirrors []Mirror,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	var limiter *rate.Limiter
	if cfg.MaxQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxQPS), 1)
	}
	return &Worker{
		id:        id,
		opener:    opener,
		scanner:   scan,
		annotator: annot,
		hasher:    hasher,
		mirrors:   mirrors,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Stats returns the counters of the last Run.
func (w *Worker) Stats() Stats {
	return w.stats
}

// Run processes every URL of block. Per-URL failures are logged and skipped.
// It returns an error wrapping crawler.ErrSession when the browser cannot be
// (re)acquired or dies, one wrapping crawler.ErrPersistence when output cannot
// be written, or the context error on cancellation. The session is released
// on every return path.
func (w *Worker) Run(ctx context.Context, block crawler.WorkerBlock) (err error) {
	w.stats = Stats{}

	out, err := local.Create(block.Paths.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if len(block.URLs) == 0 {
		return nil
	}
	sess, err := w.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { w.release(sess) }()

	for i, url := range block.URLs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			w.logger.Info("worker stopping", zap.Int("processed", w.stats.Processed), zap.Error(ctxErr))
			return fmt.Errorf("worker %d: %w", w.id, ctxErr)
		}

		if perr := w.handleURL(ctx, sess, out, block.Paths.ImageDir, url); perr != nil {
			if errors.Is(perr, crawler.ErrPersistence) {
				w.logger.Error("persist page failed", zap.String("url", url), zap.Error(perr))
				return fmt.Errorf("worker %d: %w", w.id, perr)
			}
			w.stats.Failed++
			w.logger.Error("process url failed", zap.String("url", url), zap.Error(perr))
			if deadErr := sess.Err(); deadErr != nil {
				return fmt.Errorf("worker %d: %w: %w", w.id, crawler.ErrSession, deadErr)
			}
		}
		w.stats.Processed++

		n := i + 1
		if w.cfg.RestartInterval > 0 && n%w.cfg.RestartInterval == 0 {
			w.logger.Info("restarting browser", zap.Int("processed", n))
			w.release(sess)
			sess = nil
			if sess, err = w.acquire(ctx); err != nil {
				return err
			}
			w.stats.Restarts++
			metrics.ObserveSessionRestart()
			w.logger.Info("browser restarted", zap.Int("restarts", w.stats.Restarts))
		}
	}
	return nil
}

func (w *Worker) acquire(ctx context.Context) (crawler.Session, error) {
	sess, err := w.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("worker %d: open browser: %w: %w", w.id, crawler.ErrSession, err)
	}
	metrics.IncActiveWorkers()
	return sess, nil
}

func (w *Worker) release(sess crawler.Session) {
	if sess == nil {
		return
	}
	if err := sess.Close(); err != nil {
		w.logger.Warn("close browser failed", zap.Error(err))
	}
	metrics.DecActiveWorkers()
}

func (w *Worker) handleURL(
	ctx context.Context,
	sess crawler.Session,
	out crawler.ResultSink,
	imageDir string,
	url string,
) error {
	start := time.Now()
	result, err := w.capture(ctx, sess, imageDir, url)
	if err != nil {
		metrics.ObservePage(metrics.StatusFailed, time.Since(start))
		return err
	}
	if err := out.Write(ctx, result); err != nil {
		metrics.ObservePage(metrics.StatusFailed, time.Since(start))
		return err
	}
	w.mirror(ctx, result)

	metrics.ObservePage(metrics.StatusOK, time.Since(start))
	clickable, hover := countTypes(result.Elements)
	metrics.ObserveElements(string(crawler.ElementClickable), clickable)
	metrics.ObserveElements(string(crawler.ElementHover), hover)
	w.logger.Debug("page processed",
		zap.String("url", url),
		zap.Int("clickable", clickable),
		zap.Int("hover", hover),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// capture runs navigate, prepare, scan, hover and screenshot for one URL.
func (w *Worker) capture(ctx context.Context, sess crawler.Session, imageDir, url string) (crawler.CaptureResult, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return crawler.CaptureResult{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if err := sess.Navigate(ctx, url); err != nil {
		return crawler.CaptureResult{}, err
	}
	vp, err := w.annotator.Prepare(ctx, sess)
	if err != nil {
		return crawler.CaptureResult{}, err
	}

	page := scanner.Page{URL: url, Session: sess, Bounded: w.cfg.Bounded, Viewport: vp}
	elements := w.scanner.Clickable(ctx, page)
	if w.cfg.ScrapeHover {
		elements = append(elements, w.scanner.Hover(ctx, page)...)
	}

	name, err := annotator.ImageName(w.hasher, url, "")
	if err != nil {
		return crawler.CaptureResult{}, err
	}
	imagePath := filepath.Join(imageDir, name)
	if err := w.annotator.Capture(ctx, sess, imagePath, elements, w.cfg.DrawBoxes, vp.Width, vp.Height); err != nil {
		return crawler.CaptureResult{}, err
	}
	return crawler.CaptureResult{URL: url, ImagePath: imagePath, Elements: elements}, nil
}

func (w *Worker) mirror(ctx context.Context, result crawler.CaptureResult) {
	for _, m := range w.mirrors {
		if err := m.Sink.Write(ctx, result); err != nil {
			metrics.ObserveSinkFailure(m.Name)
			w.logger.Warn("mirror write failed",
				zap.String("sink", m.Name),
				zap.String("url", result.URL),
				zap.Error(err),
			)
		}
	}
}

func countTypes(elements []crawler.PageElement) (clickable, hover int) {
	for _, el := range elements {
		switch el.Type {
		case crawler.ElementClickable:
			clickable++
		case crawler.ElementHover:
			hover++
		}
	}
	return clickable, hover
}
