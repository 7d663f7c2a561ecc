package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/dispatcher"
	"github.com/JakeFAU/element-crawler/internal/server"
	"github.com/JakeFAU/element-crawler/internal/urls"
)

const finishedMessage = "All workers have finished"

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls one batch of a CDX index with a pool of browser workers",
		Long: `Extracts URLs from the CDX file, shuffles them with the configured seed,
takes batch number <batch> of <num-urls> URLs, splits it across the workers and
writes <id>.txt, <id>_out.jsonl and <id>_images under <out-root>/tasks<batch>.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
	fs := cmd.Flags()
	fs.String("cdx-path", "", "CDX index file to read URLs from")
	fs.String("out-root", "./data/tasks", "root directory for batch output")
	fs.Int("batch", 0, "batch number; selects URLs [batch*num-urls, (batch+1)*num-urls)")
	fs.Int("num-workers", 20, "number of parallel browser workers")
	fs.Int64("seed", 42, "shuffle seed")
	fs.Int("num-urls", 10000, "URLs per batch")
	fs.Int("restart-interval", 100, "restart each browser after this many URLs (0 disables)")
	fs.Float64("max-qps", 0, "per-worker navigation rate limit (0 = unlimited)")
	fs.String("metrics-addr", "", "serve /metrics and /healthz on this address")
	fs.Bool("dry-run-notices", false, "log page notices instead of publishing them to Pub/Sub")
	addCaptureFlags(cmd)

	for name, key := range map[string]string{
		"cdx-path":         "crawl.cdx_path",
		"out-root":         "crawl.out_root",
		"batch":            "crawl.batch",
		"num-workers":      "crawl.num_workers",
		"seed":             "crawl.seed",
		"num-urls":         "crawl.num_urls",
		"restart-interval": "crawl.restart_interval",
		"max-qps":          "crawl.max_qps",
		"metrics-addr":     "metrics.addr",
		"dry-run-notices":  "pubsub.dry_run",
	} {
		bindFlag(fs, name, key)
	}
	return cmd
}

// addCaptureFlags registers the browser and capture flags shared by crawl and visit.
func addCaptureFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.Int("width", 1920, "viewport width")
	fs.Int("height", 1080, "viewport height")
	fs.Duration("wait-timeout", 0, "page readiness timeout")
	fs.String("exec-path", "", "Chrome executable")
	fs.Bool("headless", true, "run Chrome without a window")
	fs.Bool("bounded", false, "keep the configured viewport and drop elements outside it")
	fs.Bool("scrape-hover", false, "also record tooltip-bearing elements")
	fs.Bool("draw-boxes", false, "outline recorded elements on the screenshot")
	fs.String("hover-strategy", "attribute", "hover strategy: attribute or diff")
	fs.String("leaf-check", "markup", "diff strategy leaf check: markup or structural")
	for name, key := range map[string]string{
		"width":          "browser.width",
		"height":         "browser.height",
		"wait-timeout":   "browser.wait_timeout",
		"exec-path":      "browser.exec_path",
		"headless":       "browser.headless",
		"bounded":        "capture.bounded",
		"scrape-hover":   "capture.scrape_hover",
		"draw-boxes":     "capture.draw_boxes",
		"hover-strategy": "capture.hover_strategy",
		"leaf-check":     "capture.leaf_check",
	} {
		bindFlag(fs, name, key)
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx, cfg, logger := cmd.Context(), e.cfg, e.logger
	if cfg.Crawl.CDXPath == "" {
		return errors.New("crawl.cdx_path is required")
	}

	all, err := urls.ExtractURLs(cfg.Crawl.CDXPath, logger.Named("cdx"))
	if err != nil {
		return err
	}
	urls.Shuffle(all, cfg.Crawl.Seed)
	selected := batchSlice(all, cfg.Crawl.SliceStart(), cfg.Crawl.NumURLs)
	logger.Info("urls selected",
		zap.Int("total", len(all)),
		zap.Int("batch", cfg.Crawl.Batch),
		zap.Int("selected", len(selected)),
	)

	outDir := cfg.Crawl.OutputDir()
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	blocks, err := dispatcher.Partition(selected, cfg.Crawl.NumWorkers, outDir)
	if err != nil {
		return err
	}
	if err := dispatcher.WriteTaskFiles(blocks); err != nil {
		return err
	}

	mirrors, err := openSinks(ctx, cfg, e.runID, logger)
	if err != nil {
		return err
	}
	defer mirrors.close(logger)

	if cfg.Metrics.Addr != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()
		go func() {
			if err := server.New(e.runID, logger.Named("http")).ListenAndServe(srvCtx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	d := dispatcher.New(func(id int) (dispatcher.Runner, error) {
		return newWorker(id, cfg, mirrors.forWorker(id), logger)
	}, logger.Named("dispatcher"))
	summary := d.Run(ctx, blocks)

	logger.Info("crawl finished",
		zap.Int("workers_finished", summary.Finished),
		zap.Int("workers_failed", len(summary.Failed)),
	)
	fmt.Fprintln(cmd.OutOrStdout(), finishedMessage)
	return nil
}

// batchSlice returns up to n URLs starting at start, clamped to the list.
func batchSlice(all []string, start, n int) []string {
	if start >= len(all) {
		return nil
	}
	end := start + n
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
