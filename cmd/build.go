package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/annotator"
	"github.com/JakeFAU/element-crawler/internal/browser/headless"
	"github.com/JakeFAU/element-crawler/internal/clock/system"
	"github.com/JakeFAU/element-crawler/internal/config"
	"github.com/JakeFAU/element-crawler/internal/hash/md5"
	"github.com/JakeFAU/element-crawler/internal/logging"
	"github.com/JakeFAU/element-crawler/internal/publisher"
	"github.com/JakeFAU/element-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/element-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/element-crawler/internal/scanner"
	"github.com/JakeFAU/element-crawler/internal/storage/gcs"
	"github.com/JakeFAU/element-crawler/internal/storage/postgres"
	"github.com/JakeFAU/element-crawler/internal/worker"
)

func browserConfig(cfg config.BrowserConfig) headless.Config {
	return headless.Config{
		ExecPath:          cfg.ExecPath,
		Width:             cfg.Width,
		Height:            cfg.Height,
		WaitTimeout:       cfg.WaitTimeout,
		NavigationTimeout: cfg.NavTimeout,
		Headless:          cfg.Headless,
		DownloadDir:       cfg.DownloadDir,
		UserAgent:         cfg.UserAgent,
	}
}

func workerConfig(cfg config.Config) worker.Config {
	return worker.Config{
		RestartInterval: cfg.Crawl.RestartInterval,
		MaxQPS:          cfg.Crawl.MaxQPS,
		Bounded:         cfg.Capture.Bounded,
		ScrapeHover:     cfg.Capture.ScrapeHover,
		DrawBoxes:       cfg.Capture.DrawBoxes,
	}
}

func newScanner(cfg config.CaptureConfig, logger *zap.Logger) (*scanner.Scanner, error) {
	leaf, err := scanner.LeafByName(cfg.LeafCheck)
	if err != nil {
		return nil, err
	}
	return scanner.New(scanner.Config{HoverStrategy: cfg.HoverStrategy, Leaf: leaf}, logger.Named("scanner"))
}

func newAnnotator(cfg config.Config, logger *zap.Logger) *annotator.Annotator {
	return annotator.New(annotator.Config{
		Bounded:     cfg.Capture.Bounded,
		Width:       cfg.Browser.Width,
		Height:      cfg.Browser.Height,
		SettleDelay: cfg.Capture.SettleDelay,
		BoxWidth:    cfg.Capture.BoxWidth,
	}, logger.Named("annotator"))
}

const defaultDryRunTopic = "page-notices"

// sinks holds the optional mirrors shared by every worker of a run.
type sinks struct {
	elements *postgres.ElementStore
	blobs    *gcs.BlobStore
	images   *gcs.ImageMirror
	pub      publisher.Publisher
	pubClose func() error
	topic    string
	runID    string
}

func openSinks(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger) (*sinks, error) {
	s := &sinks{topic: cfg.PubSub.TopicName, runID: runID}
	if cfg.DB.DSN != "" {
		store, err := postgres.NewElementStore(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		}, runID, system.New())
		if err != nil {
			return nil, fmt.Errorf("element store init failed: %w", err)
		}
		s.elements = store
		logger.Info("element store initialized", zap.String("table", cfg.DB.Table))
	}
	if cfg.Storage.GCSBucket != "" {
		blobs, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix}, logger)
		if err != nil {
			s.close(logger)
			return nil, fmt.Errorf("screenshot mirror init failed: %w", err)
		}
		s.blobs = blobs
		if s.images, err = gcs.NewImageMirror(blobs, cfg.Storage.Prefix, runID, logger.Named("gcs")); err != nil {
			s.close(logger)
			return nil, err
		}
		logger.Info("screenshot mirror initialized", zap.String("bucket", cfg.Storage.GCSBucket))
	}
	if cfg.PubSub.ProjectID != "" {
		pub, err := gcppublisher.Open(ctx, gcppublisher.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicName: cfg.PubSub.TopicName,
		}, runID, logger)
		if err != nil {
			s.close(logger)
			return nil, err
		}
		s.pub, s.pubClose = pub, pub.Close
	} else if cfg.PubSub.DryRun {
		if s.topic == "" {
			s.topic = defaultDryRunTopic
		}
		s.pub = memory.New(logger.Named("notices"))
		logger.Info("page notices logged locally", zap.String("topic", s.topic))
	}
	return s, nil
}

// forWorker returns the mirrors of one worker.
func (s *sinks) forWorker(id int) []worker.Mirror {
	var out []worker.Mirror
	if s.elements != nil {
		out = append(out, worker.Mirror{Name: "postgres", Sink: s.elements})
	}
	if s.images != nil {
		out = append(out, worker.Mirror{Name: "gcs", Sink: s.images})
	}
	if s.pub != nil {
		out = append(out, worker.Mirror{Name: "pubsub", Sink: publisher.NewNoticeSink(s.pub, s.topic, s.runID, id)})
	}
	return out
}

func (s *sinks) close(logger *zap.Logger) {
	if s.elements != nil {
		s.elements.Close()
	}
	if s.blobs != nil {
		if err := s.blobs.Close(); err != nil {
			logger.Warn("close gcs client", zap.Error(err))
		}
	}
	if s.pubClose != nil {
		if err := s.pubClose(); err != nil {
			logger.Warn("close pubsub client", zap.Error(err))
		}
	}
}

// newWorker assembles the pipeline of one worker with its own browser opener.
func newWorker(id int, cfg config.Config, mirrors []worker.Mirror, logger *zap.Logger) (*worker.Worker, error) {
	wlog := logging.ForWorker(logger, id)
	scan, err := newScanner(cfg.Capture, wlog)
	if err != nil {
		return nil, err
	}
	opener := headless.NewOpener(browserConfig(cfg.Browser), wlog.Named("browser"))
	return worker.New(id, opener, scan, newAnnotator(cfg, wlog), md5.New(), mirrors, workerConfig(cfg), wlog), nil
}
