package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

const defaultPrefix = "screenshots"

// ObjectPutter uploads a single object and returns its URI.
type ObjectPutter interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// ImageMirror copies each captured screenshot to object storage under
// <prefix>/<run id>/<image file name>.
type ImageMirror struct {
	store  ObjectPutter
	prefix string
	runID  string
	logger *zap.Logger
}

var _ crawler.ResultSink = (*ImageMirror)(nil)

// NewImageMirror builds a mirror writing through store.
func NewImageMirror(store ObjectPutter, prefix, runID string, logger *zap.Logger) (*ImageMirror, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageMirror{store: store, prefix: prefix, runID: runID, logger: logger}, nil
}

// ObjectPath returns the object key used for a local image path.
func (m *ImageMirror) ObjectPath(imagePath string) string {
	return path.Join(m.prefix, m.runID, filepath.Base(imagePath))
}

// Write uploads result.ImagePath. Results without an image are ignored.
func (m *ImageMirror) Write(ctx context.Context, result crawler.CaptureResult) error {
	if result.ImagePath == "" {
		return nil
	}
	f, err := os.Open(result.ImagePath)
	if err != nil {
		return fmt.Errorf("open screenshot %s: %w", result.ImagePath, err)
	}
	defer func() { _ = f.Close() }()

	uri, err := m.store.PutObject(ctx, m.ObjectPath(result.ImagePath), "image/png", f)
	if err != nil {
		return fmt.Errorf("upload screenshot %s: %w", result.ImagePath, err)
	}
	m.logger.Debug("mirrored screenshot", zap.String("url", result.URL), zap.String("uri", uri))
	return nil
}
