package gcs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

type fakePutter struct {
	paths        []string
	contentTypes []string
	bodies       []string
	err          error
}

func (p *fakePutter) PutObject(_ context.Context, path, contentType string, r io.Reader) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	p.paths = append(p.paths, path)
	p.contentTypes = append(p.contentTypes, contentType)
	p.bodies = append(p.bodies, string(body))
	return "gs://bucket/" + path, nil
}

func TestImageMirrorUploadsScreenshot(t *testing.T) {
	t.Parallel()

	img := filepath.Join(t.TempDir(), "0_images", "abc.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(img), 0o750))
	require.NoError(t, os.WriteFile(img, []byte("png-bytes"), 0o600))

	putter := &fakePutter{}
	mirror, err := NewImageMirror(putter, "", "run-1", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, mirror.Write(context.Background(), crawler.CaptureResult{URL: "https://example.com", ImagePath: img}))
	require.Equal(t, []string{"screenshots/run-1/abc.png"}, putter.paths)
	require.Equal(t, []string{"image/png"}, putter.contentTypes)
	require.Equal(t, []string{"png-bytes"}, putter.bodies)
}

func TestImageMirrorSkipsMissingImagePath(t *testing.T) {
	t.Parallel()

	putter := &fakePutter{}
	mirror, err := NewImageMirror(putter, "shots", "run", nil)
	require.NoError(t, err)
	require.NoError(t, mirror.Write(context.Background(), crawler.CaptureResult{URL: "https://example.com"}))
	require.Empty(t, putter.paths)
}

func TestImageMirrorErrors(t *testing.T) {
	t.Parallel()

	_, err := NewImageMirror(nil, "", "run", nil)
	require.Error(t, err)

	putter := &fakePutter{err: errors.New("permission denied")}
	mirror, err := NewImageMirror(putter, "", "run", nil)
	require.NoError(t, err)

	err = mirror.Write(context.Background(), crawler.CaptureResult{ImagePath: filepath.Join(t.TempDir(), "missing.png")})
	require.Error(t, err)

	img := filepath.Join(t.TempDir(), "x.png")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))
	err = mirror.Write(context.Background(), crawler.CaptureResult{ImagePath: img})
	require.ErrorContains(t, err, "permission denied")
}

func TestNewBlobStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
}
