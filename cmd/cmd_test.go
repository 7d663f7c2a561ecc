package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/config"
	"github.com/JakeFAU/element-crawler/internal/crawler"
	"github.com/JakeFAU/element-crawler/internal/publisher/memory"

	"github.com/JakeFAU/element-crawler/internal/storage/local"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level=error"))
	err := root.Execute()
	return out.String(), err
}

func TestDedupeHostsCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "cdx")
	body := strings.Join([]string{
		`a 1 {"url": "https://a.com/1"}`,
		`a 2 {"url": "https://a.com/2"}`,
		`b 1 {"url": "https://b.com/"}`,
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(in, []byte(body), 0o600))

	out, err := execute(t, "dedupe-hosts", in)
	require.NoError(t, err)
	require.Contains(t, out, in+"-unique")

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(in + "-unique")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "https://b.com/")
}

func TestDedupeHostsExplicitOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in, dst := filepath.Join(dir, "cdx"), filepath.Join(dir, "unique.cdx")
	require.NoError(t, os.WriteFile(in, []byte(`a 1 {"url": "https://a.com/1"}`+"\n"), 0o600))

	_, err := execute(t, "dedupe-hosts", in, dst, "--seed=7")
	require.NoError(t, err)
	require.FileExists(t, dst)
}

func TestCrawlRequiresCDXPath(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "crawl", "--out-root", t.TempDir())
	require.ErrorContains(t, err, "crawl.cdx_path")
}

func TestCrawlWithNoURLsFinishes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cdx := filepath.Join(dir, "cdx")
	require.NoError(t, os.WriteFile(cdx, []byte("garbage\n"), 0o600))

	out, err := execute(t, "crawl", "--cdx-path", cdx, "--out-root", dir, "--num-workers", "2", "--batch", "1")
	require.NoError(t, err)
	require.Contains(t, out, finishedMessage)

	paths := local.BlockPaths(filepath.Join(dir, "tasks1"), 1)
	require.FileExists(t, paths.TaskFile)
	require.FileExists(t, paths.OutputFile)
}

func TestInvalidConfigRejected(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "crawl", "--hover-strategy", "guess")
	require.ErrorContains(t, err, "capture.hover_strategy")
}

func TestBoundFlags(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("num-workers", 1, "")
	fs.Int("unbound", 1, "")
	bindFlag(fs, "num-workers", "crawl.num_workers")
	bindFlag(fs, "missing", "crawl.batch")

	got := boundFlags(fs)
	require.Len(t, got, 1)
	require.Equal(t, "num-workers", got["crawl.num_workers"].Name)
}

func TestBatchSlice(t *testing.T) {
	t.Parallel()

	all := []string{"a", "b", "c", "d", "e"}
	require.Equal(t, []string{"c", "d"}, batchSlice(all, 2, 2))
	require.Equal(t, []string{"e"}, batchSlice(all, 4, 10))
	require.Nil(t, batchSlice(all, 5, 2))
}

func TestDryRunNoticesUseLocalPublisher(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.PubSub.DryRun = true

	s, err := openSinks(context.Background(), cfg, "run-1", zap.NewNop())
	require.NoError(t, err)
	defer s.close(zap.NewNop())

	mirrors := s.forWorker(3)
	require.Len(t, mirrors, 1)
	require.NoError(t, mirrors[0].Sink.Write(context.Background(), crawler.CaptureResult{URL: "https://example.com"}))

	pub, ok := s.pub.(*memory.Publisher)
	require.True(t, ok)
	notices := pub.Notices()
	require.Len(t, notices, 1)
	require.Equal(t, defaultDryRunTopic, notices[0].Topic)
	require.Contains(t, string(notices[0].Data), `"worker_id":3`)
}

func TestNoSinksConfigured(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	s, err := openSinks(context.Background(), cfg, "run-1", zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, s.forWorker(0))
	s.close(zap.NewNop())
}
