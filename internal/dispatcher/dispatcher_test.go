package dispatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
	"github.com/JakeFAU/element-crawler/internal/storage/local"
)

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func TestPartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		urls  int
		n     int
		sizes []int
	}{
		{name: "remainder to last", urls: 10, n: 3, sizes: []int{3, 3, 4}},
		{name: "even", urls: 6, n: 3, sizes: []int{2, 2, 2}},
		{name: "more workers than urls", urls: 2, n: 3, sizes: []int{0, 0, 2}},
		{name: "empty", urls: 0, n: 2, sizes: []int{0, 0}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := urls(tt.urls)
			blocks, err := Partition(in, tt.n, "out")
			require.NoError(t, err)
			require.Len(t, blocks, tt.n)

			var joined []string
			for i, b := range blocks {
				require.Equal(t, i, b.WorkerID)
				require.Len(t, b.URLs, tt.sizes[i])
				require.Equal(t, local.BlockPaths("out", i), b.Paths)
				joined = append(joined, b.URLs...)
			}
			require.Equal(t, len(in), len(joined))
			for i := range in {
				require.Equal(t, in[i], joined[i])
			}
		})
	}
}

func TestPartitionRejectsZeroWorkers(t *testing.T) {
	t.Parallel()

	_, err := Partition(urls(3), 0, "out")
	require.Error(t, err)
}

func TestWriteTaskFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocks, err := Partition(urls(5), 2, dir)
	require.NoError(t, err)
	require.NoError(t, WriteTaskFiles(blocks))

	got, err := local.ReadTaskFile(filepath.Join(dir, "1.txt"))
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d", "e"}, got)
}

type runnerFunc func(ctx context.Context, block crawler.WorkerBlock) error

func (f runnerFunc) Run(ctx context.Context, block crawler.WorkerBlock) error { return f(ctx, block) }

func TestRunIsolatesFailures(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[int][]string{}
	factory := func(id int) (Runner, error) {
		switch id {
		case 1:
			return runnerFunc(func(context.Context, crawler.WorkerBlock) error { panic("boom") }), nil
		case 2:
			return runnerFunc(func(context.Context, crawler.WorkerBlock) error { return crawler.ErrSession }), nil
		case 3:
			return nil, errors.New("no chrome")
		}
		return runnerFunc(func(_ context.Context, b crawler.WorkerBlock) error {
			mu.Lock()
			defer mu.Unlock()
			seen[b.WorkerID] = b.URLs
			return nil
		}), nil
	}

	blocks, err := Partition(urls(10), 5, t.TempDir())
	require.NoError(t, err)
	sum := New(factory, zap.NewNop()).Run(context.Background(), blocks)

	require.Equal(t, 2, sum.Finished)
	require.Len(t, sum.Failed, 3)
	require.ErrorContains(t, sum.Failed[1], "panicked")
	require.ErrorIs(t, sum.Failed[2], crawler.ErrSession)
	require.ErrorContains(t, sum.Failed[3], "no chrome")
	require.Equal(t, []string{"a", "b"}, seen[0])
	require.Equal(t, []string{"i", "j"}, seen[4])
}

func TestRunPassesContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	factory := func(int) (Runner, error) {
		return runnerFunc(func(ctx context.Context, _ crawler.WorkerBlock) error { return ctx.Err() }), nil
	}
	blocks, err := Partition(urls(2), 2, t.TempDir())
	require.NoError(t, err)

	sum := New(factory, nil).Run(ctx, blocks)
	require.Zero(t, sum.Finished)
	for _, err := range sum.Failed {
		require.ErrorIs(t, err, context.Canceled)
	}
}
