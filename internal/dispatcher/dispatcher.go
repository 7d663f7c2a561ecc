// Package dispatcher partitions the URL list and fans blocks out to workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/crawler"
	"github.com/JakeFAU/element-crawler/internal/storage/local"
)

// Partition splits urls into n contiguous blocks of len(urls)/n URLs, the
// remainder going to the last block. Output paths are assigned under dir.
func Partition(urls []string, n int, dir string) ([]crawler.WorkerBlock, error) {
	if n <= 0 {
		return nil, fmt.Errorf("worker count must be > 0, got %d", n)
	}
	per := len(urls) / n
	blocks := make([]crawler.WorkerBlock, n)
	for i := range blocks {
		start, end := i*per, (i+1)*per
		if i == n-1 {
			end = len(urls)
		}
		blocks[i] = crawler.WorkerBlock{
			WorkerID: i,
			URLs:     urls[start:end:end],
			Paths:    local.BlockPaths(dir, i),
		}
	}
	return blocks, nil
}

// WriteTaskFiles persists each block's URL list to its task file.
func WriteTaskFiles(blocks []crawler.WorkerBlock) error {
	for _, b := range blocks {
		if err := local.WriteTaskFile(b.Paths.TaskFile, b.URLs); err != nil {
			return err
		}
	}
	return nil
}

// Runner processes one block.
type Runner interface {
	Run(ctx context.Context, block crawler.WorkerBlock) error
}

// Factory builds the Runner for a worker ID.
type Factory func(workerID int) (Runner, error)

// Summary reports how each worker ended.
type Summary struct {
	Finished int
	Failed   map[int]error
}

// Dispatcher runs one isolated worker per block.
type Dispatcher struct {
	newRunner Factory
	logger    *zap.Logger
}

// New creates a Dispatcher.
func New(newRunner Factory, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{newRunner: newRunner, logger: logger}
}

// Run starts every block concurrently and blocks until all of them return.
// A worker that fails or panics is recorded in the Summary; its siblings are
// unaffected.
func (d *Dispatcher) Run(ctx context.Context, blocks []crawler.WorkerBlock) Summary {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sum = Summary{Failed: map[int]error{}}
	)
	for _, b := range blocks {
		wg.Add(1)
		go func(block crawler.WorkerBlock) {
			defer wg.Done()
			err := d.runBlock(ctx, block)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed[block.WorkerID] = err
				return
			}
			sum.Finished++
		}(b)
	}
	wg.Wait()
	return sum
}

func (d *Dispatcher) runBlock(ctx context.Context, block crawler.WorkerBlock) (err error) {
	logger := d.logger.With(zap.Int("worker_id", block.WorkerID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("worker %d panicked: %v", block.WorkerID, r)
		}
	}()

	runner, err := d.newRunner(block.WorkerID)
	if err != nil {
		logger.Error("worker setup failed", zap.Error(err))
		return fmt.Errorf("worker %d setup: %w", block.WorkerID, err)
	}
	logger.Info("worker started", zap.Int("urls", len(block.URLs)))
	if err := runner.Run(ctx, block); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("worker canceled")
		} else {
			logger.Error("worker stopped", zap.Error(err))
		}
		return err
	}
	logger.Info("worker finished")
	return nil
}
