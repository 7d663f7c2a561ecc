package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublisherEncodesAndLogs(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	pub := New(zap.New(core))

	id, err := pub.Publish(context.Background(), "pages", map[string]int{"clickable": 2})
	require.NoError(t, err)
	require.Equal(t, "dry-run-1", id)

	notices := pub.Notices()
	require.Len(t, notices, 1)
	require.Equal(t, "pages", notices[0].Topic)
	require.JSONEq(t, `{"clickable":2}`, string(notices[0].Data))

	entries := logs.FilterMessage("notice published").All()
	require.Len(t, entries, 1)
	require.Equal(t, "dry-run-1", entries[0].ContextMap()["id"])

	notices[0].Topic = "modified"
	require.Equal(t, "pages", pub.Notices()[0].Topic)
}

func TestPublisherRejectsBadInput(t *testing.T) {
	t.Parallel()

	pub := New(nil)
	_, err := pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "pages", make(chan int))
	require.ErrorContains(t, err, "encode notice")
	require.Zero(t, pub.Len())
}

func TestPublisherConcurrentWorkers(t *testing.T) {
	t.Parallel()

	pub := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pub.Publish(context.Background(), "pages", i)
		}()
	}
	wg.Wait()
	require.Equal(t, 8, pub.Len())
}
