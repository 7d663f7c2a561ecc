// Package memory keeps page notices in process and logs them, standing in for
// Pub/Sub on dry runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Notice is one encoded publish call.
type Notice struct {
	Topic string
	Data  []byte
}

// Publisher encodes notices the way the Pub/Sub publisher does and records them.
type Publisher struct {
	logger *zap.Logger

	mu      sync.RWMutex
	notices []Notice
}

// New returns a Publisher that logs every notice at debug level.
func New(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

// Publish encodes payload as JSON, records it under topic and returns a local ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode notice: %w", err)
	}

	p.mu.Lock()
	p.notices = append(p.notices, Notice{Topic: topic, Data: data})
	id := fmt.Sprintf("dry-run-%d", len(p.notices))
	p.mu.Unlock()

	p.logger.Debug("notice published", zap.String("topic", topic), zap.String("id", id), zap.ByteString("data", data))
	return id, nil
}

// Notices returns a copy of the recorded notices in publish order.
func (p *Publisher) Notices() []Notice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Notice, len(p.notices))
	copy(out, p.notices)
	return out
}

// Len reports how many notices were recorded.
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.notices)
}
