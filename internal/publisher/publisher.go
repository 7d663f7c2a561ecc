// Package publisher announces processed pages to downstream consumers.
package publisher

import (
	"context"
	"fmt"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

// Publisher sends a JSON-encodable payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// PageNotice is the message published once per processed page.
type PageNotice struct {
	RunID     string `json:"run_id"`
	WorkerID  int    `json:"worker_id"`
	URL       string `json:"url"`
	ImagePath string `json:"image_path"`
	Clickable int    `json:"clickable"`
	Hover     int    `json:"hover"`
}

// NoticeSink publishes a PageNotice for every result it receives.
type NoticeSink struct {
	pub      Publisher
	topic    string
	runID    string
	workerID int
}

var _ crawler.ResultSink = (*NoticeSink)(nil)

// NewNoticeSink builds a sink publishing to topic on behalf of one worker.
func NewNoticeSink(pub Publisher, topic, runID string, workerID int) *NoticeSink {
	return &NoticeSink{pub: pub, topic: topic, runID: runID, workerID: workerID}
}

// Write publishes the notice for result.
func (s *NoticeSink) Write(ctx context.Context, result crawler.CaptureResult) error {
	notice := PageNotice{
		RunID:     s.runID,
		WorkerID:  s.workerID,
		URL:       result.URL,
		ImagePath: result.ImagePath,
	}
	for _, el := range result.Elements {
		switch el.Type {
		case crawler.ElementClickable:
			notice.Clickable++
		case crawler.ElementHover:
			notice.Hover++
		}
	}
	if _, err := s.pub.Publish(ctx, s.topic, notice); err != nil {
		return fmt.Errorf("publish page notice: %w", err)
	}
	return nil
}
