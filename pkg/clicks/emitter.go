// Package clicks implements the asynchronous click analytics pipeline:
// dedup, geo enrichment, user-agent parsing, and delivery to the event
// broker. Nothing in this package may block or fail the redirect path.
package clicks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/yyozen/linkgate/internal/models"
)

// Emitter is a fire-and-forget producer for click events. The broker
// connection is established lazily on first emit and reused. With no
// brokers configured the emitter is a silent no-op.
type Emitter struct {
	brokers []string
	topic   string
	logger  *zap.Logger

	mu     sync.Mutex
	writer *kafka.Writer
}

// NewEmitter creates an Emitter for the given brokers and topic.
func NewEmitter(brokers []string, topic string, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{brokers: brokers, topic: topic, logger: logger}
}

// Enabled reports whether a broker endpoint is configured.
func (e *Emitter) Enabled() bool {
	return len(e.brokers) > 0
}

// Emit delivers one click event, keyed by link ID so clicks for the same
// link land on the same partition. All errors are logged and swallowed.
func (e *Emitter) Emit(ctx context.Context, event models.ClickEvent) {
	if !e.Enabled() {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("click event marshal failed", zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.LinkID),
		Value: data,
	}
	if err := e.writerRef().WriteMessages(ctx, msg); err != nil {
		e.logger.Warn("click event send failed",
			zap.String("link_id", event.LinkID), zap.Error(err))
	}
}

// writerRef returns the shared writer, creating it on first use. The writer
// itself dials the broker lazily on the first WriteMessages call.
func (e *Emitter) writerRef() *kafka.Writer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writer == nil {
		e.writer = &kafka.Writer{
			Addr:                   kafka.TCP(e.brokers...),
			Topic:                  e.topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		}
	}
	return e.writer
}

// Close flushes and closes the broker connection. Safe to call when nothing
// was ever emitted.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writer == nil {
		return nil
	}
	err := e.writer.Close()
	e.writer = nil
	return err
}
