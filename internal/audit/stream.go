package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sandipay/auth-service/config"
	"github.com/sandipay/auth-service/pkg/circuit"
	"github.com/sandipay/auth-service/pkg/logger"
	"github.com/sandipay/auth-service/pkg/redis"
	"go.uber.org/zap"
)

// StreamEmitter ships events to a capped redis stream from a bounded
// worker pool. Enqueue is non-blocking: when the buffer is full the
// event is dropped and counted, never queued against the caller. A
// circuit breaker around the sink stops hammering redis while it is
// down; tripped emits are dropped the same way.
type StreamEmitter struct {
	client  *redis.Client
	breaker *circuit.Breaker
	cfg     config.AuditConfig

	events  chan Event
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewStreamEmitter starts cfg.Workers goroutines draining the event buffer.
func NewStreamEmitter(client *redis.Client, cfg config.AuditConfig, breaker *circuit.Breaker) *StreamEmitter {
	e := &StreamEmitter{
		client:  client,
		breaker: breaker,
		cfg:     cfg,
		events:  make(chan Event, cfg.Buffer),
	}

	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	return e
}

// Emit queues the event for delivery. The request context is only read
// for enrichment before this call; delivery runs on a detached context
// so a finished request never cancels its own audit record.
func (e *StreamEmitter) Emit(ctx context.Context, event Event) {
	event = event.EnrichFromContext(ctx)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	select {
	case e.events <- event:
	default:
		logger.GetLogger().Warn("Audit buffer full, event dropped",
			zap.String("action", event.Action),
			zap.Uint("subject_id", event.SubjectID),
		)
	}
}

// Close stops accepting events and waits for in-flight deliveries.
func (e *StreamEmitter) Close() {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return
	}
	e.closed = true
	close(e.events)
	e.closeMu.Unlock()

	e.wg.Wait()
}

func (e *StreamEmitter) worker() {
	defer e.wg.Done()

	for event := range e.events {
		e.deliver(event)
	}
}

func (e *StreamEmitter) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.EmitTimeout)
	defer cancel()

	err := e.breaker.Execute(func() error {
		return e.client.XAdd(ctx, e.cfg.Stream, e.cfg.MaxLen, event.StreamValues())
	})
	if err != nil {
		logger.GetLogger().Error("Failed to deliver audit event",
			zap.String("action", event.Action),
			zap.Uint("subject_id", event.SubjectID),
			zap.String("stream", e.cfg.Stream),
			zap.Error(err),
		)
	}
}
