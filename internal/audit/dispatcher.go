package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/eapache/go-resiliency/retrier"
	"go.uber.org/zap"
)

var ErrDispatcherClosed = errors.New("audit dispatcher closed")

// Dispatcher keeps Kafka off the request path: Record only enqueues, workers
// send with exponential backoff and drop an event once its retries run out.
type Dispatcher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
	retry    *retrier.Retrier

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

type DispatcherOptions struct {
	QueueSize   int
	Workers     int
	MaxRetry    int
	BaseBackoff time.Duration
}

func NewDispatcher(producer sarama.SyncProducer, topic string, log *zap.Logger, opt DispatcherOptions) *Dispatcher {
	if opt.Workers <= 0 {
		opt.Workers = 1
	}
	d := &Dispatcher{
		producer: producer,
		topic:    topic,
		log:      log,
		retry:    retrier.New(retrier.ExponentialBackoff(opt.MaxRetry, opt.BaseBackoff), nil),
		queue:    make(chan Event, opt.QueueSize),
	}

	for i := 0; i < opt.Workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(i)
	}
	return d
}

// Record waits for queue space until ctx is done. Audit delivery is best
// effort, so callers log the error and carry on.
func (d *Dispatcher) Record(ctx context.Context, evt Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) workerLoop(workerID int) {
	defer d.wg.Done()
	for evt := range d.queue {
		d.sendWithRetry(workerID, evt)
	}
}

func (d *Dispatcher) sendWithRetry(workerID int, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		d.log.Error("failed to marshal audit event", zap.Error(err))
		return
	}

	err = d.retry.Run(func() error {
		_, _, err := d.producer.SendMessage(&sarama.ProducerMessage{
			Topic: d.topic,
			Key:   sarama.StringEncoder(evt.SessionID),
			Value: sarama.ByteEncoder(payload),
		})
		return err
	})
	if err != nil {
		d.log.Warn("kafka send failed, dropping audit event",
			zap.String("event_type", string(evt.EventType)),
			zap.String("session_id", evt.SessionID),
			zap.Int("worker", workerID),
			zap.Error(err),
		)
	}
}
