package whiteboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/prudhvinik1/inkboard/internal/models"
)

// StrokeLog is the service surface a Board needs. *Service implements it
// in-process; a network client can implement it over the websocket API.
type StrokeLog interface {
	Append(ctx context.Context, sessionID string, event *models.StrokeEvent) error
	ClearAll(ctx context.Context, sessionID string, actor models.Participant) (int64, error)
	Subscribe(ctx context.Context, sessionID string, fn func([]models.StrokeEvent)) (*Subscription, error)
}

type AppenderOptions struct {
	// Retries after the first attempt. Zero means 4; negative disables retry.
	Retries        int
	Backoff        time.Duration
	AttemptTimeout time.Duration
	QueueSize      int
	// OnError sees every stroke that exhausted its retries or was rejected.
	OnError func(models.StrokeEvent, error)
}

func (o AppenderOptions) withDefaults() AppenderOptions {
	switch {
	case o.Retries == 0:
		o.Retries = 4
	case o.Retries < 0:
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = 100 * time.Millisecond
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	return o
}

// Appender sends one author's strokes in order, off the caller's goroutine.
// Strokes that fail every retry are parked; later strokes wait behind them
// until Flush delivers the backlog. Strokes the log rejects are reported and
// dropped, since no retry can deliver them.
type Appender struct {
	log       StrokeLog
	sessionID string
	opts      AppenderOptions
	retry     *retrier.Retrier

	queue chan models.StrokeEvent
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending []models.StrokeEvent
	closed  bool
}

func NewAppender(log StrokeLog, sessionID string, opts AppenderOptions) *Appender {
	opts = opts.withDefaults()
	a := &Appender{
		log:       log,
		sessionID: sessionID,
		opts:      opts,
		// invalid strokes will never succeed
		retry: retrier.New(
			retrier.ExponentialBackoff(opts.Retries, opts.Backoff),
			retrier.BlacklistClassifier{ErrInvalidStroke, ErrInvalidSession},
		),
		queue: make(chan models.StrokeEvent, opts.QueueSize),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Enqueue hands ev to the background sender. When the queue is full the
// stroke is parked for the next Flush instead of blocking the caller.
func (a *Appender) Enqueue(ev models.StrokeEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.pending = append(a.pending, ev)
		return
	}
	select {
	case a.queue <- ev:
	default:
		a.pending = append(a.pending, ev)
	}
}

func (a *Appender) run() {
	defer a.wg.Done()
	for ev := range a.queue {
		a.mu.Lock()
		blocked := len(a.pending) > 0
		if blocked {
			a.pending = append(a.pending, ev)
		}
		a.mu.Unlock()
		if blocked {
			continue
		}

		if err := a.send(context.Background(), ev); err != nil {
			if !rejected(err) {
				a.mu.Lock()
				a.pending = append(a.pending, ev)
				a.mu.Unlock()
			}
			a.reportError(ev, err)
		}
	}
}

func rejected(err error) bool {
	return errors.Is(err, ErrInvalidStroke) || errors.Is(err, ErrInvalidSession)
}

func (a *Appender) send(ctx context.Context, ev models.StrokeEvent) error {
	return a.retry.RunCtx(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.opts.AttemptTimeout)
		defer cancel()
		cp := ev
		return a.log.Append(attemptCtx, a.sessionID, &cp)
	})
}

func (a *Appender) reportError(ev models.StrokeEvent, err error) {
	if a.opts.OnError != nil {
		a.opts.OnError(ev, err)
	}
}

// Flush re-sends parked strokes in order and stops at the first failure.
// A parked stroke the log rejects is reported and dropped.
func (a *Appender) Flush(ctx context.Context) error {
	for {
		a.mu.Lock()
		if len(a.pending) == 0 {
			a.mu.Unlock()
			return nil
		}
		ev := a.pending[0]
		a.mu.Unlock()

		if err := a.send(ctx, ev); err != nil {
			if !rejected(err) {
				return err
			}
			a.reportError(ev, err)
		}

		a.mu.Lock()
		if len(a.pending) > 0 && a.pending[0].ID == ev.ID {
			a.pending = a.pending[1:]
		}
		a.mu.Unlock()
	}
}

func (a *Appender) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Close waits for queued strokes to be attempted. Anything still parked
// afterwards stays available to Flush.
func (a *Appender) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
}
