package whiteboard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/audit"
	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/prudhvinik1/inkboard/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	reloadTimeout    = 10 * time.Second
	reloadBackoff    = 100 * time.Millisecond
	maxReloadBackoff = 5 * time.Second
	// audit delivery never holds a committed write longer than this
	recordTimeout = 500 * time.Millisecond
)

// Service owns the stroke logs. It never retries failed writes; that is left
// to the caller.
type Service struct {
	store    repositories.StrokeEventRepository
	notifier Notifier
	recorder audit.Recorder
	policy   ClearPolicy
	log      *zap.Logger

	reloads       singleflight.Group
	reloadBackoff time.Duration
	recordTimeout time.Duration
}

func NewService(
	store repositories.StrokeEventRepository,
	notifier Notifier,
	recorder audit.Recorder,
	policy ClearPolicy,
	log *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		policy:   policy,
		log:      log,

		reloadBackoff: reloadBackoff,
		recordTimeout: recordTimeout,
	}
}

// Append persists event and announces the change. A missing ID is filled
// with a UUIDv7; re-appending a known ID is a no-op that loads the stored
// event into event and announces nothing.
func (s *Service) Append(ctx context.Context, sessionID string, event *models.StrokeEvent) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	event.SessionID = sessionID
	if event.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate stroke id: %w", err)
		}
		event.ID = id
	}
	NormalizeStroke(event)
	if err := ValidateStroke(event); err != nil {
		return err
	}

	inserted, err := s.store.Append(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to append stroke: %w", err)
	}
	if event.SessionID != sessionID {
		// the ID was already used in another session
		return fmt.Errorf("%w: id %s belongs to another session", ErrInvalidStroke, event.ID)
	}
	if !inserted {
		return nil
	}

	s.announce(ctx, sessionID, event.ID.String())
	s.record(ctx, audit.Event{
		EventType:  audit.StrokeAppended,
		SessionID:  sessionID,
		ActorID:    event.AuthorID,
		StrokeID:   event.ID.String(),
		OccurredAt: time.Now(),
	})
	return nil
}

// ClearAll deletes the whole log of the session in one statement.
func (s *Service) ClearAll(ctx context.Context, sessionID string, actor models.Participant) (int64, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return 0, err
	}
	if !s.policy.Allows(actor.Role) {
		return 0, ErrClearForbidden
	}

	deleted, err := s.store.DeleteAllForSession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear whiteboard: %w", err)
	}

	s.log.Info("whiteboard cleared",
		zap.String("session_id", sessionID),
		zap.String("participant_id", actor.ID),
		zap.Int64("deleted", deleted),
	)
	s.announce(ctx, sessionID, "clear:"+uuid.NewString())
	s.record(ctx, audit.Event{
		EventType:  audit.BoardCleared,
		SessionID:  sessionID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Deleted:    deleted,
		OccurredAt: time.Now(),
	})
	return deleted, nil
}

// Snapshot returns the session's log in replay order.
func (s *Service) Snapshot(ctx context.Context, sessionID string) ([]models.StrokeEvent, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list strokes: %w", err)
	}
	events := make([]models.StrokeEvent, len(rows))
	for i, row := range rows {
		events[i] = *row
	}
	return events, nil
}

// Subscription delivers full logs to one callback until closed or until the
// context passed to Subscribe is done.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops delivery and waits for a running callback to return. It must
// not be called from inside the callback.
func (sub *Subscription) Close() {
	sub.once.Do(sub.cancel)
	<-sub.done
}

// Done is closed once no more callbacks will run.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Subscribe calls fn with the current log, then with the complete log again
// after every change. Calls are serialized. A slow callback skips
// intermediate logs but always ends on the latest. fn must not modify the
// events it is handed.
func (s *Service) Subscribe(ctx context.Context, sessionID string, fn func([]models.StrokeEvent)) (*Subscription, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	// listen before the first read so no change can slip in between
	changes, stop, err := s.notifier.Subscribe(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	initial, err := s.Snapshot(ctx, sessionID)
	if err != nil {
		stop()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer stop()

		fn(initial)
		s.follow(subCtx, sessionID, changes, fn)
	}()

	return sub, nil
}

// follow reloads the log after every change until ctx is done. A failed
// reload is retried with backoff, or superseded by the next change.
func (s *Service) follow(ctx context.Context, sessionID string, changes <-chan string, fn func([]models.StrokeEvent)) {
	var (
		change  string
		retry   <-chan time.Time
		backoff = s.reloadBackoff
	)
	for {
		select {
		case <-ctx.Done():
			return
		case change = <-changes:
		case <-retry:
		}
		retry = nil

		events, err := s.reload(sessionID, change)
		if err != nil {
			s.log.Warn("failed to reload whiteboard",
				zap.String("session_id", sessionID),
				zap.Duration("retry_in", backoff),
				zap.Error(err),
			)
			retry = time.After(backoff)
			backoff = min(backoff*2, maxReloadBackoff)
			continue
		}
		backoff = s.reloadBackoff
		if ctx.Err() != nil {
			return
		}
		fn(slices.Clone(events))
	}
}

// reload shares one read among subscribers woken by the same change. The key
// is unique per change, so nobody joins a read that began before the change
// it is waiting for.
func (s *Service) reload(sessionID, change string) ([]models.StrokeEvent, error) {
	v, err, _ := s.reloads.Do(sessionID+"/"+change, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		return s.Snapshot(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.StrokeEvent), nil
}

func (s *Service) announce(ctx context.Context, sessionID, change string) {
	if err := s.notifier.Publish(context.WithoutCancel(ctx), sessionID, change); err != nil {
		s.log.Warn("failed to announce whiteboard change",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

// record runs after the write has committed, so it is bounded and detached
// from the caller's cancellation.
func (s *Service) record(ctx context.Context, evt audit.Event) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.recordTimeout)
	defer cancel()
	if err := s.recorder.Record(ctx, evt); err != nil {
		s.log.Warn("failed to record audit event",
			zap.String("event_type", string(evt.EventType)),
			zap.String("session_id", evt.SessionID),
			zap.Error(err),
		)
	}
}
