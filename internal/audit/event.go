// Package audit publishes a record of whiteboard writes, most importantly of
// every destructive clear, to a Kafka topic.
package audit

import (
	"context"
	"time"

	"github.com/prudhvinik1/inkboard/internal/models"
	"go.uber.org/zap"
)

type EventType string

const (
	StrokeAppended EventType = "stroke.appended"
	BoardCleared   EventType = "board.cleared"
)

type Event struct {
	EventType  EventType   `json:"event_type"`
	SessionID  string      `json:"session_id"`
	ActorID    string      `json:"actor_id,omitempty"`
	ActorRole  models.Role `json:"actor_role,omitempty"`
	StrokeID   string      `json:"stroke_id,omitempty"`
	Deleted    int64       `json:"deleted,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

// LogRecorder only logs. It is used when no Kafka brokers are configured.
type LogRecorder struct {
	log *zap.Logger
}

func NewLogRecorder(log *zap.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

func (r *LogRecorder) Record(_ context.Context, evt Event) error {
	r.log.Info("audit event",
		zap.String("event_type", string(evt.EventType)),
		zap.String("session_id", evt.SessionID),
		zap.String("actor_id", evt.ActorID),
		zap.String("stroke_id", evt.StrokeID),
		zap.Int64("deleted", evt.Deleted),
	)
	return nil
}
