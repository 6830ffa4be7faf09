package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/models"
)

var ErrNotFound = errors.New("not found")

// StrokeEventRepository is the ordered, append-only log behind a whiteboard.
type StrokeEventRepository interface {
	// Append persists event and fills in Seq and CreatedAt. Appending an ID that
	// already exists leaves the log unchanged, loads the stored event into event
	// and reports false.
	Append(ctx context.Context, event *models.StrokeEvent) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.StrokeEvent, error)
	// ListBySession returns the session's events in ascending Seq order.
	ListBySession(ctx context.Context, sessionID string) ([]*models.StrokeEvent, error)
	// DeleteAllForSession removes every event of the session atomically.
	DeleteAllForSession(ctx context.Context, sessionID string) (int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByParticipantID(ctx context.Context, participantID string) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForParticipant(ctx context.Context, participantID string) error
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	GetPresence(ctx context.Context, sessionID, participantID string) (*models.Presence, error)
	DeletePresence(ctx context.Context, sessionID, participantID string) error
	ListPresence(ctx context.Context, sessionID string) ([]models.Presence, error)
}
