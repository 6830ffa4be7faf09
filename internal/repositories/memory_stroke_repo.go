package repositories

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/inkboard/internal/models"
)

// MemoryStrokeEventRepository keeps the log in process memory. It backs
// STORE_DRIVER=memory and the tests of the packages above this one.
type MemoryStrokeEventRepository struct {
	mu        sync.RWMutex
	seq       int64
	byID      map[uuid.UUID]*models.StrokeEvent
	bySession map[string][]*models.StrokeEvent
}

func NewMemoryStrokeEventRepository() *MemoryStrokeEventRepository {
	return &MemoryStrokeEventRepository{
		byID:      make(map[uuid.UUID]*models.StrokeEvent),
		bySession: make(map[string][]*models.StrokeEvent),
	}
}

func (r *MemoryStrokeEventRepository) Append(_ context.Context, event *models.StrokeEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[event.ID]; ok {
		*event = *cloneStroke(existing)
		return false, nil
	}

	r.seq++
	event.Seq = r.seq
	event.CreatedAt = time.Now()

	stored := cloneStroke(event)
	r.byID[stored.ID] = stored
	r.bySession[stored.SessionID] = append(r.bySession[stored.SessionID], stored)
	return true, nil
}

func (r *MemoryStrokeEventRepository) GetByID(_ context.Context, id uuid.UUID) (*models.StrokeEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneStroke(event), nil
}

func (r *MemoryStrokeEventRepository) ListBySession(_ context.Context, sessionID string) ([]*models.StrokeEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.bySession[sessionID]
	events := make([]*models.StrokeEvent, 0, len(stored))
	for _, event := range stored {
		events = append(events, cloneStroke(event))
	}
	return events, nil
}

func (r *MemoryStrokeEventRepository) DeleteAllForSession(_ context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.bySession[sessionID]
	for _, event := range stored {
		delete(r.byID, event.ID)
	}
	delete(r.bySession, sessionID)
	return int64(len(stored)), nil
}

func cloneStroke(event *models.StrokeEvent) *models.StrokeEvent {
	c := *event
	c.Path = slices.Clone(event.Path)
	return &c
}
