package models

import (
	"time"

	"github.com/google/uuid"
)

type StrokeType string

const (
	StrokeDraw  StrokeType = "draw"
	StrokeErase StrokeType = "erase"
)

func (t StrokeType) Valid() bool {
	return t == StrokeDraw || t == StrokeErase
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeEvent is one complete stroke. Events are never updated; a session's
// raster is the fold of its events in ascending Seq order.
type StrokeEvent struct {
	ID        uuid.UUID  `json:"id"`
	Seq       int64      `json:"seq"`
	SessionID string     `json:"session_id"`
	AuthorID  string     `json:"author_id,omitempty"`
	Type      StrokeType `json:"type"`
	Path      []Point    `json:"path"`
	Color     string     `json:"color"`
	LineWidth int        `json:"line_width"`
	CreatedAt time.Time  `json:"created_at"`
}
