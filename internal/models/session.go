package models

import "time"

// Session backs one issued whiteboard token; deleting it revokes the token.
type Session struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Role          Role      `json:"role"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}
