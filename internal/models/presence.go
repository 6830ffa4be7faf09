package models

import "time"

type Presence struct {
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Status        string    `json:"status"`
	LastSeen      time.Time `json:"last_seen"`
}

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)
