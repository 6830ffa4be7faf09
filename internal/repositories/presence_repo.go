package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prudhvinik1/inkboard/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:"
	presenceTTL       = 60 * time.Second // expires without a heartbeat
)

type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// SetPresence marks a participant online on a whiteboard. Websocket clients
// refresh it with every heartbeat.
func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	presence.LastSeen = time.Now()
	presence.Status = string(models.StatusOnline)

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, presenceKey(presence.SessionID, presence.ParticipantID), data, presenceTTL)
	pipe.SAdd(ctx, presenceIndexKey(presence.SessionID), presence.ParticipantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) GetPresence(ctx context.Context, sessionID, participantID string) (*models.Presence, error) {
	data, err := r.client.Get(ctx, presenceKey(sessionID, participantID)).Result()
	if err == redis.Nil {
		return &models.Presence{
			SessionID:     sessionID,
			ParticipantID: participantID,
			Status:        string(models.StatusOffline),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var presence models.Presence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &presence, nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, sessionID, participantID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, presenceKey(sessionID, participantID))
	pipe.SRem(ctx, presenceIndexKey(sessionID), participantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

// ListPresence returns the online participants of a session. Members whose
// presence key expired are dropped from the index on the way.
func (r *RedisPresenceRepository) ListPresence(ctx context.Context, sessionID string) ([]models.Presence, error) {
	indexKey := presenceIndexKey(sessionID)
	participantIDs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence index: %w", err)
	}

	online := make([]models.Presence, 0, len(participantIDs))
	if len(participantIDs) == 0 {
		return online, nil
	}

	keys := make([]string, len(participantIDs))
	for i, id := range participantIDs {
		keys[i] = presenceKey(sessionID, id)
	}

	// MGet retrieves all members in one round trip
	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	var expired []interface{}
	for i, result := range results {
		data, ok := result.(string)
		if !ok {
			expired = append(expired, participantIDs[i])
			continue
		}

		var presence models.Presence
		if err := json.Unmarshal([]byte(data), &presence); err != nil {
			expired = append(expired, participantIDs[i])
			continue
		}
		online = append(online, presence)
	}

	if len(expired) > 0 {
		if err := r.client.SRem(ctx, indexKey, expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune presence index: %w", err)
		}
	}
	return online, nil
}

func presenceKey(sessionID, participantID string) string {
	return presenceKeyPrefix + sessionID + ":" + participantID
}

func presenceIndexKey(sessionID string) string {
	return "whiteboard:" + sessionID + ":participants"
}
