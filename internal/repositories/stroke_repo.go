package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/inkboard/internal/models"
)

type PostgresStrokeEventRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStrokeEventRepository(pool *pgxpool.Pool) *PostgresStrokeEventRepository {
	return &PostgresStrokeEventRepository{pool: pool}
}

const strokeColumns = `seq, id, session_id, author_id, stroke_type, path, color, line_width, created_at`

// Append inserts the event. The id column is unique, so a retried append of the
// same event hits ON CONFLICT and we return the row that is already stored.
func (r *PostgresStrokeEventRepository) Append(ctx context.Context, event *models.StrokeEvent) (bool, error) {
	path, err := json.Marshal(event.Path)
	if err != nil {
		return false, fmt.Errorf("failed to marshal stroke path: %w", err)
	}

	query := `INSERT INTO stroke_events (id, session_id, author_id, stroke_type, path, color, line_width)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (id) DO NOTHING
	          RETURNING seq, created_at`

	err = r.pool.QueryRow(ctx, query,
		event.ID,
		event.SessionID,
		event.AuthorID,
		string(event.Type),
		path,
		event.Color,
		event.LineWidth,
	).Scan(&event.Seq, &event.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := r.GetByID(ctx, event.ID)
		if err != nil {
			return false, fmt.Errorf("failed to load existing stroke: %w", err)
		}
		*event = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to append stroke: %w", err)
	}
	return true, nil
}

func (r *PostgresStrokeEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StrokeEvent, error) {
	query := `SELECT ` + strokeColumns + ` FROM stroke_events WHERE id = $1`

	event, err := scanStroke(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stroke by ID: %w", err)
	}
	return event, nil
}

func (r *PostgresStrokeEventRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.StrokeEvent, error) {
	query := `SELECT ` + strokeColumns + `
	          FROM stroke_events
	          WHERE session_id = $1
	          ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strokes: %w", err)
	}
	defer rows.Close()

	events := make([]*models.StrokeEvent, 0)
	for rows.Next() {
		event, err := scanStroke(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stroke: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strokes: %w", err)
	}

	return events, nil
}

// DeleteAllForSession is a single DELETE, so peers either see the whole log or
// none of it.
func (r *PostgresStrokeEventRepository) DeleteAllForSession(ctx context.Context, sessionID string) (int64, error) {
	query := `DELETE FROM stroke_events WHERE session_id = $1`

	result, err := r.pool.Exec(ctx, query, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear strokes: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanStroke(row pgx.Row) (*models.StrokeEvent, error) {
	var (
		event      models.StrokeEvent
		strokeType string
		path       []byte
	)
	err := row.Scan(
		&event.Seq,
		&event.ID,
		&event.SessionID,
		&event.AuthorID,
		&strokeType,
		&path,
		&event.Color,
		&event.LineWidth,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Type = models.StrokeType(strokeType)
	if err := json.Unmarshal(path, &event.Path); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stroke path: %w", err)
	}
	return &event, nil
}
