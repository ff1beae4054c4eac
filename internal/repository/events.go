package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"valorant-scout/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// EventRepository mirrors tactical events and conclusions into sqlite so
// consumers can see them across process restarts. All writes are best-effort
// from the pipeline's point of view; callers log and move on.
type EventRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEventRepository(db *sql.DB, logger zerolog.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

func (r *EventRepository) InsertEvent(ctx context.Context, seriesID, gameID string, ev domain.TacticalEvent) error {
	id := ev.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}

	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tactical_events (id, series_id, game_id, event_type, description, metadata, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, seriesID, gameID, ev.EventType, ev.Description, string(meta), ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tactical event: %w", err)
	}
	return nil
}

func (r *EventRepository) InsertConclusion(ctx context.Context, seriesID, text string, at time.Time) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate nanoid: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO conclusions (id, series_id, text, occurred_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (series_id, text) DO NOTHING`,
		id, seriesID, text, at,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conclusion: %w", err)
	}
	return nil
}

func (r *EventRepository) RecentEvents(ctx context.Context, seriesID string, limit int) ([]domain.TacticalEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, description, metadata, occurred_at
		 FROM tactical_events
		 WHERE series_id = ?
		 ORDER BY occurred_at DESC
		 LIMIT ?`,
		seriesID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tactical events: %w", err)
	}
	defer rows.Close()

	var out []domain.TacticalEvent
	for rows.Next() {
		var ev domain.TacticalEvent
		var meta string
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Description, &meta, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan tactical event: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
			r.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("malformed event metadata in archive")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *EventRepository) RecentConclusions(ctx context.Context, seriesID string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT text FROM conclusions
		 WHERE series_id = ?
		 ORDER BY occurred_at DESC
		 LIMIT ?`,
		seriesID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conclusions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan conclusion: %w", err)
		}
		out = append(out, text)
	}
	return out, rows.Err()
}
