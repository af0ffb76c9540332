// internal/eventlog/eventlog.go
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Event is one append-only audit record of a domain mutation.
type Event struct {
	ID         int64           `json:"id" db:"id"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EventType  string          `json:"event_type" db:"event_type"`
	EventData  json.RawMessage `json:"event_data" db:"event_data"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Log appends domain events. Append runs on the caller's transaction so the
// audit row commits or rolls back together with the mutation it records.
type Log struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// New creates an event log backed by the given pool.
func New(db *sqlx.DB) *Log {
	return &Log{
		db:     db,
		tracer: otel.Tracer("libris/eventlog"),
	}
}

// Append records one event inside tx. payload is marshaled to JSON.
func (l *Log) Append(ctx context.Context, tx *sqlx.Tx, entityID uuid.UUID, entityType, eventType string, payload any) error {
	ctx, span := l.tracer.Start(ctx, "eventlog.append",
		trace.WithAttributes(
			attribute.String("entity.id", entityID.String()),
			attribute.String("entity.type", entityType),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (entity_id, entity_type, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, entityID, entityType, eventType, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	return nil
}

// Recent returns the newest events, most recent first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	ctx, span := l.tracer.Start(ctx, "eventlog.recent",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	var events []Event
	err := l.db.SelectContext(ctx, &events, `
		SELECT id, entity_id, entity_type, event_type, event_data, created_at
		FROM events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}
