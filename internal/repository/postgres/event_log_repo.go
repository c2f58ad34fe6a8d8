// internal/repository/postgres/event_log_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RawEventEntry is one opaque row from an append-only upstream log. Payload
// shapes vary by source and by upstream version, so parsing stays defensive
// and lives with the ingestor.
type RawEventEntry struct {
	ID         int64     `json:"id" db:"id"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
	Payload    []byte    `json:"payload" db:"payload"`
}

// EventLogRepository reads the two append-only raw logs: the generic webhook
// log and the detailed booking-record log. Both are written by out-of-scope
// webhook plumbing; this subsystem only range-reads them.
type EventLogRepository struct {
	db *pgxpool.Pool
}

func NewEventLogRepository(db *pgxpool.Pool) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// ListWebhookEvents returns generic webhook entries received in [from, to],
// oldest first.
func (r *EventLogRepository) ListWebhookEvents(ctx context.Context, from, to time.Time) ([]RawEventEntry, error) {
	query := `
		SELECT id, received_at, payload
		FROM webhook_events
		WHERE received_at >= $1 AND received_at <= $2
		ORDER BY received_at ASC, id ASC
	`
	return r.listEntries(ctx, query, from, to)
}

// ListBookingRecords returns booking-record entries whose receive time or
// booking datetime falls in [from, to], oldest first. The datetime arm keeps
// appointments visible in the window they are about, not only the window
// they arrived in.
func (r *EventLogRepository) ListBookingRecords(ctx context.Context, from, to time.Time) ([]RawEventEntry, error) {
	query := `
		SELECT id, received_at, payload
		FROM booking_records
		WHERE (received_at >= $1 AND received_at <= $2)
		   OR (booking_datetime >= $1 AND booking_datetime <= $2)
		ORDER BY received_at ASC, id ASC
	`
	return r.listEntries(ctx, query, from, to)
}

func (r *EventLogRepository) listEntries(ctx context.Context, query string, from, to time.Time) ([]RawEventEntry, error) {
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	defer rows.Close()

	entries := []RawEventEntry{}
	for rows.Next() {
		var e RawEventEntry
		if err := rows.Scan(&e.ID, &e.ReceivedAt, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event log entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
