// internal/repository/postgres/state_history_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"salonfunnel-service/internal/domain/client"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StateHistoryRepository struct {
	db *pgxpool.Pool
}

func NewStateHistoryRepository(db *pgxpool.Pool) *StateHistoryRepository {
	return &StateHistoryRepository{db: db}
}

// Append writes one immutable ledger row. Callers are responsible for never
// appending rows where state equals previous state.
func (r *StateHistoryRepository) Append(ctx context.Context, e *client.StateHistoryEntry) error {
	query := `
		INSERT INTO state_history (client_id, state, previous_state, reason, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	var metadataJSON []byte
	var err error

	if e.Metadata != nil {
		metadataJSON, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err = r.db.QueryRow(
		ctx, query,
		e.ClientID, e.State, e.PreviousState, e.Reason, metadataJSON,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append state history: %w", err)
	}

	return nil
}

// ListByClient returns the client's ledger, newest first.
func (r *StateHistoryRepository) ListByClient(ctx context.Context, clientID string) ([]client.StateHistoryEntry, error) {
	query := `
		SELECT id, client_id, state, previous_state, reason, metadata, created_at
		FROM state_history
		WHERE client_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list state history: %w", err)
	}
	defer rows.Close()

	entries := []client.StateHistoryEntry{}
	for rows.Next() {
		var e client.StateHistoryEntry
		var metadataJSON []byte

		err := rows.Scan(&e.ID, &e.ClientID, &e.State, &e.PreviousState, &e.Reason, &metadataJSON, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan state history: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// HasState answers "did state s ever occur for this client". Legacy enum
// aliases are folded in so old rows still count.
func (r *StateHistoryRepository) HasState(ctx context.Context, clientID string, s client.State) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM state_history
			WHERE client_id = $1 AND state = ANY($2)
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, clientID, stateAliases(s)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check state history: %w", err)
	}
	return exists, nil
}

// ReparentAll moves every ledger row from one client to another. Used by the
// merge engine so the loser's history survives its deletion.
func (r *StateHistoryRepository) ReparentAll(ctx context.Context, fromClientID, toClientID string) (int64, error) {
	result, err := r.db.Exec(
		ctx,
		`UPDATE state_history SET client_id = $2 WHERE client_id = $1`,
		fromClientID, toClientID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reparent state history: %w", err)
	}
	return result.RowsAffected(), nil
}

// stateAliases expands a normalized state to every raw value old rows may
// still carry.
func stateAliases(s client.State) []string {
	switch s {
	case client.StateMessage:
		return []string{string(client.StateMessage), "lead"}
	case client.StateConsultationBooked:
		return []string{string(client.StateConsultationBooked), "consultation"}
	default:
		return []string{string(s)}
	}
}
