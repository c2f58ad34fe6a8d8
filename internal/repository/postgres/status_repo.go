// internal/repository/postgres/status_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonfunnel-service/internal/domain/status"
	xerrors "salonfunnel-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StatusRepository struct {
	db *pgxpool.Pool
}

func NewStatusRepository(db *pgxpool.Pool) *StatusRepository {
	return &StatusRepository{db: db}
}

// Create inserts a work-queue label. When the new label is the default the
// previous default is cleared in the same transaction, keeping exactly one
// default at all times.
func (r *StatusRepository) Create(ctx context.Context, s *status.StatusRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE statuses SET is_default = FALSE WHERE is_default = TRUE`); err != nil {
			return fmt.Errorf("failed to clear default status: %w", err)
		}
	}

	err = tx.QueryRow(
		ctx,
		`INSERT INTO statuses (name, color, sort_order, is_default)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		s.Name, s.Color, s.Order, s.IsDefault,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create status: %w", err)
	}

	return tx.Commit(ctx)
}

// FindByID retrieves a label by id.
func (r *StatusRepository) FindByID(ctx context.Context, id int64) (*status.StatusRecord, error) {
	var s status.StatusRecord
	err := r.db.QueryRow(
		ctx,
		`SELECT id, name, color, sort_order, is_default, created_at, updated_at
		 FROM statuses WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Color, &s.Order, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find status: %w", err)
	}

	return &s, nil
}

// List returns all labels in display order.
func (r *StatusRepository) List(ctx context.Context) ([]status.StatusRecord, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, color, sort_order, is_default, created_at, updated_at
		 FROM statuses ORDER BY sort_order ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	records := []status.StatusRecord{}
	for rows.Next() {
		var s status.StatusRecord
		if err := rows.Scan(&s.ID, &s.Name, &s.Color, &s.Order, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		records = append(records, s)
	}

	return records, rows.Err()
}

// Update writes label changes. Promoting a label to default demotes the old
// default in the same transaction.
func (r *StatusRepository) Update(ctx context.Context, s *status.StatusRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE statuses SET is_default = FALSE WHERE is_default = TRUE AND id <> $1`, s.ID); err != nil {
			return fmt.Errorf("failed to clear default status: %w", err)
		}
	}

	result, err := tx.Exec(
		ctx,
		`UPDATE statuses SET name = $2, color = $3, sort_order = $4, is_default = $5, updated_at = $6
		 WHERE id = $1`,
		s.ID, s.Name, s.Color, s.Order, s.IsDefault, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return tx.Commit(ctx)
}

// Delete removes a label. Deleting the default promotes the first remaining
// label by display order, so one default always survives.
func (r *StatusRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var wasDefault bool
	err = tx.QueryRow(ctx, `DELETE FROM statuses WHERE id = $1 RETURNING is_default`, id).Scan(&wasDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete status: %w", err)
	}

	if wasDefault {
		_, err = tx.Exec(ctx, `
			UPDATE statuses SET is_default = TRUE
			WHERE id = (SELECT id FROM statuses ORDER BY sort_order ASC, id ASC LIMIT 1)
		`)
		if err != nil {
			return fmt.Errorf("failed to promote fallback default: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetDefault returns the current default label.
func (r *StatusRepository) GetDefault(ctx context.Context) (*status.StatusRecord, error) {
	var s status.StatusRecord
	err := r.db.QueryRow(
		ctx,
		`SELECT id, name, color, sort_order, is_default, created_at, updated_at
		 FROM statuses WHERE is_default = TRUE LIMIT 1`,
	).Scan(&s.ID, &s.Name, &s.Color, &s.Order, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default status: %w", err)
	}

	return &s, nil
}
