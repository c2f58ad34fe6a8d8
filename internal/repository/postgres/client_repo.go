// internal/repository/postgres/client_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonfunnel-service/internal/domain/client"
	xerrors "salonfunnel-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientRepository struct {
	db *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `
	id, handle, external_booking_id, given_name, family_name,
	phone, visit_count, total_spent,
	state, first_contact_at, last_message_at,
	consultation_booking_at, consultation_date, consultation_attended,
	consultation_cancelled, consultation_master_id, consultation_master_name,
	paid_service_at, paid_service_attended, paid_service_cancelled,
	paid_service_total_cost, paid_service_removed,
	master_id, master_manually_set,
	activity_at, activity_keys, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*client.ClientRecord, error) {
	var c client.ClientRecord
	err := row.Scan(
		&c.ID, &c.Handle, &c.ExternalBookingID, &c.GivenName, &c.FamilyName,
		&c.Phone, &c.VisitCount, &c.TotalSpent,
		&c.State, &c.FirstContactAt, &c.LastMessageAt,
		&c.ConsultationBookingAt, &c.ConsultationDate, &c.ConsultationAttended,
		&c.ConsultationCancelled, &c.ConsultationMasterID, &c.ConsultationMasterName,
		&c.PaidServiceAt, &c.PaidServiceAttended, &c.PaidServiceCancelled,
		&c.PaidServiceTotalCost, &c.PaidServiceRemoved,
		&c.MasterID, &c.MasterManuallySet,
		&c.ActivityAt, &c.ActivityKeys, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return &c, nil
}

// Create inserts a new canonical client record.
// A handle collision maps to xerrors.ErrConflict for the caller to recover
// by re-querying and routing into the merge engine.
func (r *ClientRepository) Create(ctx context.Context, c *client.ClientRecord) error {
	query := `
		INSERT INTO clients (
			id, handle, external_booking_id, given_name, family_name,
			phone, visit_count, total_spent,
			state, first_contact_at, last_message_at,
			consultation_booking_at, consultation_date, consultation_attended,
			consultation_cancelled, consultation_master_id, consultation_master_name,
			paid_service_at, paid_service_attended, paid_service_cancelled,
			paid_service_total_cost, paid_service_removed,
			master_id, master_manually_set,
			activity_at, activity_keys
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		c.ID, c.Handle, c.ExternalBookingID, c.GivenName, c.FamilyName,
		c.Phone, c.VisitCount, c.TotalSpent,
		c.State, c.FirstContactAt, c.LastMessageAt,
		c.ConsultationBookingAt, c.ConsultationDate, c.ConsultationAttended,
		c.ConsultationCancelled, c.ConsultationMasterID, c.ConsultationMasterName,
		c.PaidServiceAt, c.PaidServiceAttended, c.PaidServiceCancelled,
		c.PaidServiceTotalCost, c.PaidServiceRemoved,
		c.MasterID, c.MasterManuallySet,
		c.ActivityAt, c.ActivityKeys,
	).Scan(&c.CreatedAt, &c.UpdatedAt)

	if isUniqueViolation(err) {
		return xerrors.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

// FindByID retrieves a client by its opaque id.
func (r *ClientRepository) FindByID(ctx context.Context, id string) (*client.ClientRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE id = $1`, clientColumns)
	return scanClient(r.db.QueryRow(ctx, query, id))
}

// FindByExternalID retrieves a client by its booking-system id.
func (r *ClientRepository) FindByExternalID(ctx context.Context, externalID int64) (*client.ClientRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE external_booking_id = $1`, clientColumns)
	return scanClient(r.db.QueryRow(ctx, query, externalID))
}

// FindByHandle retrieves a client by its normalized handle.
func (r *ClientRepository) FindByHandle(ctx context.Context, handle string) (*client.ClientRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE handle = $1`, clientColumns)
	return scanClient(r.db.QueryRow(ctx, query, client.NormalizeHandle(handle)))
}

// FindByName retrieves a client by case-insensitive exact name pair match.
func (r *ClientRepository) FindByName(ctx context.Context, givenName, familyName string) (*client.ClientRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM clients
		WHERE lower(given_name) = lower($1) AND lower(family_name) = lower($2)
		ORDER BY created_at ASC
		LIMIT 1`, clientColumns)
	return scanClient(r.db.QueryRow(ctx, query, givenName, familyName))
}

// Update writes the full record back. The updated_at stamp always moves;
// activity_at only carries what the caller decided.
func (r *ClientRepository) Update(ctx context.Context, c *client.ClientRecord) error {
	query := `
		UPDATE clients SET
			handle = $2, external_booking_id = $3, given_name = $4, family_name = $5,
			phone = $6, visit_count = $7, total_spent = $8,
			state = $9, first_contact_at = $10, last_message_at = $11,
			consultation_booking_at = $12, consultation_date = $13, consultation_attended = $14,
			consultation_cancelled = $15, consultation_master_id = $16, consultation_master_name = $17,
			paid_service_at = $18, paid_service_attended = $19, paid_service_cancelled = $20,
			paid_service_total_cost = $21, paid_service_removed = $22,
			master_id = $23, master_manually_set = $24,
			activity_at = $25, activity_keys = $26, updated_at = $27
		WHERE id = $1
	`

	result, err := r.db.Exec(
		ctx, query,
		c.ID, c.Handle, c.ExternalBookingID, c.GivenName, c.FamilyName,
		c.Phone, c.VisitCount, c.TotalSpent,
		c.State, c.FirstContactAt, c.LastMessageAt,
		c.ConsultationBookingAt, c.ConsultationDate, c.ConsultationAttended,
		c.ConsultationCancelled, c.ConsultationMasterID, c.ConsultationMasterName,
		c.PaidServiceAt, c.PaidServiceAttended, c.PaidServiceCancelled,
		c.PaidServiceTotalCost, c.PaidServiceRemoved,
		c.MasterID, c.MasterManuallySet,
		c.ActivityAt, c.ActivityKeys, time.Now(),
	)

	if isUniqueViolation(err) {
		return xerrors.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Delete removes a record for good. Only the merge engine calls this, and
// only after the loser's history rows were reparented.
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// List retrieves clients ordered either by recent activity or by creation
// time, newest first.
func (r *ClientRepository) List(ctx context.Context, sortByActivity bool, limit, offset int) ([]client.ClientRecord, error) {
	orderBy := "created_at DESC"
	if sortByActivity {
		orderBy = "activity_at DESC NULLS LAST, created_at DESC"
	}

	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := fmt.Sprintf(`
		SELECT %s FROM clients
		ORDER BY %s
		LIMIT $1 OFFSET $2`, clientColumns, orderBy)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	records := []client.ClientRecord{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *c)
	}

	return records, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
