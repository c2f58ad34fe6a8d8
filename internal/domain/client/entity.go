// internal/domain/client/entity.go
package client

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ClientRecord is the canonical identity record: exactly one per real person,
// regardless of how many partial identifiers the upstream sources produce.
type ClientRecord struct {
	ID string `json:"id" db:"id"`

	// Identity
	Handle            string         `json:"handle" db:"handle"`
	ExternalBookingID sql.NullInt64  `json:"external_booking_id,omitempty" db:"external_booking_id"`
	GivenName         sql.NullString `json:"given_name,omitempty" db:"given_name"`
	FamilyName        sql.NullString `json:"family_name,omitempty" db:"family_name"`

	// Metrics mirrored from the booking system
	Phone      sql.NullString  `json:"phone,omitempty" db:"phone"`
	VisitCount sql.NullInt64   `json:"visit_count,omitempty" db:"visit_count"`
	TotalSpent sql.NullFloat64 `json:"total_spent,omitempty" db:"total_spent"`

	// Funnel lifecycle
	State          sql.NullString `json:"state,omitempty" db:"state"`
	FirstContactAt sql.NullTime   `json:"first_contact_at,omitempty" db:"first_contact_at"`
	LastMessageAt  sql.NullTime   `json:"last_message_at,omitempty" db:"last_message_at"`

	// Consultation
	ConsultationBookingAt  sql.NullTime   `json:"consultation_booking_at,omitempty" db:"consultation_booking_at"`
	ConsultationDate       sql.NullTime   `json:"consultation_date,omitempty" db:"consultation_date"`
	ConsultationAttended   sql.NullBool   `json:"consultation_attended,omitempty" db:"consultation_attended"`
	ConsultationCancelled  bool           `json:"consultation_cancelled" db:"consultation_cancelled"`
	ConsultationMasterID   sql.NullString `json:"consultation_master_id,omitempty" db:"consultation_master_id"`
	ConsultationMasterName sql.NullString `json:"consultation_master_name,omitempty" db:"consultation_master_name"`

	// Paid service
	PaidServiceAt        sql.NullTime    `json:"paid_service_at,omitempty" db:"paid_service_at"`
	PaidServiceAttended  sql.NullBool    `json:"paid_service_attended,omitempty" db:"paid_service_attended"`
	PaidServiceCancelled bool            `json:"paid_service_cancelled" db:"paid_service_cancelled"`
	PaidServiceTotalCost sql.NullFloat64 `json:"paid_service_total_cost,omitempty" db:"paid_service_total_cost"`
	PaidServiceRemoved   bool            `json:"paid_service_removed" db:"paid_service_removed"`

	// Master assignment
	MasterID          sql.NullString `json:"master_id,omitempty" db:"master_id"`
	MasterManuallySet bool           `json:"master_manually_set" db:"master_manually_set"`

	// Activity ranking, distinct from UpdatedAt
	ActivityAt   sql.NullTime   `json:"activity_at,omitempty" db:"activity_at"`
	ActivityKeys pq.StringArray `json:"activity_keys,omitempty" db:"activity_keys"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CurrentState returns the record's lifecycle state normalized for legacy values.
func (r *ClientRecord) CurrentState() State {
	if !r.State.Valid {
		return ""
	}
	return NormalizeState(r.State.String)
}

// HasRealHandle reports whether the record carries a known social handle
// rather than a synthetic placeholder.
func (r *ClientRecord) HasRealHandle() bool {
	return r.Handle != "" && !IsPlaceholderHandle(r.Handle)
}

// StateHistoryEntry is one append-only row of the lifecycle ledger. Rows are
// never written when state equals previous state, and never deleted with a
// merged-away record (they are reparented to the survivor instead).
type StateHistoryEntry struct {
	ID            int64                  `json:"id" db:"id"`
	ClientID      string                 `json:"client_id" db:"client_id"`
	State         sql.NullString         `json:"state,omitempty" db:"state"`
	PreviousState sql.NullString         `json:"previous_state,omitempty" db:"previous_state"`
	Reason        string                 `json:"reason" db:"reason"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}

const (
	placeholderMissingPrefix = "missing-handle-"
	placeholderNoPrefix      = "no-handle-"
)

// PlaceholderHandle builds a synthetic unique handle encoding the external
// booking id, used until the real social handle becomes known.
func PlaceholderHandle(externalID int64) string {
	return fmt.Sprintf("%s%d", placeholderMissingPrefix, externalID)
}

// ReleasedHandle builds the synthetic handle a merged-away record is renamed
// to so the survivor can claim the real one under the unique handle index.
func ReleasedHandle(id string) string {
	return placeholderNoPrefix + id
}

// IsPlaceholderHandle reports whether a handle is a synthetic stand-in.
// Every identity rule must treat such handles as "handle unknown".
func IsPlaceholderHandle(handle string) bool {
	return strings.HasPrefix(handle, placeholderMissingPrefix) ||
		strings.HasPrefix(handle, placeholderNoPrefix)
}

// NormalizeHandle lowercases a raw social handle and strips decoration that
// upstream sources attach inconsistently.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.ToLower(handle)
}
