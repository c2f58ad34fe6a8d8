// internal/domain/client/dto.go
package client

import (
	"database/sql"
	"time"
)

// ClientPatch is a partial write against a ClientRecord. Nil pointers mean
// "field not present in this write". Presence matters: only fields actually
// carried by a patch participate in activity tracking.
type ClientPatch struct {
	Handle            *string `json:"handle,omitempty"`
	ExternalBookingID *int64  `json:"external_booking_id,omitempty"`
	GivenName         *string `json:"given_name,omitempty"`
	FamilyName        *string `json:"family_name,omitempty"`

	Phone      *string  `json:"phone,omitempty"`
	VisitCount *int64   `json:"visit_count,omitempty"`
	TotalSpent *float64 `json:"total_spent,omitempty"`

	State          *State     `json:"state,omitempty"`
	FirstContactAt *time.Time `json:"first_contact_at,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`

	ConsultationBookingAt  *time.Time `json:"consultation_booking_at,omitempty"`
	ConsultationDate       *time.Time `json:"consultation_date,omitempty"`
	ConsultationAttended   *bool      `json:"consultation_attended,omitempty"`
	ConsultationCancelled  *bool      `json:"consultation_cancelled,omitempty"`
	ConsultationMasterID   *string    `json:"consultation_master_id,omitempty"`
	ConsultationMasterName *string    `json:"consultation_master_name,omitempty"`

	PaidServiceAt        *time.Time `json:"paid_service_at,omitempty"`
	PaidServiceAttended  *bool      `json:"paid_service_attended,omitempty"`
	PaidServiceCancelled *bool      `json:"paid_service_cancelled,omitempty"`
	PaidServiceTotalCost *float64   `json:"paid_service_total_cost,omitempty"`
	PaidServiceRemoved   *bool      `json:"paid_service_removed,omitempty"`

	MasterID          *string `json:"master_id,omitempty"`
	MasterManuallySet *bool   `json:"master_manually_set,omitempty"`

	// ClearPaidService drops a previously recorded paid-service expectation
	// (a fresh consultation booking supersedes it).
	ClearPaidService bool `json:"clear_paid_service,omitempty"`
}

// IsEmpty reports whether the patch carries no field at all.
func (p *ClientPatch) IsEmpty() bool {
	return *p == (ClientPatch{})
}

// Apply copies every present patch field onto rec. State values are
// normalized at this write boundary.
func (p *ClientPatch) Apply(rec *ClientRecord) {
	if p.Handle != nil {
		rec.Handle = NormalizeHandle(*p.Handle)
	}
	if p.ExternalBookingID != nil {
		rec.ExternalBookingID = sql.NullInt64{Int64: *p.ExternalBookingID, Valid: true}
	}
	if p.GivenName != nil {
		rec.GivenName = sql.NullString{String: *p.GivenName, Valid: *p.GivenName != ""}
	}
	if p.FamilyName != nil {
		rec.FamilyName = sql.NullString{String: *p.FamilyName, Valid: *p.FamilyName != ""}
	}
	if p.Phone != nil {
		rec.Phone = sql.NullString{String: *p.Phone, Valid: *p.Phone != ""}
	}
	if p.VisitCount != nil {
		rec.VisitCount = sql.NullInt64{Int64: *p.VisitCount, Valid: true}
	}
	if p.TotalSpent != nil {
		rec.TotalSpent = sql.NullFloat64{Float64: *p.TotalSpent, Valid: true}
	}
	if p.State != nil {
		normalized := NormalizeState(string(*p.State))
		rec.State = sql.NullString{String: string(normalized), Valid: normalized != ""}
	}
	if p.FirstContactAt != nil {
		rec.FirstContactAt = sql.NullTime{Time: *p.FirstContactAt, Valid: true}
	}
	if p.LastMessageAt != nil {
		rec.LastMessageAt = sql.NullTime{Time: *p.LastMessageAt, Valid: true}
	}
	if p.ConsultationBookingAt != nil {
		rec.ConsultationBookingAt = sql.NullTime{Time: *p.ConsultationBookingAt, Valid: true}
	}
	if p.ConsultationDate != nil {
		rec.ConsultationDate = sql.NullTime{Time: *p.ConsultationDate, Valid: true}
	}
	if p.ConsultationAttended != nil {
		rec.ConsultationAttended = sql.NullBool{Bool: *p.ConsultationAttended, Valid: true}
	}
	if p.ConsultationCancelled != nil {
		rec.ConsultationCancelled = *p.ConsultationCancelled
	}
	if p.ConsultationMasterID != nil {
		rec.ConsultationMasterID = sql.NullString{String: *p.ConsultationMasterID, Valid: *p.ConsultationMasterID != ""}
	}
	if p.ConsultationMasterName != nil {
		rec.ConsultationMasterName = sql.NullString{String: *p.ConsultationMasterName, Valid: *p.ConsultationMasterName != ""}
	}
	if p.PaidServiceAt != nil {
		rec.PaidServiceAt = sql.NullTime{Time: *p.PaidServiceAt, Valid: true}
	}
	if p.PaidServiceAttended != nil {
		rec.PaidServiceAttended = sql.NullBool{Bool: *p.PaidServiceAttended, Valid: true}
	}
	if p.PaidServiceCancelled != nil {
		rec.PaidServiceCancelled = *p.PaidServiceCancelled
	}
	if p.PaidServiceTotalCost != nil {
		rec.PaidServiceTotalCost = sql.NullFloat64{Float64: *p.PaidServiceTotalCost, Valid: true}
	}
	if p.PaidServiceRemoved != nil {
		rec.PaidServiceRemoved = *p.PaidServiceRemoved
	}
	if p.MasterID != nil {
		rec.MasterID = sql.NullString{String: *p.MasterID, Valid: *p.MasterID != ""}
	}
	if p.MasterManuallySet != nil {
		rec.MasterManuallySet = *p.MasterManuallySet
	}
	if p.ClearPaidService {
		rec.PaidServiceAt = sql.NullTime{}
		rec.PaidServiceAttended = sql.NullBool{}
		rec.PaidServiceCancelled = false
	}
}

// SaveOptions tunes a single save call.
type SaveOptions struct {
	// TouchActivity permits moving the activity timestamp. Backfill and
	// admin corrections pass false.
	TouchActivity bool `json:"touch_activity"`
	// SkipMetricsSync suppresses the first-time metrics fetch from the
	// booking system.
	SkipMetricsSync bool `json:"skip_metrics_sync"`
}

// DefaultSaveOptions matches the documented entrypoint defaults.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{TouchActivity: true, SkipMetricsSync: false}
}
