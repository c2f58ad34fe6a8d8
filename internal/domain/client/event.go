// internal/domain/client/event.go
package client

import "time"

// EventKind distinguishes the two inbound signal families.
type EventKind string

const (
	// EventKindIdentity is a messaging/contact signal carrying partial identity.
	EventKindIdentity EventKind = "identity"
	// EventKindBooking is a signal from the authoritative booking system.
	EventKindBooking EventKind = "booking"
)

// Attendance codes from the booking system. Positive codes mean the visit
// happened, zero (or an absent code) means the visit is still pending, any
// negative code means no-show.
const (
	AttendanceConfirmed = 2
	AttendanceArrived   = 1
	AttendancePending   = 0
	AttendanceNoShow    = -1
)

// ServiceLine is one booked service on an appointment.
type ServiceLine struct {
	Title string `json:"title"`
}

// InboundEvent is the normalized ephemeral shape every raw upstream entry is
// reduced to before resolution. Zero values mean "absent": ExternalBookingID 0,
// empty strings and a zero Datetime all read as not-provided.
type InboundEvent struct {
	ReceivedAt time.Time `json:"received_at"`
	Kind       EventKind `json:"kind"`

	ExternalBookingID int64  `json:"external_booking_id,omitempty"`
	Handle            string `json:"handle,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`

	Services       []ServiceLine `json:"services,omitempty"`
	AttendanceCode int           `json:"attendance_code"`
	Datetime       time.Time     `json:"datetime,omitempty"`

	StaffID   string  `json:"staff_id,omitempty"`
	StaffName string  `json:"staff_name,omitempty"`
	StaffRole string  `json:"staff_role,omitempty"`
	TotalCost float64 `json:"total_cost,omitempty"`

	// Set when the upstream source reports the paid item was removed.
	PaidItemRemoved bool `json:"paid_item_removed,omitempty"`
}

// HasIdentity reports whether the event carries at least one identifier a
// resolver strategy can use.
func (e *InboundEvent) HasIdentity() bool {
	return e.ExternalBookingID != 0 ||
		NormalizeHandle(e.Handle) != "" ||
		e.GivenName != "" || e.FamilyName != ""
}

// Attended reports a positive attendance code.
func (e *InboundEvent) Attended() bool { return e.AttendanceCode > 0 }

// NoShow reports a negative attendance code.
func (e *InboundEvent) NoShow() bool { return e.AttendanceCode < 0 }

// Pending reports a zero or absent attendance code.
func (e *InboundEvent) Pending() bool { return e.AttendanceCode == 0 }

// EffectiveDate is the date the event is about: the booking datetime when
// present, otherwise the time the event was received.
func (e *InboundEvent) EffectiveDate() time.Time {
	if !e.Datetime.IsZero() {
		return e.Datetime
	}
	return e.ReceivedAt
}
