package funnel

import (
	"database/sql"
	"testing"
	"time"

	"salonfunnel-service/internal/domain/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func messageEvent(receivedAt time.Time) *client.InboundEvent {
	return &client.InboundEvent{
		ReceivedAt: receivedAt,
		Kind:       client.EventKindIdentity,
		Handle:     "anna.k",
	}
}

func consultationEvent(receivedAt, datetime time.Time, attendance int) *client.InboundEvent {
	return &client.InboundEvent{
		ReceivedAt:     receivedAt,
		Kind:           client.EventKindBooking,
		Services:       []client.ServiceLine{{Title: "Consultation"}},
		AttendanceCode: attendance,
		Datetime:       datetime,
	}
}

func TestAdvanceFirstIdentityEvent(t *testing.T) {
	rec := &client.ClientRecord{ID: "c1", Handle: "anna.k"}
	ev := messageEvent(testNow.Add(-time.Hour))

	out := Advance(rec, ev, HistoryFacts{}, testNow)

	require.NotNil(t, out.Patch.FirstContactAt)
	assert.Equal(t, ev.ReceivedAt, *out.Patch.FirstContactAt)
	require.NotNil(t, out.Patch.LastMessageAt)
	assert.Equal(t, ev.ReceivedAt, *out.Patch.LastMessageAt)
	assert.True(t, out.StateChanged)
	assert.Equal(t, client.StateMessage, out.NextState)
}

func TestAdvanceIdentityEventKeepsMonotonicLastMessage(t *testing.T) {
	newer := testNow.Add(-time.Hour)
	rec := &client.ClientRecord{
		ID:             "c1",
		Handle:         "anna.k",
		State:          sql.NullString{String: "message", Valid: true},
		FirstContactAt: sql.NullTime{Time: testNow.Add(-48 * time.Hour), Valid: true},
		LastMessageAt:  sql.NullTime{Time: newer, Valid: true},
	}

	// A delayed event older than the stored stamp must not move it backwards.
	out := Advance(rec, messageEvent(testNow.Add(-2*time.Hour)), HistoryFacts{}, testNow)

	assert.Nil(t, out.Patch.FirstContactAt)
	assert.Nil(t, out.Patch.LastMessageAt)
	assert.False(t, out.StateChanged)
}

func TestAdvanceIdentityEventDoesNotDemoteState(t *testing.T) {
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "consultation-booked", Valid: true},
	}

	out := Advance(rec, messageEvent(testNow), HistoryFacts{HadConsultation: true}, testNow)

	assert.Nil(t, out.Patch.State)
	assert.False(t, out.StateChanged)
}

func TestAdvanceFirstConsultationBooking(t *testing.T) {
	rec := &client.ClientRecord{
		ID:            "c1",
		Handle:        "anna.k",
		State:         sql.NullString{String: "message", Valid: true},
		PaidServiceAt: sql.NullTime{Time: testNow.Add(24 * time.Hour), Valid: true},
	}
	datetime := testNow.Add(72 * time.Hour)

	out := Advance(rec, consultationEvent(testNow, datetime, client.AttendancePending), HistoryFacts{}, testNow)

	assert.True(t, out.StateChanged)
	assert.Equal(t, client.StateConsultationBooked, out.NextState)
	require.NotNil(t, out.Patch.ConsultationBookingAt)
	assert.Equal(t, datetime, *out.Patch.ConsultationBookingAt)
	assert.True(t, out.Patch.ClearPaidService)
}

func TestAdvanceConsultationRescheduleMovesStampOnly(t *testing.T) {
	booked := testNow.Add(24 * time.Hour)
	rec := &client.ClientRecord{
		ID:                    "c1",
		Handle:                "anna.k",
		State:                 sql.NullString{String: "consultation-booked", Valid: true},
		ConsultationBookingAt: sql.NullTime{Time: booked, Valid: true},
	}
	rescheduled := testNow.Add(96 * time.Hour)

	out := Advance(rec, consultationEvent(testNow, rescheduled, client.AttendancePending), HistoryFacts{HadConsultation: true}, testNow)

	assert.False(t, out.StateChanged)
	assert.Nil(t, out.Patch.State)
	require.NotNil(t, out.Patch.ConsultationBookingAt)
	assert.Equal(t, rescheduled, *out.Patch.ConsultationBookingAt)
	assert.False(t, out.Patch.ClearPaidService)
}

func TestAdvanceConsultationRepairsMissingStamp(t *testing.T) {
	// HadConsultation but the stamp is gone and the state moved on: the stamp
	// is repaired without touching the state.
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "hair-extension", Valid: true},
	}
	datetime := testNow.Add(48 * time.Hour)

	out := Advance(rec, consultationEvent(testNow, datetime, client.AttendancePending), HistoryFacts{HadConsultation: true}, testNow)

	assert.Nil(t, out.Patch.State)
	require.NotNil(t, out.Patch.ConsultationBookingAt)
	assert.Equal(t, datetime, *out.Patch.ConsultationBookingAt)
}

func TestAdvanceConsultationAttended(t *testing.T) {
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "consultation-booked", Valid: true},
	}
	datetime := testNow.Add(-2 * time.Hour)
	ev := consultationEvent(testNow, datetime, client.AttendanceArrived)
	ev.StaffID = "m7"
	ev.StaffName = "Olga"
	ev.StaffRole = "stylist"

	out := Advance(rec, ev, HistoryFacts{HadConsultation: true}, testNow)

	require.NotNil(t, out.Patch.ConsultationAttended)
	assert.True(t, *out.Patch.ConsultationAttended)
	require.NotNil(t, out.Patch.ConsultationDate)
	assert.Equal(t, datetime, *out.Patch.ConsultationDate)
	require.NotNil(t, out.Patch.ConsultationMasterID)
	assert.Equal(t, "m7", *out.Patch.ConsultationMasterID)
	// Attendance never moves the flat state on its own.
	assert.Nil(t, out.Patch.State)
	assert.False(t, out.StateChanged)
}

func TestAdvanceConsultationAttendedGates(t *testing.T) {
	base := client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "consultation-booked", Valid: true},
	}

	tests := []struct {
		name   string
		modify func(rec *client.ClientRecord, ev *client.InboundEvent)
	}{
		{
			name: "already attended",
			modify: func(rec *client.ClientRecord, ev *client.InboundEvent) {
				rec.ConsultationAttended = sql.NullBool{Bool: true, Valid: true}
			},
		},
		{
			name: "admin placeholder staff",
			modify: func(rec *client.ClientRecord, ev *client.InboundEvent) {
				ev.StaffRole = "Administrator"
			},
		},
		{
			name: "future visit marked attended",
			modify: func(rec *client.ClientRecord, ev *client.InboundEvent) {
				ev.Datetime = testNow.Add(24 * time.Hour)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := base
			ev := consultationEvent(testNow, testNow.Add(-time.Hour), client.AttendanceArrived)
			ev.StaffID = "m7"
			tt.modify(&rec, ev)

			out := Advance(&rec, ev, HistoryFacts{HadConsultation: true}, testNow)

			assert.Nil(t, out.Patch.ConsultationAttended)
			assert.Nil(t, out.Patch.ConsultationDate)
		})
	}
}

func TestAdvanceConsultationNoShow(t *testing.T) {
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "consultation-booked", Valid: true},
	}

	out := Advance(rec, consultationEvent(testNow, testNow.Add(-time.Hour), client.AttendanceNoShow), HistoryFacts{HadConsultation: true}, testNow)

	assert.True(t, out.StateChanged)
	assert.Equal(t, client.StateConsultationNoShow, out.NextState)
}

func TestAdvanceConsultationNoShowIgnoredWhenNotBooked(t *testing.T) {
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "hair-extension", Valid: true},
	}

	out := Advance(rec, consultationEvent(testNow, testNow.Add(-time.Hour), client.AttendanceNoShow), HistoryFacts{HadConsultation: true}, testNow)

	assert.False(t, out.StateChanged)
	assert.Nil(t, out.Patch.State)
}

func TestAdvancePaidServiceBooking(t *testing.T) {
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "consultation-booked", Valid: true},
	}
	datetime := testNow.Add(5 * 24 * time.Hour)
	ev := &client.InboundEvent{
		ReceivedAt: testNow,
		Kind:       client.EventKindBooking,
		Services:   []client.ServiceLine{{Title: "Hair Extension 60cm"}},
		Datetime:   datetime,
		StaffID:    "m7",
		TotalCost:  350,
	}

	out := Advance(rec, ev, HistoryFacts{HadConsultation: true}, testNow)

	require.NotNil(t, out.Patch.PaidServiceAt)
	assert.Equal(t, datetime, *out.Patch.PaidServiceAt)
	require.NotNil(t, out.Patch.MasterID)
	assert.Equal(t, "m7", *out.Patch.MasterID)
	require.NotNil(t, out.Patch.PaidServiceTotalCost)
	assert.Equal(t, 350.0, *out.Patch.PaidServiceTotalCost)
	assert.True(t, out.StateChanged)
	assert.Equal(t, client.StateHairExtension, out.NextState)
}

func TestAdvancePaidServiceOlderDatetimeDoesNotRegressStamp(t *testing.T) {
	held := testNow.Add(48 * time.Hour)
	rec := &client.ClientRecord{
		ID:            "c1",
		Handle:        "anna.k",
		State:         sql.NullString{String: "hair-extension", Valid: true},
		PaidServiceAt: sql.NullTime{Time: held, Valid: true},
	}
	ev := &client.InboundEvent{
		ReceivedAt: testNow,
		Kind:       client.EventKindBooking,
		Services:   []client.ServiceLine{{Title: "Hair Extension"}},
		Datetime:   testNow.Add(-72 * time.Hour),
	}

	out := Advance(rec, ev, HistoryFacts{}, testNow)

	assert.Nil(t, out.Patch.PaidServiceAt)
}

func TestAdvancePaidServiceRespectsManualMaster(t *testing.T) {
	rec := &client.ClientRecord{
		ID:                "c1",
		Handle:            "anna.k",
		MasterID:          sql.NullString{String: "m2", Valid: true},
		MasterManuallySet: true,
	}
	ev := &client.InboundEvent{
		ReceivedAt: testNow,
		Kind:       client.EventKindBooking,
		Services:   []client.ServiceLine{{Title: "Manicure"}},
		Datetime:   testNow.Add(24 * time.Hour),
		StaffID:    "m9",
	}

	out := Advance(rec, ev, HistoryFacts{}, testNow)

	assert.Nil(t, out.Patch.MasterID)
}

func TestAdvancePaidItemRemoved(t *testing.T) {
	rec := &client.ClientRecord{ID: "c1", Handle: "anna.k"}
	ev := &client.InboundEvent{
		ReceivedAt:      testNow,
		Kind:            client.EventKindBooking,
		Services:        []client.ServiceLine{{Title: "Hair Extension"}},
		Datetime:        testNow.Add(24 * time.Hour),
		PaidItemRemoved: true,
	}

	out := Advance(rec, ev, HistoryFacts{}, testNow)

	require.NotNil(t, out.Patch.PaidServiceRemoved)
	assert.True(t, *out.Patch.PaidServiceRemoved)
	assert.Nil(t, out.Patch.PaidServiceAt)
}

func TestProposeStateOneShotClientGuard(t *testing.T) {
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "too-expensive", Valid: true},
	}

	out := Outcome{Metadata: map[string]interface{}{}}
	proposeState(&out, rec, HistoryFacts{HadClient: true}, client.StateClient, "booking")
	assert.Nil(t, out.Patch.State)
	assert.False(t, out.StateChanged)

	out = Outcome{Metadata: map[string]interface{}{}}
	proposeState(&out, rec, HistoryFacts{}, client.StateClient, "booking")
	require.NotNil(t, out.Patch.State)
	assert.Equal(t, client.StateClient, *out.Patch.State)
}

func TestProposeStateSuppressesNoOpAfterNormalization(t *testing.T) {
	// Stored legacy "consultation" equals the normalized target, so nothing
	// is written.
	rec := &client.ClientRecord{
		ID:     "c1",
		Handle: "anna.k",
		State:  sql.NullString{String: "consultation", Valid: true},
	}

	out := Outcome{Metadata: map[string]interface{}{}}
	proposeState(&out, rec, HistoryFacts{}, client.StateConsultationBooked, "consultation-booked")

	assert.Nil(t, out.Patch.State)
	assert.False(t, out.StateChanged)
}

func TestDetermineState(t *testing.T) {
	tests := []struct {
		name     string
		services []client.ServiceLine
		want     client.State
	}{
		{"no services", nil, ""},
		{"consultation owned by sub-flow", []client.ServiceLine{{Title: "Consultation"}}, ""},
		{"russian consultation title", []client.ServiceLine{{Title: "Консультация по наращиванию"}}, ""},
		{"hair extension", []client.ServiceLine{{Title: "Hair Extension 50cm"}}, client.StateHairExtension},
		{"russian hair extension", []client.ServiceLine{{Title: "Наращивание волос"}}, client.StateHairExtension},
		{"other service", []client.ServiceLine{{Title: "Manicure"}}, client.StateOtherServices},
		{"mixed with consultation wins consultation", []client.ServiceLine{{Title: "Manicure"}, {Title: "Consultation"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineState(tt.services))
		})
	}
}
