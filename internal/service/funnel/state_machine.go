// internal/service/funnel/state_machine.go
package funnel

import (
	"strings"
	"time"

	"salonfunnel-service/internal/domain/client"
)

// HistoryFacts are the ledger answers the pure state machine needs. Callers
// compute them from the append-only history, never from the current state.
type HistoryFacts struct {
	// HadClient: state `client` was recorded at some point in the past.
	HadClient bool
	// HadConsultation: a consultation booking was ever recorded.
	HadConsultation bool
}

// Outcome is the state machine's decision for one event: a partial write and,
// when the visible state changes, the material for exactly one history row.
type Outcome struct {
	Patch        client.ClientPatch
	StateChanged bool
	NextState    client.State
	Reason       string
	Metadata     map[string]interface{}
}

// Service-title tokens, matched case-insensitively in any language variant
// the booking system emits.
var (
	consultationTokens  = []string{"consultation", "консультация"}
	hairExtensionTokens = []string{"hair extension", "наращивание"}
)

// Advance computes the next lifecycle decision for rec given one inbound
// event. Pure: no I/O, no clock reads (now is injected), no mutation of rec.
func Advance(rec *client.ClientRecord, ev *client.InboundEvent, facts HistoryFacts, now time.Time) Outcome {
	out := Outcome{Metadata: map[string]interface{}{}}

	switch ev.Kind {
	case client.EventKindIdentity:
		advanceIdentity(&out, rec, ev, facts)
	case client.EventKindBooking:
		if hasServiceToken(ev.Services, consultationTokens) && !ev.Datetime.IsZero() {
			advanceConsultation(&out, rec, ev, facts, now)
		} else {
			advancePaidService(&out, rec, ev, facts, now)
		}
	}

	return out
}

// DetermineState maps a booked service list onto a flat state. Consultation
// titles are owned by the consultation sub-flow and yield no state here.
// An empty list yields no state change.
func DetermineState(services []client.ServiceLine) client.State {
	if len(services) == 0 {
		return ""
	}
	if hasServiceToken(services, consultationTokens) {
		return ""
	}
	if hasServiceToken(services, hairExtensionTokens) {
		return client.StateHairExtension
	}
	return client.StateOtherServices
}

func advanceIdentity(out *Outcome, rec *client.ClientRecord, ev *client.InboundEvent, facts HistoryFacts) {
	receivedAt := ev.ReceivedAt
	if !rec.FirstContactAt.Valid {
		out.Patch.FirstContactAt = &receivedAt
	}
	if !rec.LastMessageAt.Valid || receivedAt.After(rec.LastMessageAt.Time) {
		out.Patch.LastMessageAt = &receivedAt
	}
	if rec.CurrentState() == "" {
		proposeState(out, rec, facts, client.StateMessage, "first-contact")
	}
}

func advanceConsultation(out *Outcome, rec *client.ClientRecord, ev *client.InboundEvent, facts HistoryFacts, now time.Time) {
	datetime := ev.Datetime

	switch {
	case ev.Pending():
		switch {
		case !facts.HadConsultation && rec.CurrentState() != client.StateConsultationBooked:
			proposeState(out, rec, facts, client.StateConsultationBooked, "consultation-booked")
			out.Patch.ConsultationBookingAt = &datetime
			// A fresh consultation booking supersedes a previously
			// recorded paid-service expectation.
			out.Patch.ClearPaidService = true
			out.Metadata["consultation_datetime"] = datetime
		case rec.CurrentState() == client.StateConsultationBooked &&
			(!rec.ConsultationBookingAt.Valid || !rec.ConsultationBookingAt.Time.Equal(datetime)):
			// Reschedule: stamp moves, state stays.
			out.Patch.ConsultationBookingAt = &datetime
		case !rec.ConsultationBookingAt.Valid:
			// The stamp went missing at some point; repair it whatever
			// the current state is.
			out.Patch.ConsultationBookingAt = &datetime
		}

	case ev.Attended():
		alreadyAttended := rec.ConsultationAttended.Valid && rec.ConsultationAttended.Bool
		if alreadyAttended || isAdminRole(ev.StaffRole) || datetime.After(now) {
			return
		}
		attended := true
		out.Patch.ConsultationAttended = &attended
		out.Patch.ConsultationDate = &datetime
		if ev.StaffID != "" {
			out.Patch.ConsultationMasterID = &ev.StaffID
		}
		if ev.StaffName != "" {
			out.Patch.ConsultationMasterName = &ev.StaffName
		}
		// Attendance is tracked on the flag only, the flat state is
		// deliberately left alone.

	case ev.NoShow():
		if rec.CurrentState() == client.StateConsultationBooked {
			proposeState(out, rec, facts, client.StateConsultationNoShow, "consultation-no-show")
			out.Metadata["consultation_datetime"] = datetime
		}
	}
}

func advancePaidService(out *Outcome, rec *client.ClientRecord, ev *client.InboundEvent, facts HistoryFacts, now time.Time) {
	if ev.PaidItemRemoved {
		removed := true
		out.Patch.PaidServiceRemoved = &removed
	}

	hairExtension := hasServiceToken(ev.Services, hairExtensionTokens)
	if hairExtension && !ev.Datetime.IsZero() && !rec.PaidServiceRemoved && !ev.PaidItemRemoved {
		datetime := ev.Datetime
		future := datetime.After(now)
		newer := !rec.PaidServiceAt.Valid || datetime.After(rec.PaidServiceAt.Time)
		if future || newer {
			out.Patch.PaidServiceAt = &datetime
		}
	}

	if ev.StaffID != "" && !rec.MasterManuallySet {
		out.Patch.MasterID = &ev.StaffID
	}
	if ev.TotalCost > 0 {
		out.Patch.PaidServiceTotalCost = &ev.TotalCost
	}

	if next := DetermineState(ev.Services); next != "" {
		proposeState(out, rec, facts, next, "service-booking")
		out.Metadata["services"] = serviceTitles(ev.Services)
	}
}

// proposeState applies the one-shot `client` guard and suppresses writes that
// would not change the visible state, so no redundant history row is produced.
func proposeState(out *Outcome, rec *client.ClientRecord, facts HistoryFacts, next client.State, reason string) {
	if next == client.StateClient && facts.HadClient {
		return
	}
	if next == rec.CurrentState() {
		return
	}
	out.Patch.State = &next
	out.StateChanged = true
	out.NextState = next
	out.Reason = reason
}

func hasServiceToken(services []client.ServiceLine, tokens []string) bool {
	for _, svc := range services {
		title := strings.ToLower(svc.Title)
		for _, token := range tokens {
			if strings.Contains(title, token) {
				return true
			}
		}
	}
	return false
}

func isAdminRole(role string) bool {
	role = strings.ToLower(role)
	return strings.Contains(role, "admin") || strings.Contains(role, "админ")
}

func serviceTitles(services []client.ServiceLine) []string {
	titles := make([]string, 0, len(services))
	for _, svc := range services {
		titles = append(titles, svc.Title)
	}
	return titles
}
