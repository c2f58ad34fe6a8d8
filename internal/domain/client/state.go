// internal/domain/client/state.go
package client

// State is a flat funnel lifecycle state. The append-only history ledger, not
// the current value, is authoritative for "has this record ever been X".
type State string

const (
	StateMessage                 State = "message"
	StateClient                  State = "client"
	StateConsultationBooked      State = "consultation-booked"
	StateConsultationNoShow      State = "consultation-no-show"
	StateConsultationRescheduled State = "consultation-rescheduled"
	StateHairExtension           State = "hair-extension"
	StateOtherServices           State = "other-services"
	StateAllGood                 State = "all-good"
	StateTooExpensive            State = "too-expensive"
)

// Legacy values still present in old rows and old upstream payloads.
const (
	legacyLead         = "lead"
	legacyConsultation = "consultation"
)

// NormalizeState maps legacy enum values onto their current equivalents.
// Applied at every read and write boundary so business logic never sees them.
func NormalizeState(raw string) State {
	switch raw {
	case legacyLead:
		return StateMessage
	case legacyConsultation:
		return StateConsultationBooked
	default:
		return State(raw)
	}
}

// ValidState reports whether s is one of the known lifecycle states after
// normalization.
func ValidState(s State) bool {
	switch s {
	case StateMessage, StateClient, StateConsultationBooked,
		StateConsultationNoShow, StateConsultationRescheduled,
		StateHairExtension, StateOtherServices, StateAllGood,
		StateTooExpensive:
		return true
	}
	return false
}
