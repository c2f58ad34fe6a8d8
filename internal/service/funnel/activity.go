// internal/service/funnel/activity.go
package funnel

import (
	"salonfunnel-service/internal/domain/client"
)

// Activity key tags explaining why the activity timestamp last moved. They
// mirror the column names of the fields they track.
const (
	ActivityLastMessage           = "last_message_at"
	ActivityPaidServiceAt         = "paid_service_at"
	ActivityPaidServiceAttended   = "paid_service_attended"
	ActivityPaidServiceCancelled  = "paid_service_cancelled"
	ActivityPaidServiceTotalCost  = "paid_service_total_cost"
	ActivityConsultationBookingAt = "consultation_booking_at"
	ActivityConsultationAttended  = "consultation_attended"
	ActivityConsultationCancelled = "consultation_cancelled"
)

// ComputeActivityKeys returns the tags for tracked fields that a patch both
// carries and changes. Omitted fields never contribute, whatever the stored
// value is. Master reassignment and lifecycle state changes are not tracked:
// neither may bump the "recently active" ranking.
func ComputeActivityKeys(prev *client.ClientRecord, patch *client.ClientPatch) []string {
	keys := []string{}

	if patch.LastMessageAt != nil &&
		(!prev.LastMessageAt.Valid || !prev.LastMessageAt.Time.Equal(*patch.LastMessageAt)) {
		keys = append(keys, ActivityLastMessage)
	}
	if patch.PaidServiceAt != nil &&
		(!prev.PaidServiceAt.Valid || !prev.PaidServiceAt.Time.Equal(*patch.PaidServiceAt)) {
		keys = append(keys, ActivityPaidServiceAt)
	}
	if patch.PaidServiceAttended != nil &&
		(!prev.PaidServiceAttended.Valid || prev.PaidServiceAttended.Bool != *patch.PaidServiceAttended) {
		keys = append(keys, ActivityPaidServiceAttended)
	}
	if patch.PaidServiceCancelled != nil && prev.PaidServiceCancelled != *patch.PaidServiceCancelled {
		keys = append(keys, ActivityPaidServiceCancelled)
	}
	if patch.PaidServiceTotalCost != nil &&
		(!prev.PaidServiceTotalCost.Valid || prev.PaidServiceTotalCost.Float64 != *patch.PaidServiceTotalCost) {
		keys = append(keys, ActivityPaidServiceTotalCost)
	}
	if patch.ConsultationBookingAt != nil &&
		(!prev.ConsultationBookingAt.Valid || !prev.ConsultationBookingAt.Time.Equal(*patch.ConsultationBookingAt)) {
		keys = append(keys, ActivityConsultationBookingAt)
	}
	if patch.ConsultationAttended != nil &&
		(!prev.ConsultationAttended.Valid || prev.ConsultationAttended.Bool != *patch.ConsultationAttended) {
		keys = append(keys, ActivityConsultationAttended)
	}
	if patch.ConsultationCancelled != nil && prev.ConsultationCancelled != *patch.ConsultationCancelled {
		keys = append(keys, ActivityConsultationCancelled)
	}

	return keys
}
