package funnel

import (
	"database/sql"
	"testing"
	"time"

	"salonfunnel-service/internal/domain/client"

	"github.com/stretchr/testify/assert"
)

func TestComputeActivityKeysPresenceAndChange(t *testing.T) {
	stamp := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	prev := &client.ClientRecord{
		ID:            "c1",
		Handle:        "anna.k",
		LastMessageAt: sql.NullTime{Time: stamp, Valid: true},
	}

	newer := stamp.Add(time.Hour)
	keys := ComputeActivityKeys(prev, &client.ClientPatch{LastMessageAt: &newer})
	assert.Equal(t, []string{ActivityLastMessage}, keys)

	// Same value carried: present but unchanged, no key.
	keys = ComputeActivityKeys(prev, &client.ClientPatch{LastMessageAt: &stamp})
	assert.Empty(t, keys)

	// Field omitted entirely: no key whatever is stored.
	keys = ComputeActivityKeys(prev, &client.ClientPatch{})
	assert.Empty(t, keys)
}

func TestComputeActivityKeysExcludesStateAndMaster(t *testing.T) {
	prev := &client.ClientRecord{ID: "c1", Handle: "anna.k"}

	state := client.StateConsultationBooked
	masterID := "m7"
	keys := ComputeActivityKeys(prev, &client.ClientPatch{
		State:    &state,
		MasterID: &masterID,
	})

	assert.Empty(t, keys)
}

func TestComputeActivityKeysCollectsAllChangedFields(t *testing.T) {
	prev := &client.ClientRecord{ID: "c1", Handle: "anna.k"}

	booking := time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC)
	attended := true
	cost := 420.0
	keys := ComputeActivityKeys(prev, &client.ClientPatch{
		ConsultationBookingAt: &booking,
		ConsultationAttended:  &attended,
		PaidServiceTotalCost:  &cost,
	})

	assert.ElementsMatch(t, []string{
		ActivityConsultationBookingAt,
		ActivityConsultationAttended,
		ActivityPaidServiceTotalCost,
	}, keys)
}

func TestComputeActivityKeysBoolFalseToFalseUnchanged(t *testing.T) {
	prev := &client.ClientRecord{ID: "c1", Handle: "anna.k", PaidServiceCancelled: false}

	cancelled := false
	keys := ComputeActivityKeys(prev, &client.ClientPatch{PaidServiceCancelled: &cancelled})
	assert.Empty(t, keys)

	cancelled = true
	keys = ComputeActivityKeys(prev, &client.ClientPatch{PaidServiceCancelled: &cancelled})
	assert.Equal(t, []string{ActivityPaidServiceCancelled}, keys)
}
