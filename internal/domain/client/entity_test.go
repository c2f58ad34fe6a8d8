package client

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "anna.k", NormalizeHandle(" @Anna.K "))
	assert.Equal(t, "anna.k", NormalizeHandle("anna.k"))
	assert.Equal(t, "", NormalizeHandle("  "))
}

func TestPlaceholderHandles(t *testing.T) {
	handle := PlaceholderHandle(42)
	assert.Equal(t, "missing-handle-42", handle)
	assert.True(t, IsPlaceholderHandle(handle))
	assert.True(t, IsPlaceholderHandle("no-handle-7"))
	assert.False(t, IsPlaceholderHandle("anna.k"))

	rec := ClientRecord{Handle: handle}
	assert.False(t, rec.HasRealHandle())
	rec.Handle = "anna.k"
	assert.True(t, rec.HasRealHandle())
}

func TestNormalizeStateLegacyValues(t *testing.T) {
	assert.Equal(t, StateMessage, NormalizeState("lead"))
	assert.Equal(t, StateConsultationBooked, NormalizeState("consultation"))
	assert.Equal(t, StateHairExtension, NormalizeState("hair-extension"))
}

func TestCurrentStateNormalizes(t *testing.T) {
	rec := ClientRecord{State: sql.NullString{String: "lead", Valid: true}}
	assert.Equal(t, StateMessage, rec.CurrentState())

	rec.State = sql.NullString{}
	assert.Equal(t, State(""), rec.CurrentState())
}

func TestClientPatchIsEmpty(t *testing.T) {
	assert.True(t, (&ClientPatch{}).IsEmpty())

	handle := "anna.k"
	assert.False(t, (&ClientPatch{Handle: &handle}).IsEmpty())
	assert.False(t, (&ClientPatch{ClearPaidService: true}).IsEmpty())
}
