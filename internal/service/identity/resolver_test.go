package identity

import (
	"context"
	"errors"
	"testing"

	"salonfunnel-service/internal/domain/client"
	xerrors "salonfunnel-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFinder struct {
	byExternal map[int64]*client.ClientRecord
	byHandle   map[string]*client.ClientRecord
	byName     map[string]*client.ClientRecord
	err        error
}

func (f *fakeFinder) FindByExternalID(_ context.Context, externalID int64) (*client.ClientRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.byExternal[externalID]; ok {
		return rec, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeFinder) FindByHandle(_ context.Context, handle string) (*client.ClientRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.byHandle[client.NormalizeHandle(handle)]; ok {
		return rec, nil
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeFinder) FindByName(_ context.Context, givenName, familyName string) (*client.ClientRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.byName[givenName+" "+familyName]; ok {
		return rec, nil
	}
	return nil, xerrors.ErrNotFound
}

func TestResolveByExternalID(t *testing.T) {
	rec := &client.ClientRecord{ID: "c1", Handle: "anna.k"}
	finder := &fakeFinder{byExternal: map[int64]*client.ClientRecord{42: rec}}
	r := NewResolver(finder, zap.NewNop())

	res, err := r.Resolve(context.Background(), &client.InboundEvent{ExternalBookingID: 42})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "c1", res.ClientID)
	assert.False(t, res.Duplicate)
}

func TestResolveByHandleNormalizes(t *testing.T) {
	rec := &client.ClientRecord{ID: "c2", Handle: "anna.k"}
	finder := &fakeFinder{byHandle: map[string]*client.ClientRecord{"anna.k": rec}}
	r := NewResolver(finder, zap.NewNop())

	res, err := r.Resolve(context.Background(), &client.InboundEvent{Handle: "@Anna.K "})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "c2", res.ClientID)
}

func TestResolveIgnoresPlaceholderHandle(t *testing.T) {
	finder := &fakeFinder{byHandle: map[string]*client.ClientRecord{
		"missing-handle-42": {ID: "c2", Handle: "missing-handle-42"},
	}}
	r := NewResolver(finder, zap.NewNop())

	res, err := r.Resolve(context.Background(), &client.InboundEvent{Handle: "missing-handle-42"})

	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveDetectsDuplicate(t *testing.T) {
	byExternal := &client.ClientRecord{ID: "c1", Handle: "missing-handle-42"}
	byHandle := &client.ClientRecord{ID: "c2", Handle: "anna.k"}
	finder := &fakeFinder{
		byExternal: map[int64]*client.ClientRecord{42: byExternal},
		byHandle:   map[string]*client.ClientRecord{"anna.k": byHandle},
	}
	r := NewResolver(finder, zap.NewNop())

	res, err := r.Resolve(context.Background(), &client.InboundEvent{
		ExternalBookingID: 42,
		Handle:            "anna.k",
	})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Duplicate)
	assert.Equal(t, "c1", res.PrimaryID)
	assert.Equal(t, "c2", res.SecondaryID)
}

func TestResolveBothStrategiesSameRecordIsNotDuplicate(t *testing.T) {
	rec := &client.ClientRecord{ID: "c1", Handle: "anna.k"}
	finder := &fakeFinder{
		byExternal: map[int64]*client.ClientRecord{42: rec},
		byHandle:   map[string]*client.ClientRecord{"anna.k": rec},
	}
	r := NewResolver(finder, zap.NewNop())

	res, err := r.Resolve(context.Background(), &client.InboundEvent{
		ExternalBookingID: 42,
		Handle:            "anna.k",
	})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "c1", res.ClientID)
}

func TestResolveNameFallbackOnlyWhenStrongKeysMiss(t *testing.T) {
	named := &client.ClientRecord{ID: "c3", Handle: "someone"}
	finder := &fakeFinder{
		byName: map[string]*client.ClientRecord{"Anna Karenina": named},
	}
	r := NewResolver(finder, zap.NewNop())

	// No external id, no handle: name fallback runs.
	res, err := r.Resolve(context.Background(), &client.InboundEvent{
		GivenName:  "Anna",
		FamilyName: "Karenina",
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "c3", res.ClientID)

	// Incomplete name pair never matches.
	res, err = r.Resolve(context.Background(), &client.InboundEvent{GivenName: "Anna"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveTotalMissReturnsNil(t *testing.T) {
	r := NewResolver(&fakeFinder{}, zap.NewNop())

	res, err := r.Resolve(context.Background(), &client.InboundEvent{
		ExternalBookingID: 42,
		Handle:            "anna.k",
		GivenName:         "Anna",
		FamilyName:        "Karenina",
	})

	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	finder := &fakeFinder{err: errors.New("connection reset")}
	r := NewResolver(finder, zap.NewNop())

	_, err := r.Resolve(context.Background(), &client.InboundEvent{ExternalBookingID: 42})

	assert.Error(t, err)
}
