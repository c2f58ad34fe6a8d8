// internal/service/identity/resolver.go
package identity

import (
	"context"
	"errors"
	"fmt"

	"salonfunnel-service/internal/domain/client"
	xerrors "salonfunnel-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// ClientFinder is the read-only lookup surface the resolver needs.
type ClientFinder interface {
	FindByExternalID(ctx context.Context, externalID int64) (*client.ClientRecord, error)
	FindByHandle(ctx context.Context, handle string) (*client.ClientRecord, error)
	FindByName(ctx context.Context, givenName, familyName string) (*client.ClientRecord, error)
}

// Resolution is the outcome of resolving one inbound event. A nil resolution
// means no strategy matched and the caller should create a new record.
type Resolution struct {
	ClientID string
	// Duplicate is set when the external-id strategy and the handle
	// strategy each hit a different record: the same person exists twice.
	Duplicate   bool
	PrimaryID   string // matched via external booking id
	SecondaryID string // matched via handle
}

// Resolver maps an inbound event onto an existing canonical record using a
// priority-ordered strategy list. All strategies are computed, never
// short-circuited, so a multi-match is always detected.
type Resolver struct {
	clients ClientFinder
	logger  *zap.Logger
}

func NewResolver(clients ClientFinder, logger *zap.Logger) *Resolver {
	return &Resolver{clients: clients, logger: logger}
}

// Resolve is read-only. The name fallback only runs when the external-id and
// handle strategies were both absent or both missed.
func (r *Resolver) Resolve(ctx context.Context, ev *client.InboundEvent) (*Resolution, error) {
	byExternal, err := r.matchByExternalID(ctx, ev)
	if err != nil {
		return nil, err
	}

	byHandle, err := r.matchByHandle(ctx, ev)
	if err != nil {
		return nil, err
	}

	if byExternal != nil && byHandle != nil && byExternal.ID != byHandle.ID {
		r.logger.Warn("duplicate client detected",
			zap.String("primary_id", byExternal.ID),
			zap.String("secondary_id", byHandle.ID),
			zap.Int64("external_id", ev.ExternalBookingID),
			zap.String("handle", client.NormalizeHandle(ev.Handle)),
		)
		return &Resolution{
			ClientID:    byExternal.ID,
			Duplicate:   true,
			PrimaryID:   byExternal.ID,
			SecondaryID: byHandle.ID,
		}, nil
	}

	if byExternal != nil {
		return &Resolution{ClientID: byExternal.ID}, nil
	}
	if byHandle != nil {
		return &Resolution{ClientID: byHandle.ID}, nil
	}

	byName, err := r.matchByName(ctx, ev)
	if err != nil {
		return nil, err
	}
	if byName != nil {
		return &Resolution{ClientID: byName.ID}, nil
	}

	return nil, nil
}

func (r *Resolver) matchByExternalID(ctx context.Context, ev *client.InboundEvent) (*client.ClientRecord, error) {
	if ev.ExternalBookingID == 0 {
		return nil, nil
	}
	rec, err := r.clients.FindByExternalID(ctx, ev.ExternalBookingID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve by external id: %w", err)
	}
	return rec, nil
}

func (r *Resolver) matchByHandle(ctx context.Context, ev *client.InboundEvent) (*client.ClientRecord, error) {
	handle := client.NormalizeHandle(ev.Handle)
	if handle == "" || client.IsPlaceholderHandle(handle) {
		return nil, nil
	}
	rec, err := r.clients.FindByHandle(ctx, handle)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve by handle: %w", err)
	}
	return rec, nil
}

func (r *Resolver) matchByName(ctx context.Context, ev *client.InboundEvent) (*client.ClientRecord, error) {
	if ev.GivenName == "" || ev.FamilyName == "" {
		return nil, nil
	}
	rec, err := r.clients.FindByName(ctx, ev.GivenName, ev.FamilyName)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve by name: %w", err)
	}
	return rec, nil
}
