// internal/service/identity/merge.go
package identity

import (
	"context"
	"errors"
	"fmt"

	"salonfunnel-service/internal/domain/client"
	xerrors "salonfunnel-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// ClientStore is the write surface the merge engine needs.
type ClientStore interface {
	FindByID(ctx context.Context, id string) (*client.ClientRecord, error)
	Update(ctx context.Context, rec *client.ClientRecord) error
	Delete(ctx context.Context, id string) error
}

// HistoryReparenter moves per-client ledger rows between records.
type HistoryReparenter interface {
	ReparentAll(ctx context.Context, fromClientID, toClientID string) (int64, error)
}

// AvatarCopier copies handle-keyed cached artifacts.
type AvatarCopier interface {
	CopyAvatar(ctx context.Context, fromHandle, toHandle string) error
}

// MergeEngine collapses two canonical records discovered to be the same
// person. Steps are best-effort and independently fault-tolerant: a failed
// step is logged and later steps still run, so a partial merge still removes
// as much of the duplicate condition as it can. No lock is taken; when two
// merges of the same pair race, the loser's disappearance turns the second
// invocation into a no-op.
type MergeEngine struct {
	clients ClientStore
	history HistoryReparenter
	avatars AvatarCopier
	logger  *zap.Logger
}

func NewMergeEngine(clients ClientStore, history HistoryReparenter, avatars AvatarCopier, logger *zap.Logger) *MergeEngine {
	return &MergeEngine{
		clients: clients,
		history: history,
		avatars: avatars,
		logger:  logger,
	}
}

// Merge collapses primary (resolved via external booking id) and secondary
// (resolved via handle) into one survivor and returns its id. Re-invoking
// after the loser is gone is a no-op.
func (m *MergeEngine) Merge(ctx context.Context, primaryID, secondaryID string) (string, error) {
	primary, err := m.clients.FindByID(ctx, primaryID)
	if errors.Is(err, xerrors.ErrNotFound) {
		// Primary already absorbed by an earlier merge.
		return secondaryID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load primary record: %w", err)
	}

	secondary, err := m.clients.FindByID(ctx, secondaryID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return primaryID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load secondary record: %w", err)
	}

	survivor, loser := pickSurvivor(primary, secondary)

	m.logger.Info("merging duplicate clients",
		zap.String("survivor_id", survivor.ID),
		zap.String("loser_id", loser.ID),
	)

	var stepErrs []error

	loserHandle := loser.Handle
	survivorHandle := survivor.Handle
	absorb(survivor, loser)

	if survivor.Handle == loserHandle && survivor.Handle != survivorHandle {
		// The loser's row still holds this handle under the unique index;
		// release it before the survivor claims it.
		loser.Handle = client.ReleasedHandle(loser.ID)
		if err := m.clients.Update(ctx, loser); err != nil {
			m.logger.Error("merge: failed to release loser handle", zap.Error(err), zap.String("loser_id", loser.ID))
			stepErrs = append(stepErrs, fmt.Errorf("release loser handle: %w", err))
			// The survivor update would hit the same index; keep its own
			// handle so the rest of the field union still lands.
			survivor.Handle = survivorHandle
		}
	}

	if err := m.clients.Update(ctx, survivor); err != nil {
		m.logger.Error("merge: failed to update survivor", zap.Error(err), zap.String("survivor_id", survivor.ID))
		stepErrs = append(stepErrs, fmt.Errorf("update survivor: %w", err))
	}

	if moved, err := m.history.ReparentAll(ctx, loser.ID, survivor.ID); err != nil {
		m.logger.Error("merge: failed to reparent history", zap.Error(err), zap.String("loser_id", loser.ID))
		stepErrs = append(stepErrs, fmt.Errorf("reparent history: %w", err))
	} else if moved > 0 {
		m.logger.Info("merge: reparented history rows",
			zap.Int64("rows", moved),
			zap.String("survivor_id", survivor.ID),
		)
	}

	if err := m.avatars.CopyAvatar(ctx, loserHandle, survivor.Handle); err != nil {
		// Cosmetic artifact only, never worth failing a merge over.
		m.logger.Warn("merge: failed to copy avatar", zap.Error(err), zap.String("handle", loserHandle))
	}

	if err := m.clients.Delete(ctx, loser.ID); err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		m.logger.Error("merge: failed to delete loser", zap.Error(err), zap.String("loser_id", loser.ID))
		stepErrs = append(stepErrs, fmt.Errorf("delete loser: %w", err))
	}

	return survivor.ID, errors.Join(stepErrs...)
}

// pickSurvivor prefers the record that has both a real handle and an external
// booking id. When neither or both qualify, the primary side wins: the
// external id is the authoritative source of truth.
func pickSurvivor(primary, secondary *client.ClientRecord) (survivor, loser *client.ClientRecord) {
	primaryComplete := primary.HasRealHandle() && primary.ExternalBookingID.Valid
	secondaryComplete := secondary.HasRealHandle() && secondary.ExternalBookingID.Valid

	if secondaryComplete && !primaryComplete {
		return secondary, primary
	}
	return primary, secondary
}

// absorb copies the loser's known fields onto the survivor wherever the
// survivor is missing them, so the merged record holds the union of what both
// sides knew. A real handle replaces a placeholder, but never another real
// handle.
func absorb(survivor, loser *client.ClientRecord) {
	if !survivor.HasRealHandle() && loser.HasRealHandle() {
		survivor.Handle = loser.Handle
	}
	if !survivor.ExternalBookingID.Valid && loser.ExternalBookingID.Valid {
		survivor.ExternalBookingID = loser.ExternalBookingID
	}
	if !survivor.GivenName.Valid && loser.GivenName.Valid {
		survivor.GivenName = loser.GivenName
	}
	if !survivor.FamilyName.Valid && loser.FamilyName.Valid {
		survivor.FamilyName = loser.FamilyName
	}
	if !survivor.Phone.Valid && loser.Phone.Valid {
		survivor.Phone = loser.Phone
	}
	if !survivor.VisitCount.Valid && loser.VisitCount.Valid {
		survivor.VisitCount = loser.VisitCount
	}
	if !survivor.TotalSpent.Valid && loser.TotalSpent.Valid {
		survivor.TotalSpent = loser.TotalSpent
	}
	if !survivor.State.Valid && loser.State.Valid {
		survivor.State = loser.State
	}
	if loser.FirstContactAt.Valid &&
		(!survivor.FirstContactAt.Valid || loser.FirstContactAt.Time.Before(survivor.FirstContactAt.Time)) {
		survivor.FirstContactAt = loser.FirstContactAt
	}
	if loser.LastMessageAt.Valid &&
		(!survivor.LastMessageAt.Valid || loser.LastMessageAt.Time.After(survivor.LastMessageAt.Time)) {
		survivor.LastMessageAt = loser.LastMessageAt
	}
	if !survivor.ConsultationBookingAt.Valid && loser.ConsultationBookingAt.Valid {
		survivor.ConsultationBookingAt = loser.ConsultationBookingAt
	}
	if !survivor.ConsultationDate.Valid && loser.ConsultationDate.Valid {
		survivor.ConsultationDate = loser.ConsultationDate
	}
	if !survivor.ConsultationAttended.Valid && loser.ConsultationAttended.Valid {
		survivor.ConsultationAttended = loser.ConsultationAttended
	}
	if !survivor.ConsultationMasterID.Valid && loser.ConsultationMasterID.Valid {
		survivor.ConsultationMasterID = loser.ConsultationMasterID
		survivor.ConsultationMasterName = loser.ConsultationMasterName
	}
	if !survivor.PaidServiceAt.Valid && loser.PaidServiceAt.Valid {
		survivor.PaidServiceAt = loser.PaidServiceAt
	}
	if !survivor.PaidServiceAttended.Valid && loser.PaidServiceAttended.Valid {
		survivor.PaidServiceAttended = loser.PaidServiceAttended
	}
	if !survivor.PaidServiceTotalCost.Valid && loser.PaidServiceTotalCost.Valid {
		survivor.PaidServiceTotalCost = loser.PaidServiceTotalCost
	}
	if !survivor.MasterID.Valid && loser.MasterID.Valid {
		survivor.MasterID = loser.MasterID
		survivor.MasterManuallySet = loser.MasterManuallySet
	}
}
