// internal/service/client/client.go
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonfunnel-service/internal/booking"
	domain "salonfunnel-service/internal/domain/client"
	xerrors "salonfunnel-service/internal/pkg/errors"
	"salonfunnel-service/internal/service/funnel"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// ClientStore is the persistence surface the service needs.
type ClientStore interface {
	Create(ctx context.Context, rec *domain.ClientRecord) error
	FindByID(ctx context.Context, id string) (*domain.ClientRecord, error)
	FindByHandle(ctx context.Context, handle string) (*domain.ClientRecord, error)
	Update(ctx context.Context, rec *domain.ClientRecord) error
	List(ctx context.Context, sortByActivity bool, limit, offset int) ([]domain.ClientRecord, error)
}

// HistoryStore is the append-only lifecycle ledger.
type HistoryStore interface {
	Append(ctx context.Context, e *domain.StateHistoryEntry) error
	ListByClient(ctx context.Context, clientID string) ([]domain.StateHistoryEntry, error)
	HasState(ctx context.Context, clientID string, s domain.State) (bool, error)
}

// Merger collapses two duplicate records, returning the survivor id.
type Merger interface {
	Merge(ctx context.Context, primaryID, secondaryID string) (string, error)
}

// MetricsFetcher reads per-client counters from the booking system.
type MetricsFetcher interface {
	GetClientMetrics(ctx context.Context, externalID int64) (*booking.ClientMetrics, error)
}

// LeaseStore is the cross-process keyed lease used to dedupe the first-time
// metrics backfill.
type LeaseStore interface {
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key string) error
}

const backfillLeaseTTL = 10 * time.Minute

type Service struct {
	clients ClientStore
	history HistoryStore
	merger  Merger
	metrics MetricsFetcher
	leases  LeaseStore
	logger  *zap.Logger
}

func NewService(
	clients ClientStore,
	history HistoryStore,
	merger Merger,
	metrics MetricsFetcher,
	leases LeaseStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		clients: clients,
		history: history,
		merger:  merger,
		metrics: metrics,
		leases:  leases,
		logger:  logger,
	}
}

// Save is the single-record upsert entrypoint. An empty id creates a new
// record seeded from the patch; otherwise the patch is applied to the stored
// record. State-equal writes never produce a history row, the `client` state
// is one-shot per the ledger, and a handle collision is recovered by routing
// the two records into the merge engine instead of surfacing the constraint.
func (s *Service) Save(
	ctx context.Context,
	id string,
	patch *domain.ClientPatch,
	reason string,
	metadata map[string]interface{},
	opts domain.SaveOptions,
) (*domain.ClientRecord, error) {
	var rec *domain.ClientRecord
	var err error

	if id == "" {
		rec, err = s.create(ctx, patch, reason, metadata, opts)
	} else {
		rec, err = s.update(ctx, id, patch, reason, metadata, opts)
	}
	if err != nil {
		return nil, err
	}

	s.maybeBackfillMetrics(ctx, rec, opts)

	return rec, nil
}

// Get retrieves one record.
func (s *Service) Get(ctx context.Context, id string) (*domain.ClientRecord, error) {
	return s.clients.FindByID(ctx, id)
}

// List retrieves records, optionally ranked by recent activity.
func (s *Service) List(ctx context.Context, sortByActivity bool, limit, offset int) ([]domain.ClientRecord, error) {
	return s.clients.List(ctx, sortByActivity, limit, offset)
}

// GetStateHistory returns the lifecycle ledger for a client, newest first.
func (s *Service) GetStateHistory(ctx context.Context, clientID string) ([]domain.StateHistoryEntry, error) {
	return s.history.ListByClient(ctx, clientID)
}

func (s *Service) create(
	ctx context.Context,
	patch *domain.ClientPatch,
	reason string,
	metadata map[string]interface{},
	opts domain.SaveOptions,
) (*domain.ClientRecord, error) {
	rec := &domain.ClientRecord{ID: ulid.Make().String()}
	patch.Apply(rec)

	if rec.Handle == "" {
		if !rec.ExternalBookingID.Valid {
			return nil, fmt.Errorf("%w: a new client needs a handle or an external booking id", xerrors.ErrInvalidInput)
		}
		rec.Handle = domain.PlaceholderHandle(rec.ExternalBookingID.Int64)
	}

	s.stampActivity(rec, &domain.ClientRecord{}, patch, opts)

	err := s.clients.Create(ctx, rec)
	if errors.Is(err, xerrors.ErrConflict) {
		// Lost a create race on the handle. The person already exists:
		// apply the patch to the stored record instead.
		existing, findErr := s.clients.FindByHandle(ctx, rec.Handle)
		if findErr != nil {
			return nil, fmt.Errorf("failed to recover from handle conflict: %w", findErr)
		}
		s.logger.Info("handle conflict recovered on create",
			zap.String("handle", rec.Handle),
			zap.String("client_id", existing.ID),
		)
		return s.update(ctx, existing.ID, patch, reason, metadata, opts)
	}
	if err != nil {
		s.logger.Error("failed to create client", zap.Error(err))
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if rec.State.Valid {
		if err := s.appendHistory(ctx, rec.ID, sql.NullString{}, rec.State, reason, metadata); err != nil {
			return nil, err
		}
	}

	s.logger.Info("client created",
		zap.String("client_id", rec.ID),
		zap.String("handle", rec.Handle),
	)

	return rec, nil
}

func (s *Service) update(
	ctx context.Context,
	id string,
	patch *domain.ClientPatch,
	reason string,
	metadata map[string]interface{},
	opts domain.SaveOptions,
) (*domain.ClientRecord, error) {
	prev, err := s.clients.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.applyStateGuards(ctx, prev, patch); err != nil {
		return nil, err
	}

	prevState := prev.State
	rec := *prev
	patch.Apply(&rec)
	s.stampActivity(&rec, prev, patch, opts)

	err = s.clients.Update(ctx, &rec)
	if errors.Is(err, xerrors.ErrConflict) {
		return s.recoverUpdateConflict(ctx, &rec, patch, reason, metadata, opts)
	}
	if err != nil {
		s.logger.Error("failed to update client", zap.Error(err), zap.String("client_id", id))
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	if patch.State != nil {
		if err := s.appendHistory(ctx, rec.ID, prevState, rec.State, reason, metadata); err != nil {
			return nil, err
		}
	}

	return &rec, nil
}

// applyStateGuards drops state writes that must not happen: a second `client`
// recording ever, and writes that would not change the visible state.
func (s *Service) applyStateGuards(ctx context.Context, prev *domain.ClientRecord, patch *domain.ClientPatch) error {
	if patch.State == nil {
		return nil
	}

	next := domain.NormalizeState(string(*patch.State))

	if next == prev.CurrentState() {
		patch.State = nil
		return nil
	}

	if next == domain.StateClient {
		had, err := s.history.HasState(ctx, prev.ID, domain.StateClient)
		if err != nil {
			return fmt.Errorf("failed to check client history: %w", err)
		}
		if had {
			patch.State = nil
		}
	}

	return nil
}

// recoverUpdateConflict handles a handle collision on update: the same
// person exists under another record, so the two are merged and the patch is
// replayed on the survivor.
func (s *Service) recoverUpdateConflict(
	ctx context.Context,
	rec *domain.ClientRecord,
	patch *domain.ClientPatch,
	reason string,
	metadata map[string]interface{},
	opts domain.SaveOptions,
) (*domain.ClientRecord, error) {
	other, err := s.clients.FindByHandle(ctx, rec.Handle)
	if err != nil {
		return nil, fmt.Errorf("failed to recover from handle conflict: %w", err)
	}

	primaryID, secondaryID := rec.ID, other.ID
	if !rec.ExternalBookingID.Valid && other.ExternalBookingID.Valid {
		primaryID, secondaryID = other.ID, rec.ID
	}

	survivorID, err := s.merger.Merge(ctx, primaryID, secondaryID)
	if err != nil {
		s.logger.Error("merge during conflict recovery was partial",
			zap.Error(err),
			zap.String("survivor_id", survivorID),
		)
	}
	if survivorID == "" {
		return nil, fmt.Errorf("failed to merge conflicting clients: %w", err)
	}

	return s.update(ctx, survivorID, patch, reason, metadata, opts)
}

func (s *Service) appendHistory(
	ctx context.Context,
	clientID string,
	prevState, newState sql.NullString,
	reason string,
	metadata map[string]interface{},
) error {
	if prevState.Valid == newState.Valid && prevState.String == newState.String {
		return nil
	}
	entry := &domain.StateHistoryEntry{
		ClientID:      clientID,
		State:         newState,
		PreviousState: prevState,
		Reason:        reason,
		Metadata:      metadata,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append state history: %w", err)
	}
	return nil
}

// stampActivity moves the activity ranking timestamp when the patch touched a
// tracked field and the caller permitted it.
func (s *Service) stampActivity(rec, prev *domain.ClientRecord, patch *domain.ClientPatch, opts domain.SaveOptions) {
	if !opts.TouchActivity {
		return
	}
	keys := funnel.ComputeActivityKeys(prev, patch)
	if len(keys) == 0 {
		return
	}
	rec.ActivityAt = sql.NullTime{Time: time.Now(), Valid: true}
	rec.ActivityKeys = pq.StringArray(keys)
}

// maybeBackfillMetrics fetches booking-system counters the first time a
// record gains an external id. Guarded by a cross-process lease so
// overlapping batch invocations fetch once. Upstream failure degrades to
// null metrics and never fails the save.
func (s *Service) maybeBackfillMetrics(ctx context.Context, rec *domain.ClientRecord, opts domain.SaveOptions) {
	if opts.SkipMetricsSync || s.metrics == nil || s.leases == nil {
		return
	}
	if !rec.ExternalBookingID.Valid || rec.Phone.Valid || rec.VisitCount.Valid {
		return
	}

	externalID := rec.ExternalBookingID.Int64
	leaseKey := fmt.Sprintf("metrics-backfill:%d", externalID)

	acquired, err := s.leases.AcquireLease(ctx, leaseKey, backfillLeaseTTL)
	if err != nil {
		s.logger.Warn("failed to acquire backfill lease", zap.Error(err), zap.String("client_id", rec.ID))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := s.leases.ReleaseLease(ctx, leaseKey); err != nil {
			s.logger.Warn("failed to release backfill lease", zap.Error(err))
		}
	}()

	metrics, err := s.metrics.GetClientMetrics(ctx, externalID)
	if err != nil {
		s.logger.Warn("metrics backfill degraded to null values",
			zap.Error(err),
			zap.Int64("external_id", externalID),
		)
		return
	}

	metricsPatch := &domain.ClientPatch{
		VisitCount: &metrics.VisitCount,
		TotalSpent: &metrics.TotalSpent,
	}
	if metrics.Phone != "" {
		metricsPatch.Phone = &metrics.Phone
	}

	updated, err := s.Save(ctx, rec.ID, metricsPatch, "metrics-backfill", nil, domain.SaveOptions{
		TouchActivity:   false,
		SkipMetricsSync: true,
	})
	if err != nil {
		s.logger.Warn("failed to persist backfilled metrics", zap.Error(err), zap.String("client_id", rec.ID))
		return
	}
	*rec = *updated
}
