// internal/service/ingest/ingestor.go
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	domain "salonfunnel-service/internal/domain/client"
	"salonfunnel-service/internal/repository/postgres"
	"salonfunnel-service/internal/service/funnel"
	"salonfunnel-service/internal/service/identity"

	"go.uber.org/zap"
)

// EventSource reads the two append-only raw logs.
type EventSource interface {
	ListWebhookEvents(ctx context.Context, from, to time.Time) ([]postgres.RawEventEntry, error)
	ListBookingRecords(ctx context.Context, from, to time.Time) ([]postgres.RawEventEntry, error)
}

// Resolver maps an event onto an existing record.
type Resolver interface {
	Resolve(ctx context.Context, ev *domain.InboundEvent) (*identity.Resolution, error)
}

// Merger collapses duplicates before the state machine runs.
type Merger interface {
	Merge(ctx context.Context, primaryID, secondaryID string) (string, error)
}

// ClientSaver is the save entrypoint the ingestor drives.
type ClientSaver interface {
	Save(ctx context.Context, id string, patch *domain.ClientPatch, reason string, metadata map[string]interface{}, opts domain.SaveOptions) (*domain.ClientRecord, error)
	Get(ctx context.Context, id string) (*domain.ClientRecord, error)
}

// HistoryFactsSource answers ledger questions for the state machine guards.
type HistoryFactsSource interface {
	HasState(ctx context.Context, clientID string, s domain.State) (bool, error)
}

// VisitChecker asks the booking system whether an external id ever had a
// completed non-consultation visit before a timestamp.
type VisitChecker interface {
	HasCompletedVisitBefore(ctx context.Context, externalID int64, t time.Time) (bool, error)
}

// Result summarizes one batch invocation. Per-event failures land in Errors;
// they never abort the batch.
type Result struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// Ingestor replays a bounded window of raw historical events through
// resolution, merge, the state machine and persistence. Safe to run
// repeatedly and concurrently: replay converges through the idempotent
// merge and no-op-state guards rather than cross-invocation locking.
type Ingestor struct {
	source   EventSource
	resolver Resolver
	merger   Merger
	clients  ClientSaver
	history  HistoryFactsSource
	visits   VisitChecker
	logger   *zap.Logger

	// now is swappable for deterministic tests.
	now func() time.Time
}

func NewIngestor(
	source EventSource,
	resolver Resolver,
	merger Merger,
	clients ClientSaver,
	history HistoryFactsSource,
	visits VisitChecker,
	logger *zap.Logger,
) *Ingestor {
	return &Ingestor{
		source:   source,
		resolver: resolver,
		merger:   merger,
		clients:  clients,
		history:  history,
		visits:   visits,
		logger:   logger,
		now:      time.Now,
	}
}

// Process pulls, normalizes, filters and causally orders the raw events of
// one window, then drives each through the identity pipeline. Every event is
// fully applied or not at all; a failed event is recorded and the loop moves
// on.
func (g *Ingestor) Process(ctx context.Context, windowStart, windowEnd time.Time) (*Result, error) {
	result := &Result{Errors: []string{}}

	events, err := g.collect(ctx, windowStart, windowEnd, result)
	if err != nil {
		return nil, err
	}

	// Ascending receive order so the state machine observes causally
	// ordered updates.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].ReceivedAt.Before(events[j].ReceivedAt)
	})

	for i := range events {
		ev := &events[i]
		if err := ctx.Err(); err != nil {
			// Aborting between events is safe: nothing partial is
			// in flight.
			return result, err
		}

		if !ev.HasIdentity() {
			result.Skipped++
			continue
		}

		created, changed, err := g.processEvent(ctx, ev)
		if err != nil {
			g.logger.Warn("event failed, continuing batch",
				zap.Error(err),
				zap.Time("received_at", ev.ReceivedAt),
				zap.String("kind", string(ev.Kind)),
			)
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		result.Processed++
		if created {
			result.Created++
		} else if changed {
			result.Updated++
		}
	}

	g.logger.Info("ingest window processed",
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// collect pulls both logs, normalizes every entry and applies the window
// filter on effective dates. Unparseable entries are skipped and counted.
func (g *Ingestor) collect(ctx context.Context, windowStart, windowEnd time.Time, result *Result) ([]domain.InboundEvent, error) {
	webhookEntries, err := g.source.ListWebhookEvents(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook log: %w", err)
	}
	bookingEntries, err := g.source.ListBookingRecords(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to read booking-record log: %w", err)
	}

	now := g.now()
	events := make([]domain.InboundEvent, 0, len(webhookEntries)+len(bookingEntries))

	appendEvent := func(ev *domain.InboundEvent, err error) {
		if err != nil {
			g.logger.Warn("skipping unparseable log entry", zap.Error(err))
			result.Skipped++
			return
		}
		if g.inWindow(ev, windowStart, windowEnd, now) {
			events = append(events, *ev)
		}
	}

	for _, entry := range webhookEntries {
		appendEvent(normalizeWebhookEvent(entry))
	}
	for _, entry := range bookingEntries {
		appendEvent(normalizeBookingRecord(entry))
	}

	return events, nil
}

// inWindow filters on the effective date, with one exception: an appointment
// booked inside the window for a future date must be processed now, not in
// the future window.
func (g *Ingestor) inWindow(ev *domain.InboundEvent, windowStart, windowEnd, now time.Time) bool {
	effective := ev.EffectiveDate()
	if !effective.Before(windowStart) && !effective.After(windowEnd) {
		return true
	}
	if ev.Kind == domain.EventKindBooking && ev.Datetime.After(now) &&
		!ev.ReceivedAt.Before(windowStart) && !ev.ReceivedAt.After(windowEnd) {
		return true
	}
	return false
}

// processEvent runs one event end to end: resolve, merge if a duplicate was
// detected, advance the state machine, persist.
func (g *Ingestor) processEvent(ctx context.Context, ev *domain.InboundEvent) (created, changed bool, err error) {
	resolution, err := g.resolver.Resolve(ctx, ev)
	if err != nil {
		return false, false, fmt.Errorf("resolve: %w", err)
	}

	var clientID string
	switch {
	case resolution == nil:
		clientID, err = g.createFromEvent(ctx, ev)
		if err != nil {
			return false, false, fmt.Errorf("create: %w", err)
		}
		created = true

	case resolution.Duplicate:
		clientID, err = g.merger.Merge(ctx, resolution.PrimaryID, resolution.SecondaryID)
		if clientID == "" {
			return false, false, fmt.Errorf("merge: %w", err)
		}
		if err != nil {
			// Partial merge still yields a survivor to write to.
			g.logger.Warn("partial merge, proceeding with survivor",
				zap.Error(err),
				zap.String("survivor_id", clientID),
			)
		}

	default:
		clientID = resolution.ClientID
	}

	rec, err := g.clients.Get(ctx, clientID)
	if err != nil {
		return created, false, fmt.Errorf("load client %s: %w", clientID, err)
	}

	facts, err := g.historyFacts(ctx, clientID)
	if err != nil {
		return created, false, err
	}

	outcome := funnel.Advance(rec, ev, facts, g.now())
	patch := outcome.Patch
	g.maybeMarkExistingClient(ctx, &patch, rec, ev, facts)
	g.applyIdentityUpdates(&patch, rec, ev)

	if patch.IsEmpty() {
		return created, false, nil
	}

	reason := outcome.Reason
	if reason == "" {
		reason = "ingest"
	}
	metadata := outcome.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["source"] = "ingest"

	if _, err := g.clients.Save(ctx, clientID, &patch, reason, metadata, domain.DefaultSaveOptions()); err != nil {
		return created, false, fmt.Errorf("save client %s: %w", clientID, err)
	}

	return created, true, nil
}

// createFromEvent seeds a brand-new record from the event's identity. Events
// from the authoritative booking system start life as a confirmed client.
func (g *Ingestor) createFromEvent(ctx context.Context, ev *domain.InboundEvent) (string, error) {
	patch := &domain.ClientPatch{}

	if handle := domain.NormalizeHandle(ev.Handle); handle != "" {
		patch.Handle = &handle
	}
	if ev.ExternalBookingID != 0 {
		externalID := ev.ExternalBookingID
		patch.ExternalBookingID = &externalID
	}
	if ev.GivenName != "" {
		patch.GivenName = &ev.GivenName
	}
	if ev.FamilyName != "" {
		patch.FamilyName = &ev.FamilyName
	}
	if ev.Kind == domain.EventKindBooking {
		state := domain.StateClient
		patch.State = &state
	}

	rec, err := g.clients.Save(ctx, "", patch, "ingest-create", map[string]interface{}{"source": "ingest"}, domain.DefaultSaveOptions())
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// maybeMarkExistingClient consults the booking system when a booking event
// touches a record that was never a confirmed client: a completed
// non-consultation visit before the event means the person is an existing
// customer, not a funnel lead. Runs only when the state machine decided
// nothing itself; upstream failure skips the check and never fails the event.
func (g *Ingestor) maybeMarkExistingClient(
	ctx context.Context,
	patch *domain.ClientPatch,
	rec *domain.ClientRecord,
	ev *domain.InboundEvent,
	facts funnel.HistoryFacts,
) {
	if g.visits == nil || ev.Kind != domain.EventKindBooking || patch.State != nil || facts.HadClient {
		return
	}
	// Records already past the messaging stage keep their funnel state.
	if current := rec.CurrentState(); current != "" && current != domain.StateMessage {
		return
	}

	externalID := ev.ExternalBookingID
	if externalID == 0 && rec.ExternalBookingID.Valid {
		externalID = rec.ExternalBookingID.Int64
	}
	if externalID == 0 {
		return
	}

	completed, err := g.visits.HasCompletedVisitBefore(ctx, externalID, ev.ReceivedAt)
	if err != nil {
		g.logger.Warn("prior-visit check unavailable, skipping",
			zap.Error(err),
			zap.String("client_id", rec.ID),
			zap.Int64("external_id", externalID),
		)
		return
	}
	if !completed {
		return
	}

	state := domain.StateClient
	patch.State = &state
}

// applyIdentityUpdates folds the event's identity keys into the outgoing
// patch: a real handle supersedes the stored one, everything else only fills
// gaps.
func (g *Ingestor) applyIdentityUpdates(patch *domain.ClientPatch, rec *domain.ClientRecord, ev *domain.InboundEvent) {
	if handle := domain.NormalizeHandle(ev.Handle); handle != "" && !domain.IsPlaceholderHandle(handle) && handle != rec.Handle {
		patch.Handle = &handle
	}
	if ev.ExternalBookingID != 0 && !rec.ExternalBookingID.Valid {
		externalID := ev.ExternalBookingID
		patch.ExternalBookingID = &externalID
	}
	if ev.GivenName != "" && !rec.GivenName.Valid {
		patch.GivenName = &ev.GivenName
	}
	if ev.FamilyName != "" && !rec.FamilyName.Valid {
		patch.FamilyName = &ev.FamilyName
	}
}

func (g *Ingestor) historyFacts(ctx context.Context, clientID string) (funnel.HistoryFacts, error) {
	hadClient, err := g.history.HasState(ctx, clientID, domain.StateClient)
	if err != nil {
		return funnel.HistoryFacts{}, fmt.Errorf("history facts: %w", err)
	}
	hadConsultation, err := g.history.HasState(ctx, clientID, domain.StateConsultationBooked)
	if err != nil {
		return funnel.HistoryFacts{}, fmt.Errorf("history facts: %w", err)
	}
	return funnel.HistoryFacts{HadClient: hadClient, HadConsultation: hadConsultation}, nil
}
