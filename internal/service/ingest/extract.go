// internal/service/ingest/extract.go
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "salonfunnel-service/internal/domain/client"
	xerrors "salonfunnel-service/internal/pkg/errors"
	"salonfunnel-service/internal/repository/postgres"
)

// identityKeys are the partial identifiers one payload shape yielded.
type identityKeys struct {
	ExternalID int64
	Handle     string
	GivenName  string
	FamilyName string
}

func (k *identityKeys) empty() bool {
	return k.ExternalID == 0 && k.Handle == "" && k.GivenName == "" && k.FamilyName == ""
}

type extractorFunc func(payload map[string]interface{}) *identityKeys

// identityExtractors is the fixed-priority shape table. Upstream payloads
// accumulated shape variants over time; new shapes are appended here, the
// existing precedence never changes.
var identityExtractors = []extractorFunc{
	extractClientObject,     // {"client": {...}}
	extractDataClientObject, // {"data": {"client": {...}}}
	extractUserObject,       // {"user": {...}}
	extractFlatFields,       // identifiers at the top level
}

// extractIdentity tries each known payload shape in order; the first that
// yields at least one identifier wins.
func extractIdentity(payload map[string]interface{}) *identityKeys {
	for _, extract := range identityExtractors {
		if keys := extract(payload); keys != nil && !keys.empty() {
			return keys
		}
	}
	return nil
}

func extractClientObject(payload map[string]interface{}) *identityKeys {
	obj, ok := payload["client"].(map[string]interface{})
	if !ok {
		return nil
	}
	return keysFromObject(obj, true)
}

func extractDataClientObject(payload map[string]interface{}) *identityKeys {
	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return nil
	}
	obj, ok := data["client"].(map[string]interface{})
	if !ok {
		return nil
	}
	return keysFromObject(obj, true)
}

func extractUserObject(payload map[string]interface{}) *identityKeys {
	obj, ok := payload["user"].(map[string]interface{})
	if !ok {
		return nil
	}
	return keysFromObject(obj, true)
}

func extractFlatFields(payload map[string]interface{}) *identityKeys {
	// A bare "id" on a flat payload is the log row, not the person.
	return keysFromObject(payload, false)
}

// keysFromObject reads identifiers out of one object, tolerating the field
// name variants the upstream sources use.
func keysFromObject(obj map[string]interface{}, nested bool) *identityKeys {
	idFields := []string{"client_id", "external_id"}
	if nested {
		idFields = append(idFields, "id")
	}
	keys := &identityKeys{
		ExternalID: asInt64(firstValue(obj, idFields...)),
		Handle:     domain.NormalizeHandle(asString(firstValue(obj, "instagram", "instagram_username", "username", "handle"))),
		GivenName:  asString(firstValue(obj, "first_name", "given_name")),
		FamilyName: asString(firstValue(obj, "last_name", "family_name", "surname")),
	}

	if keys.GivenName == "" && keys.FamilyName == "" {
		if full := asString(firstValue(obj, "name", "full_name")); full != "" {
			parts := strings.Fields(full)
			keys.GivenName = parts[0]
			if len(parts) > 1 {
				keys.FamilyName = strings.Join(parts[1:], " ")
			}
		}
	}

	if keys.empty() {
		return nil
	}
	return keys
}

// normalizeWebhookEvent reduces one generic webhook log entry to the common
// inbound shape.
func normalizeWebhookEvent(entry postgres.RawEventEntry) (*domain.InboundEvent, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: webhook entry %d: %v", xerrors.ErrParse, entry.ID, err)
	}

	ev := &domain.InboundEvent{
		ReceivedAt: entry.ReceivedAt,
		Kind:       domain.EventKindIdentity,
	}
	applyIdentity(ev, payload)

	return ev, nil
}

// normalizeBookingRecord reduces one detailed booking-record log entry to the
// common inbound shape.
func normalizeBookingRecord(entry postgres.RawEventEntry) (*domain.InboundEvent, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: booking entry %d: %v", xerrors.ErrParse, entry.ID, err)
	}

	ev := &domain.InboundEvent{
		ReceivedAt:      entry.ReceivedAt,
		Kind:            domain.EventKindBooking,
		AttendanceCode:  int(asInt64(firstValue(payload, "attendance", "visit_attendance"))),
		TotalCost:       asFloat64(firstValue(payload, "cost", "price_total")),
		PaidItemRemoved: asBool(firstValue(payload, "deleted", "removed")),
	}
	applyIdentity(ev, payload)

	if raw := asString(firstValue(payload, "datetime", "date")); raw != "" {
		t, err := parseBookingTime(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: booking entry %d: bad datetime %q", xerrors.ErrParse, entry.ID, raw)
		}
		ev.Datetime = t
	}

	ev.Services = extractServices(payload)

	if staff, ok := payload["staff"].(map[string]interface{}); ok {
		ev.StaffID = asString(firstValue(staff, "id", "staff_id"))
		ev.StaffName = asString(firstValue(staff, "name"))
		ev.StaffRole = asString(firstValue(staff, "specialization", "role"))
	}

	return ev, nil
}

func applyIdentity(ev *domain.InboundEvent, payload map[string]interface{}) {
	keys := extractIdentity(payload)
	if keys == nil {
		return
	}
	ev.ExternalBookingID = keys.ExternalID
	ev.Handle = keys.Handle
	ev.GivenName = keys.GivenName
	ev.FamilyName = keys.FamilyName
}

func extractServices(payload map[string]interface{}) []domain.ServiceLine {
	raw, ok := payload["services"].([]interface{})
	if !ok {
		return nil
	}

	services := []domain.ServiceLine{}
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			services = append(services, domain.ServiceLine{Title: v})
		case map[string]interface{}:
			if title := asString(firstValue(v, "title", "name")); title != "" {
				services = append(services, domain.ServiceLine{Title: title})
			}
		}
	}
	return services
}

var bookingTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseBookingTime(raw string) (time.Time, error) {
	for _, layout := range bookingTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", raw)
}

// ---- loose JSON coercion helpers ----

func firstValue(obj map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i
	}
	return 0
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	}
	return 0
}

func asBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true") || b == "1"
	case float64:
		return b != 0
	}
	return false
}
