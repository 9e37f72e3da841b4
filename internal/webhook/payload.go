package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"accruals/internal/core"
)

// Payload is one webhook delivery. An intent-to-receive check has no events.
type Payload struct {
	Events             []Event `json:"events"`
	FirstEventSequence int64   `json:"firstEventSequence"`
	LastEventSequence  int64   `json:"lastEventSequence"`
	Entropy            string  `json:"entropy"`
}

type Event struct {
	ResourceURL   string `json:"resourceUrl"`
	ResourceID    string `json:"resourceId"`
	EventDateUTC  string `json:"eventDateUtc"`
	EventType     string `json:"eventType"`
	EventCategory string `json:"eventCategory"`
	TenantID      string `json:"tenantId"`
	TenantType    string `json:"tenantType"`
}

// ParsePayload decodes a raw delivery body.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, &core.ValidationError{Field: "body", Message: fmt.Sprintf("malformed webhook payload: %v", err)}
	}
	return p, nil
}

// BillEvents converts the delivery's events into domain events.
func (p Payload) BillEvents() []core.BillEvent {
	out := make([]core.BillEvent, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.BillEvent())
	}
	return out
}

func (e Event) BillEvent() core.BillEvent {
	return core.BillEvent{
		ResourceType: e.EventCategory,
		ResourceID:   strings.TrimSpace(e.ResourceID),
		EventType:    e.EventType,
		TenantID:     e.TenantID,
		EventDate:    parseEventDate(e.EventDateUTC),
	}
}

func parseEventDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
