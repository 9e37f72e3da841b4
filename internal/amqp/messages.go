package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"accruals/internal/core"
)

// BillEventMessage carries one verified webhook event to the reconcile worker.
// The worker fetches the bill itself, so only the event identity travels.
type BillEventMessage struct {
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId"`
	EventType    string    `json:"eventType"`
	TenantID     string    `json:"tenantId"`
	EventDate    time.Time `json:"eventDate"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// NewBillEventMessage wraps ev, stamping the receive time
func NewBillEventMessage(ev core.BillEvent) *BillEventMessage {
	return &BillEventMessage{
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		EventType:    ev.EventType,
		TenantID:     ev.TenantID,
		EventDate:    ev.EventDate,
		ReceivedAt:   time.Now(),
	}
}

// BillEvent converts the message back into the domain event
func (m *BillEventMessage) BillEvent() core.BillEvent {
	return core.BillEvent{
		ResourceType: m.ResourceType,
		ResourceID:   m.ResourceID,
		EventType:    m.EventType,
		TenantID:     m.TenantID,
		EventDate:    m.EventDate,
	}
}

// ToJSON converts the message to JSON bytes
func (m *BillEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BillEventMessageFromJSON creates a message from JSON bytes
func BillEventMessageFromJSON(data []byte) (*BillEventMessage, error) {
	var msg BillEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ResourceID == "" && msg.ResourceType == "" {
		return nil, errors.New("empty bill event message")
	}
	return &msg, nil
}
