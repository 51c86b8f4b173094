// Package events publishes lead lifecycle notifications for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypeLeadCreated          = "lead.created"
	TypeLeadAnalyzed         = "lead.analyzed"
	TypeLeadMeetingScheduled = "lead.meeting_scheduled"
)

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Source        string    `json:"source"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// Publisher emits envelopes. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, eventType, correlationID string, data any) error
	Close() error
}

// NewEnvelope stamps a fresh event ID and time. Correlation falls back to the ID.
func NewEnvelope(source, eventType, correlationID string, data any) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, fmt.Errorf("event type is required")
	}
	id := uuid.NewString()
	if correlationID == "" {
		correlationID = id
	}
	return Envelope{
		Meta: Meta{
			ID:            id,
			Type:          eventType,
			CorrelationID: correlationID,
			Source:        source,
			OccurredAt:    time.Now().UTC(),
		},
		Data: data,
	}, nil
}

// Encode marshals the envelope to JSON.
func (e Envelope) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }
func (Nop) Close() error { return nil }

// LeadPayload is the data body of every lead event.
type LeadPayload struct {
	Phone   string            `json:"phone"`
	Name    string            `json:"name,omitempty"`
	Status  string            `json:"status,omitempty"`
	Meeting string            `json:"meeting,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
