package bus

import "time"

// Source tags where an inbound message was observed.
type Source string

const (
	SourceLive    Source = "live"
	SourceWebhook Source = "webhook"
	SourceSweep   Source = "sweep"
	SourceConsole Source = "console"
)

// InboundMessage is one customer message after transport-specific text
// resolution. Content is empty when the message type carried no text.
type InboundMessage struct {
	Channel     string            `json:"channel"`
	MessageID   string            `json:"message_id"`
	ChatID      string            `json:"chat_id"`
	SenderID    string            `json:"sender_id"`
	SenderName  string            `json:"sender_name"`
	MessageType string            `json:"message_type"`
	Content     string            `json:"content"`
	Source      Source            `json:"source"`
	ReceivedAt  time.Time         `json:"received_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a message the gateway delivers on a named channel,
// used for operator traffic that does not belong to a customer turn.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
	Kind    string `json:"kind,omitempty"`
}
