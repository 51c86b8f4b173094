package agent

import (
	"context"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/bus"
)

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session's rolling conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message directions as reported by the transport history.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// HistoryItem is one message of a chat transcript fetched from the transport.
type HistoryItem struct {
	MessageID string
	Direction string
	SenderID  string
	Text      string
	Timestamp time.Time
}

// Transport is the messaging platform the bot talks through.
type Transport interface {
	Send(ctx context.Context, chatID, text string) error
	// FetchHistory returns at most limit messages, oldest first.
	FetchHistory(ctx context.Context, chatID string, limit int) ([]HistoryItem, error)
	// FetchUnanswered returns incoming messages received within window.
	FetchUnanswered(ctx context.Context, window time.Duration) ([]bus.InboundMessage, error)
}

type ReplyGenerator interface {
	GenerateReply(ctx context.Context, systemPrompt string, turns []Turn) (string, error)
}

// FieldExtractor returns the raw model output for an extraction request.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, instruction, transcript string) (string, error)
}

type Notifier interface {
	NotifyMeeting(ctx context.Context, notice MeetingNotice) error
}
