package greenapi

// Message type tags.
const (
	TypeText         = "textMessage"
	TypeExtendedText = "extendedTextMessage"
	TypeQuoted       = "quotedMessage"
)

// Webhook types.
const (
	WebhookIncomingMessage = "incomingMessageReceived"
)

type SendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type SendMessageResponse struct {
	IDMessage string `json:"idMessage"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

type TextData struct {
	TextMessage string `json:"textMessage"`
}

// HistoryMessage is one item of getChatHistory / lastIncomingMessages.
// The API fills different text fields depending on the message type.
type HistoryMessage struct {
	Type                    string        `json:"type"`
	IDMessage               string        `json:"idMessage"`
	Timestamp               int64         `json:"timestamp"`
	TypeMessage             string        `json:"typeMessage"`
	ChatID                  string        `json:"chatId"`
	SenderID                string        `json:"senderId"`
	SenderName              string        `json:"senderName"`
	TextMessage             string        `json:"textMessage"`
	ExtendedTextMessage     *ExtendedText `json:"extendedTextMessage,omitempty"`
	TextMessageData         *TextData     `json:"textMessageData,omitempty"`
	ExtendedTextMessageData *ExtendedText `json:"extendedTextMessageData,omitempty"`
}

// Text resolves the message text from whichever field carries it.
func (m HistoryMessage) Text() string {
	if m.TextMessage != "" {
		return m.TextMessage
	}
	if m.TextMessageData != nil && m.TextMessageData.TextMessage != "" {
		return m.TextMessageData.TextMessage
	}
	if m.ExtendedTextMessageData != nil && m.ExtendedTextMessageData.Text != "" {
		return m.ExtendedTextMessageData.Text
	}
	if m.ExtendedTextMessage != nil {
		return m.ExtendedTextMessage.Text
	}
	return ""
}

type SenderData struct {
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
	ChatName   string `json:"chatName"`
}

type MessageData struct {
	TypeMessage             string        `json:"typeMessage"`
	TextMessageData         *TextData     `json:"textMessageData,omitempty"`
	ExtendedTextMessageData *ExtendedText `json:"extendedTextMessageData,omitempty"`
}

// Text resolves the text of a pushed message by its type. Unknown types
// yield "".
func (d MessageData) Text() string {
	switch d.TypeMessage {
	case TypeText:
		if d.TextMessageData != nil {
			return d.TextMessageData.TextMessage
		}
	case TypeExtendedText:
		if d.ExtendedTextMessageData != nil {
			return d.ExtendedTextMessageData.Text
		}
	case TypeQuoted:
		if d.ExtendedTextMessageData != nil && d.ExtendedTextMessageData.Text != "" {
			return d.ExtendedTextMessageData.Text
		}
		if d.TextMessageData != nil {
			return d.TextMessageData.TextMessage
		}
	}
	return ""
}

// Webhook is the body of a pushed notification.
type Webhook struct {
	TypeWebhook string      `json:"typeWebhook"`
	IDMessage   string      `json:"idMessage"`
	Timestamp   int64       `json:"timestamp"`
	SenderData  SenderData  `json:"senderData"`
	MessageData MessageData `json:"messageData"`
}

type Notification struct {
	ReceiptID int64   `json:"receiptId"`
	Body      Webhook `json:"body"`
}
