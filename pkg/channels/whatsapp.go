package channels

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/agent"
	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/greenapi"
	"github.com/dotsetgreg/leadbot/pkg/logger"
)

const (
	ChannelWhatsApp = "whatsapp"

	pollRetryDelay = 5 * time.Second
)

// greenClient is the subset of the Green API client the channel uses.
type greenClient interface {
	SendMessage(ctx context.Context, chatID, text string) (string, error)
	GetChatHistory(ctx context.Context, chatID string, count int) ([]greenapi.HistoryMessage, error)
	LastIncomingMessages(ctx context.Context, minutes int) ([]greenapi.HistoryMessage, error)
	ReceiveNotification(ctx context.Context, timeoutSeconds int) (*greenapi.Notification, error)
	DeleteNotification(ctx context.Context, receiptID int64) error
}

type WhatsAppChannel struct {
	*BaseChannel
	client         greenClient
	polling        bool
	receiveTimeout int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWhatsAppChannel(cfg config.WhatsAppConfig, bus *bus.MessageBus) (*WhatsAppChannel, error) {
	client, err := greenapi.NewClient(greenapi.Options{
		APIURL:     cfg.APIURL,
		InstanceID: cfg.InstanceID,
		Token:      cfg.APIToken,
		SendRate:   cfg.SendRatePerSecond,
		SendBurst:  cfg.SendBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("create green api client: %w", err)
	}
	return newWhatsAppChannel(client, cfg.Polling, cfg.ReceiveTimeoutSecs, bus), nil
}

func newWhatsAppChannel(client greenClient, polling bool, receiveTimeout int, bus *bus.MessageBus) *WhatsAppChannel {
	return &WhatsAppChannel{
		BaseChannel:    NewBaseChannel(ChannelWhatsApp, bus),
		client:         client,
		polling:        polling,
		receiveTimeout: receiveTimeout,
	}
}

func (c *WhatsAppChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsRunning() {
		return nil
	}
	c.setRunning(true)
	if !c.polling {
		logger.InfoC("whatsapp", "WhatsApp channel started in webhook mode")
		return nil
	}

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.poll(pollCtx, c.done)

	logger.InfoCF("whatsapp", "WhatsApp channel started in polling mode", map[string]interface{}{
		"receive_timeout": c.receiveTimeout,
	})
	return nil
}

func (c *WhatsAppChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.setRunning(false)
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop whatsapp poller: %w", ctx.Err())
	}
}

// Send delivers operator traffic routed through the bus.
func (c *WhatsAppChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if msg.ChatID == "" {
		return fmt.Errorf("chat ID is empty")
	}
	_, err := c.client.SendMessage(ctx, msg.ChatID, msg.Content)
	return err
}

// HandleWebhook accepts a pushed notification body. It reports whether the
// body was a text message that reached the bus.
func (c *WhatsAppChannel) HandleWebhook(hook greenapi.Webhook) bool {
	msg, ok := inboundFromWebhook(hook, bus.SourceWebhook)
	if !ok {
		return false
	}
	return c.HandleMessage(msg)
}

func (c *WhatsAppChannel) poll(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		n, err := c.client.ReceiveNotification(ctx, c.receiveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WarnCF("whatsapp", "Receive notification failed", map[string]interface{}{
				"error": err,
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollRetryDelay):
			}
			continue
		}
		if n == nil {
			continue
		}

		if msg, ok := inboundFromWebhook(n.Body, bus.SourceLive); ok {
			c.HandleMessage(msg)
		}
		if err := c.client.DeleteNotification(ctx, n.ReceiptID); err != nil {
			logger.WarnCF("whatsapp", "Delete notification failed", map[string]interface{}{
				"receipt_id": n.ReceiptID,
				"error":      err,
			})
		}
	}
}

func inboundFromWebhook(hook greenapi.Webhook, source bus.Source) (bus.InboundMessage, bool) {
	if hook.TypeWebhook != greenapi.WebhookIncomingMessage {
		return bus.InboundMessage{}, false
	}
	msg := bus.InboundMessage{
		MessageID:   hook.IDMessage,
		ChatID:      hook.SenderData.ChatID,
		SenderID:    hook.SenderData.Sender,
		SenderName:  hook.SenderData.SenderName,
		MessageType: hook.MessageData.TypeMessage,
		Content:     hook.MessageData.Text(),
		Source:      source,
	}
	if hook.Timestamp > 0 {
		msg.ReceivedAt = time.Unix(hook.Timestamp, 0)
	}
	return msg, msg.ChatID != ""
}

// Transport exposes the channel as the bot's customer-facing transport.
func (c *WhatsAppChannel) Transport() agent.Transport {
	return &whatsappTransport{client: c.client}
}

type whatsappTransport struct {
	client greenClient
}

func (t *whatsappTransport) Send(ctx context.Context, chatID, text string) error {
	_, err := t.client.SendMessage(ctx, chatID, text)
	return err
}

func (t *whatsappTransport) FetchHistory(ctx context.Context, chatID string, limit int) ([]agent.HistoryItem, error) {
	msgs, err := t.client.GetChatHistory(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	// the API answers newest first
	items := make([]agent.HistoryItem, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		item := agent.HistoryItem{
			MessageID: m.IDMessage,
			Direction: strings.ToLower(m.Type),
			SenderID:  m.SenderID,
			Text:      m.Text(),
		}
		if m.Timestamp > 0 {
			item.Timestamp = time.Unix(m.Timestamp, 0)
		}
		items = append(items, item)
	}
	return items, nil
}

func (t *whatsappTransport) FetchUnanswered(ctx context.Context, window time.Duration) ([]bus.InboundMessage, error) {
	minutes := int(math.Ceil(window.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	msgs, err := t.client.LastIncomingMessages(ctx, minutes)
	if err != nil {
		return nil, err
	}
	out := make([]bus.InboundMessage, 0, len(msgs))
	for _, m := range msgs {
		msg := bus.InboundMessage{
			Channel:     ChannelWhatsApp,
			MessageID:   m.IDMessage,
			ChatID:      m.ChatID,
			SenderID:    m.SenderID,
			SenderName:  m.SenderName,
			MessageType: m.TypeMessage,
			Content:     m.Text(),
			Source:      bus.SourceSweep,
		}
		if m.Timestamp > 0 {
			msg.ReceivedAt = time.Unix(m.Timestamp, 0)
		}
		out = append(out, msg)
	}
	return out, nil
}
