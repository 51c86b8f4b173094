package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/agent"
	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/greenapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGreen struct {
	mu            sync.Mutex
	notifications []*greenapi.Notification
	deleted       []int64
	sent          []bus.OutboundMessage
	history       []greenapi.HistoryMessage
	incoming      []greenapi.HistoryMessage
	minutes       int
}

func (f *fakeGreen) SendMessage(_ context.Context, chatID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, bus.OutboundMessage{ChatID: chatID, Content: text})
	return "out-1", nil
}

func (f *fakeGreen) GetChatHistory(_ context.Context, _ string, count int) ([]greenapi.HistoryMessage, error) {
	if count < len(f.history) {
		return f.history[:count], nil
	}
	return f.history, nil
}

func (f *fakeGreen) LastIncomingMessages(_ context.Context, minutes int) ([]greenapi.HistoryMessage, error) {
	f.mu.Lock()
	f.minutes = minutes
	f.mu.Unlock()
	return f.incoming, nil
}

func (f *fakeGreen) ReceiveNotification(ctx context.Context, _ int) (*greenapi.Notification, error) {
	f.mu.Lock()
	if len(f.notifications) > 0 {
		n := f.notifications[0]
		f.notifications = f.notifications[1:]
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeGreen) DeleteNotification(_ context.Context, receiptID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, receiptID)
	return nil
}

func (f *fakeGreen) deletedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deleted...)
}

func textHook(id, chatID, text string) greenapi.Webhook {
	return greenapi.Webhook{
		TypeWebhook: greenapi.WebhookIncomingMessage,
		IDMessage:   id,
		Timestamp:   1700000000,
		SenderData:  greenapi.SenderData{ChatID: chatID, Sender: chatID, SenderName: "Dana"},
		MessageData: greenapi.MessageData{
			TypeMessage:     greenapi.TypeText,
			TextMessageData: &greenapi.TextData{TextMessage: text},
		},
	}
}

func TestWhatsAppChannel_PollingPublishesAndAcknowledges(t *testing.T) {
	mb := bus.NewMessageBus()
	fake := &fakeGreen{notifications: []*greenapi.Notification{
		{ReceiptID: 1, Body: textHook("m1", "972500000001@c.us", "hi")},
		{ReceiptID: 2, Body: greenapi.Webhook{TypeWebhook: "outgoingMessageStatus"}},
	}}
	ch := newWhatsAppChannel(fake, true, 1, mb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Start(ctx))

	consumeCtx, stop := context.WithTimeout(ctx, time.Second)
	defer stop()
	msg, ok := mb.ConsumeInbound(consumeCtx)
	require.True(t, ok)
	assert.Equal(t, ChannelWhatsApp, msg.Channel)
	assert.Equal(t, "m1", msg.MessageID)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, bus.SourceLive, msg.Source)

	assert.Eventually(t, func() bool { return len(fake.deletedIDs()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, ch.Stop(context.Background()))
	assert.False(t, ch.IsRunning())
}

func TestWhatsAppChannel_HandleWebhook(t *testing.T) {
	mb := bus.NewMessageBus()
	ch := newWhatsAppChannel(&fakeGreen{}, false, 0, mb)

	assert.True(t, ch.HandleWebhook(textHook("m2", "972500000001@c.us", "שלום")))
	assert.False(t, ch.HandleWebhook(greenapi.Webhook{TypeWebhook: "stateInstanceChanged"}))

	msg, ok := mb.ConsumeInbound(context.Background())
	require.True(t, ok)
	assert.Equal(t, bus.SourceWebhook, msg.Source)
	assert.Equal(t, "שלום", msg.Content)
	assert.Equal(t, time.Unix(1700000000, 0), msg.ReceivedAt)
}

func TestWhatsAppTransport_FetchHistoryOldestFirst(t *testing.T) {
	fake := &fakeGreen{history: []greenapi.HistoryMessage{
		{IDMessage: "3", Type: "outgoing", TextMessage: "third"},
		{IDMessage: "2", Type: "incoming", TextMessage: "second"},
		{IDMessage: "1", Type: "incoming", TextMessage: "first"},
	}}
	tr := newWhatsAppChannel(fake, false, 0, nil).Transport()

	items, err := tr.FetchHistory(context.Background(), "972500000001@c.us", 30)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "first", items[0].Text)
	assert.Equal(t, agent.DirectionOutgoing, items[2].Direction)
}

func TestWhatsAppTransport_FetchUnansweredRoundsWindow(t *testing.T) {
	fake := &fakeGreen{incoming: []greenapi.HistoryMessage{
		{IDMessage: "m9", ChatID: "972500000001@c.us", TypeMessage: greenapi.TypeText, TextMessage: "still there?"},
	}}
	tr := newWhatsAppChannel(fake, false, 0, nil).Transport()

	msgs, err := tr.FetchUnanswered(context.Background(), 90*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 2, fake.minutes)
	assert.Equal(t, bus.SourceSweep, msgs[0].Source)
	assert.Equal(t, "still there?", msgs[0].Content)

	_, err = tr.FetchUnanswered(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.minutes)
}

func TestWhatsAppTransport_Send(t *testing.T) {
	fake := &fakeGreen{}
	tr := newWhatsAppChannel(fake, false, 0, nil).Transport()

	require.NoError(t, tr.Send(context.Background(), "972500000001@c.us", "hello"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "hello", fake.sent[0].Content)
}
