package bus

import (
	"context"
	"testing"
	"time"
)

func TestMessageBus_PublishInboundDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBusSize(4)
	defer mb.Close()

	for i := 0; i < cap(mb.inbound); i++ {
		if !mb.PublishInbound(InboundMessage{Channel: "whatsapp", ChatID: "c", Content: "msg"}) {
			t.Fatalf("publish %d unexpectedly dropped", i)
		}
	}

	if mb.PublishInbound(InboundMessage{Channel: "whatsapp", ChatID: "c", Content: "overflow"}) {
		t.Fatalf("expected overflow publish to report a drop")
	}
	if mb.DroppedInbound() != 1 {
		t.Fatalf("expected dropped inbound count 1, got %d", mb.DroppedInbound())
	}
}

func TestMessageBus_PublishOutboundDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBusSize(2)
	defer mb.Close()

	for i := 0; i < cap(mb.outbound); i++ {
		mb.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "c", Content: "msg"})
	}

	mb.PublishOutbound(OutboundMessage{Channel: "discord", ChatID: "c", Content: "overflow"})
	if mb.DroppedOutbound() != 1 {
		t.Fatalf("expected dropped outbound count 1, got %d", mb.DroppedOutbound())
	}
	if _, out := mb.Pending(); out != 2 {
		t.Fatalf("expected 2 pending outbound, got %d", out)
	}
}

func TestMessageBus_StampsReceivedAt(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	mb.PublishInbound(InboundMessage{ChatID: "c", Content: "hi"})
	msg, ok := mb.ConsumeInbound(context.Background())
	if !ok {
		t.Fatalf("expected a message")
	}
	if msg.ReceivedAt.IsZero() || time.Since(msg.ReceivedAt) > time.Minute {
		t.Fatalf("expected ReceivedAt to be stamped, got %v", msg.ReceivedAt)
	}
}

func TestMessageBus_ClosedChannelsReturnFalse(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if _, ok := mb.ConsumeInbound(context.Background()); ok {
		t.Fatalf("expected closed inbound consume to return ok=false")
	}
	if _, ok := mb.SubscribeOutbound(context.Background()); ok {
		t.Fatalf("expected closed outbound subscribe to return ok=false")
	}
	if mb.PublishInbound(InboundMessage{Content: "late"}) {
		t.Fatalf("expected publish on closed bus to fail")
	}
}
