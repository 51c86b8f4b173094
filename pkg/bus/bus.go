package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultBufferSize = 100
	publishTimeout    = 100 * time.Millisecond
)

type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	closed   bool
	dropped  droppedCounters
	mu       sync.RWMutex
}

type droppedCounters struct {
	inbound  atomic.Uint64
	outbound atomic.Uint64
}

func NewMessageBus() *MessageBus {
	return NewMessageBusSize(defaultBufferSize)
}

func NewMessageBusSize(size int) *MessageBus {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, size),
		outbound: make(chan OutboundMessage, size),
	}
}

// PublishInbound enqueues msg, waiting briefly when the buffer is full.
// It reports false when the message was dropped or the bus is closed.
func (mb *MessageBus) PublishInbound(msg InboundMessage) bool {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return !mb.closed && offer(mb.inbound, msg, &mb.dropped.inbound)
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return take(ctx, mb.inbound)
}

func (mb *MessageBus) PublishOutbound(msg OutboundMessage) bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return !mb.closed && offer(mb.outbound, msg, &mb.dropped.outbound)
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return take(ctx, mb.outbound)
}

func offer[T any](ch chan T, msg T, dropped *atomic.Uint64) bool {
	select {
	case ch <- msg:
		return true
	default:
	}
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case ch <- msg:
		return true
	case <-timer.C:
		dropped.Add(1)
		return false
	}
}

func take[T any](ctx context.Context, ch <-chan T) (T, bool) {
	var zero T
	select {
	case msg, ok := <-ch:
		if !ok {
			return zero, false
		}
		return msg, true
	case <-ctx.Done():
		return zero, false
	}
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound)
	close(mb.outbound)
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.dropped.inbound.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.dropped.outbound.Load()
}

// Pending reports how many messages are queued in each direction.
func (mb *MessageBus) Pending() (inbound, outbound int) {
	return len(mb.inbound), len(mb.outbound)
}
