package channels

import (
	"context"
	"sync/atomic"

	"github.com/dotsetgreg/leadbot/pkg/bus"
)

type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

type BaseChannel struct {
	bus     *bus.MessageBus
	running atomic.Bool
	name    string
}

func NewBaseChannel(name string, bus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{
		bus:  bus,
		name: name,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

// HandleMessage tags msg with the channel name and hands it to the bus.
func (c *BaseChannel) HandleMessage(msg bus.InboundMessage) bool {
	if c.bus == nil {
		return false
	}
	msg.Channel = c.name
	return c.bus.PublishInbound(msg)
}

func (c *BaseChannel) setRunning(running bool) {
	c.running.Store(running)
}
