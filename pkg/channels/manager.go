// DotAgent - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 DotAgent contributors

package channels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/logger"
)

type Manager struct {
	channels       map[string]Channel
	bus            *bus.MessageBus
	config         *config.Config
	cancelDispatch context.CancelFunc
	mu             sync.RWMutex
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
		config:   cfg,
	}

	if err := m.initChannels(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Manager) initChannels() error {
	logger.InfoC("channels", "Initializing channel manager")

	wa := m.config.Channels.WhatsApp
	if wa.Enabled {
		if strings.TrimSpace(wa.InstanceID) == "" || strings.TrimSpace(wa.APIToken) == "" {
			return fmt.Errorf("channels.whatsapp.instance_id and api_token are required")
		}
		whatsapp, err := NewWhatsAppChannel(wa, m.bus)
		if err != nil {
			return fmt.Errorf("initialize WhatsApp channel: %w", err)
		}
		m.channels[ChannelWhatsApp] = whatsapp
		logger.InfoC("channels", "WhatsApp channel initialized")
	}

	dc := m.config.Channels.Discord
	if dc.Enabled {
		if strings.TrimSpace(dc.Token) == "" {
			return fmt.Errorf("channels.discord.token is required")
		}
		discord, err := NewDiscordChannel(dc, m.bus)
		if err != nil {
			return fmt.Errorf("initialize Discord channel: %w", err)
		}
		m.channels[ChannelDiscord] = discord
		logger.InfoC("channels", "Discord mirror initialized")
	}

	logger.InfoCF("channels", "Channel initialization completed", map[string]interface{}{
		"enabled_channels": len(m.channels),
	})

	return nil
}

// StartAll starts every channel in name order. If one fails, the ones
// already started are stopped again and the joined errors are returned.
func (m *Manager) StartAll(ctx context.Context) error {
	names := m.GetEnabledChannels()
	if len(names) == 0 {
		logger.WarnC("channels", "No channels enabled")
		return nil
	}

	var started []Channel
	var errs []error
	for _, name := range names {
		ch, _ := m.GetChannel(name)
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Channel failed to start", map[string]interface{}{
				"channel": name,
				"error":   err,
			})
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		started = append(started, ch)
	}
	if len(errs) > 0 {
		for _, ch := range started {
			_ = ch.Stop(ctx)
		}
		return fmt.Errorf("start channels: %w", errors.Join(errs...))
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.cancelDispatch != nil {
		m.cancelDispatch()
	}
	m.cancelDispatch = cancel
	m.mu.Unlock()
	go m.dispatchOutbound(dispatchCtx)

	logger.InfoCF("channels", "Channels started", map[string]interface{}{
		"channels": names,
	})
	return nil
}

// StopAll halts outbound dispatch and stops every channel. Stop errors are
// logged and otherwise ignored.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	if m.cancelDispatch != nil {
		m.cancelDispatch()
		m.cancelDispatch = nil
	}
	m.mu.Unlock()

	for _, name := range m.GetEnabledChannels() {
		ch, _ := m.GetChannel(name)
		if err := ch.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Channel failed to stop", map[string]interface{}{
				"channel": name,
				"error":   err,
			})
		}
	}
	logger.InfoC("channels", "Channels stopped")
	return nil
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		ch, exists := m.GetChannel(msg.Channel)
		if !exists {
			logger.WarnCF("channels", "Outbound message for unknown channel", map[string]interface{}{
				"channel": msg.Channel,
				"kind":    msg.Kind,
			})
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Outbound send failed", map[string]interface{}{
				"channel": msg.Channel,
				"kind":    msg.Kind,
				"chat_id": msg.ChatID,
				"error":   err,
			})
		}
	}
}

// WhatsApp returns the customer transport channel when it is enabled.
func (m *Manager) WhatsApp() (*WhatsAppChannel, bool) {
	ch, ok := m.GetChannel(ChannelWhatsApp)
	if !ok {
		return nil, false
	}
	wa, ok := ch.(*WhatsAppChannel)
	return wa, ok
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

// Stopped lists enabled channels that are not currently running.
func (m *Manager) Stopped() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stopped []string
	for name, channel := range m.channels {
		if !channel.IsRunning() {
			stopped = append(stopped, name)
		}
	}
	sort.Strings(stopped)
	return stopped
}

func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
}
