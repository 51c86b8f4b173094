// DotAgent - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 DotAgent contributors

package agent

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/dotsetgreg/leadbot/pkg/metrics"
	"github.com/dotsetgreg/leadbot/pkg/utils"
)

// Intake results, as counted in metrics.
const (
	ResultAccepted  = "accepted"
	ResultDuplicate = "duplicate"
	ResultFiltered  = "filtered"
	ResultEmpty     = "empty"
	ResultStopped   = "stopped"
	ResultClosed    = "closed"
)

const stopReplyTimeout = 30 * time.Second

type IntakeConfig struct {
	GroupSuffix     string
	ExcludedNumbers []string
	StopKeywords    []string
	StopReply       string
}

// Intake is the single door into the batcher for live, webhook and sweep
// traffic: filter, dedup, then buffer.
type Intake struct {
	groupSuffix string
	excluded    map[string]struct{}
	stop        map[string]struct{}
	stopReply   string
	ledger      *Ledger
	batcher     *Batcher
	transport   Transport
	metrics     *metrics.Metrics
	wg          sync.WaitGroup
}

func NewIntake(cfg IntakeConfig, ledger *Ledger, batcher *Batcher, transport Transport, m *metrics.Metrics) *Intake {
	in := &Intake{
		groupSuffix: cfg.GroupSuffix,
		excluded:    make(map[string]struct{}, len(cfg.ExcludedNumbers)),
		stop:        make(map[string]struct{}, len(cfg.StopKeywords)),
		stopReply:   cfg.StopReply,
		ledger:      ledger,
		batcher:     batcher,
		transport:   transport,
		metrics:     m,
	}
	for _, n := range cfg.ExcludedNumbers {
		if n = utils.NormalizeNumber(n); n != "" {
			in.excluded[n] = struct{}{}
		}
	}
	for _, k := range cfg.StopKeywords {
		if k = normalizeKeyword(k); k != "" {
			in.stop[k] = struct{}{}
		}
	}
	return in
}

// Filtered reports whether the chat must never reach the batcher.
func (in *Intake) Filtered(id SessionIdentity) bool {
	if id.Validate() != nil || id.IsGroup(in.groupSuffix) {
		return true
	}
	_, excluded := in.excluded[id.Number()]
	return excluded
}

// Accept routes one inbound message and returns what happened to it.
func (in *Intake) Accept(ctx context.Context, msg bus.InboundMessage) string {
	result := in.accept(ctx, msg)
	in.metrics.Inbound(result)
	if result != ResultAccepted {
		logger.DebugCF("intake", "Message not buffered", map[string]interface{}{
			"chat_id":    msg.ChatID,
			"message_id": msg.MessageID,
			"source":     string(msg.Source),
			"result":     result,
		})
	}
	return result
}

func (in *Intake) accept(ctx context.Context, msg bus.InboundMessage) string {
	id := IdentityOf(msg)
	if in.Filtered(id) {
		return ResultFiltered
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return ResultEmpty
	}
	if msg.MessageID != "" && in.ledger.SeenBefore(msg.MessageID) {
		return ResultDuplicate
	}

	if _, ok := in.stop[normalizeKeyword(text)]; ok {
		in.replyStop(ctx, id)
		return ResultStopped
	}

	if !in.batcher.Add(Fragment{
		SessionID:   id.ChatID,
		ContactKey:  id.ContactKey(),
		DisplayName: id.DisplayName,
		Text:        text,
	}) {
		return ResultClosed
	}
	return ResultAccepted
}

func (in *Intake) replyStop(ctx context.Context, id SessionIdentity) {
	if in.transport == nil || in.stopReply == "" {
		return
	}
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopReplyTimeout)
		defer cancel()
		if err := in.transport.Send(sendCtx, id.ChatID, in.stopReply); err != nil {
			logger.WarnCF("intake", "Stop reply failed", map[string]interface{}{
				"chat_id": id.ChatID,
				"error":   err,
			})
			return
		}
		logger.InfoCF("intake", "Stop keyword answered", map[string]interface{}{
			"chat_id": id.ChatID,
		})
	}()
}

// Wait blocks until outstanding stop replies are sent.
func (in *Intake) Wait() {
	in.wg.Wait()
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AgentLoop drains the inbound bus into the intake.
type AgentLoop struct {
	bus     *bus.MessageBus
	intake  *Intake
	running atomic.Bool
}

func NewAgentLoop(msgBus *bus.MessageBus, intake *Intake) *AgentLoop {
	return &AgentLoop{bus: msgBus, intake: intake}
}

func (al *AgentLoop) Run(ctx context.Context) error {
	al.running.Store(true)
	defer al.running.Store(false)

	for al.running.Load() {
		msg, ok := al.bus.ConsumeInbound(ctx)
		if !ok {
			return nil
		}
		al.intake.Accept(ctx, msg)
	}
	return nil
}

func (al *AgentLoop) Stop() {
	al.running.Store(false)
}

func (al *AgentLoop) IsRunning() bool {
	return al.running.Load()
}
