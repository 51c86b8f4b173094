package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/events"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/dotsetgreg/leadbot/pkg/logger"
)

// MeetingNotice is what the operator learns when a lead books a call.
type MeetingNotice struct {
	Name    string
	Phone   string
	Meeting string
	Summary string
	Link    string
}

func (n MeetingNotice) Format() string {
	var sb strings.Builder
	sb.WriteString("📅 New call scheduled\n\n")
	fmt.Fprintf(&sb, "👤 Name: %s\n", valueOr(n.Name, "unknown"))
	fmt.Fprintf(&sb, "📱 Phone: %s\n", n.Phone)
	fmt.Fprintf(&sb, "🕐 Meeting: %s\n", n.Meeting)
	fmt.Fprintf(&sb, "📝 Summary: %s", valueOr(n.Summary, "-"))
	if n.Link != "" {
		fmt.Fprintf(&sb, "\n🔗 Lead: %s", n.Link)
	}
	return sb.String()
}

// OperatorNotifier sends meeting notices to the operator's WhatsApp chat and
// optionally mirrors them onto another bus channel.
type OperatorNotifier struct {
	transport      Transport
	operatorChatID string
	mirror         *bus.MessageBus
	mirrorChannel  string
	mirrorChatID   string
}

func NewOperatorNotifier(transport Transport, operatorChatID string) *OperatorNotifier {
	return &OperatorNotifier{transport: transport, operatorChatID: operatorChatID}
}

// Mirror also publishes every notice as an outbound message on channel.
func (o *OperatorNotifier) Mirror(mb *bus.MessageBus, channel, chatID string) *OperatorNotifier {
	o.mirror, o.mirrorChannel, o.mirrorChatID = mb, channel, chatID
	return o
}

func (o *OperatorNotifier) NotifyMeeting(ctx context.Context, notice MeetingNotice) error {
	text := notice.Format()
	var errs []error

	if o.operatorChatID != "" && o.transport != nil {
		if err := o.transport.Send(ctx, o.operatorChatID, text); err != nil {
			errs = append(errs, fmt.Errorf("notify operator: %w", err))
		}
	}
	if o.mirror != nil && o.mirrorChatID != "" {
		ok := o.mirror.PublishOutbound(bus.OutboundMessage{
			Channel: o.mirrorChannel,
			ChatID:  o.mirrorChatID,
			Content: text,
			Kind:    "meeting",
		})
		if !ok {
			logger.WarnCF("notify", "Mirror notice dropped", map[string]interface{}{
				"channel": o.mirrorChannel,
			})
		}
	}
	return errors.Join(errs...)
}

// notifyMeeting fires when the stored record has no meeting yet. Two
// extractions racing on one contact can both pass the check.
func (p *Pipeline) notifyMeeting(ctx context.Context, turn FlushedTurn, a Analysis) {
	notice := MeetingNotice{
		Name:    turn.DisplayName,
		Phone:   turn.ContactKey,
		Meeting: a.Meeting,
		Summary: a.Summary,
	}
	logFields := map[string]interface{}{
		"phone":   turn.ContactKey,
		"turn_id": turn.ID,
	}

	if p.store != nil {
		current, err := p.store.Get(ctx, turn.ContactKey)
		if err != nil {
			logFields["error"] = err
			logger.WarnCF("notify", "Meeting check failed", logFields)
			return
		}
		if current != nil {
			if strings.TrimSpace(current.Meeting) != "" {
				return
			}
			if current.Name != "" {
				notice.Name = current.Name
			}
		}
		notice.Link = p.leadLink(ctx, turn.ContactKey)
	} else if !p.firstMeeting(turn.ContactKey) {
		return
	}

	logFields["meeting"] = a.Meeting
	if p.notifier != nil {
		if err := p.notifier.NotifyMeeting(ctx, notice); err != nil {
			logFields["error"] = err
			logger.ErrorCF("notify", "Meeting notification failed", logFields)
			return
		}
		p.metrics.MeetingNotified()
		logger.InfoCF("notify", "Meeting notification sent", logFields)
	} else {
		logger.InfoCF("notify", "Meeting detected, no notifier configured", logFields)
	}

	p.publish(ctx, events.TypeLeadMeetingScheduled, turn.ID, events.LeadPayload{
		Phone:   turn.ContactKey,
		Name:    notice.Name,
		Meeting: a.Meeting,
	})
}

// firstMeeting stands in for the store check when no store is configured.
func (p *Pipeline) firstMeeting(contactKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notified[contactKey] {
		return false
	}
	p.notified[contactKey] = true
	return true
}

func (p *Pipeline) leadLink(ctx context.Context, contactKey string) string {
	linker, ok := p.store.(leads.Linker)
	if !ok {
		return ""
	}
	row, found, err := p.store.RowIndex(ctx, contactKey)
	if err != nil || !found {
		return ""
	}
	return linker.RowLink(row)
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
