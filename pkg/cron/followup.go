// Package cron runs the scheduled follow-up digest for the operator.
package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/dotsetgreg/leadbot/pkg/logger"
)

var ErrInvalidSchedule = errors.New("invalid cron expression")

// Sender delivers a text to a chat. The WhatsApp transport satisfies it.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

type FollowupService struct {
	schedule string
	store    leads.Store
	sender   Sender
	chatID   string
	loc      *time.Location
	now      func() time.Time

	mirror        *bus.MessageBus
	mirrorChannel string
	mirrorChatID  string

	mu      sync.Mutex
	lastRun time.Time
}

func NewFollowupService(schedule string, store leads.Store, sender Sender, operatorChatID string, loc *time.Location) (*FollowupService, error) {
	schedule = strings.TrimSpace(schedule)
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, schedule)
	}
	if store == nil {
		return nil, errors.New("followup: lead store is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FollowupService{
		schedule: schedule,
		store:    store,
		sender:   sender,
		chatID:   operatorChatID,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// Mirror also publishes each digest as an outbound message on channel.
func (s *FollowupService) Mirror(mb *bus.MessageBus, channel, chatID string) *FollowupService {
	s.mirror, s.mirrorChannel, s.mirrorChatID = mb, channel, chatID
	return s
}

// Next returns the first scheduled tick strictly after ref.
func (s *FollowupService) Next(ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.schedule, ref.In(s.loc), false)
}

func (s *FollowupService) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Run sleeps until each scheduled tick and sends the digest, until ctx ends.
func (s *FollowupService) Run(ctx context.Context) error {
	logger.InfoCF("followup", "Follow-up scheduler started", map[string]interface{}{
		"schedule": s.schedule,
	})
	for {
		next, err := s.Next(s.now())
		if err != nil {
			return fmt.Errorf("next follow-up tick: %w", err)
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			logger.ErrorCF("followup", "Follow-up digest failed", map[string]interface{}{
				"error": err,
			})
		}
	}
}

// RunOnce sends the digest of leads due today. It returns how many were due.
func (s *FollowupService) RunOnce(ctx context.Context) (int, error) {
	now := s.now().In(s.loc)
	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	all, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list leads: %w", err)
	}
	due := leads.DueForFollowup(all, now)
	if len(due) == 0 {
		logger.DebugC("followup", "No follow-ups due")
		return 0, nil
	}

	text := FormatDigest(due, now)
	var errs []error
	if s.sender != nil && s.chatID != "" {
		if err := s.sender.Send(ctx, s.chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("send digest: %w", err))
		}
	}
	if s.mirror != nil && s.mirrorChatID != "" {
		s.mirror.PublishOutbound(bus.OutboundMessage{
			Channel: s.mirrorChannel,
			ChatID:  s.mirrorChatID,
			Content: text,
			Kind:    "followup",
		})
	}

	logger.InfoCF("followup", "Follow-up digest sent", map[string]interface{}{
		"due": len(due),
	})
	return len(due), errors.Join(errs...)
}

func FormatDigest(due []leads.Lead, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏰ Follow-ups due %s (%d)\n", now.Format("2006-01-02"), len(due))
	for _, l := range due {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&sb, "\n• %s %s", name, l.Phone)
		if l.Status != "" {
			fmt.Fprintf(&sb, " [%s]", l.Status)
		}
		if d := strings.TrimSpace(l.ReminderDate); d != "" {
			fmt.Fprintf(&sb, " since %s", d)
		}
		if n := strings.TrimSpace(l.Notes); n != "" {
			fmt.Fprintf(&sb, "\n  %s", n)
		}
	}
	return sb.String()
}
