package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentText struct {
	chatID string
	text   string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (r *recordingSender) Send(_ context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentText{chatID: chatID, text: text})
	return r.err
}

func seededStore(t *testing.T) *leads.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := leads.NewMemoryStore()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	due := leads.NewLead("972500000001@c.us", "Dana", now)
	due.ReminderDate = "2026-03-09"
	due.Notes = "asked about dates"
	require.NoError(t, store.Create(ctx, due))

	later := leads.NewLead("972500000002@c.us", "Noa", now)
	later.ReminderDate = "2026-04-01"
	require.NoError(t, store.Create(ctx, later))

	closed := leads.NewLead("972500000003@c.us", "Ori", now)
	closed.ReminderDate = "2026-03-01"
	closed.Status = leads.StatusClosed
	require.NoError(t, store.Create(ctx, closed))
	return store
}

func TestNewFollowupService_RejectsBadSchedule(t *testing.T) {
	_, err := NewFollowupService("every morning", leads.NewMemoryStore(), nil, "", nil)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = NewFollowupService("0 9 * * *", nil, nil, "", nil)
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	svc, err := NewFollowupService("0 9 * * *", leads.NewMemoryStore(), nil, "", time.UTC)
	require.NoError(t, err)

	next, err := svc.Next(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), next.UTC())
}

func TestRunOnce_SendsDigestOfDueLeads(t *testing.T) {
	sender := &recordingSender{}
	mb := bus.NewMessageBus()
	defer mb.Close()

	svc, err := NewFollowupService("0 9 * * *", seededStore(t), sender, "972500000009@c.us", time.UTC)
	require.NoError(t, err)
	svc.Mirror(mb, "discord", "ops")
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "972500000009@c.us", sender.sent[0].chatID)
	assert.Contains(t, sender.sent[0].text, "Dana +972500000001")
	assert.Contains(t, sender.sent[0].text, "asked about dates")
	assert.NotContains(t, sender.sent[0].text, "Noa")
	assert.NotContains(t, sender.sent[0].text, "Ori")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	out, ok := mb.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "followup", out.Kind)
	assert.Equal(t, "ops", out.ChatID)
	assert.False(t, svc.LastRun().IsZero())
}

func TestRunOnce_NothingDue(t *testing.T) {
	sender := &recordingSender{}
	svc, err := NewFollowupService("0 9 * * *", seededStore(t), sender, "972500000009@c.us", time.UTC)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }

	n, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sender.sent)
}

func TestRunOnce_ReportsSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("offline")}
	svc, err := NewFollowupService("0 9 * * *", seededStore(t), sender, "972500000009@c.us", time.UTC)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

	n, err := svc.RunOnce(context.Background())
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "offline")
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	svc, err := NewFollowupService("0 9 * * *", leads.NewMemoryStore(), nil, "", time.UTC)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
}
