package agent

import (
	"context"
	"testing"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIntake(tr Transport) (*Intake, *Batcher, *turnRecorder) {
	rec := &turnRecorder{}
	b := NewBatcher(time.Hour, rec.handle)
	in := NewIntake(IntakeConfig{
		GroupSuffix:     "@g.us",
		ExcludedNumbers: []string{"+972-50-000-0009"},
		StopKeywords:    []string{"stop", "סטופ", "עצור"},
		StopReply:       "bye",
	}, NewLedger(10), b, tr, nil)
	return in, b, rec
}

func inbound(id, chatID, text string) bus.InboundMessage {
	return bus.InboundMessage{MessageID: id, ChatID: chatID, SenderName: "Dana", Content: text, Source: bus.SourceLive}
}

func TestIntake_Routes(t *testing.T) {
	in, b, _ := newTestIntake(&fakeTransport{})
	defer b.Close()
	ctx := context.Background()

	assert.Equal(t, ResultAccepted, in.Accept(ctx, inbound("m1", chatA, "hi")))
	assert.Equal(t, ResultDuplicate, in.Accept(ctx, inbound("m1", chatA, "hi")))
	assert.Equal(t, ResultFiltered, in.Accept(ctx, inbound("m2", "120363000000@g.us", "group hi")))
	assert.Equal(t, ResultFiltered, in.Accept(ctx, inbound("m3", "972500000009@c.us", "operator")))
	assert.Equal(t, ResultFiltered, in.Accept(ctx, inbound("m4", "", "nobody")))
	assert.Equal(t, ResultEmpty, in.Accept(ctx, inbound("m5", chatA, "   ")))
	assert.Equal(t, ResultAccepted, in.Accept(ctx, inbound("", chatA, "no id")))

	assert.Equal(t, 1, b.Pending())
}

func TestIntake_FilteredMessagesSkipLedger(t *testing.T) {
	in, b, _ := newTestIntake(&fakeTransport{})
	defer b.Close()
	ctx := context.Background()

	in.Accept(ctx, inbound("m1", "120363000000@g.us", "group hi"))
	assert.Equal(t, 0, in.ledger.Len())
}

func TestIntake_StopKeywordRepliesImmediately(t *testing.T) {
	tr := &fakeTransport{}
	in, b, _ := newTestIntake(tr)
	defer b.Close()
	ctx := context.Background()

	assert.Equal(t, ResultStopped, in.Accept(ctx, inbound("m1", chatA, "  STOP ")))
	assert.Equal(t, ResultStopped, in.Accept(ctx, inbound("m2", chatA, "עצור")))
	assert.Equal(t, ResultDuplicate, in.Accept(ctx, inbound("m2", chatA, "עצור")))
	in.Wait()

	assert.Equal(t, 0, b.Pending())
	sent := tr.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, sentMessage{ChatID: chatA, Text: "bye"}, sent[0])
}

func TestIntake_ClosedBatcher(t *testing.T) {
	in, b, _ := newTestIntake(&fakeTransport{})
	b.Close()
	assert.Equal(t, ResultClosed, in.Accept(context.Background(), inbound("m1", chatA, "hi")))
}

func TestAgentLoop_DrainsBus(t *testing.T) {
	in, b, _ := newTestIntake(&fakeTransport{})
	defer b.Close()
	mb := bus.NewMessageBus()
	loop := NewAgentLoop(mb, in)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	mb.PublishInbound(inbound("m1", chatA, "hi"))
	mb.PublishInbound(inbound("m2", "972500000002@c.us", "hello"))
	require.Eventually(t, func() bool { return b.Pending() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, loop.IsRunning())

	cancel()
	require.NoError(t, <-done)
	assert.False(t, loop.IsRunning())
}

func TestSessionIdentity(t *testing.T) {
	id := IdentityOf(inbound("m1", " 972500000001@c.us ", "hi"))
	require.NoError(t, id.Validate())
	assert.Equal(t, "+972500000001", id.ContactKey())
	assert.Equal(t, "972500000001", id.Number())
	assert.False(t, id.IsGroup("@g.us"))
	assert.True(t, SessionIdentity{ChatID: "1203@g.us"}.IsGroup("@g.us"))
	assert.Error(t, SessionIdentity{ChatID: "@c.us"}.Validate())
}
