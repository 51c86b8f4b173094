package agent

import (
	"context"
	"sync"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/prompts"
)

type sentMessage struct {
	ChatID string
	Text   string
}

type fakeTransport struct {
	mu           sync.Mutex
	sent         []sentMessage
	history      map[string][]HistoryItem
	historyCalls int
	unanswered   []bus.InboundMessage
	sendErr      error
	fetchErr     error
	panicOnFetch bool
}

func (f *fakeTransport) Send(_ context.Context, chatID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text})
	return f.sendErr
}

func (f *fakeTransport) FetchHistory(_ context.Context, chatID string, limit int) ([]HistoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	items := f.history[chatID]
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (f *fakeTransport) FetchUnanswered(context.Context, time.Duration) ([]bus.InboundMessage, error) {
	if f.panicOnFetch {
		panic("transport exploded")
	}
	return f.unanswered, f.fetchErr
}

func (f *fakeTransport) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeReplies struct {
	mu    sync.Mutex
	reply string
	err   error
	seen  [][]Turn
}

func (f *fakeReplies) GenerateReply(_ context.Context, _ string, turns []Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, turns)
	return f.reply, f.err
}

type fakeExtractor struct {
	mu    sync.Mutex
	raw   string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractFields(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.raw, f.err
}

func (f *fakeExtractor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []MeetingNotice
}

func (f *fakeNotifier) NotifyMeeting(_ context.Context, n MeetingNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

func testPrompts() prompts.Set {
	return prompts.Set{
		System:         "be nice",
		Analysis:       "extract",
		FallbackReply:  "sorry, try again",
		OfflineReply:   "welcome",
		StopReply:      "bye",
		ContextOpening: "hey",
	}
}

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Prompts:       testPrompts(),
		AnalysisEvery: 2,
		TurnTimeout:   5 * time.Second,
		TypingDelay:   func(string) time.Duration { return 0 },
	}
}

func testTurn(chatID, text string) FlushedTurn {
	return FlushedTurn{
		ID:          "turn-1",
		SessionID:   chatID,
		ContactKey:  "+" + chatID[:len(chatID)-len("@c.us")],
		DisplayName: "Dana",
		Text:        text,
		Fragments:   1,
	}
}
