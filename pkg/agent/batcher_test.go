package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type turnRecorder struct {
	mu    sync.Mutex
	turns []FlushedTurn
}

func (r *turnRecorder) handle(_ context.Context, turn FlushedTurn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
}

func (r *turnRecorder) snapshot() []FlushedTurn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FlushedTurn(nil), r.turns...)
}

func fragment(session, text string) Fragment {
	return Fragment{SessionID: session, ContactKey: "+1", DisplayName: "Dana", Text: text}
}

func drain(t *testing.T, b *Batcher) {
	t.Helper()
	b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Wait(ctx))
}

func TestBatcher_CoalescesFragmentsInsideWindow(t *testing.T) {
	rec := &turnRecorder{}
	b := NewBatcher(60*time.Millisecond, rec.handle)

	for _, text := range []string{"f1", "f2", "f3"} {
		require.True(t, b.Add(fragment("s1", text)))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)
	drain(t, b)

	turns := rec.snapshot()
	require.Len(t, turns, 1)
	assert.Equal(t, "f1\nf2\nf3", turns[0].Text)
	assert.Equal(t, 3, turns[0].Fragments)
	assert.Equal(t, "Dana", turns[0].DisplayName)
	assert.NotEmpty(t, turns[0].ID)
}

func TestBatcher_GapLongerThanWindowSplitsTurns(t *testing.T) {
	rec := &turnRecorder{}
	b := NewBatcher(40*time.Millisecond, rec.handle)

	b.Add(fragment("s1", "f1"))
	time.Sleep(5 * time.Millisecond)
	b.Add(fragment("s1", "f2"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	b.Add(fragment("s1", "f3"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	drain(t, b)

	turns := rec.snapshot()
	assert.Equal(t, "f1\nf2", turns[0].Text)
	assert.Equal(t, "f3", turns[1].Text)
}

func TestBatcher_SingleFragmentPassesThrough(t *testing.T) {
	rec := &turnRecorder{}
	b := NewBatcher(20*time.Millisecond, rec.handle)

	b.Add(fragment("s1", "line one\nline two"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	drain(t, b)

	assert.Equal(t, "line one\nline two", rec.snapshot()[0].Text)
}

func TestBatcher_SessionsFlushIndependently(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	done := map[string]bool{}
	b := NewBatcher(20*time.Millisecond, func(_ context.Context, turn FlushedTurn) {
		if turn.SessionID == "slow" {
			<-release
		}
		mu.Lock()
		done[turn.SessionID] = true
		mu.Unlock()
	})

	b.Add(fragment("slow", "a"))
	b.Add(fragment("fast", "b"))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return done["fast"]
	}, time.Second, 5*time.Millisecond)

	close(release)
	drain(t, b)
	assert.True(t, done["slow"])
}

func TestBatcher_TurnsOfOneSessionRunInOrder(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	b := NewBatcher(15*time.Millisecond, func(_ context.Context, turn FlushedTurn) {
		if turn.Text == "first" {
			<-release
		}
		mu.Lock()
		order = append(order, turn.Text)
		mu.Unlock()
	})

	b.Add(fragment("s1", "first"))
	time.Sleep(50 * time.Millisecond)
	b.Add(fragment("s1", "second"))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.Empty(t, order, "second turn must wait for the first")
	mu.Unlock()

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 5*time.Millisecond)
	drain(t, b)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBatcher_CloseDropsPending(t *testing.T) {
	rec := &turnRecorder{}
	b := NewBatcher(time.Hour, rec.handle)

	b.Add(fragment("s1", "a"))
	b.Add(fragment("s1", "b"))
	b.Add(fragment("s2", "c"))
	assert.Equal(t, 2, b.Pending())

	assert.Equal(t, 3, b.Close())
	assert.False(t, b.Add(fragment("s1", "late")))
	assert.Equal(t, 0, b.Pending())
	assert.Empty(t, rec.snapshot())
}

func TestBatcher_HandlerPanicFreesLane(t *testing.T) {
	rec := &turnRecorder{}
	calls := 0
	b := NewBatcher(15*time.Millisecond, func(ctx context.Context, turn FlushedTurn) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		rec.handle(ctx, turn)
	})

	b.Add(fragment("s1", "a"))
	time.Sleep(50 * time.Millisecond)
	b.Add(fragment("s1", "b"))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	drain(t, b)
	assert.Equal(t, "b", rec.snapshot()[0].Text)
}

func TestBatcher_WaitTimesOutWithoutLeaking(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	b := NewBatcher(10*time.Millisecond, func(context.Context, FlushedTurn) {
		close(started)
		<-release
	})

	require.True(t, b.Add(fragment("s1", "hi")))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Wait(ctx), context.DeadlineExceeded)

	close(release)
	drain(t, b)
	assert.NoError(t, b.Wait(context.Background()))
}
