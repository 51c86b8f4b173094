package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/google/uuid"
)

// Fragment is one customer message waiting to be folded into a turn.
type Fragment struct {
	SessionID   string
	ContactKey  string
	DisplayName string
	Text        string
}

// FlushedTurn is the combined text of every fragment buffered for a session
// until its quiet window expired.
type FlushedTurn struct {
	ID          string
	SessionID   string
	ContactKey  string
	DisplayName string
	Text        string
	Fragments   int
	FlushedAt   time.Time
}

type TurnHandler func(ctx context.Context, turn FlushedTurn)

type pendingTurn struct {
	fragments   []string
	contactKey  string
	displayName string
	timer       *time.Timer
	gen         uint64
}

// Batcher debounces fragments per session. Each new fragment restarts the
// session's timer; when it fires the buffer is detached and handed to the
// handler on its own goroutine. Flushed turns of one session run in flush
// order, one at a time.
type Batcher struct {
	wait    time.Duration
	handler TurnHandler

	mu      sync.Mutex
	pending map[string]*pendingTurn
	lanes   map[string]chan struct{}
	closed  bool

	// inflight counts dispatched turns; idle is closed when it drops to zero.
	inflight int
	idle     chan struct{}
}

func NewBatcher(wait time.Duration, handler TurnHandler) *Batcher {
	if wait <= 0 {
		wait = 4 * time.Second
	}
	return &Batcher{
		wait:    wait,
		handler: handler,
		pending: make(map[string]*pendingTurn),
		lanes:   make(map[string]chan struct{}),
	}
}

// Add buffers f and resets its session's timer. It reports false once the
// batcher is closed.
func (b *Batcher) Add(f Fragment) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}

	p, ok := b.pending[f.SessionID]
	if !ok {
		p = &pendingTurn{}
		b.pending[f.SessionID] = p
	}
	p.fragments = append(p.fragments, f.Text)
	p.contactKey = f.ContactKey
	if f.DisplayName != "" {
		p.displayName = f.DisplayName
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen, sessionID := p.gen, f.SessionID
	p.timer = time.AfterFunc(b.wait, func() { b.flush(sessionID, gen) })

	logger.DebugCF("batcher", "Fragment buffered", map[string]interface{}{
		"session_id": f.SessionID,
		"fragments":  len(p.fragments),
	})
	return true
}

// flush runs on the timer goroutine. A timer that lost the race against a
// newer fragment sees a different generation and does nothing.
func (b *Batcher) flush(sessionID string, gen uint64) {
	b.mu.Lock()
	p, ok := b.pending[sessionID]
	if b.closed || !ok || p.gen != gen {
		b.mu.Unlock()
		return
	}
	delete(b.pending, sessionID)

	prev := b.lanes[sessionID]
	done := make(chan struct{})
	b.lanes[sessionID] = done
	if b.inflight == 0 {
		b.idle = make(chan struct{})
	}
	b.inflight++
	b.mu.Unlock()

	turn := FlushedTurn{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		ContactKey:  p.contactKey,
		DisplayName: p.displayName,
		Text:        strings.Join(p.fragments, "\n"),
		Fragments:   len(p.fragments),
		FlushedAt:   time.Now(),
	}
	go b.dispatch(turn, prev, done)
}

func (b *Batcher) dispatch(turn FlushedTurn, prev <-chan struct{}, done chan struct{}) {
	defer func() {
		close(done)
		b.mu.Lock()
		if b.lanes[turn.SessionID] == done {
			delete(b.lanes, turn.SessionID)
		}
		if b.inflight--; b.inflight == 0 {
			close(b.idle)
		}
		b.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("batcher", "Turn handler panicked", map[string]interface{}{
				"session_id": turn.SessionID,
				"turn_id":    turn.ID,
				"panic":      r,
			})
		}
	}()

	if prev != nil {
		<-prev
	}
	logger.InfoCF("batcher", "Turn flushed", map[string]interface{}{
		"session_id": turn.SessionID,
		"turn_id":    turn.ID,
		"fragments":  turn.Fragments,
	})
	b.handler(context.Background(), turn)
}

// Pending reports how many sessions have buffered fragments.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close stops every pending timer and drops the buffered fragments.
// Turns already flushed keep running; use Wait to drain them.
func (b *Batcher) Close() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	b.closed = true
	dropped := 0
	for id, p := range b.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		dropped += len(p.fragments)
		delete(b.pending, id)
	}
	return dropped
}

// Wait blocks until every flushed turn has finished or ctx is done.
func (b *Batcher) Wait(ctx context.Context) error {
	b.mu.Lock()
	if b.inflight == 0 {
		b.mu.Unlock()
		return nil
	}
	idle := b.idle
	b.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
