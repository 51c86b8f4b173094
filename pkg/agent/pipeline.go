package agent

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/events"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/dotsetgreg/leadbot/pkg/logger"
	"github.com/dotsetgreg/leadbot/pkg/metrics"
	"github.com/dotsetgreg/leadbot/pkg/prompts"
	"github.com/dotsetgreg/leadbot/pkg/utils"
)

const deliveryTimeout = 30 * time.Second

// Turn outcomes, as counted in metrics.
const (
	OutcomeReplied    = "replied"
	OutcomeFallback   = "fallback"
	OutcomeOffline    = "offline"
	OutcomeSendFailed = "send_failed"
)

type PipelineDeps struct {
	Memory    *SessionMemory
	Transport Transport
	// Replies may be nil; the offline reply is sent instead.
	Replies   ReplyGenerator
	Extractor FieldExtractor
	Store     leads.Store
	Notifier  Notifier
	Events    events.Publisher
	Metrics   *metrics.Metrics
}

type PipelineConfig struct {
	Prompts           prompts.Set
	AnalysisEvery     int
	HistoryFetchLimit int
	TurnTimeout       time.Duration
	Location          *time.Location
	// TypingDelay defaults to the length-based table.
	TypingDelay func(string) time.Duration
}

// Pipeline runs one flushed turn end to end. Every step logs and swallows
// its own failure so the customer always gets an answer.
type Pipeline struct {
	cfg       PipelineConfig
	memory    *SessionMemory
	transport Transport
	replies   ReplyGenerator
	extractor FieldExtractor
	store     leads.Store
	notifier  Notifier
	events    events.Publisher
	metrics   *metrics.Metrics
	context   *ContextBuilder
	now       func() time.Time

	mu        sync.Mutex
	responses map[string]int
	notified  map[string]bool
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if cfg.AnalysisEvery <= 0 {
		cfg.AnalysisEvery = 2
	}
	if cfg.HistoryFetchLimit <= 0 {
		cfg.HistoryFetchLimit = 30
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 3 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TypingDelay == nil {
		cfg.TypingDelay = TypingDelay
	}
	if deps.Memory == nil {
		deps.Memory = NewSessionMemory(0)
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &Pipeline{
		cfg:       cfg,
		memory:    deps.Memory,
		transport: deps.Transport,
		replies:   deps.Replies,
		extractor: deps.Extractor,
		store:     deps.Store,
		notifier:  deps.Notifier,
		events:    deps.Events,
		metrics:   deps.Metrics,
		context:   NewContextBuilder(cfg.Prompts.ContextOpening),
		now:       time.Now,
		responses: make(map[string]int),
		notified:  make(map[string]bool),
	}
}

// Memory exposes the session store the pipeline writes to.
func (p *Pipeline) Memory() *SessionMemory {
	return p.memory
}

// Process is the batcher's TurnHandler.
func (p *Pipeline) Process(ctx context.Context, turn FlushedTurn) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TurnTimeout)
	defer cancel()
	if turn.ContactKey == "" {
		turn.ContactKey = utils.ContactKey(turn.SessionID)
	}
	started := p.now()

	prior := p.recordLead(ctx, turn)

	if p.memory.Len(turn.SessionID) == 0 {
		p.hydrate(ctx, turn, prior)
	}
	p.memory.Append(turn.SessionID, RoleCustomer, turn.Text)

	reply, outcome := p.generate(ctx, turn)

	if err := sleepContext(ctx, p.cfg.TypingDelay(reply)); err != nil {
		logger.WarnCF("pipeline", "Typing delay interrupted", map[string]interface{}{
			"session_id": turn.SessionID,
			"turn_id":    turn.ID,
			"error":      err,
		})
	}

	if err := p.send(ctx, turn.SessionID, reply); err != nil {
		outcome = OutcomeSendFailed
		logger.ErrorCF("pipeline", "Reply delivery failed", map[string]interface{}{
			"session_id": turn.SessionID,
			"turn_id":    turn.ID,
			"error":      err,
		})
	}
	p.metrics.Turn(outcome)

	p.memory.Append(turn.SessionID, RoleAssistant, reply)

	logger.InfoCF("pipeline", "Turn processed", map[string]interface{}{
		"session_id":  turn.SessionID,
		"turn_id":     turn.ID,
		"outcome":     outcome,
		"fragments":   turn.Fragments,
		"reply_len":   len([]rune(reply)),
		"duration_ms": p.now().Sub(started).Milliseconds(),
	})

	if p.countResponse(turn.ContactKey)%p.cfg.AnalysisEvery == 0 {
		p.analyze(ctx, turn)
	}
}

type leadLookup struct {
	lead *leads.Lead
	done bool
}

// recordLead creates or refreshes the store record and returns the record
// as it was before this turn.
func (p *Pipeline) recordLead(ctx context.Context, turn FlushedTurn) leadLookup {
	if p.store == nil {
		return leadLookup{}
	}
	now := p.now().In(p.cfg.Location)
	fields := map[string]interface{}{
		"phone":   turn.ContactKey,
		"turn_id": turn.ID,
	}

	existing, err := p.store.Get(ctx, turn.ContactKey)
	if err != nil {
		fields["error"] = err
		logger.WarnCF("leads", "Lead lookup failed", fields)
		return leadLookup{}
	}

	if existing == nil {
		lead := leads.NewLead(turn.SessionID, turn.DisplayName, now)
		lead.MessageCount = 1
		lead.LastMessageTime = now.Format(leads.TimeLayout)
		if err := p.store.Create(ctx, lead); err != nil {
			fields["error"] = err
			logger.WarnCF("leads", "Lead create failed", fields)
			return leadLookup{done: true}
		}
		logger.InfoCF("leads", "Lead created", fields)
		p.publish(ctx, events.TypeLeadCreated, turn.ID, events.LeadPayload{
			Phone:  lead.Phone,
			Name:   lead.Name,
			Status: lead.Status,
		})
		return leadLookup{done: true}
	}

	update := leads.Fields{
		leads.ColMessageCount: strconv.Itoa(existing.MessageCount + 1),
		leads.ColLastMessage:  now.Format(leads.TimeLayout),
	}
	if existing.Status == "" || existing.Status == leads.StatusNew {
		update[leads.ColStatus] = leads.StatusInConversation
	}
	if existing.Name == "" && turn.DisplayName != "" {
		update[leads.ColName] = turn.DisplayName
	}
	if err := p.store.Update(ctx, turn.ContactKey, update); err != nil {
		fields["error"] = err
		logger.WarnCF("leads", "Lead update failed", fields)
	}
	return leadLookup{lead: existing, done: true}
}

func (p *Pipeline) generate(ctx context.Context, turn FlushedTurn) (string, string) {
	if p.replies == nil {
		return p.cfg.Prompts.OfflineReply, OutcomeOffline
	}
	reply, err := p.replies.GenerateReply(ctx, p.cfg.Prompts.System, p.memory.Snapshot(turn.SessionID))
	if err == nil && strings.TrimSpace(reply) != "" {
		return reply, OutcomeReplied
	}
	if err != nil {
		logger.ErrorCF("pipeline", "Reply generation failed", map[string]interface{}{
			"session_id": turn.SessionID,
			"turn_id":    turn.ID,
			"error":      err,
		})
	} else {
		logger.WarnCF("pipeline", "Model returned an empty reply", map[string]interface{}{
			"session_id": turn.SessionID,
			"turn_id":    turn.ID,
		})
	}
	return p.cfg.Prompts.FallbackReply, OutcomeFallback
}

// send runs on its own deadline, detached from the turn budget.
func (p *Pipeline) send(ctx context.Context, chatID, text string) error {
	if p.transport == nil {
		return nil
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()
	return p.transport.Send(sendCtx, chatID, text)
}

func (p *Pipeline) countResponse(contactKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[contactKey]++
	return p.responses[contactKey]
}

// Responses reports how many replies a contact has received since start.
func (p *Pipeline) Responses(contactKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.responses[contactKey]
}

func (p *Pipeline) publish(ctx context.Context, eventType, correlationID string, payload events.LeadPayload) {
	if err := p.events.Publish(ctx, eventType, correlationID, payload); err != nil {
		logger.WarnCF("events", "Event publish failed", map[string]interface{}{
			"type":  eventType,
			"phone": payload.Phone,
			"error": err,
		})
	}
}
