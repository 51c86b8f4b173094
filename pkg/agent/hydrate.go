package agent

import (
	"context"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/logger"
)

// hydrate seeds an empty session once, from transport history first and
// the lead store second. prior is the lead as it was before this turn's
// bookkeeping.
func (p *Pipeline) hydrate(ctx context.Context, turn FlushedTurn, prior leadLookup) {
	if !p.memory.ClaimHydration(turn.SessionID) {
		return
	}

	source := "none"
	seed := p.historyTurns(ctx, turn)
	if len(seed) > 0 {
		source = "transport"
	} else if seed = p.storeTurns(ctx, turn.ContactKey, prior); len(seed) > 0 {
		source = "store"
	}
	if len(seed) > 0 {
		p.memory.Seed(turn.SessionID, seed)
	}

	logger.InfoCF("pipeline", "Session hydrated", map[string]interface{}{
		"session_id": turn.SessionID,
		"source":     source,
		"turns":      len(seed),
	})
}

func (p *Pipeline) historyTurns(ctx context.Context, turn FlushedTurn) []Turn {
	if p.transport == nil {
		return nil
	}
	items, err := p.transport.FetchHistory(ctx, turn.SessionID, p.cfg.HistoryFetchLimit)
	if err != nil {
		logger.WarnCF("pipeline", "History fetch failed", map[string]interface{}{
			"session_id": turn.SessionID,
			"error":      err,
		})
		return nil
	}

	turns := make([]Turn, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		turns = append(turns, Turn{Role: classify(item, turn.SessionID), Content: text})
	}

	return dropCurrentTurn(turns, turn.Text)
}

// dropCurrentTurn removes the trailing customer messages that are the
// fragments of the turn being processed, matching whole fragments from the end.
func dropCurrentTurn(turns []Turn, current string) []Turn {
	rest := current
	for len(turns) > 0 && rest != "" {
		last := turns[len(turns)-1]
		if last.Role != RoleCustomer {
			break
		}
		switch {
		case rest == last.Content:
			rest = ""
		case strings.HasSuffix(rest, "\n"+last.Content):
			rest = strings.TrimSuffix(rest, "\n"+last.Content)
		default:
			return turns
		}
		turns = turns[:len(turns)-1]
	}
	return turns
}

// classify trusts the direction tag and falls back to comparing the sender
// with the chat.
func classify(item HistoryItem, chatID string) Role {
	switch item.Direction {
	case DirectionOutgoing:
		return RoleAssistant
	case DirectionIncoming:
		return RoleCustomer
	}
	if item.SenderID == chatID {
		return RoleCustomer
	}
	return RoleAssistant
}

func (p *Pipeline) storeTurns(ctx context.Context, contactKey string, prior leadLookup) []Turn {
	if p.store == nil {
		return nil
	}
	if prior.done {
		return p.context.StoreHistory(prior.lead)
	}
	lead, err := p.store.Get(ctx, contactKey)
	if err != nil {
		logger.WarnCF("pipeline", "Lead lookup for hydration failed", map[string]interface{}{
			"phone": contactKey,
			"error": err,
		})
		return nil
	}
	return p.context.StoreHistory(lead)
}
