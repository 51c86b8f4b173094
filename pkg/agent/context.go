package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/leads"
)

// ContextBuilder renders session state into the text the models see.
type ContextBuilder struct {
	opening string
}

func NewContextBuilder(opening string) *ContextBuilder {
	return &ContextBuilder{opening: opening}
}

// Transcript labels each turn with its speaker, one turn per line.
func (cb *ContextBuilder) Transcript(turns []Turn) string {
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if t.Role == RoleAssistant {
			sb.WriteString("Assistant: ")
		} else {
			sb.WriteString("Customer: ")
		}
		sb.WriteString(t.Content)
	}
	return sb.String()
}

// StoreHistory builds the two-turn pseudo-history for a returning lead.
// It returns nil when the record carries no prior conversation.
func (cb *ContextBuilder) StoreHistory(l *leads.Lead) []Turn {
	if l == nil || l.MessageCount <= 0 {
		return nil
	}
	return []Turn{
		{Role: RoleCustomer, Content: cb.opening},
		{Role: RoleAssistant, Content: LeadDigest(*l)},
	}
}

// LeadDigest summarises the stored lead fields for the model.
func LeadDigest(l leads.Lead) string {
	lines := []string{"Returning customer, notes from previous conversations:"}
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, fmt.Sprintf("- %s: %s", label, v))
		}
	}
	add("Name", l.Name)
	add("Age", l.Age)
	add("Location", l.Location)
	add("Experience", l.Experience)
	add("Match score", l.MatchScore)
	add("Status", l.Status)
	add("Previous messages", strconv.Itoa(l.MessageCount))
	add("Summary", l.Summary)
	add("Objections", l.Rejects)
	add("Scheduled call", l.Meeting)
	return strings.Join(lines, "\n")
}
