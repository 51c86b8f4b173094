package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dotsetgreg/leadbot/pkg/events"
	"github.com/dotsetgreg/leadbot/pkg/leads"
	"github.com/dotsetgreg/leadbot/pkg/logger"
)

var ErrNoRecord = errors.New("no JSON object in model output")

// Analysis is the structured lead profile the extraction call returns.
type Analysis struct {
	Summary    string
	Experience string
	MatchScore string
	Rejects    string
	Meeting    string
	Age        string
	Location   string
	Status     string
}

var analysisColumns = map[string]string{
	"summary":     leads.ColSummary,
	"experience":  leads.ColExperience,
	"match_score": leads.ColMatchScore,
	"rejects":     leads.ColRejects,
	"meeting":     leads.ColMeeting,
	"age":         leads.ColAge,
	"location":    leads.ColLocation,
	"status":      leads.ColStatus,
}

var knownStatuses = map[string]bool{
	leads.StatusNew:            true,
	leads.StatusInConversation: true,
	leads.StatusCallScheduled:  true,
	leads.StatusClosed:         true,
	leads.StatusNotSuitable:    true,
}

// ParseAnalysis reads the outermost {...} span of raw, ignoring any prose
// or code fences around it.
func ParseAnalysis(raw string) (Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Analysis{}, ErrNoRecord
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}

	a := Analysis{
		Summary:    stringify(obj["summary"]),
		Experience: stringify(obj["experience"]),
		MatchScore: stringify(obj["match_score"]),
		Rejects:    stringify(obj["rejects"]),
		Meeting:    stringify(obj["meeting"]),
		Age:        stringify(obj["age"]),
		Location:   stringify(obj["location"]),
		Status:     strings.ToLower(stringify(obj["status"])),
	}
	if !knownStatuses[a.Status] {
		a.Status = ""
	}
	return a, nil
}

// Fields returns the non-empty values as a partial lead update.
func (a Analysis) Fields() leads.Fields {
	values := map[string]string{
		"summary":     a.Summary,
		"experience":  a.Experience,
		"match_score": a.MatchScore,
		"rejects":     a.Rejects,
		"meeting":     a.Meeting,
		"age":         a.Age,
		"location":    a.Location,
		"status":      a.Status,
	}
	out := leads.Fields{}
	for k, v := range values {
		if v != "" {
			out[analysisColumns[k]] = v
		}
	}
	return out
}

func stringify(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if p := stringify(item); p != "" {
				parts = append(parts, p)
			}
		}
		s = strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return ""
	}
	return s
}

// analyze extracts lead fields from the session transcript, notifies the
// operator about a newly booked call and writes the fields to the store.
func (p *Pipeline) analyze(ctx context.Context, turn FlushedTurn) {
	if p.extractor == nil {
		return
	}
	turns := p.memory.Snapshot(turn.SessionID)
	if len(turns) < 2 {
		return
	}
	logFields := map[string]interface{}{
		"phone":   turn.ContactKey,
		"turn_id": turn.ID,
	}

	raw, err := p.extractor.ExtractFields(ctx, p.cfg.Prompts.Analysis, p.context.Transcript(turns))
	if err != nil {
		p.metrics.Extraction("error")
		logFields["error"] = err
		logger.WarnCF("analysis", "Extraction call failed", logFields)
		return
	}
	a, err := ParseAnalysis(raw)
	if err != nil {
		p.metrics.Extraction("malformed")
		logFields["error"] = err
		logger.WarnCF("analysis", "Extraction output discarded", logFields)
		return
	}

	if a.Meeting != "" {
		p.notifyMeeting(ctx, turn, a)
	}

	fields := a.Fields()
	if p.store != nil && len(fields) > 0 {
		if err := p.store.Update(ctx, turn.ContactKey, fields); err != nil {
			logFields["error"] = err
			logger.WarnCF("analysis", "Lead field update failed", logFields)
		}
	}
	p.metrics.Extraction("ok")
	logFields["fields"] = len(fields)
	logger.InfoCF("analysis", "Lead analyzed", logFields)

	p.publish(ctx, events.TypeLeadAnalyzed, turn.ID, events.LeadPayload{
		Phone:   turn.ContactKey,
		Name:    turn.DisplayName,
		Status:  a.Status,
		Meeting: a.Meeting,
		Fields:  fields,
	})
}
