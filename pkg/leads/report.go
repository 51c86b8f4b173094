package leads

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

type Statistics struct {
	Total          int
	ByStatus       map[string]int
	AverageScore   float64
	ScheduledCalls int
	MessagesTotal  int
}

// Summarize computes totals over a lead list. Leads without a parseable
// score are left out of the average.
func Summarize(all []Lead) Statistics {
	st := Statistics{ByStatus: map[string]int{}}
	var scoreSum float64
	var scored int
	for _, l := range all {
		st.Total++
		status := strings.TrimSpace(l.Status)
		if status == "" {
			status = StatusNew
		}
		st.ByStatus[status]++
		if strings.TrimSpace(l.Meeting) != "" {
			st.ScheduledCalls++
		}
		st.MessagesTotal += l.MessageCount
		if v, err := strconv.ParseFloat(strings.TrimSpace(l.MatchScore), 64); err == nil {
			scoreSum += v
			scored++
		}
	}
	if scored > 0 {
		st.AverageScore = scoreSum / float64(scored)
	}
	return st
}

// Statuses returns the status keys sorted for display.
func (s Statistics) Statuses() []string {
	keys := make([]string, 0, len(s.ByStatus))
	for k := range s.ByStatus {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DueForFollowup returns open leads whose reminder date is today or earlier.
func DueForFollowup(all []Lead, now time.Time) []Lead {
	today := now.Format("2006-01-02")
	var due []Lead
	for _, l := range all {
		if l.Status == StatusClosed {
			continue
		}
		d := strings.TrimSpace(l.ReminderDate)
		if len(d) < 10 {
			continue
		}
		if d[:10] <= today {
			due = append(due, l)
		}
	}
	return due
}
