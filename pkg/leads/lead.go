// Package leads models the lead sheet and the stores that persist it.
package leads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dotsetgreg/leadbot/pkg/utils"
)

// Lead statuses as written to the store.
const (
	StatusNew            = "new"
	StatusInConversation = "in conversation"
	StatusCallScheduled  = "call scheduled"
	StatusClosed         = "closed"
	StatusNotSuitable    = "not suitable"
)

const SourceWhatsApp = "WhatsApp"

// Column names, in sheet order (A..S).
const (
	ColTimestamp    = "timestamp"
	ColSource       = "source"
	ColName         = "name"
	ColPhone        = "phone"
	ColStatus       = "status"
	ColMatchScore   = "match_score"
	ColDestination  = "destination"
	ColExperience   = "experience"
	ColGoals        = "goals"
	ColSummary      = "conversation_summary"
	ColReminderDate = "reminder_date"
	ColNotes        = "notes"
	ColWhatsAppID   = "whatsapp_id"
	ColLastMessage  = "last_message_time"
	ColMessageCount = "message_count"
	ColRejects      = "rejects"
	ColMeeting      = "meeting"
	ColAge          = "age"
	ColLocation     = "location"
)

var Columns = []string{
	ColTimestamp, ColSource, ColName, ColPhone, ColStatus, ColMatchScore, ColDestination,
	ColExperience, ColGoals, ColSummary, ColReminderDate, ColNotes, ColWhatsAppID,
	ColLastMessage, ColMessageCount, ColRejects, ColMeeting, ColAge, ColLocation,
}

const TimeLayout = "2006-01-02 15:04:05"

var ErrUnknownField = errors.New("unknown lead field")

type Lead struct {
	Timestamp       string
	Source          string
	Name            string
	Phone           string
	Status          string
	MatchScore      string
	Destination     string
	Experience      string
	Goals           string
	Summary         string
	ReminderDate    string
	Notes           string
	WhatsAppID      string
	LastMessageTime string
	MessageCount    int
	Rejects         string
	Meeting         string
	Age             string
	Location        string
}

// Fields is a partial update keyed by column name.
type Fields map[string]string

func (f Fields) Validate() error {
	for k := range f {
		if columnIndex(k) < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownField, k)
		}
	}
	return nil
}

// Store is a phone-keyed lead table. Get returns (nil, nil) when absent.
type Store interface {
	Get(ctx context.Context, phone string) (*Lead, error)
	Create(ctx context.Context, lead Lead) error
	Update(ctx context.Context, phone string, fields Fields) error
	RowIndex(ctx context.Context, phone string) (int, bool, error)
	List(ctx context.Context) ([]Lead, error)
	Close() error
}

// Linker is implemented by stores that can address a row for a human.
type Linker interface {
	RowLink(row int) string
}

// NewLead seeds a record for a first-contact chat.
func NewLead(chatID, name string, now time.Time) Lead {
	return Lead{
		Timestamp:    now.Format(TimeLayout),
		Source:       SourceWhatsApp,
		Name:         name,
		Phone:        utils.ContactKey(chatID),
		Status:       StatusNew,
		MatchScore:   "0",
		WhatsAppID:   chatID,
		MessageCount: 0,
	}
}

func columnIndex(name string) int {
	for i, c := range Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a column.
func (l Lead) Get(col string) string {
	switch col {
	case ColTimestamp:
		return l.Timestamp
	case ColSource:
		return l.Source
	case ColName:
		return l.Name
	case ColPhone:
		return l.Phone
	case ColStatus:
		return l.Status
	case ColMatchScore:
		return l.MatchScore
	case ColDestination:
		return l.Destination
	case ColExperience:
		return l.Experience
	case ColGoals:
		return l.Goals
	case ColSummary:
		return l.Summary
	case ColReminderDate:
		return l.ReminderDate
	case ColNotes:
		return l.Notes
	case ColWhatsAppID:
		return l.WhatsAppID
	case ColLastMessage:
		return l.LastMessageTime
	case ColMessageCount:
		return strconv.Itoa(l.MessageCount)
	case ColRejects:
		return l.Rejects
	case ColMeeting:
		return l.Meeting
	case ColAge:
		return l.Age
	case ColLocation:
		return l.Location
	}
	return ""
}

// Set assigns one column. Unknown columns are ignored.
func (l *Lead) Set(col, value string) {
	switch col {
	case ColTimestamp:
		l.Timestamp = value
	case ColSource:
		l.Source = value
	case ColName:
		l.Name = value
	case ColPhone:
		l.Phone = value
	case ColStatus:
		l.Status = value
	case ColMatchScore:
		l.MatchScore = value
	case ColDestination:
		l.Destination = value
	case ColExperience:
		l.Experience = value
	case ColGoals:
		l.Goals = value
	case ColSummary:
		l.Summary = value
	case ColReminderDate:
		l.ReminderDate = value
	case ColNotes:
		l.Notes = value
	case ColWhatsAppID:
		l.WhatsAppID = value
	case ColLastMessage:
		l.LastMessageTime = value
	case ColMessageCount:
		n, _ := strconv.Atoi(strings.TrimSpace(value))
		l.MessageCount = n
	case ColRejects:
		l.Rejects = value
	case ColMeeting:
		l.Meeting = value
	case ColAge:
		l.Age = value
	case ColLocation:
		l.Location = value
	}
}

func (l *Lead) Apply(fields Fields) {
	for k, v := range fields {
		l.Set(k, v)
	}
}

// Row renders the lead in column order.
func (l Lead) Row() []string {
	row := make([]string, len(Columns))
	for i, c := range Columns {
		row[i] = l.Get(c)
	}
	return row
}

// FromRow parses a sheet row; short rows leave trailing columns empty.
func FromRow(row []string) Lead {
	var l Lead
	for i, c := range Columns {
		if i < len(row) {
			l.Set(c, strings.TrimSpace(row[i]))
		}
	}
	return l
}

// SamePhone compares contact keys ignoring formatting, since sheets often
// drop the leading "+".
func SamePhone(a, b string) bool {
	na, nb := utils.NormalizeNumber(a), utils.NormalizeNumber(b)
	return na != "" && na == nb
}
