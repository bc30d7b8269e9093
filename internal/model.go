package internal

import (
	"fmt"
	"time"
)

// DefaultSessionTitle is used when a session is created without a title.
const DefaultSessionTitle = "Focus Session"

// MaxEventMessageLength bounds Event.Message, counted in characters.
const MaxEventMessageLength = 500

type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Distraction is one interruption inside a session. It has no identity of its
// own and is only ever stored embedded in its Session.
type Distraction struct {
	Time       string `json:"time,omitempty"` // RFC 3339, or a client clock string kept as sent
	Reason     string `json:"reason"`
	Duration   string `json:"duration"`   // e.g. "5m 30s"
	DurationMs int64  `json:"durationMs"` // milliseconds
}

// At parses Time when it holds an RFC 3339 timestamp.
func (d Distraction) At() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, d.Time)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type Session struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user"`
	Title        string        `json:"title"`
	StartTime    *time.Time    `json:"startTime,omitempty"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	Duration     int64         `json:"duration"` // seconds
	Distractions []Distraction `json:"distractions"`
	Warnings     int           `json:"warnings"`
	Date         string        `json:"date,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Check reports violations of the session's temporal consistency. Storage does
// not enforce these; an empty result means the session is consistent.
func (s *Session) Check() []string {
	var problems []string
	if s.Warnings < 0 {
		problems = append(problems, fmt.Sprintf("warnings is negative (%d)", s.Warnings))
	}
	if s.StartTime == nil || s.EndTime == nil {
		return problems
	}
	if s.EndTime.Before(*s.StartTime) {
		problems = append(problems, "endTime is before startTime")
	}
	if want := int64(s.EndTime.Sub(*s.StartTime) / time.Second); s.Duration != want {
		problems = append(problems, fmt.Sprintf("duration %ds does not match endTime-startTime (%ds)", s.Duration, want))
	}
	for i, d := range s.Distractions {
		at, ok := d.At()
		if !ok {
			continue
		}
		if at.Before(*s.StartTime) || at.After(*s.EndTime) {
			problems = append(problems, fmt.Sprintf("distraction %d at %s is outside the session", i, d.Time))
		}
	}
	return problems
}

type EventType string

const (
	EventTabSwitch  EventType = "TAB_SWITCH"
	EventIdle       EventType = "IDLE"
	EventBlockedURL EventType = "BLOCKED_URL"
	EventWarning    EventType = "WARNING"
	EventLock       EventType = "LOCK"
	EventFocusStart EventType = "FOCUS_START"
	EventFocusEnd   EventType = "FOCUS_END"
	EventBreak      EventType = "BREAK"
)

// EventTypes lists every accepted event type.
var EventTypes = []EventType{
	EventTabSwitch, EventIdle, EventBlockedURL, EventWarning,
	EventLock, EventFocusStart, EventFocusEnd, EventBreak,
}

func (t EventType) IsValid() bool {
	for _, v := range EventTypes {
		if t == v {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (s Severity) IsValid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	SessionID string    `json:"session"`
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Meta      Meta      `json:"meta"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CheckEnums rejects an event whose type or severity is outside the closed sets.
func (e *Event) CheckEnums() error {
	if !e.Type.IsValid() {
		return Rejected(fmt.Sprintf("invalid event type %q", e.Type))
	}
	if !e.Severity.IsValid() {
		return Rejected(fmt.Sprintf("invalid severity %q", e.Severity))
	}
	return nil
}
