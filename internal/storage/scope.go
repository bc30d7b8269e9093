package storage

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yourname/focustracker/internal"
)

// checkSessionWrite holds the checks every backend applies before a session
// write: a valid owner that matches the record, and a non-negative warning
// counter.
func checkSessionWrite(owner internal.Owner, s *internal.Session) error {
	if err := owner.Check(); err != nil {
		return err
	}
	if s == nil || s.ID == "" {
		return internal.Rejected("session id is required")
	}
	if !owner.Owns(s.UserID) {
		return internal.Rejected("session user does not match the caller")
	}
	if s.Warnings < 0 {
		return internal.Rejected("warnings must not be negative")
	}
	for name, t := range map[string]*time.Time{"startTime": s.StartTime, "endTime": s.EndTime, "createdAt": &s.CreatedAt, "updatedAt": &s.UpdatedAt} {
		if t != nil {
			if err := checkStorableTime(name, *t); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkEventWrite(owner internal.Owner, e *internal.Event) error {
	if err := owner.Check(); err != nil {
		return err
	}
	if e == nil || e.ID == "" {
		return internal.Rejected("event id is required")
	}
	if !owner.Owns(e.UserID) {
		return internal.Rejected("event user does not match the caller")
	}
	if strings.TrimSpace(e.SessionID) == "" {
		return internal.Rejected("sessionId is required")
	}
	if err := e.CheckEnums(); err != nil {
		return err
	}
	if n := utf8.RuneCountInString(e.Message); n > internal.MaxEventMessageLength {
		return internal.Rejected(fmt.Sprintf("message cannot exceed %d characters", internal.MaxEventMessageLength))
	}
	for name, t := range map[string]time.Time{"timestamp": e.Timestamp, "createdAt": e.CreatedAt, "updatedAt": e.UpdatedAt} {
		if err := checkStorableTime(name, t); err != nil {
			return err
		}
	}
	return nil
}

// Times are stored as int64 Unix nanoseconds in SQLite; every backend
// accepts the same range so they sort the same.
var (
	minStorableTime = time.Unix(0, math.MinInt64).UTC()
	maxStorableTime = time.Unix(0, math.MaxInt64).UTC()
)

func checkStorableTime(field string, t time.Time) error {
	if t.Before(minStorableTime) || t.After(maxStorableTime) {
		return internal.Rejected(fmt.Sprintf("%s must be between %s and %s", field,
			minStorableTime.Format(time.DateOnly), maxStorableTime.Format(time.DateOnly)))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneSession(s *internal.Session) internal.Session {
	out := *s
	if s.Distractions != nil {
		out.Distractions = append([]internal.Distraction(nil), s.Distractions...)
	} else {
		out.Distractions = []internal.Distraction{}
	}
	return out
}

func cloneEvent(e *internal.Event) internal.Event {
	out := *e
	out.Meta = e.Meta.Clone()
	return out
}
