// Package seed generates sample data and maintains the seeded and test users.
package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/focustracker/internal"
)

type SampleUser struct {
	Name  string
	Email string
}

var SampleUsers = []SampleUser{
	{Name: "John Doe", Email: "john@example.com"},
	{Name: "Jane Smith", Email: "jane@example.com"},
	{Name: "Mike Johnson", Email: "mike@example.com"},
}

var focusTopics = []string{
	"React Development",
	"Node.js Backend",
	"Database Design",
	"UI/UX Design",
	"Code Review",
	"Documentation Writing",
	"Bug Fixing",
	"Feature Planning",
	"Testing",
	"Learning New Technology",
}

var distractionReasons = []string{"Social Media", "YouTube", "Email", "Messaging", "News"}

var seedEventTypes = []internal.EventType{
	internal.EventTabSwitch, internal.EventIdle, internal.EventWarning,
	internal.EventFocusStart, internal.EventFocusEnd, internal.EventBreak,
}

var seedSeverities = []internal.Severity{internal.SeverityLow, internal.SeverityMedium, internal.SeverityHigh}

// SeededEmails returns the addresses of SampleUsers.
func SeededEmails() []string {
	emails := make([]string, len(SampleUsers))
	for i, u := range SampleUsers {
		emails[i] = u.Email
	}
	return emails
}

// Generator produces sample sessions and events. The same seed and clock
// produce the same data, apart from record ids.
type Generator struct {
	rnd *rand.Rand
	now time.Time
}

func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now.UTC()}
}

// between returns a value in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.IntN(hi-lo+1)
}

// Sessions returns 5 to 10 completed sessions within the last 30 days.
func (g *Generator) Sessions(userID string) []internal.Session {
	n := g.between(5, 10)
	sessions := make([]internal.Session, 0, n)
	for range n {
		topic := focusTopics[g.rnd.IntN(len(focusTopics))]
		duration := g.between(300, 7200)
		daysAgo := g.rnd.IntN(30)
		start := g.now.AddDate(0, 0, -daysAgo).Add(-time.Duration(duration) * time.Second).Truncate(time.Second)
		end := start.Add(time.Duration(duration) * time.Second)

		distractions := make([]internal.Distraction, g.rnd.IntN(5))
		for i := range distractions {
			secs := g.between(30, 300)
			at := start.Add(time.Duration(g.rnd.IntN(duration)) * time.Second)
			distractions[i] = internal.Distraction{
				Time:       at.Format(time.RFC3339),
				Reason:     distractionReasons[g.rnd.IntN(len(distractionReasons))],
				Duration:   fmt.Sprintf("%dm %ds", secs/60, secs%60),
				DurationMs: int64(secs) * 1000,
			}
		}

		sessions = append(sessions, internal.Session{
			ID:           uuid.NewString(),
			UserID:       userID,
			Title:        topic,
			StartTime:    &start,
			EndTime:      &end,
			Duration:     int64(duration),
			Distractions: distractions,
			Warnings:     g.rnd.IntN(5),
			Date:         start.Format(time.DateOnly),
			CreatedAt:    end,
			UpdatedAt:    end,
		})
	}
	return sessions
}

// Events returns 2 to 8 events timed inside s.
func (g *Generator) Events(s *internal.Session) []internal.Event {
	n := g.between(2, 8)
	span := int64(s.EndTime.Sub(*s.StartTime))
	events := make([]internal.Event, 0, n)
	for range n {
		typ := seedEventTypes[g.rnd.IntN(len(seedEventTypes))]
		at := s.StartTime.Add(time.Duration(g.rnd.Int64N(span)))
		events = append(events, internal.Event{
			ID:        uuid.NewString(),
			UserID:    s.UserID,
			SessionID: s.ID,
			Type:      typ,
			Message:   fmt.Sprintf("%s event during %s", strings.ReplaceAll(strings.ToLower(string(typ)), "_", " "), s.Title),
			Meta: internal.Meta{
				"sessionTopic": internal.StringValue(s.Title),
				"duration":     internal.NumberValue(float64(s.Duration)),
			},
			Timestamp: at,
			Severity:  seedSeverities[g.rnd.IntN(len(seedSeverities))],
			Resolved:  g.rnd.Float64() > 0.3,
			CreatedAt: at,
			UpdatedAt: at,
		})
	}
	return events
}
