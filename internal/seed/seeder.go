package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
)

// TestUserEmail is the account Init provisions.
const TestUserEmail = "test@focusapp.com"

// Seeder writes sample data. Users are managed through the unscoped
// maintenance repository; sessions and events go through the owner-scoped
// stores like any API write.
type Seeder struct {
	repos  *storage.Repositories
	gen    *Generator
	logger internal.Logger
}

func NewSeeder(repos *storage.Repositories, gen *Generator, logger internal.Logger) *Seeder {
	return &Seeder{repos: repos, gen: gen, logger: logger}
}

// SeedResult reports what Seed wrote and the totals afterwards.
type SeedResult struct {
	Users   []internal.User `json:"users"`
	Cleared storage.Counts  `json:"cleared"`
	Created storage.Counts  `json:"created"`
	Totals  storage.Counts  `json:"totals"`
}

// Seed replaces the sample users and their data. Other users are untouched.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	cleared, _, err := s.Clear(ctx)
	if err != nil {
		return nil, err
	}
	res := &SeedResult{Cleared: cleared}

	for _, sample := range SampleUsers {
		user := &internal.User{Name: sample.Name, Email: sample.Email, IsActive: true}
		if err := s.repos.Maintenance.UpsertUser(ctx, user); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", sample.Email, err)
		}
		res.Users = append(res.Users, *user)
		res.Created.Users++

		owner, err := internal.NewOwner(user.ID)
		if err != nil {
			return nil, err
		}
		sessions := s.gen.Sessions(user.ID)
		for i := range sessions {
			session := &sessions[i]
			if err := s.repos.Sessions.CreateSession(ctx, owner, session); err != nil {
				return nil, fmt.Errorf("seed session: %w", err)
			}
			res.Created.Sessions++
			for _, event := range s.gen.Events(session) {
				if err := s.repos.Events.CreateEvent(ctx, owner, &event); err != nil {
					return nil, fmt.Errorf("seed event: %w", err)
				}
				res.Created.Events++
			}
		}
		s.logger.Infof("seeded %d sessions for %s", len(sessions), user.Email)
	}

	if res.Totals, err = s.Stats(ctx); err != nil {
		return nil, err
	}
	return res, nil
}

// Clear removes the sample users with all their sessions and events. It
// returns the deleted counts and what remains.
func (s *Seeder) Clear(ctx context.Context) (deleted, remaining storage.Counts, err error) {
	users, err := s.repos.Maintenance.FindUsersByEmail(ctx, SeededEmails())
	if err != nil {
		return deleted, remaining, err
	}
	if len(users) > 0 {
		ids := make([]string, len(users))
		for i, u := range users {
			ids[i] = u.ID
		}
		if deleted, err = s.repos.Maintenance.PurgeUsers(ctx, ids); err != nil {
			return deleted, remaining, err
		}
		s.logger.Infof("cleared %d seeded users, %d sessions, %d events", deleted.Users, deleted.Sessions, deleted.Events)
	}
	remaining, err = s.Stats(ctx)
	return deleted, remaining, err
}

func (s *Seeder) Stats(ctx context.Context) (storage.Counts, error) {
	return s.repos.Maintenance.Count(ctx)
}

// Init ensures the test user exists and records one 30-minute session with a
// FOCUS_START event for it, as a smoke test of the write path.
func (s *Seeder) Init(ctx context.Context) (storage.Counts, error) {
	user := &internal.User{Name: "Test User", Email: TestUserEmail, IsActive: true}
	if err := s.repos.Maintenance.UpsertUser(ctx, user); err != nil {
		return storage.Counts{}, err
	}
	owner, err := internal.NewOwner(user.ID)
	if err != nil {
		return storage.Counts{}, err
	}

	end := s.gen.now
	start := end.Add(-30 * time.Minute)
	session := &internal.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		Title:        "Database Testing",
		StartTime:    &start,
		EndTime:      &end,
		Duration:     1800,
		Distractions: []internal.Distraction{},
		Date:         start.Format(time.DateOnly),
		CreatedAt:    end,
		UpdatedAt:    end,
	}
	if err := s.repos.Sessions.CreateSession(ctx, owner, session); err != nil {
		return storage.Counts{}, err
	}
	event := &internal.Event{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		SessionID: session.ID,
		Type:      internal.EventFocusStart,
		Message:   "User started focusing on database testing",
		Meta:      internal.Meta{},
		Timestamp: start,
		Severity:  internal.SeverityLow,
		CreatedAt: end,
		UpdatedAt: end,
	}
	if err := s.repos.Events.CreateEvent(ctx, owner, event); err != nil {
		return storage.Counts{}, err
	}
	return s.Stats(ctx)
}
