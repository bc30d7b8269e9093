package storage

import (
	"context"

	"github.com/yourname/focustracker/internal"
)

// Every SessionRepository and EventRepository method is scoped to an owner:
// implementations reject the zero Owner and conjunct user_id = owner into
// every read, write and delete.

type SessionRepository interface {
	// CreateSession persists s. s.UserID must equal owner.
	CreateSession(ctx context.Context, owner internal.Owner, s *internal.Session) error
	// ListSessions returns the owner's sessions, newest first.
	ListSessions(ctx context.Context, owner internal.Owner) ([]internal.Session, error)
	GetSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error)
	// DeleteSession removes and returns the session matching both id and owner.
	DeleteSession(ctx context.Context, owner internal.Owner, id string) (*internal.Session, error)
}

type EventRepository interface {
	// CreateEvent persists e only if e.SessionID names a session owned by
	// owner; otherwise it returns internal.ErrSessionNotOwned.
	CreateEvent(ctx context.Context, owner internal.Owner, e *internal.Event) error
	// ListEvents returns the owner's events for one session, oldest first.
	ListEvents(ctx context.Context, owner internal.Owner, sessionID string) ([]internal.Event, error)
	ResolveEvent(ctx context.Context, owner internal.Owner, id string) (*internal.Event, error)
}

// Counts is a snapshot of table sizes.
type Counts struct {
	Users    int64 `json:"users"`
	Sessions int64 `json:"sessions"`
	Events   int64 `json:"events"`
}

// MaintenanceRepository is the unscoped surface used by the seeding and
// cleanup utilities. The HTTP API never receives one.
type MaintenanceRepository interface {
	// UpsertUser inserts u, or updates name and activity of the user with the
	// same email. u.ID is set to the stored id.
	UpsertUser(ctx context.Context, u *internal.User) error
	FindUsersByEmail(ctx context.Context, emails []string) ([]internal.User, error)
	// PurgeUsers deletes the users and every session and event they own. The
	// returned Counts hold the number of deleted rows.
	PurgeUsers(ctx context.Context, userIDs []string) (Counts, error)
	Count(ctx context.Context) (Counts, error)
}

// Repositories bundles one backend's implementations.
type Repositories struct {
	Sessions    SessionRepository
	Events      EventRepository
	Maintenance MaintenanceRepository
	closer      func() error
}

func (r *Repositories) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
