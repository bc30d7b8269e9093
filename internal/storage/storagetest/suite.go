// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
)

// Opener returns fresh, empty repositories. Cleanup is registered on t.
type Opener func(t *testing.T) *storage.Repositories

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// Run executes the conformance suite against open.
func Run(t *testing.T, open Opener) {
	tests := map[string]func(t *testing.T, r *storage.Repositories){
		"SessionRoundTrip":          testSessionRoundTrip,
		"ListSessionsNewestFirst":   testListSessionsNewestFirst,
		"ListSessionsEmpty":         testListSessionsEmpty,
		"OwnershipIsolation":        testOwnershipIsolation,
		"DeleteSession":             testDeleteSession,
		"CreateEventRequiresOwner":  testCreateEventRequiresOwnedSession,
		"EnumerationEnforcement":    testEnumerationEnforcement,
		"ChronologicalEvents":       testChronologicalEvents,
		"TimestampRange":            testTimestampRange,
		"Scenario":                  testScenario,
		"ResolveEvent":              testResolveEvent,
		"OrphanedEventsTolerated":   testOrphanedEvents,
		"ZeroOwnerRejected":         testZeroOwner,
		"MaintenanceUpsertAndPurge": testMaintenance,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func NewSession(owner internal.Owner, createdAt time.Time) *internal.Session {
	start := createdAt.Add(-30 * time.Minute)
	end := createdAt
	return &internal.Session{
		ID:           uuid.NewString(),
		UserID:       owner.ID(),
		Title:        internal.DefaultSessionTitle,
		StartTime:    &start,
		EndTime:      &end,
		Duration:     1800,
		Distractions: []internal.Distraction{},
		Date:         start.Format("2006-01-02"),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func NewEvent(owner internal.Owner, sessionID string, typ internal.EventType, ts time.Time) *internal.Event {
	return &internal.Event{
		ID:        uuid.NewString(),
		UserID:    owner.ID(),
		SessionID: sessionID,
		Type:      typ,
		Meta:      internal.Meta{},
		Timestamp: ts,
		Severity:  internal.SeverityLow,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func mustCreateSession(t *testing.T, r *storage.Repositories, owner internal.Owner, createdAt time.Time) *internal.Session {
	t.Helper()
	s := NewSession(owner, createdAt)
	require.NoError(t, r.Sessions.CreateSession(context.Background(), owner, s))
	return s
}

func sessionIDs(sessions []internal.Session) []string {
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

func eventTypes(events []internal.Event) []internal.EventType {
	types := make([]internal.EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func testSessionRoundTrip(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s := NewSession(owner, t0)
	at := t0.Add(-10 * time.Minute)
	s.Title = "Deep work"
	s.Warnings = 2
	s.Distractions = []internal.Distraction{{Time: at.Format(time.RFC3339), Reason: "Email", Duration: "1m 30s", DurationMs: 90000}}
	require.NoError(t, r.Sessions.CreateSession(ctx, owner, s))

	got, err := r.Sessions.GetSession(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "Deep work", got.Title)
	assert.Equal(t, 2, got.Warnings)
	assert.Equal(t, int64(1800), got.Duration)
	require.NotNil(t, got.StartTime)
	assert.True(t, got.StartTime.Equal(*s.StartTime))
	assert.True(t, got.CreatedAt.Equal(t0))
	require.Len(t, got.Distractions, 1)
	assert.Equal(t, "Email", got.Distractions[0].Reason)
	assert.Equal(t, int64(90000), got.Distractions[0].DurationMs)
	gotAt, ok := got.Distractions[0].At()
	require.True(t, ok)
	assert.True(t, gotAt.Equal(at))
	assert.Empty(t, got.Check())

	negative := NewSession(owner, t0)
	negative.Warnings = -1
	err = r.Sessions.CreateSession(ctx, owner, negative)
	assert.True(t, errors.Is(err, internal.ErrValidation), "got %v", err)

	foreign := NewSession(internal.MustOwner("u2"), t0)
	err = r.Sessions.CreateSession(ctx, owner, foreign)
	assert.True(t, errors.Is(err, internal.ErrValidation), "session stamped for another user must be rejected")
}

func testListSessionsNewestFirst(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	middle := mustCreateSession(t, r, owner, t0.Add(time.Hour))
	oldest := mustCreateSession(t, r, owner, t0)
	newest := mustCreateSession(t, r, owner, t0.Add(2*time.Hour))
	tieFirst := mustCreateSession(t, r, owner, t0.Add(-time.Hour))
	tieSecond := mustCreateSession(t, r, owner, t0.Add(-time.Hour))

	sessions, err := r.Sessions.ListSessions(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID, tieSecond.ID, tieFirst.ID}, sessionIDs(sessions))
}

func testListSessionsEmpty(t *testing.T, r *storage.Repositories) {
	sessions, err := r.Sessions.ListSessions(context.Background(), internal.MustOwner("nobody"))
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)

	events, err := r.Events.ListEvents(context.Background(), internal.MustOwner("nobody"), "missing")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func testOwnershipIsolation(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	a, b := internal.MustOwner("alice"), internal.MustOwner("bob")
	s := mustCreateSession(t, r, a, t0)
	mustCreateSession(t, r, b, t0)

	bSessions, err := r.Sessions.ListSessions(ctx, b)
	require.NoError(t, err)
	require.Len(t, bSessions, 1)
	assert.NotEqual(t, s.ID, bSessions[0].ID)

	_, err = r.Sessions.GetSession(ctx, b, s.ID)
	assert.True(t, errors.Is(err, internal.ErrNotFound))

	_, err = r.Sessions.DeleteSession(ctx, b, s.ID)
	assert.True(t, errors.Is(err, internal.ErrNotFound))

	aSessions, err := r.Sessions.ListSessions(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, sessionIDs(aSessions), "a foreign delete must not remove the record")
}

func testDeleteSession(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s := mustCreateSession(t, r, owner, t0)

	deleted, err := r.Sessions.DeleteSession(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, deleted.ID)

	_, err = r.Sessions.DeleteSession(ctx, owner, s.ID)
	assert.True(t, errors.Is(err, internal.ErrNotFound))
	_, err = r.Sessions.DeleteSession(ctx, owner, "does-not-exist")
	assert.True(t, errors.Is(err, internal.ErrNotFound))

	sessions, err := r.Sessions.ListSessions(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func testCreateEventRequiresOwnedSession(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	a, b := internal.MustOwner("alice"), internal.MustOwner("bob")
	s := mustCreateSession(t, r, a, t0)

	err := r.Events.CreateEvent(ctx, b, NewEvent(b, s.ID, internal.EventIdle, t0))
	assert.True(t, errors.Is(err, internal.ErrSessionNotOwned), "foreign session: %v", err)
	assert.True(t, errors.Is(err, internal.ErrValidation))

	err = r.Events.CreateEvent(ctx, a, NewEvent(a, "missing", internal.EventIdle, t0))
	assert.True(t, errors.Is(err, internal.ErrNotFound), "absent session: %v", err)

	missing := NewEvent(a, "", internal.EventIdle, t0)
	assert.True(t, errors.Is(r.Events.CreateEvent(ctx, a, missing), internal.ErrValidation))

	// A record stamped for another user is rejected even if the session is the caller's.
	spoofed := NewEvent(b, s.ID, internal.EventIdle, t0)
	assert.True(t, errors.Is(r.Events.CreateEvent(ctx, a, spoofed), internal.ErrValidation))

	events, err := r.Events.ListEvents(ctx, a, s.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func testEnumerationEnforcement(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s := mustCreateSession(t, r, owner, t0)

	bad := NewEvent(owner, s.ID, "NOT_A_TYPE", t0)
	assert.True(t, errors.Is(r.Events.CreateEvent(ctx, owner, bad), internal.ErrValidation))

	badSeverity := NewEvent(owner, s.ID, internal.EventLock, t0)
	badSeverity.Severity = "urgent"
	assert.True(t, errors.Is(r.Events.CreateEvent(ctx, owner, badSeverity), internal.ErrValidation))

	for i, typ := range internal.EventTypes {
		e := NewEvent(owner, s.ID, typ, t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, r.Events.CreateEvent(ctx, owner, e), typ)
	}
	events, err := r.Events.ListEvents(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.EventTypes, eventTypes(events))
}

func testChronologicalEvents(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s := mustCreateSession(t, r, owner, t0)

	order := []struct {
		typ    internal.EventType
		offset time.Duration
	}{
		{internal.EventBreak, 20 * time.Minute},
		{internal.EventFocusStart, 0},
		{internal.EventFocusEnd, 30 * time.Minute},
		{internal.EventTabSwitch, 5 * time.Minute},
		{internal.EventIdle, 10 * time.Minute},
	}
	for _, o := range order {
		require.NoError(t, r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, o.typ, t0.Add(o.offset))))
	}
	// Equal timestamps keep insertion order.
	require.NoError(t, r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, internal.EventWarning, t0.Add(10*time.Minute))))

	events, err := r.Events.ListEvents(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []internal.EventType{
		internal.EventFocusStart, internal.EventTabSwitch, internal.EventIdle,
		internal.EventWarning, internal.EventBreak, internal.EventFocusEnd,
	}, eventTypes(events))
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
	}
}

func testTimestampRange(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s := mustCreateSession(t, r, owner, t0)

	future := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	past := time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{future, past, {}} {
		e := NewEvent(owner, s.ID, internal.EventBreak, t0)
		e.Timestamp = ts
		err := r.Events.CreateEvent(ctx, owner, e)
		assert.True(t, errors.Is(err, internal.ErrValidation), "timestamp %s: %v", ts, err)
	}

	late := NewSession(owner, t0)
	late.EndTime = &future
	assert.True(t, errors.Is(r.Sessions.CreateSession(ctx, owner, late), internal.ErrValidation))

	// Far but storable times keep their value and order.
	far := time.Date(2250, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, internal.EventBreak, far)))
	require.NoError(t, r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, internal.EventFocusStart, t0)))

	events, err := r.Events.ListEvents(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []internal.EventType{internal.EventFocusStart, internal.EventBreak}, eventTypes(events))
	assert.True(t, events[1].Timestamp.Equal(far))
}

func testScenario(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	u1, u2 := internal.MustOwner("U1"), internal.MustOwner("U2")
	s1 := NewSession(u1, t0.Add(30*time.Minute))
	start, end := t0, t0.Add(1800*time.Second)
	s1.StartTime, s1.EndTime, s1.Duration = &start, &end, 1800
	require.NoError(t, r.Sessions.CreateSession(ctx, u1, s1))

	focus := NewEvent(u1, s1.ID, internal.EventFocusStart, t0)
	focus.Meta = internal.Meta{"source": internal.StringValue("extension")}
	require.NoError(t, r.Events.CreateEvent(ctx, u1, focus))
	require.NoError(t, r.Events.CreateEvent(ctx, u1, NewEvent(u1, s1.ID, internal.EventBreak, t0.Add(600*time.Second))))

	events, err := r.Events.ListEvents(ctx, u1, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, []internal.EventType{internal.EventFocusStart, internal.EventBreak}, eventTypes(events))
	source, _ := events[0].Meta["source"].AsString()
	assert.Equal(t, "extension", source)
	assert.NotNil(t, events[1].Meta)
	assert.Equal(t, internal.SeverityLow, events[0].Severity)
	assert.False(t, events[0].Resolved)

	foreign, err := r.Events.ListEvents(ctx, u2, s1.ID)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func testResolveEvent(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	a, b := internal.MustOwner("alice"), internal.MustOwner("bob")
	s := mustCreateSession(t, r, a, t0)
	e := NewEvent(a, s.ID, internal.EventWarning, t0)
	require.NoError(t, r.Events.CreateEvent(ctx, a, e))

	_, err := r.Events.ResolveEvent(ctx, b, e.ID)
	assert.True(t, errors.Is(err, internal.ErrNotFound))
	_, err = r.Events.ResolveEvent(ctx, a, "missing")
	assert.True(t, errors.Is(err, internal.ErrNotFound))

	resolved, err := r.Events.ResolveEvent(ctx, a, e.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.True(t, resolved.UpdatedAt.After(e.UpdatedAt))

	again, err := r.Events.ResolveEvent(ctx, a, e.ID)
	require.NoError(t, err)
	assert.True(t, again.Resolved)
	assert.True(t, again.UpdatedAt.Equal(resolved.UpdatedAt), "resolving twice does not bump updatedAt")

	events, err := r.Events.ListEvents(ctx, a, s.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Resolved)
}

func testOrphanedEvents(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s := mustCreateSession(t, r, owner, t0)
	require.NoError(t, r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, internal.EventLock, t0)))

	_, err := r.Sessions.DeleteSession(ctx, owner, s.ID)
	require.NoError(t, err)

	events, err := r.Events.ListEvents(ctx, owner, s.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	err = r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, internal.EventLock, t0))
	assert.True(t, errors.Is(err, internal.ErrSessionNotOwned), "no new events for a deleted session")
}

func testZeroOwner(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	var zero internal.Owner

	_, err := r.Sessions.ListSessions(ctx, zero)
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))
	_, err = r.Sessions.GetSession(ctx, zero, "x")
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))
	_, err = r.Sessions.DeleteSession(ctx, zero, "x")
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))
	assert.True(t, errors.Is(r.Sessions.CreateSession(ctx, zero, &internal.Session{ID: "x"}), internal.ErrUnauthenticated))
	assert.True(t, errors.Is(r.Events.CreateEvent(ctx, zero, &internal.Event{ID: "x"}), internal.ErrUnauthenticated))
	_, err = r.Events.ListEvents(ctx, zero, "x")
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))
	_, err = r.Events.ResolveEvent(ctx, zero, "x")
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))
}

func testMaintenance(t *testing.T, r *storage.Repositories) {
	ctx := context.Background()
	m := r.Maintenance

	john := &internal.User{Email: "John@Example.com", Name: "John Doe", IsActive: true}
	require.NoError(t, m.UpsertUser(ctx, john))
	require.NotEmpty(t, john.ID)
	assert.Equal(t, "john@example.com", john.Email)

	again := &internal.User{Email: "john@example.com", Name: "Johnny", IsActive: true}
	require.NoError(t, m.UpsertUser(ctx, again))
	assert.Equal(t, john.ID, again.ID, "upsert matches by email")
	assert.Equal(t, "Johnny", again.Name)

	jane := &internal.User{Email: "jane@example.com", Name: "Jane Smith", IsActive: true}
	require.NoError(t, m.UpsertUser(ctx, jane))
	keep := &internal.User{Email: "keep@example.com", Name: "Keeper", IsActive: true}
	require.NoError(t, m.UpsertUser(ctx, keep))

	found, err := m.FindUsersByEmail(ctx, []string{"jane@example.com", "JOHN@example.com", "nobody@example.com"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "jane@example.com", found[0].Email)
	assert.Equal(t, "john@example.com", found[1].Email)

	for _, u := range []*internal.User{john, jane, keep} {
		owner := internal.MustOwner(u.ID)
		s := mustCreateSession(t, r, owner, t0)
		require.NoError(t, r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, internal.EventIdle, t0)))
		require.NoError(t, r.Events.CreateEvent(ctx, owner, NewEvent(owner, s.ID, internal.EventBreak, t0)))
	}

	counts, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Users: 3, Sessions: 3, Events: 6}, counts)

	deleted, err := m.PurgeUsers(ctx, []string{john.ID, jane.ID})
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Users: 2, Sessions: 2, Events: 4}, deleted)

	counts, err = m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Users: 1, Sessions: 1, Events: 2}, counts)

	sessions, err := r.Sessions.ListSessions(ctx, internal.MustOwner(keep.ID))
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	none, err := m.PurgeUsers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{}, none)
}
