package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) *storage.Repositories {
	t.Helper()
	restore := now
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() { now = restore })

	dir := t.TempDir()
	repos, err := storage.NewFileRepositories(
		filepath.Join(dir, "sessions.json"),
		filepath.Join(dir, "events.json"),
		filepath.Join(dir, "users.json"),
		internal.NopLogger(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestCreateSessionDefaults(t *testing.T) {
	repos := setup(t)
	owner := internal.MustOwner("u1")

	s, err := CreateSession(context.Background(), repos.Sessions, internal.NopLogger(), owner, &SessionRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, internal.DefaultSessionTitle, s.Title)
	assert.Equal(t, fixedNow, s.CreatedAt)
	assert.Equal(t, "2025-03-01", s.Date)
	assert.NotNil(t, s.Distractions)

	stored, err := GetSession(context.Background(), repos.Sessions, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Title, stored.Title)
}

func TestCreateSessionKeepsClientFields(t *testing.T) {
	repos := setup(t)
	start := time.Date(2025, 2, 27, 22, 0, 0, 0, time.FixedZone("X", 3600))
	end := start.Add(45 * time.Minute)

	s, err := CreateSession(context.Background(), repos.Sessions, internal.NopLogger(), internal.MustOwner("u1"), &SessionRequest{
		Title:     "  Reading  ",
		StartTime: &start,
		EndTime:   &end,
		Duration:  2700,
		Warnings:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Reading", s.Title)
	assert.Equal(t, time.UTC, s.StartTime.Location())
	assert.Equal(t, "2025-02-27", s.Date)
	assert.Empty(t, s.Check())
}

func TestCreateSessionLogsInconsistencies(t *testing.T) {
	repos := setup(t)
	core, logs := observer.New(zapcore.WarnLevel)
	logger := internal.NewZapLogger(zap.New(core).Sugar())
	start := fixedNow.Add(-time.Hour)
	end := fixedNow

	consistent := &SessionRequest{StartTime: &start, EndTime: &end, Duration: 3600}
	_, err := CreateSession(context.Background(), repos.Sessions, logger, internal.MustOwner("u1"), consistent)
	require.NoError(t, err)
	assert.Zero(t, logs.Len())

	// Stored as sent, with a warning.
	s, err := CreateSession(context.Background(), repos.Sessions, logger, internal.MustOwner("u1"), &SessionRequest{
		StartTime: &start, EndTime: &end, Duration: -5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-5), s.Duration)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, s.ID)
	assert.Contains(t, entries[0].Message, "duration")
}

func TestCreateSessionAcceptsClockStringDistractions(t *testing.T) {
	repos := setup(t)
	s, err := CreateSession(context.Background(), repos.Sessions, internal.NopLogger(), internal.MustOwner("u1"), &SessionRequest{
		Distractions: []internal.Distraction{{Time: "10:30:15 AM", Reason: "YouTube", Duration: "2m 5s", DurationMs: 125000}},
	})
	require.NoError(t, err)

	stored, err := GetSession(context.Background(), repos.Sessions, internal.MustOwner("u1"), s.ID)
	require.NoError(t, err)
	require.Len(t, stored.Distractions, 1)
	assert.Equal(t, "10:30:15 AM", stored.Distractions[0].Time)
}

func TestCreateSessionRejectsNegativeWarnings(t *testing.T) {
	repos := setup(t)
	_, err := CreateSession(context.Background(), repos.Sessions, internal.NopLogger(), internal.MustOwner("u1"), &SessionRequest{Warnings: -1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, internal.ErrValidation))
	assert.Contains(t, err.Error(), "warnings")
}

func TestCreateSessionZeroOwner(t *testing.T) {
	repos := setup(t)
	_, err := CreateSession(context.Background(), repos.Sessions, internal.NopLogger(), internal.Owner{}, &SessionRequest{})
	assert.True(t, errors.Is(err, internal.ErrUnauthenticated))
}

func TestDeleteSession(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s, err := CreateSession(ctx, repos.Sessions, internal.NopLogger(), owner, &SessionRequest{})
	require.NoError(t, err)

	_, err = DeleteSession(ctx, repos.Sessions, internal.MustOwner("u2"), s.ID)
	assert.True(t, errors.Is(err, internal.ErrNotFound))

	deleted, err := DeleteSession(ctx, repos.Sessions, owner, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, deleted.ID)

	_, err = DeleteSession(ctx, repos.Sessions, owner, " ")
	assert.True(t, errors.Is(err, internal.ErrNotFound))
}

func TestCreateEventDefaults(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s, err := CreateSession(ctx, repos.Sessions, internal.NopLogger(), owner, &SessionRequest{})
	require.NoError(t, err)

	e, err := CreateEvent(ctx, repos.Events, owner, &EventRequest{SessionID: s.ID, Type: internal.EventIdle, Message: "  away  "})
	require.NoError(t, err)
	assert.Equal(t, "away", e.Message)
	assert.Equal(t, internal.SeverityLow, e.Severity)
	assert.Equal(t, fixedNow, e.Timestamp)
	assert.False(t, e.Resolved)
	assert.NotNil(t, e.Meta)
	assert.Empty(t, e.Meta)
}

func TestCreateEventValidation(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s, err := CreateSession(ctx, repos.Sessions, internal.NopLogger(), owner, &SessionRequest{})
	require.NoError(t, err)

	cases := map[string]*EventRequest{
		"missing session":  {Type: internal.EventIdle},
		"missing type":     {SessionID: s.ID},
		"unknown type":     {SessionID: s.ID, Type: "SLEEP"},
		"unknown severity": {SessionID: s.ID, Type: internal.EventIdle, Severity: "urgent"},
		"long message":     {SessionID: s.ID, Type: internal.EventIdle, Message: strings.Repeat("x", 501)},
	}
	for name, req := range cases {
		_, err := CreateEvent(ctx, repos.Events, owner, req)
		assert.True(t, errors.Is(err, internal.ErrValidation), name)
	}

	// 500 multi-byte characters fit.
	_, err = CreateEvent(ctx, repos.Events, owner, &EventRequest{SessionID: s.ID, Type: internal.EventIdle, Message: strings.Repeat("é", 500)})
	assert.NoError(t, err)
}

func TestCreateEventForeignSession(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()
	s, err := CreateSession(ctx, repos.Sessions, internal.NopLogger(), internal.MustOwner("u1"), &SessionRequest{})
	require.NoError(t, err)

	_, err = CreateEvent(ctx, repos.Events, internal.MustOwner("u2"), &EventRequest{SessionID: s.ID, Type: internal.EventIdle})
	assert.True(t, errors.Is(err, internal.ErrSessionNotOwned))
	assert.Equal(t, 404, internal.StatusFor(err))
}

func TestListAndResolveEvents(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()
	owner := internal.MustOwner("u1")
	s, err := CreateSession(ctx, repos.Sessions, internal.NopLogger(), owner, &SessionRequest{})
	require.NoError(t, err)

	later := fixedNow.Add(time.Minute)
	_, err = CreateEvent(ctx, repos.Events, owner, &EventRequest{SessionID: s.ID, Type: internal.EventFocusEnd, Timestamp: &later})
	require.NoError(t, err)
	first, err := CreateEvent(ctx, repos.Events, owner, &EventRequest{SessionID: s.ID, Type: internal.EventFocusStart})
	require.NoError(t, err)

	events, err := ListEventsForSession(ctx, repos.Events, owner, s.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, internal.EventFocusStart, events[0].Type)

	_, err = ListEventsForSession(ctx, repos.Events, owner, "")
	assert.True(t, errors.Is(err, internal.ErrValidation))

	resolved, err := ResolveEvent(ctx, repos.Events, owner, first.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	_, err = ResolveEvent(ctx, repos.Events, internal.MustOwner("u2"), first.ID)
	assert.True(t, errors.Is(err, internal.ErrNotFound))
}
