package internal

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCheck(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	inside := start.Add(10 * time.Minute)
	outside := end.Add(time.Minute)

	s := Session{StartTime: &start, EndTime: &end, Duration: 1800,
		Distractions: []Distraction{{Time: inside.Format(time.RFC3339), Reason: "Email"}}}
	assert.Empty(t, s.Check())

	s.Duration = 1700
	assert.Len(t, s.Check(), 1)

	s.Duration = 1800
	s.Distractions = append(s.Distractions, Distraction{Time: outside.Format(time.RFC3339)})
	assert.Len(t, s.Check(), 1)

	// Clock strings from older clients cannot be placed in time and are skipped.
	s.Distractions = []Distraction{{Time: "10:30:15 AM", Reason: "News"}}
	assert.Empty(t, s.Check())

	s.Distractions = nil
	s.Warnings = -1
	assert.Len(t, s.Check(), 1)

	open := Session{StartTime: &start, Duration: 99}
	assert.Empty(t, open.Check())
}

func TestEnums(t *testing.T) {
	for _, typ := range EventTypes {
		assert.True(t, typ.IsValid(), typ)
	}
	assert.Len(t, EventTypes, 8)
	assert.False(t, EventType("NOT_A_TYPE").IsValid())
	assert.False(t, EventType("tab_switch").IsValid())

	for _, sev := range Severities {
		assert.True(t, sev.IsValid(), sev)
	}
	assert.False(t, Severity("urgent").IsValid())

	e := Event{Type: "NOT_A_TYPE", Severity: SeverityLow}
	assert.True(t, errors.Is(e.CheckEnums(), ErrValidation))
	e = Event{Type: EventIdle, Severity: ""}
	assert.True(t, errors.Is(e.CheckEnums(), ErrValidation))
	e = Event{Type: EventIdle, Severity: SeverityHigh}
	assert.NoError(t, e.CheckEnums())
}

func TestOwner(t *testing.T) {
	_, err := NewOwner("  ")
	assert.True(t, errors.Is(err, ErrUnauthenticated))

	var zero Owner
	assert.True(t, errors.Is(zero.Check(), ErrUnauthenticated))
	assert.False(t, zero.Owns(""))

	o, err := NewOwner("u1")
	require.NoError(t, err)
	assert.NoError(t, o.Check())
	assert.Equal(t, "u1", o.ID())
	assert.True(t, o.Owns("u1"))
	assert.False(t, o.Owns("u2"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(Rejected("x")))
	assert.Equal(t, http.StatusNotFound, StatusFor(NotFound("x")))
	assert.Equal(t, http.StatusNotFound, StatusFor(ErrSessionNotOwned))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(StorageFailure("insert", errors.New("disk full"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))

	_, err := NewOwner("")
	assert.Equal(t, http.StatusUnauthorized, StatusFor(err))

	assert.True(t, errors.Is(ErrSessionNotOwned, ErrValidation))
	assert.True(t, errors.Is(ErrSessionNotOwned, ErrNotFound))

	cause := errors.New("conn refused")
	wrapped := StorageFailure("list sessions", cause)
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "storage: list sessions: conn refused", wrapped.Error())
}
