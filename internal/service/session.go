package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
)

// SessionRequest is the body of a create-session call. Sessions arrive whole,
// after the client has finished them.
type SessionRequest struct {
	Title        string                 `json:"title"`
	StartTime    *time.Time             `json:"startTime"`
	EndTime      *time.Time             `json:"endTime"`
	Duration     int64                  `json:"duration"`
	Distractions []internal.Distraction `json:"distractions"`
	Warnings     int                    `json:"warnings" validate:"gte=0"`
	Date         string                 `json:"date"`
}

func ValidateSessionRequest(req *SessionRequest) error {
	return check(req)
}

// CreateSession stores the payload as sent. Temporal inconsistencies are
// logged, not rejected.
func CreateSession(ctx context.Context, repo storage.SessionRepository, logger internal.Logger, owner internal.Owner, req *SessionRequest) (*internal.Session, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	if err := ValidateSessionRequest(req); err != nil {
		return nil, err
	}

	created := now()
	session := &internal.Session{
		ID:           uuid.NewString(),
		UserID:       owner.ID(),
		Title:        strings.TrimSpace(req.Title),
		StartTime:    utc(req.StartTime),
		EndTime:      utc(req.EndTime),
		Duration:     req.Duration,
		Distractions: req.Distractions,
		Warnings:     req.Warnings,
		Date:         req.Date,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if session.Title == "" {
		session.Title = internal.DefaultSessionTitle
	}
	if session.Distractions == nil {
		session.Distractions = []internal.Distraction{}
	}
	if session.Date == "" {
		day := created
		if session.StartTime != nil {
			day = *session.StartTime
		}
		session.Date = day.Format(time.DateOnly)
	}

	if err := repo.CreateSession(ctx, owner, session); err != nil {
		return nil, err
	}
	if problems := session.Check(); len(problems) > 0 {
		logger.Warnf("session %s stored with inconsistencies: %s", session.ID, strings.Join(problems, "; "))
	}
	return session, nil
}

func ListSessions(ctx context.Context, repo storage.SessionRepository, owner internal.Owner) ([]internal.Session, error) {
	return repo.ListSessions(ctx, owner)
}

func GetSession(ctx context.Context, repo storage.SessionRepository, owner internal.Owner, id string) (*internal.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, internal.NotFound("session not found")
	}
	return repo.GetSession(ctx, owner, id)
}

// DeleteSession removes the owner's session. Its events are left in place.
func DeleteSession(ctx context.Context, repo storage.SessionRepository, owner internal.Owner, id string) (*internal.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, internal.NotFound("session not found")
	}
	return repo.DeleteSession(ctx, owner, id)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
