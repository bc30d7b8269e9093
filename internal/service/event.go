package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/storage"
)

type EventRequest struct {
	SessionID string             `json:"sessionId" validate:"required"`
	Type      internal.EventType `json:"type" validate:"required,oneof=TAB_SWITCH IDLE BLOCKED_URL WARNING LOCK FOCUS_START FOCUS_END BREAK"`
	Message   string             `json:"message" validate:"max=500"`
	Meta      internal.Meta      `json:"meta"`
	Timestamp *time.Time         `json:"timestamp"`
	Severity  internal.Severity  `json:"severity" validate:"omitempty,oneof=low medium high critical"`
}

// ValidateEventRequest trims the message before checking it.
func ValidateEventRequest(req *EventRequest) error {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Message = strings.TrimSpace(req.Message)
	return check(req)
}

// CreateEvent records an event against a session the owner holds. The store
// re-verifies ownership in the same write; a foreign or missing session yields
// internal.ErrSessionNotOwned.
func CreateEvent(ctx context.Context, repo storage.EventRepository, owner internal.Owner, req *EventRequest) (*internal.Event, error) {
	if err := owner.Check(); err != nil {
		return nil, err
	}
	if err := ValidateEventRequest(req); err != nil {
		return nil, err
	}

	created := now()
	event := &internal.Event{
		ID:        uuid.NewString(),
		UserID:    owner.ID(),
		SessionID: req.SessionID,
		Type:      req.Type,
		Message:   req.Message,
		Meta:      req.Meta.Clone(),
		Timestamp: created,
		Severity:  req.Severity,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if req.Timestamp != nil {
		event.Timestamp = req.Timestamp.UTC()
	}
	if event.Severity == "" {
		event.Severity = internal.SeverityLow
	}

	if err := repo.CreateEvent(ctx, owner, event); err != nil {
		return nil, err
	}
	return event, nil
}

// ListEventsForSession returns the owner's events for sessionID, oldest first.
// A session the owner does not hold yields an empty list.
func ListEventsForSession(ctx context.Context, repo storage.EventRepository, owner internal.Owner, sessionID string) ([]internal.Event, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, internal.Rejected("sessionId is required")
	}
	return repo.ListEvents(ctx, owner, sessionID)
}

func ResolveEvent(ctx context.Context, repo storage.EventRepository, owner internal.Owner, id string) (*internal.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, internal.NotFound("event not found")
	}
	return repo.ResolveEvent(ctx, owner, id)
}
