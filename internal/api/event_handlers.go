package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/auth"
	"github.com/yourname/focustracker/internal/service"
)

func PostEvent(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.EventRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		event, err := service.CreateEvent(c.Request.Context(), app.EventRepo(), auth.OwnerFrom(c), &body)
		switch {
		case errors.Is(err, internal.ErrSessionNotOwned):
			HandleError(c, app.Logger(), err, 404, "Session not found for this user")
			return
		case err != nil:
			HandleServiceError(c, app.Logger(), err, "Failed to save event")
			return
		}
		HandleCreated(c, app.Logger(), event)
	}
}

func GetEvents(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := service.ListEventsForSession(c.Request.Context(), app.EventRepo(), auth.OwnerFrom(c), c.Param("sessionId"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch events")
			return
		}
		HandleSuccess(c, app.Logger(), events, nil)
	}
}

func ResolveEvent(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := service.ResolveEvent(c.Request.Context(), app.EventRepo(), auth.OwnerFrom(c), c.Param("id"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Event not found")
			return
		}
		HandleSuccess(c, app.Logger(), event, nil)
	}
}
