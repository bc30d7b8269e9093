package api

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/yourname/focustracker/internal/auth"
	"github.com/yourname/focustracker/internal/service"
)

func PostSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body service.SessionRequest
		// An empty body creates a session with every default.
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}

		session, err := service.CreateSession(c.Request.Context(), app.SessionRepo(), app.Logger(), auth.OwnerFrom(c), &body)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save session")
			return
		}
		HandleCreated(c, app.Logger(), session)
	}
}

func GetSessions(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := service.ListSessions(c.Request.Context(), app.SessionRepo(), auth.OwnerFrom(c))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch sessions")
			return
		}
		HandleSuccess(c, app.Logger(), sessions, nil)
	}
}

func GetSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := service.GetSession(c.Request.Context(), app.SessionRepo(), auth.OwnerFrom(c), c.Param("id"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Session not found")
			return
		}
		HandleSuccess(c, app.Logger(), session, nil)
	}
}

func DeleteSession(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := service.DeleteSession(c.Request.Context(), app.SessionRepo(), auth.OwnerFrom(c), c.Param("id"))
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Session not found")
			return
		}
		HandleSuccess(c, app.Logger(), session, map[string]any{"message": "Session deleted successfully"})
	}
}
