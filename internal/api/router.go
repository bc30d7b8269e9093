package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourname/focustracker/internal/auth"
	"github.com/yourname/focustracker/internal/response"
)

func NewRouter(app App, provider auth.Provider) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), RequestLogger(app.Logger()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, response.Success(gin.H{"status": "ok"}, nil))
	})

	api := r.Group("/api", auth.AuthMiddleware(provider, app.Logger()))
	api.POST("/sessions", PostSession(app))
	api.GET("/sessions", GetSessions(app))
	api.GET("/sessions/:id", GetSession(app))
	api.DELETE("/sessions/:id", DeleteSession(app))
	api.POST("/events", PostEvent(app))
	api.GET("/events/:sessionId", GetEvents(app))
	api.PATCH("/events/:id/resolve", ResolveEvent(app))
	return r
}
