package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourname/focustracker/internal"
	"github.com/yourname/focustracker/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	var resp response.APIResponse
	switch status {
	case 400:
		logger.Warnf("[request_id=%s] %s: %v", requestID, msg, err)
		resp = response.BadRequest(msg + ": " + err.Error())
	case 404:
		logger.Infof("[request_id=%s] %s: %v", requestID, msg, err)
		resp = response.NotFound(msg)
	case 500:
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
		resp = response.InternalError(msg)
	default:
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.AbortWithStatusJSON(status, resp)
}

// HandleServiceError picks the status from the error's kind.
func HandleServiceError(c *gin.Context, logger internal.Logger, err error, msg string) {
	HandleError(c, logger, err, internal.StatusFor(err), msg)
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	respond(c, logger, http.StatusOK, data, meta)
}

func HandleCreated(c *gin.Context, logger internal.Logger, data interface{}) {
	respond(c, logger, http.StatusCreated, data, nil)
}

func respond(c *gin.Context, logger internal.Logger, status int, data interface{}, meta map[string]any) {
	logger.Debugf("[request_id=%s] Success", c.GetString("request_id"))
	c.JSON(status, response.Success(data, meta))
}
