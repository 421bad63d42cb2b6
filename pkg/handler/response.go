package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Error struct {
	Message string `json:"message"`
}

// newErrorResponse aborts with {"message": ...}. Client errors are logged as warnings.
func newErrorResponse(c *gin.Context, statusCode int, message string) {
	entry := logrus.WithFields(logrus.Fields{
		"status": statusCode,
		"method": c.Request.Method,
		"path":   c.FullPath(),
	})
	if statusCode >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}
	c.AbortWithStatusJSON(statusCode, Error{Message: message})
}

func wrapOkJSON(c *gin.Context, response map[string]interface{}) {
	c.JSON(http.StatusOK, response)
}
