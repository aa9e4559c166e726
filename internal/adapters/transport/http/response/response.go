// Package response holds the JSON envelope every HTTP endpoint answers with.
package response

import (
	"github.com/gin-gonic/gin"
)

type Success struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type Failure struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func Respond(c *gin.Context, status int, data any, message string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Success{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

// Abort прерывает цепочку и отдаёт ошибку в общем формате.
func Abort(c *gin.Context, status int, message string, details ...string) {
	if details == nil {
		details = []string{}
	}
	c.AbortWithStatusJSON(status, Failure{
		StatusCode: status,
		Message:    message,
		Success:    false,
		Errors:     details,
	})
}
