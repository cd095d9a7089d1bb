package middleware

import (
	"xianyu-autosell/internal/transport/httpdto"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error a handler attached with c.Error, unless
// the handler already wrote a body.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := autosell_errors.HTTPStatus(err)
		if l != nil {
			l.WithContext(c.Request.Context()).Errorf("request error: %s", err.Error())
		}
		resp := httpdto.NewErrorResponse(err.Error(), httpdto.ErrorCode(status))
		resp.Kind = autosell_errors.Kind(err)
		c.JSON(status, resp)
	}
}
