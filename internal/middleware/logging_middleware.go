package middleware

import (
	"time"

	"xianyu-autosell/pkg/logger"

	"github.com/gin-gonic/gin"
)

func LoggingMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log == nil {
			return
		}
		log = log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Errorf("%s %s %d %s", method, path, status, latency.String())
		case path == "/ping" || path == "/health":
			log.Debugf("%s %s %d %s", method, path, status, latency.String())
		default:
			log.Infof("%s %s %d %s", method, path, status, latency.String())
		}
	}
}
