package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger пишет в лог каждый запрос. Приватные ошибки попадают только сюда, клиенту уходит общий текст.
func Logger(l *logrus.Logger) gin.HandlerFunc {
	entry := l.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := entry.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"ip":       c.ClientIP(),
		})
		if userID, ok := c.Get(UserIDKey); ok {
			log = log.WithField("user_id", userID)
		}
		if len(c.Errors) > 0 {
			log = log.WithField("errors", c.Errors.String())
		}

		switch status := c.Writer.Status(); {
		case status >= 500: //nolint:mnd
			log.Error("request")
		case status >= 400: //nolint:mnd
			log.Warn("request")
		default:
			log.Info("request")
		}
	}
}
