// Package middleware holds gin middleware for the ops API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fileflow/ingestd/internal/logger"
)

// RequestLogger logs every ops API request with method, path, status and
// latency. Health probes are skipped to keep the log readable.
func RequestLogger() gin.HandlerFunc {
	skip := map[string]struct{}{
		"/health":      {},
		"/favicon.ico": {},
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).Round(time.Microsecond).String(),
			"client_ip": c.ClientIP(),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			fields["query"] = query
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("[ops] request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("[ops] request rejected")
		default:
			entry.Info("[ops] request served")
		}
	}
}
