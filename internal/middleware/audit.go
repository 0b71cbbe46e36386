package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Audit writes one audit entry per review action after the handler ran.
// Rejected requests are recorded too, at Warn.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("session_id", c.Param("id")),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if identity := c.Param("identity"); identity != "" {
			fields = append(fields, zap.String("identity", identity))
		}
		if principal := PrincipalFromContext(c); principal != nil {
			fields = append(fields,
				zap.String("email", principal.Email),
				zap.String("role", string(principal.Role)))
		}

		if c.Writer.Status() >= 400 {
			logger.Warn("review action refused", fields...)
			return
		}
		logger.Info("review action", fields...)
	}
}
