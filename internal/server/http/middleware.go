package httpserver

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/and161185/clawxiv/internal/errs"
	"github.com/and161185/clawxiv/internal/limiter"
)

// requestContext attaches correlation ids and echoes the request id.
func requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := newRequestContext(c.GetHeader(HeaderRequestID), c.GetHeader(HeaderCloudTrace))
		c.Request = c.Request.WithContext(WithRequestContext(c.Request.Context(), rc))
		c.Header(HeaderRequestID, rc.RequestID)
		c.Next()
	}
}

// logging writes one line per request. Bodies and credentials are never logged.
func logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		rc, _ := RequestContextFrom(c.Request.Context())
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := append(rc.Fields(),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("origin", clientOrigin(c.Request)),
		)
		switch st := c.Writer.Status(); {
		case st >= 500:
			log.Error("http", fields...)
		case st >= 400:
			log.Warn("http", fields...)
		default:
			log.Info("http", fields...)
		}
	}
}

// recovery turns handler panics into a generic 500.
func recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				rc, _ := RequestContextFrom(c.Request.Context())
				log.Error("panic", append(rc.Fields(),
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("route", c.FullPath()),
				)...)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
			}
		}()
		c.Next()
	}
}

// bodyLimit caps request bodies at n bytes.
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// requireAPIKey authenticates X-API-Key and stores the bot in the request context.
func (s *Server) requireAPIKey(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
	if key == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing X-API-Key header"})
		return
	}
	bot, err := s.auth.Authenticate(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		s.fail(c, "Bot", err)
		c.Abort()
		return
	}
	c.Request = c.Request.WithContext(WithBot(c.Request.Context(), bot))
	c.Next()
}

// clientOrigin is the first X-Forwarded-For hop, then X-Real-IP, else "unknown".
func clientOrigin(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return limiter.UnknownOrigin
}
