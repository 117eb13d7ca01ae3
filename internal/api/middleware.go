package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"example.com/backstage/services/sitemodel/internal/sitemodel"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs HTTP requests
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP Request")
	}
}

// statusFor maps site model errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sitemodel.ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, sitemodel.ErrInvalidArgument), errors.Is(err, sitemodel.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, sitemodel.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders the last error attached by a handler.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var modelErr *sitemodel.ModelError
		if errors.As(err, &modelErr) {
			c.JSON(statusFor(err), gin.H{
				"error": modelErr.Error(),
				"kind":  modelErr.Kind,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CORS enables cross-origin requests
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		c.Writer.Header().Set("Access-Control-Max-Age", "300")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimiter allows requestsPerMinute requests per client IP. Zero disables it.
func RateLimiter(requestsPerMinute int) gin.HandlerFunc {
	limiter := newRateLimiter(requestsPerMinute)

	return func(c *gin.Context) {
		if requestsPerMinute <= 0 {
			c.Next()
			return
		}

		allowed, retryAfter := limiter.allow(c.ClientIP(), time.Now())
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

type rateLimitClient struct {
	lastReset time.Time
	requests  int
}

// rateLimiter counts requests per client in one-minute windows. Clients whose
// window has expired are swept at most once a minute.
type rateLimiter struct {
	mu        sync.Mutex
	limit     int
	clients   map[string]*rateLimitClient
	lastSweep time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		clients: make(map[string]*rateLimitClient),
	}
}

// allow records a request from clientIP and reports whether it is within the
// limit, and if not, the seconds until the window resets.
func (l *rateLimiter) allow(clientIP string, now time.Time) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > time.Minute {
		l.sweep(now)
	}

	client, exists := l.clients[clientIP]
	if !exists || now.Sub(client.lastReset) > time.Minute {
		l.clients[clientIP] = &rateLimitClient{lastReset: now, requests: 1}
		return true, 0
	}

	if client.requests >= l.limit {
		return false, 60 - int(now.Sub(client.lastReset).Seconds())
	}

	client.requests++
	return true, 0
}

func (l *rateLimiter) sweep(now time.Time) {
	for ip, client := range l.clients {
		if now.Sub(client.lastReset) > time.Minute {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// Recovery handles panics and prevents server crashes
func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithFields(logrus.Fields{
					"error":  err,
					"path":   c.Request.URL.Path,
					"method": c.Request.Method,
				}).Error("Panic recovered")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
