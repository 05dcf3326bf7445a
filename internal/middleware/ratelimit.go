package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const tooManyRequests = "Too many requests, please try again later."

// NewRateLimiter allows limit hits per key in fixed windows of size,
// counted in process memory.
func NewRateLimiter(size time.Duration, limit int) *limiter.Limiter {
	return limiter.New(memory.NewStore(), limiter.Rate{Period: size, Limit: int64(limit)})
}

// RateLimit rejects clients that exceed the limiter's budget per window.
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return mgin.NewMiddleware(l,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			rejectRateLimited(c, c.Writer.Header().Get("X-RateLimit-Reset"))
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			logrus.WithField("area", "RATELIMIT").WithError(err).Error("rate limit store failed")
			abort(c, http.StatusInternalServerError, "internal server error")
		}),
	)
}

// FailedAttemptLimit only counts responses with an error status, so
// successful logins do not use up the budget.
func FailedAttemptLimit(l *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		state, err := l.Peek(c, key)
		if err != nil {
			logrus.WithField("area", "RATELIMIT").WithError(err).Error("rate limit store failed")
			c.Next()
			return
		}
		if state.Remaining <= 0 {
			rejectRateLimited(c, strconv.FormatInt(state.Reset, 10))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if _, err := l.Increment(c, key, 1); err != nil {
				logrus.WithField("area", "RATELIMIT").WithError(err).Error("record failed attempt")
			}
		}
	}
}

// rejectRateLimited answers 429. reset is the window end in unix seconds.
func rejectRateLimited(c *gin.Context, reset string) {
	logrus.WithFields(logrus.Fields{
		"area": "RATELIMIT",
		"ip":   c.ClientIP(),
		"path": c.FullPath(),
	}).Warn("rate limit exceeded")
	c.Header("Retry-After", strconv.FormatInt(retryAfter(reset, time.Now()), 10))
	abort(c, http.StatusTooManyRequests, tooManyRequests)
}

func retryAfter(reset string, now time.Time) int64 {
	at, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return 1
	}
	if wait := at - now.Unix(); wait > 0 {
		return wait
	}
	return 1
}
