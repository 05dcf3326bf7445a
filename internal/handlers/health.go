package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the database answers.
type Pinger func(ctx context.Context) error

func ensureDBConnection(ctx context.Context, ping Pinger) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return ping(checkCtx)
}

func Health(ping Pinger, startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /health"
		defer handlePanic(c, route)

		status := http.StatusOK
		database := "up"
		if err := ensureDBConnection(c.Request.Context(), ping); err != nil {
			status = http.StatusServiceUnavailable
			database = "down"
		}

		c.JSON(status, gin.H{
			"success":   status == http.StatusOK,
			"database":  database,
			"uptime":    time.Since(startedAt).Round(time.Second).String(),
			"timestamp": time.Now().UTC(),
		})
	}
}
