package middleware

import (
	"github.com/gin-gonic/gin"
)

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous or invalid requests through without an actor.
func OptionalAuth(tokens TokenParser, accounts AccountLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if actor, ok := authenticate(c, tokens, accounts); ok {
				c.Set(actorKey, actor)
			}
		}
		c.Next()
	}
}
