package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/auth"
	"marketplace/internal/models"
	"marketplace/internal/service"
)

const actorKey = "actor"

type TokenParser interface {
	Parse(raw string) (*auth.Claims, error)
}

// AccountLookup resolves the account behind a token so role changes and
// deactivation take effect before the token expires.
type AccountLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

var authLog = logrus.WithField("area", "AUTH")

// AuthGuard requires a valid bearer token for an active account. When roles
// are given the account must hold one of them.
func AuthGuard(tokens TokenParser, accounts AccountLookup, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			abort(c, http.StatusUnauthorized, "missing token")
			return
		}

		actor, ok := authenticate(c, tokens, accounts)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if actor.Role == r {
					match = true
					break
				}
			}
			if !match {
				abort(c, http.StatusForbidden, "forbidden")
				return
			}
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func AdminAuth(tokens TokenParser, accounts AccountLookup) gin.HandlerFunc {
	return AuthGuard(tokens, accounts, models.RoleAdmin)
}

// ActorFrom returns the caller set by AuthGuard or OptionalAuth.
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	value, ok := c.Get(actorKey)
	if !ok {
		return service.Actor{}, false
	}
	actor, ok := value.(service.Actor)
	return actor, ok
}

// OptionalActor is ActorFrom as a pointer, nil for anonymous callers.
func OptionalActor(c *gin.Context) *service.Actor {
	actor, ok := ActorFrom(c)
	if !ok {
		return nil
	}
	return &actor
}

func authenticate(c *gin.Context, tokens TokenParser, accounts AccountLookup) (service.Actor, bool) {
	raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		authLog.Debug("invalid token format")
		return service.Actor{}, false
	}
	return ResolveToken(c.Request.Context(), tokens, accounts, raw)
}

// ResolveToken validates an access token and loads the active account
// behind it.
func ResolveToken(ctx context.Context, tokens TokenParser, accounts AccountLookup, raw string) (service.Actor, bool) {
	claims, err := tokens.Parse(raw)
	if err != nil {
		authLog.WithError(err).Debug("token validation failed")
		return service.Actor{}, false
	}
	userID, err := claims.UserID()
	if err != nil {
		return service.Actor{}, false
	}

	user, err := accounts.FindByID(ctx, userID)
	if err != nil {
		authLog.WithError(err).WithField("user", userID.Hex()).Debug("token user not found")
		return service.Actor{}, false
	}
	if !user.IsActive {
		authLog.WithField("user", userID.Hex()).Info("token for inactive account")
		return service.Actor{}, false
	}
	return service.Actor{ID: user.ID, Role: user.Role}, true
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
