package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/marketplace/internal/authorization"
	"github.com/smallbiznis/marketplace/internal/cache"
	obslogger "github.com/smallbiznis/marketplace/internal/observability/logger"
)

const contextActorKey = "actor"

// RequestMemo scopes entitlement memoization to a single request.
func RequestMemo() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(cache.WithMemo(c.Request.Context()))
		c.Next()
	}
}

// ActorContext reads the caller from X-User-Id and X-Actor-Role. Requests
// without either are anonymous and may only reach read routes.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := authorization.Actor{
			UserID: strings.TrimSpace(c.GetHeader(obslogger.HeaderUserID)),
			Role:   strings.ToLower(strings.TrimSpace(c.GetHeader(obslogger.HeaderActorRole))),
		}
		c.Set(contextActorKey, actor)
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	if !ok || (actor.UserID == "" && actor.Role == "") {
		return authorization.Actor{}, false
	}
	return actor, true
}
