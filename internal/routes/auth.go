package routes

import (
	"net/http"
	"radworklist/external/nostr"
	"radworklist/external/worklist"
	"time"

	"github.com/gin-gonic/gin"
)

const NOSTRAUTH = "nostr_auth"

func actionForMethod(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return nostr.UPLOAD
	case http.MethodDelete:
		return nostr.DELETE
	default:
		return nostr.GET
	}
}

// NostrAuthMiddleware requires a signed kind 24242 event in the
// Authorization header granting the action of the request method.
func NostrAuthMiddleware(authorizedKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := nostr.ParseNostrHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(401, worklist.NotifMessage{Message: "Missing auth event"})
			return
		}

		if !nostr.PubkeyAuthorized(event.PubKey, authorizedKeys) {
			c.AbortWithStatusJSON(401, worklist.NotifMessage{Message: "unauthorized"})
			return
		}

		err = nostr.ValidateAuthEvent(event, actionForMethod(c.Request.Method), time.Now())
		if err != nil {
			c.AbortWithStatusJSON(401, worklist.NotifMessage{Message: "Invalid nostr event"})
			return
		}

		c.Set(NOSTRAUTH, event)
		c.Next()
	}
}

// MaxBodySize caps request bodies at limit bytes.
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
