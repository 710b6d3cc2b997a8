package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicehub/internal/common"
)

// RequestID tags every request with an id for log correlation. An inbound
// X-Request-ID from the proxy wins; otherwise one is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequireOwner resolves the authenticated owner from the X-Owner-ID header
// set by the auth proxy and stores it on the request context. Requests
// without a parseable owner are rejected before any handler runs.
func RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-Owner-ID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-Owner-ID header must be a UUID"})
			return
		}
		c.Request = c.Request.WithContext(common.WithOwnerID(c.Request.Context(), id))
		c.Next()
	}
}
