package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/auth"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/response"
)

const identityKey = "identity"

// AuthMiddleware verifies the bearer token and stores the resolved identity
// on the request context.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		ident, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid or missing token")
			c.Abort()
			return
		}

		c.Set(identityKey, ident)
		// Picked up by the request-completion log line.
		c.Set(log.FieldUserID, ident.UserID)
		c.Set(log.FieldRole, ident.Role)

		logger := log.Ctx(c.Request.Context()).With().
			Str(log.FieldUserID, ident.UserID).
			Str(log.FieldRole, ident.Role).
			Logger()
		c.Request = c.Request.WithContext(log.WithLogger(c.Request.Context(), logger))

		c.Next()
	}
}

// IdentityFrom returns the verified identity set by AuthMiddleware.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	ident, ok := v.(domain.Identity)
	return ident, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return c.Query("token")
}
