package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// bearerAuth admits requests carrying a valid access token and stores its
// payload on the gin context.
func (s *Server) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || token == "" {
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		p, err := s.tokens.Verify(auth.TokenAccess, token)
		if err != nil {
			s.logger.Debug(c.Request.Context(), "access token rejected", "error", err)
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// currentUser is only valid behind bearerAuth.
func currentUser(c *gin.Context) *auth.Payload {
	return c.MustGet(principalKey).(*auth.Payload)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
