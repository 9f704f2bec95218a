package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"busticket/internal/domain"
)

const (
	agentIDKey = "agentId"
	roleKey    = "userRole"
)

// TokenParser turns a bearer token into the caller's identity.
type TokenParser interface {
	Parse(token string) (domain.RequestContext, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortJSON(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		rc, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(agentIDKey, int64(rc.AgentID))
		c.Set(roleKey, rc.Role)
		c.Next()
	}
}

// GetRequestContext returns the authenticated agent, if any.
func GetRequestContext(c *gin.Context) domain.RequestContext {
	return domain.RequestContext{
		AgentID: domain.ID(c.GetInt64(agentIDKey)),
		Role:    c.GetString(roleKey),
	}
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error":      msg,
		"code":       strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		"request_id": GetRequestID(c),
	})
}
