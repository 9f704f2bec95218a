package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"busticket/internal/domain"
)

type stubParser map[string]domain.RequestContext

func (p stubParser) Parse(token string) (domain.RequestContext, error) {
	rc, ok := p[token]
	if !ok {
		return domain.RequestContext{}, errors.New("bad token")
	}
	return rc, nil
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), CORS([]string{"https://book.example"}))
	parser := stubParser{
		"agent-token": {AgentID: 3, Role: "agent"},
		"admin-token": {AgentID: 1, Role: "ADMIN"},
	}
	r.GET("/who", RequireAuth(parser), RequireRoles("agent", "admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, GetRequestContext(c))
	})
	r.GET("/admin-only", RequireAuth(parser), RequireRoles("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	r := newEngine()
	w := serve(r, "/who", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = serve(r, "/who", nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestRequireAuth(t *testing.T) {
	r := newEngine()

	w := serve(r, "/who", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id"`)

	w = serve(r, "/who", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, "/who", map[string]string{"Authorization": "Bearer agent-token"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"agentId":3,"role":"agent"}`, w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	r := newEngine()

	w := serve(r, "/admin-only", map[string]string{"Authorization": "Bearer agent-token"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, "/admin-only", map[string]string{"Authorization": "Bearer admin-token"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := newEngine()
	w := serve(r, "/who", map[string]string{"Origin": "https://book.example", "Authorization": "Bearer agent-token"})
	assert.Equal(t, "https://book.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, "/who", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
