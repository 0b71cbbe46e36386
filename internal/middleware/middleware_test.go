package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/internal/service"
)

type headerResolver struct{}

func (headerResolver) Resolve(r *http.Request) string { return r.Header.Get("X-User") }

type staticPrincipals map[string]models.Role

func (s staticPrincipals) Principal(identity string) *models.Principal {
	role, ok := s[identity]
	if !ok {
		role = models.RoleUnauthorized
	}
	return &models.Principal{Email: identity, Role: role}
}

func newGatedRouter(gate gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	principals := staticPrincipals{"maker@maya.ph": models.RoleMaker, "admin@maya.ph": models.RoleAdmin}
	r.Use(Identity(headerResolver{}, principals))
	r.GET("/open", func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFromContext(c).Email)
	})
	r.GET("/gated", gate, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func perform(r http.Handler, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentityRequiresCaller(t *testing.T) {
	r := newGatedRouter(RequireReviewer())

	w := perform(r, "/open", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")

	w = perform(r, "/open", "stranger@maya.ph")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stranger@maya.ph", w.Body.String())
}

func TestRBACFailsClosed(t *testing.T) {
	r := newGatedRouter(RequireReviewer())
	assert.Equal(t, http.StatusForbidden, perform(r, "/gated", "stranger@maya.ph").Code)
	assert.Equal(t, http.StatusNoContent, perform(r, "/gated", "maker@maya.ph").Code)

	adminOnly := newGatedRouter(RBAC(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, perform(adminOnly, "/gated", "maker@maya.ph").Code)
	assert.Equal(t, http.StatusNoContent, perform(adminOnly, "/gated", "admin@maya.ph").Code)
}

func TestAuditRecordsReviewActions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Identity(headerResolver{}, staticPrincipals{"checker@maya.ph": models.RoleChecker}))
	r.POST("/sessions/:id/records/:identity/approve", Audit(zap.New(core), "approve"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.POST("/sessions/:id/reject", Audit(zap.New(core), "reject_many"), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/sessions/s-1/records/M-9/approve", nil)
	req.Header.Set("X-User", "checker@maya.ph")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/sessions/s-1/reject", nil)
	req.Header.Set("X-User", "checker@maya.ph")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "review action", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "approve", fields["action"])
	assert.Equal(t, "s-1", fields["session_id"])
	assert.Equal(t, "M-9", fields["identity"])
	assert.Equal(t, "checker@maya.ph", fields["email"])
	assert.Equal(t, "CHECKER", fields["role"])

	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "review action refused", entries[1].Message)
	assert.NotContains(t, entries[1].ContextMap(), "identity")
}

func TestMetricsLabelsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/4f1c", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere/123", nil))

	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `path="/sessions/:id"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, "4f1c")
}
