package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/testutil"
)

func TestRequestID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		seen = logging.RequestIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/x", map[string]string{HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42", seen)

	w = serve(r, http.MethodGet, "/x", nil)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Equal(t, w.Header().Get(HeaderRequestID), seen)
}

func TestRequestLogging_LevelsByStatus(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestLogging(log, DefaultLoggingConfig()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/ok?x=1", nil)
	serve(r, http.MethodGet, "/bad", nil)
	serve(r, http.MethodGet, "/boom", nil)
	serve(r, http.MethodGet, "/healthz", nil)

	assert.True(t, log.HasMessage("info", "HTTP request completed"))
	assert.True(t, log.HasMessage("warn", "HTTP request completed with client error"))
	assert.True(t, log.HasMessage("error", "HTTP request completed with server error"))
	assert.Len(t, log.Messages(), 3, "probe paths are skipped")

	msg, ok := log.Find("info", "HTTP request completed")
	require.True(t, ok)
	path, _ := msg.Field("path")
	assert.Equal(t, "/ok?x=1", path)
}

func TestRecovery(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(Recovery(log))
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "COMMON_001")
	assert.True(t, log.HasMessage("error", "Panic serving request"))
}

func TestScope(t *testing.T) {
	var got Scope
	var ctxFields []logging.Field
	r := gin.New()
	r.Use(RequestScope(DefaultScopeConfig(), logging.NewNopLogger()))
	r.GET("/pitches/:pitch_id", func(c *gin.Context) {
		got = ScopeFrom(c)
		ctxFields = logging.ContextFields(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/pitches/p-1", map[string]string{HeaderOrgID: "org-1", HeaderUserID: "u-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Scope{OrgID: "org-1", UserID: "u-1", PitchID: "p-1"}, got)
	assert.Len(t, ctxFields, 3)

	w = serve(r, http.MethodGet, "/pitches/p-1", map[string]string{HeaderOrgID: "bad org!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid org ID format")
}

func TestScope_RequireOrg(t *testing.T) {
	cfg := DefaultScopeConfig()
	cfg.RequireOrg = true
	r := gin.New()
	r.Use(RequestScope(cfg, logging.NewNopLogger()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", map[string]string{HeaderOrgID: "org-1"}).Code)

	cfg.DefaultOrgID = "local"
	r = gin.New()
	r.Use(RequestScope(cfg, logging.NewNopLogger()))
	var got Scope
	r.GET("/x", func(c *gin.Context) { got = ScopeFrom(c); c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
	assert.Equal(t, "local", got.OrgID)
}
