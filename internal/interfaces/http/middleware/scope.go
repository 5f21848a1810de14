package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

// Caller headers.  Authentication is out of scope; whoever fronts the API
// is trusted to set these.
const (
	HeaderOrgID  = "X-Org-ID"
	HeaderUserID = "X-User-ID"
)

const scopeKey = "dealscope.scope"

// Scope is the caller context resolved for one request.
type Scope struct {
	OrgID   string
	UserID  string
	PitchID string
}

// ScopeConfig controls caller-scope extraction.
type ScopeConfig struct {
	// RequireOrg rejects requests without an org ID with 400.
	RequireOrg bool

	// DefaultOrgID is used when the header is absent and RequireOrg is false.
	DefaultOrgID string

	// PitchParam is the route parameter holding the pitch ID.
	PitchParam string
}

// DefaultScopeConfig accepts anonymous callers.
func DefaultScopeConfig() ScopeConfig {
	return ScopeConfig{PitchParam: "pitch_id"}
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

func validID(id string) bool { return id == "" || idPattern.MatchString(id) }

// RequestScope resolves the org, user and pitch IDs of a request, stores
// them on the gin context and adds them to the request context so every
// log line carries them.
func RequestScope(cfg ScopeConfig, logger logging.Logger) gin.HandlerFunc {
	if cfg.PitchParam == "" {
		cfg.PitchParam = "pitch_id"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(c *gin.Context) {
		s := Scope{
			OrgID:   c.GetHeader(HeaderOrgID),
			UserID:  c.GetHeader(HeaderUserID),
			PitchID: c.Param(cfg.PitchParam),
		}
		if s.OrgID == "" {
			s.OrgID = cfg.DefaultOrgID
		}

		if s.OrgID == "" && cfg.RequireOrg {
			logger.Warn("org ID missing in required mode",
				logging.String("method", c.Request.Method),
				logging.String("path", c.Request.URL.Path),
			)
			abort(c, http.StatusBadRequest, errors.ErrCodeBadRequest,
				fmt.Sprintf("org ID is required: provide the %s header", HeaderOrgID))
			return
		}

		for _, id := range [...]struct{ kind, v string }{{"org", s.OrgID}, {"user", s.UserID}, {"pitch", s.PitchID}} {
			if !validID(id.v) {
				logger.Warn("invalid caller ID format",
					logging.String("kind", id.kind),
					logging.String("value", id.v),
					logging.String("path", c.Request.URL.Path),
				)
				abort(c, http.StatusBadRequest, errors.ErrCodeBadRequest,
					fmt.Sprintf("invalid %s ID format: must match %s, got %q", id.kind, idPattern.String(), id.v))
				return
			}
		}

		c.Set(scopeKey, s)
		c.Request = c.Request.WithContext(logging.WithScope(c.Request.Context(), s.OrgID, s.UserID, s.PitchID))
		c.Next()
	}
}

// ScopeFrom returns the scope stored by RequestScope.  Without the
// middleware only the route's pitch parameter is filled.
func ScopeFrom(c *gin.Context) Scope {
	if v, ok := c.Get(scopeKey); ok {
		if s, ok := v.(Scope); ok {
			return s
		}
	}
	return Scope{PitchID: c.Param("pitch_id")}
}
