package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	app "github.com/turtacn/DealScope/internal/application/captable"
	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
)

// CapTableService is the part of the cap-table application service the
// handler calls.
type CapTableService interface {
	Simulate(ctx context.Context, rc app.RequestContext, req *app.SimulateRequest) (*app.SimulateResponse, error)
	Impact(ctx context.Context, rc app.RequestContext, req *app.ImpactRequest) (*app.ImpactResponse, error)
	Waterfall(ctx context.Context, rc app.RequestContext, req *app.WaterfallRequest) (*app.WaterfallResponse, error)
	ListRuns(ctx context.Context, rc app.RequestContext, kind run.Kind, limit, offset int) ([]*run.Run, error)
}

// CapTableHandler serves the cap-table and waterfall endpoints.
type CapTableHandler struct {
	svc    CapTableService
	logger logging.Logger
}

// NewCapTableHandler creates a CapTableHandler.
func NewCapTableHandler(svc CapTableService, logger logging.Logger) *CapTableHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CapTableHandler{svc: svc, logger: logger}
}

func capTableContext(c *gin.Context) app.RequestContext {
	s := scopeOf(c)
	return app.RequestContext{OrgID: s.OrgID, UserID: s.UserID, PitchID: s.PitchID}
}

// Simulate handles POST /api/v1/captable/simulate.
func (h *CapTableHandler) Simulate(c *gin.Context) {
	var req app.SimulateRequest
	if err := bindJSON(c, &req); err != nil {
		writeAppError(c, err)
		return
	}
	resp, err := h.svc.Simulate(c.Request.Context(), capTableContext(c), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Impact handles POST /api/v1/captable/impact.
func (h *CapTableHandler) Impact(c *gin.Context) {
	var req app.ImpactRequest
	if err := bindJSON(c, &req); err != nil {
		writeAppError(c, err)
		return
	}
	resp, err := h.svc.Impact(c.Request.Context(), capTableContext(c), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Waterfall handles POST /api/v1/waterfall.
func (h *CapTableHandler) Waterfall(c *gin.Context) {
	var req app.WaterfallRequest
	if err := bindJSON(c, &req); err != nil {
		writeAppError(c, err)
		return
	}
	resp, err := h.svc.Waterfall(c.Request.Context(), capTableContext(c), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListRuns handles GET /api/v1/pitches/:pitch_id/runs?kind=.
func (h *CapTableHandler) ListRuns(c *gin.Context) {
	kind, err := run.ParseKind(c.Query("kind"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	limit, offset := parsePagination(c)
	runs, err := h.svc.ListRuns(c.Request.Context(), capTableContext(c), kind, limit, offset)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: runs, Limit: limit, Offset: offset})
}
