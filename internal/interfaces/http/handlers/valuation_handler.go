package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	app "github.com/turtacn/DealScope/internal/application/valuation"
	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/domain/run"
	domain "github.com/turtacn/DealScope/internal/domain/valuation"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

// ValuationService is the part of the valuation application service the
// handler calls.
type ValuationService interface {
	Valuate(ctx context.Context, rc app.RequestContext, req *app.ValuateRequest) (*app.ValuateResponse, error)
	Submit(ctx context.Context, rc app.RequestContext, req *app.ValuateRequest) (*app.Job, error)
	ListRuns(ctx context.Context, rc app.RequestContext, limit, offset int) ([]*run.Run, error)
	Comps(ctx context.Context, k comps.Key) (*comps.Sample, error)
	ListComps(ctx context.Context, sector string) ([]*comps.Sample, error)
}

// ValuationHandler serves the valuation, comparables and catalog endpoints.
type ValuationHandler struct {
	svc    ValuationService
	logger logging.Logger
}

// NewValuationHandler creates a ValuationHandler.
func NewValuationHandler(svc ValuationService, logger logging.Logger) *ValuationHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ValuationHandler{svc: svc, logger: logger}
}

// SingleValuationRequest is the body of POST /valuations/:method.
type SingleValuationRequest struct {
	PitchID string              `json:"pitch_id,omitempty"`
	Pitch   *domain.PitchInputs `json:"pitch,omitempty"`
	Inputs  json.RawMessage     `json:"inputs"`
}

func requestContext(c *gin.Context) app.RequestContext {
	s := scopeOf(c)
	return app.RequestContext{OrgID: s.OrgID, UserID: s.UserID, PitchID: s.PitchID}
}

// Valuate handles POST /api/v1/valuations.
func (h *ValuationHandler) Valuate(c *gin.Context) {
	var req app.ValuateRequest
	if err := bindJSON(c, &req); err != nil {
		writeAppError(c, err)
		return
	}
	resp, err := h.svc.Valuate(c.Request.Context(), requestContext(c), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ValuateMethod handles POST /api/v1/valuations/:method.  A failed method
// answers with its error code; the run is still recorded.
func (h *ValuationHandler) ValuateMethod(c *gin.Context) {
	method, err := domain.ParseMethod(c.Param("method"))
	if err != nil {
		writeAppError(c, err)
		return
	}
	var body SingleValuationRequest
	if err := bindJSON(c, &body); err != nil {
		writeAppError(c, err)
		return
	}
	resp, err := h.svc.Valuate(c.Request.Context(), requestContext(c), &app.ValuateRequest{
		PitchID:  body.PitchID,
		Pitch:    body.Pitch,
		Requests: []domain.Request{{MethodName: string(method), Inputs: body.Inputs}},
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	if len(resp.Outcomes) == 1 && !resp.Outcomes[0].OK() {
		oe := resp.Outcomes[0].Err
		writeAppError(c, errors.New(oe.Code, oe.Message).WithDetail(oe.Detail))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitJob handles POST /api/v1/valuations/jobs.
func (h *ValuationHandler) SubmitJob(c *gin.Context) {
	var req app.ValuateRequest
	if err := bindJSON(c, &req); err != nil {
		writeAppError(c, err)
		return
	}
	job, err := h.svc.Submit(c.Request.Context(), requestContext(c), &req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// ListRuns handles GET /api/v1/pitches/:pitch_id/valuations.
func (h *ValuationHandler) ListRuns(c *gin.Context) {
	limit, offset := parsePagination(c)
	runs, err := h.svc.ListRuns(c.Request.Context(), requestContext(c), limit, offset)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Items: runs, Limit: limit, Offset: offset})
}

// Comps handles GET /api/v1/comps.  With a stage the single library sample
// is returned; otherwise the samples of the sector (or all) are listed.
func (h *ValuationHandler) Comps(c *gin.Context) {
	key := comps.Key{
		Sector: c.Query("sector"),
		Stage:  c.Query("stage"),
		Geo:    c.Query("geo"),
		Metric: c.Query("metric"),
	}
	if key.Stage == "" {
		samples, err := h.svc.ListComps(c.Request.Context(), key.Sector)
		if err != nil {
			writeAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": samples})
		return
	}
	sample, err := h.svc.Comps(c.Request.Context(), key)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}

// Methods handles GET /api/v1/methods.
func (h *ValuationHandler) Methods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": app.Catalog()})
}
