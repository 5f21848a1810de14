package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/pkg/errors"
)

// RunReader loads one persisted run; *history.Service satisfies it.
type RunReader interface {
	Get(ctx context.Context, id uuid.UUID) (*run.Run, error)
}

// RunHandler serves persisted runs by ID.
type RunHandler struct {
	runs RunReader
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(runs RunReader) *RunHandler {
	return &RunHandler{runs: runs}
}

// Get handles GET /api/v1/runs/:run_id.  A run of another org is reported
// as missing.
func (h *RunHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		writeAppError(c, errors.InvalidParam("run_id must be a UUID").WithDetailf("run_id=%q", c.Param("run_id")))
		return
	}
	r, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	if org := scopeOf(c).OrgID; org != "" && r.OrgID != org {
		writeAppError(c, errors.New(errors.ErrCodeRunNotFound, "run not found").WithDetailf("run_id=%s", id))
		return
	}
	c.JSON(http.StatusOK, r)
}
