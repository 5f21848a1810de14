package client

import (
	"context"
	"fmt"
	"net/url"

	app "github.com/turtacn/DealScope/internal/application/captable"
	"github.com/turtacn/DealScope/internal/domain/run"
)

// CapTableClient calls the cap-table and waterfall endpoints.
type CapTableClient struct {
	client *Client
}

// Simulate prices a round over the pre-investment table.
func (t *CapTableClient) Simulate(ctx context.Context, req *app.SimulateRequest) (*app.SimulateResponse, error) {
	var resp app.SimulateResponse
	if err := t.client.post(ctx, "/api/v1/captable/simulate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Impact evaluates several round scenarios against one table.
func (t *CapTableClient) Impact(ctx context.Context, req *app.ImpactRequest) (*app.ImpactResponse, error) {
	var resp app.ImpactResponse
	if err := t.client.post(ctx, "/api/v1/captable/impact", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Waterfall distributes exit values over a classed table.
func (t *CapTableClient) Waterfall(ctx context.Context, req *app.WaterfallRequest) (*app.WaterfallResponse, error) {
	var resp app.WaterfallResponse
	if err := t.client.post(ctx, "/api/v1/waterfall", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns returns the recorded runs of a pitch.  An empty kind lists all.
func (t *CapTableClient) ListRuns(ctx context.Context, pitchID string, kind run.Kind, page Page) (*ListResponse[*run.Run], error) {
	if pitchID == "" {
		return nil, fmt.Errorf("pitch ID is required")
	}
	q := url.Values{}
	if kind != "" {
		q.Set("kind", string(kind))
	}
	page.encode(q)
	var resp ListResponse[*run.Run]
	if err := t.client.get(ctx, "/api/v1/pitches/"+url.PathEscape(pitchID)+"/runs", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
