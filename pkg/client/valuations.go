package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	app "github.com/turtacn/DealScope/internal/application/valuation"
	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/domain/run"
	domain "github.com/turtacn/DealScope/internal/domain/valuation"
)

// ValuationsClient calls the valuation endpoints.
type ValuationsClient struct {
	client *Client
}

// Valuate runs a batch of methods for one pitch.  Per-method failures come
// back inside the outcomes, not as an error.
func (v *ValuationsClient) Valuate(ctx context.Context, req *app.ValuateRequest) (*app.ValuateResponse, error) {
	wire, err := wireRequest(req)
	if err != nil {
		return nil, err
	}
	var resp app.ValuateResponse
	if err := v.client.post(ctx, "/api/v1/valuations", wire, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValuateMethod runs a single method.  A method failure is returned as an
// *APIError carrying the method's error code.
func (v *ValuationsClient) ValuateMethod(ctx context.Context, pitchID string, pitch *domain.PitchInputs, in domain.Input) (*app.ValuateResponse, error) {
	if in == nil {
		return nil, fmt.Errorf("valuation input is required")
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s inputs: %w", in.Method(), err)
	}
	body := struct {
		PitchID string              `json:"pitch_id,omitempty"`
		Pitch   *domain.PitchInputs `json:"pitch,omitempty"`
		Inputs  json.RawMessage     `json:"inputs"`
	}{pitchID, pitch, raw}

	var resp app.ValuateResponse
	if err := v.client.post(ctx, "/api/v1/valuations/"+url.PathEscape(string(in.Method())), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit queues a batch for asynchronous evaluation.
func (v *ValuationsClient) Submit(ctx context.Context, req *app.ValuateRequest) (*app.Job, error) {
	wire, err := wireRequest(req)
	if err != nil {
		return nil, err
	}
	var job app.Job
	if err := v.client.post(ctx, "/api/v1/valuations/jobs", wire, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns the recorded valuation runs of a pitch, newest first.
func (v *ValuationsClient) List(ctx context.Context, pitchID string, page Page) (*ListResponse[*run.Run], error) {
	if pitchID == "" {
		return nil, fmt.Errorf("pitch ID is required")
	}
	q := url.Values{}
	page.encode(q)
	var resp ListResponse[*run.Run]
	if err := v.client.get(ctx, "/api/v1/pitches/"+url.PathEscape(pitchID)+"/valuations", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Comps fetches the library sample for key.
func (v *ValuationsClient) Comps(ctx context.Context, key comps.Key) (*comps.Sample, error) {
	if key.Sector == "" || key.Stage == "" {
		return nil, fmt.Errorf("sector and stage are required")
	}
	var sample comps.Sample
	if err := v.client.get(ctx, "/api/v1/comps", compsQuery(key), &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

// ListComps lists the library samples of sector, or all samples when
// sector is empty.
func (v *ValuationsClient) ListComps(ctx context.Context, sector string) ([]*comps.Sample, error) {
	q := url.Values{}
	if sector != "" {
		q.Set("sector", sector)
	}
	var resp ListResponse[*comps.Sample]
	if err := v.client.get(ctx, "/api/v1/comps", q, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Methods lists the supported valuation methods.
func (v *ValuationsClient) Methods(ctx context.Context) ([]app.MethodInfo, error) {
	var resp ListResponse[app.MethodInfo]
	if err := v.client.get(ctx, "/api/v1/methods", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// GetRun fetches one recorded run of any kind.
func (c *Client) GetRun(ctx context.Context, runID string) (*run.Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}
	var r run.Run
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(runID), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func compsQuery(k comps.Key) url.Values {
	q := url.Values{}
	for name, v := range map[string]string{"sector": k.Sector, "stage": k.Stage, "geo": k.Geo, "metric": k.Metric} {
		if v != "" {
			q.Set(name, v)
		}
	}
	return q
}

// wireRequest copies req with every typed Input rendered into its wire
// pair, since Input itself is not serialised.
func wireRequest(req *app.ValuateRequest) (*app.ValuateRequest, error) {
	if req == nil || len(req.Requests) == 0 {
		return nil, fmt.Errorf("at least one valuation request is required")
	}
	out := *req
	out.Requests = make([]domain.Request, len(req.Requests))
	for i, r := range req.Requests {
		if r.Input != nil {
			raw, err := json.Marshal(r.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal %s inputs: %w", r.Input.Method(), err)
			}
			r = domain.Request{MethodName: string(r.Input.Method()), Inputs: raw}
		}
		out.Requests[i] = r
	}
	return &out, nil
}
