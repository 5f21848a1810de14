package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	capapp "github.com/turtacn/DealScope/internal/application/captable"
	"github.com/turtacn/DealScope/internal/application/history"
	valapp "github.com/turtacn/DealScope/internal/application/valuation"
	"github.com/turtacn/DealScope/internal/config"
	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/infrastructure/database/sqlite"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/client"
	"github.com/turtacn/DealScope/pkg/errors"
)

// Backend is what the commands run against: the in-process services or a
// remote API server.
type Backend interface {
	Valuate(ctx context.Context, req *valapp.ValuateRequest) (*valapp.ValuateResponse, error)
	Simulate(ctx context.Context, req *capapp.SimulateRequest) (*capapp.SimulateResponse, error)
	Impact(ctx context.Context, req *capapp.ImpactRequest) (*capapp.ImpactResponse, error)
	Waterfall(ctx context.Context, req *capapp.WaterfallRequest) (*capapp.WaterfallResponse, error)
	ListRuns(ctx context.Context, pitchID string, kind run.Kind, limit, offset int) ([]*run.Run, error)
	GetRun(ctx context.Context, id string) (*run.Run, error)
	ListComps(ctx context.Context, sector string) ([]*comps.Sample, error)
	ImportComps(ctx context.Context, samples []*comps.Sample) error
	Close() error
}

// ── local ────────────────────────────────────────────────────────────────────

type localBackend struct {
	store     *sqlite.HistoryStore
	history   *history.Service
	valuation *valapp.Service
	captable  *capapp.Service
	library   comps.Repository
	orgID     string
	userID    string
}

func newLocalBackend(cfg *config.Config, opts *RootOptions, logger logging.Logger) (*localBackend, error) {
	b := &localBackend{orgID: opts.OrgID, userID: opts.UserID}

	var repo run.Repository = sqlite.NewNoopStore()
	if !opts.NoHistory {
		path := opts.HistoryDB
		if path == "" {
			path = cfg.SQLite.Path
		}
		store, err := sqlite.Open(path, logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		b.store = store
		b.library = store.Comps()
		repo = store
	}

	b.history = history.NewService(repo, nil, 0, nil, logger)
	var err error
	if b.valuation, err = valapp.NewService(valapp.Deps{
		History: b.history,
		Comps:   b.library,
		Logger:  logger,
		Config:  cfg.Valuation,
	}); err != nil {
		b.Close()
		return nil, err
	}
	if b.captable, err = capapp.NewService(capapp.Deps{History: b.history, Logger: logger}); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *localBackend) Valuate(ctx context.Context, req *valapp.ValuateRequest) (*valapp.ValuateResponse, error) {
	return b.valuation.Valuate(ctx, valapp.RequestContext{OrgID: b.orgID, UserID: b.userID}, req)
}

func (b *localBackend) Simulate(ctx context.Context, req *capapp.SimulateRequest) (*capapp.SimulateResponse, error) {
	return b.captable.Simulate(ctx, b.capContext(), req)
}

func (b *localBackend) Impact(ctx context.Context, req *capapp.ImpactRequest) (*capapp.ImpactResponse, error) {
	return b.captable.Impact(ctx, b.capContext(), req)
}

func (b *localBackend) Waterfall(ctx context.Context, req *capapp.WaterfallRequest) (*capapp.WaterfallResponse, error) {
	return b.captable.Waterfall(ctx, b.capContext(), req)
}

func (b *localBackend) capContext() capapp.RequestContext {
	return capapp.RequestContext{OrgID: b.orgID, UserID: b.userID}
}

func (b *localBackend) ListRuns(ctx context.Context, pitchID string, kind run.Kind, limit, offset int) ([]*run.Run, error) {
	return b.history.List(ctx, run.Filter{OrgID: b.orgID, PitchID: pitchID, Kind: kind, Limit: limit, Offset: offset})
}

func (b *localBackend) GetRun(ctx context.Context, id string) (*run.Run, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.InvalidParam("run ID must be a UUID").WithDetailf("run_id=%q", id)
	}
	return b.history.Get(ctx, parsed)
}

func (b *localBackend) ListComps(ctx context.Context, sector string) ([]*comps.Sample, error) {
	return b.valuation.ListComps(ctx, sector)
}

func (b *localBackend) ImportComps(ctx context.Context, samples []*comps.Sample) error {
	if b.library == nil {
		return errors.InvalidParam("the comparables library lives in the history database; drop --no-history")
	}
	for _, s := range samples {
		if err := b.library.Upsert(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *localBackend) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}

// ── remote ───────────────────────────────────────────────────────────────────

type remoteBackend struct {
	c *client.Client
}

// sdkLogger adapts logging.Logger to the SDK's printf-style interface.
type sdkLogger struct{ l logging.Logger }

func (s sdkLogger) Debugf(format string, args ...interface{}) { s.l.Debug(fmt.Sprintf(format, args...)) }
func (s sdkLogger) Infof(format string, args ...interface{})  { s.l.Info(fmt.Sprintf(format, args...)) }
func (s sdkLogger) Errorf(format string, args ...interface{}) { s.l.Error(fmt.Sprintf(format, args...)) }

func newRemoteBackend(opts *RootOptions, logger logging.Logger) (*remoteBackend, error) {
	c, err := client.NewClient(opts.ServerAddr,
		client.WithOrg(opts.OrgID),
		client.WithUser(opts.UserID),
		client.WithLogger(sdkLogger{logger.Named("client")}),
		client.WithUserAgent("dealscope-cli/"+Version),
	)
	if err != nil {
		return nil, err
	}
	return &remoteBackend{c: c}, nil
}

func (b *remoteBackend) Valuate(ctx context.Context, req *valapp.ValuateRequest) (*valapp.ValuateResponse, error) {
	return b.c.Valuations().Valuate(ctx, req)
}

func (b *remoteBackend) Simulate(ctx context.Context, req *capapp.SimulateRequest) (*capapp.SimulateResponse, error) {
	return b.c.CapTable().Simulate(ctx, req)
}

func (b *remoteBackend) Impact(ctx context.Context, req *capapp.ImpactRequest) (*capapp.ImpactResponse, error) {
	return b.c.CapTable().Impact(ctx, req)
}

func (b *remoteBackend) Waterfall(ctx context.Context, req *capapp.WaterfallRequest) (*capapp.WaterfallResponse, error) {
	return b.c.CapTable().Waterfall(ctx, req)
}

// ListRuns needs a pitch on the server; valuation runs have their own route.
func (b *remoteBackend) ListRuns(ctx context.Context, pitchID string, kind run.Kind, limit, offset int) ([]*run.Run, error) {
	if pitchID == "" {
		return nil, errors.InvalidParam("--pitch is required with --server")
	}
	page := client.Page{Limit: limit, Offset: offset}
	var (
		resp *client.ListResponse[*run.Run]
		err  error
	)
	if kind == run.KindValuation {
		resp, err = b.c.Valuations().List(ctx, pitchID, page)
	} else {
		resp, err = b.c.CapTable().ListRuns(ctx, pitchID, kind, page)
	}
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (b *remoteBackend) GetRun(ctx context.Context, id string) (*run.Run, error) {
	return b.c.GetRun(ctx, id)
}

func (b *remoteBackend) ListComps(ctx context.Context, sector string) ([]*comps.Sample, error) {
	return b.c.Valuations().ListComps(ctx, sector)
}

func (b *remoteBackend) ImportComps(context.Context, []*comps.Sample) error {
	return errors.New(errors.ErrCodeNotImplemented, "the API does not accept comparables imports; seed the server's library instead")
}

func (b *remoteBackend) Close() error { return nil }
