package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/DealScope/internal/application/captable"
	"github.com/turtacn/DealScope/internal/application/history"
	"github.com/turtacn/DealScope/internal/application/valuation"
	"github.com/turtacn/DealScope/internal/config"
	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/infrastructure/database/sqlite"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/DealScope/internal/interfaces/http/handlers"
	"github.com/turtacn/DealScope/internal/interfaces/http/middleware"
	"github.com/turtacn/DealScope/internal/testutil"
)

func init() { gin.SetMode(gin.TestMode) }

// APITestSuite drives the full route tree over real application services
// backed by an in-memory SQLite run store.
type APITestSuite struct {
	suite.Suite
	store  *sqlite.HistoryStore
	pub    *testutil.MockEventPublisher
	router *gin.Engine
}

func (s *APITestSuite) SetupTest() {
	log := logging.NewNopLogger()
	store, err := sqlite.Open(":memory:", log)
	s.Require().NoError(err)
	s.store = store

	s.pub = &testutil.MockEventPublisher{}
	s.pub.On("PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	hist := history.NewService(store, nil, 0, nil, log)
	notifier := history.NewNotifier(s.pub, nil, log)

	valSvc, err := valuation.NewService(valuation.Deps{
		History:  hist,
		Notifier: notifier,
		Jobs:     s.pub,
		Comps: testutil.NewCompsRepo(&comps.Sample{
			Key:       comps.Key{Sector: "saas", Stage: "seed", Geo: "us", Metric: "ev/arr"},
			Multiples: []float64{4, 6, 8, 10, 12},
		}),
		Config: config.ValuationConfig{DefaultGeo: "us", DefaultMetric: "ev/arr"},
	})
	s.Require().NoError(err)
	capSvc, err := captable.NewService(captable.Deps{History: hist, Notifier: notifier})
	s.Require().NoError(err)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://app.dealscope.io"}
	s.router = NewRouter(RouterConfig{
		ValuationHandler: handlers.NewValuationHandler(valSvc, log),
		CapTableHandler:  handlers.NewCapTableHandler(capSvc, log),
		RunHandler:       handlers.NewRunHandler(hist),
		HealthHandler:    handlers.NewHealthHandler("test"),
		CORS:             &cors,
		Scope:            middleware.DefaultScopeConfig(),
		Logging:          middleware.DefaultLoggingConfig(),
		MaxBodySize:      1 << 20,
		MetricsCollector: prometheus.NewNoopCollector(),
	})
}

func (s *APITestSuite) TearDownTest() {
	s.store.Close()
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *APITestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *APITestSuite) TestHealthAndMetrics() {
	w := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("alive", s.decode(w)["status"])

	s.Equal(http.StatusOK, s.do(http.MethodGet, "/readyz", "").Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/metrics", "").Code)
	s.NotEmpty(w.Header().Get(middleware.HeaderRequestID))
}

func (s *APITestSuite) TestValuateBatch() {
	w := s.do(http.MethodPost, "/api/v1/valuations", `{
		"pitch_id": "pitch-1",
		"requests": [
			{"method": "berkus", "inputs": {"sound_idea": true, "prototype": true, "quality_team": true, "strategic_relationships": true, "product_rollout": true}},
			{"method": "comps", "inputs": {"sector": "saas", "stage": "seed", "target_revenue": 1000000}},
			{"method": "astrology", "inputs": {}}
		]
	}`, middleware.HeaderOrgID, "org-1")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	body := s.decode(w)
	s.Equal("pitch-1", body["pitch_id"])
	s.NotEmpty(body["run_id"])
	outcomes := body["outcomes"].([]interface{})
	s.Require().Len(outcomes, 3)

	berkus := outcomes[0].(map[string]interface{})
	s.InDelta(2_500_000, berkus["result_base"], 1e-6)
	s.InDelta(1_750_000, berkus["result_low"], 1e-6)
	s.InDelta(3_250_000, berkus["result_high"], 1e-6)

	comp := outcomes[1].(map[string]interface{})
	s.InDelta(8_000_000, comp["result_base"], 1e-6)

	failed := outcomes[2].(map[string]interface{})
	s.Equal("VAL_002", failed["error"].(map[string]interface{})["code"])

	consensus := body["consensus"].(map[string]interface{})
	s.EqualValues(2, consensus["succeeded"])

	// The run is listed under the pitch and readable by ID.
	w = s.do(http.MethodGet, "/api/v1/pitches/pitch-1/valuations", "", middleware.HeaderOrgID, "org-1")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["items"], 1)

	runPath := "/api/v1/runs/" + body["run_id"].(string)
	w = s.do(http.MethodGet, runPath, "", middleware.HeaderOrgID, "org-1")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("valuation", s.decode(w)["kind"])

	w = s.do(http.MethodGet, runPath, "", middleware.HeaderOrgID, "org-2")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestValuateSingleMethod() {
	w := s.do(http.MethodPost, "/api/v1/valuations/berkus", `{"pitch_id": "p", "inputs": {"sound_idea": true}}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Len(s.decode(w)["outcomes"], 1)

	w = s.do(http.MethodPost, "/api/v1/valuations/astrology", `{"inputs": {}}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VAL_002", s.decode(w)["code"])

	w = s.do(http.MethodPost, "/api/v1/valuations/vc_method", `{"pitch_id": "p", "inputs": {"target_exit_value": -1, "required_return_multiple": 10}}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("CALC_001", s.decode(w)["code"])
}

func (s *APITestSuite) TestValuateErrors() {
	w := s.do(http.MethodPost, "/api/v1/valuations", `{"requests": [`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("COMMON_002", s.decode(w)["code"])

	w = s.do(http.MethodPost, "/api/v1/valuations", `{"requests": []}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("CALC_001", s.decode(w)["code"])

	w = s.do(http.MethodGet, "/api/v1/pitches/p/valuations", "", middleware.HeaderOrgID, "not valid!")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/runs/not-a-uuid", "")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/runs/6f1c2a52-7a55-4c9f-8f5e-0d1c1d9a1b11", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("CAP_002", s.decode(w)["code"])

	w = s.do(http.MethodGet, "/api/v1/nowhere", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestSubmitJob() {
	w := s.do(http.MethodPost, "/api/v1/valuations/jobs", `{"pitch_id": "p9", "requests": [{"method": "berkus", "inputs": {}}]}`)
	s.Require().Equal(http.StatusAccepted, w.Code, w.Body.String())
	body := s.decode(w)
	s.Equal("queued", body["status"])
	s.Equal("p9", body["pitch_id"])
	s.NotEmpty(body["job_id"])
}

func (s *APITestSuite) TestComps() {
	w := s.do(http.MethodGet, "/api/v1/comps?sector=SaaS&stage=seed", "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Len(s.decode(w)["multiples"], 5)

	w = s.do(http.MethodGet, "/api/v1/comps?sector=saas", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["items"], 1)

	w = s.do(http.MethodGet, "/api/v1/comps?sector=biotech&stage=seed", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("VAL_003", s.decode(w)["code"])
}

func (s *APITestSuite) TestMethods() {
	w := s.do(http.MethodGet, "/api/v1/methods", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["items"], 5)
}

func (s *APITestSuite) TestCapTableAndWaterfall() {
	w := s.do(http.MethodPost, "/api/v1/captable/simulate", `{
		"pitch_id": "pitch-1",
		"pre_table": [{"holder": "Founders", "holder_type": "founder", "shares": 8000000}],
		"investment_amount": 1000000,
		"pre_money_valuation": 5000000
	}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	sim := s.decode(w)
	summary := sim["investment_summary"].(map[string]interface{})
	s.InDelta(0.625, summary["price_per_share"], 1e-12)
	s.NotEmpty(sim["run_id"])

	w = s.do(http.MethodPost, "/api/v1/captable/impact", `{"scenarios": [{"investment_amount": 1000000, "pre_money_valuation": 4000000}]}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Len(s.decode(w)["results"], 1)

	w = s.do(http.MethodPost, "/api/v1/waterfall", `{
		"pitch_id": "pitch-1",
		"post_table": [
			{"holder": "Founders", "class": "Common", "shares": 8000000},
			{"holder": "Seed Fund", "class": "Series Seed", "shares": 1600000, "invested": 1000000, "preference_multiple": 1, "seniority": 1}
		],
		"scenarios": [{"scenario_name": "Fire sale", "exit_value": 500000}]
	}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Len(s.decode(w)["results"], 1)

	w = s.do(http.MethodGet, "/api/v1/pitches/pitch-1/runs?kind=waterfall", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["items"], 1)

	w = s.do(http.MethodGet, "/api/v1/pitches/pitch-1/runs?kind=bogus", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestCapTableErrors() {
	w := s.do(http.MethodPost, "/api/v1/captable/simulate", `{"investment_amount": -5, "pre_money_valuation": 1}`)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("CALC_001", s.decode(w)["code"])

	w = s.do(http.MethodPost, "/api/v1/waterfall", `{}`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APITestSuite) TestCORSPreflight() {
	w := s.do(http.MethodOptions, "/api/v1/valuations", "", "Origin", "https://app.dealscope.io", "Access-Control-Request-Method", "POST")
	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("https://app.dealscope.io", w.Header().Get("Access-Control-Allow-Origin"))
}

func (s *APITestSuite) TestBodyLimit() {
	big := `{"requests": [{"method": "berkus", "inputs": {"notes": "` + string(bytes.Repeat([]byte("x"), 2<<20)) + `"}}]}`
	w := s.do(http.MethodPost, "/api/v1/valuations", big)
	s.Equal(http.StatusBadRequest, w.Code)
}

func TestNewRouter_NilHandlers(t *testing.T) {
	r := NewRouter(RouterConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/methods", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without handlers, got %d", w.Code)
	}
}
