package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/DealScope/pkg/errors"
)

type cliEnv struct {
	t   *testing.T
	dir string
	db  string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return &cliEnv{t: t, dir: dir, db: filepath.Join(dir, "history.db")}
}

func (e *cliEnv) file(name, content string) string {
	e.t.Helper()
	p := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

// run executes the root command against the env's history database.
func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--history-db", e.db, "--org", "org-1"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliEnv) runJSON(dst interface{}, args ...string) {
	e.t.Helper()
	out, _, err := e.run(append(args, "-o", "json")...)
	require.NoError(e.t, err)
	require.NoError(e.t, json.Unmarshal([]byte(out), dst), out)
}

const berkusBody = `
pitch_id: acme
inputs:
  sound_idea: true
  prototype: 0.5
`

// ── valuate ──────────────────────────────────────────────────────────────────

func TestValuate_SingleMethodRecordsRun(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("berkus.yaml", berkusBody)

	var resp struct {
		PitchID  string `json:"pitch_id"`
		RunID    string `json:"run_id"`
		Outcomes []struct {
			Method     string  `json:"method"`
			ResultBase float64 `json:"result_base"`
		} `json:"outcomes"`
	}
	env.runJSON(&resp, "valuate", "-f", path, "--method", "berkus")

	assert.Equal(t, "acme", resp.PitchID)
	require.NotEmpty(t, resp.RunID)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, "berkus", resp.Outcomes[0].Method)
	assert.InDelta(t, 750_000, resp.Outcomes[0].ResultBase, 1e-6)

	var runs []map[string]interface{}
	env.runJSON(&runs, "history", "list", "--kind", "valuation")
	require.Len(t, runs, 1)
	assert.Equal(t, resp.RunID, runs[0]["run_id"])
	assert.Equal(t, "acme", runs[0]["pitch_id"])

	var shown map[string]interface{}
	env.runJSON(&shown, "history", "show", resp.RunID)
	assert.Equal(t, resp.RunID, shown["run_id"])
	assert.Equal(t, "valuation", shown["kind"])
}

func TestValuate_BatchTable(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("batch.yaml", `
pitch_id: acme
pitch: {sector: saas, stage: seed, current_arr: 1000000}
requests:
  - method: berkus
    inputs: {sound_idea: true, prototype: 0.5}
  - method: comps
    inputs: {multiples: [6, 8, 10, 12, 15]}
`)

	out, _, err := env.run("valuate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Pitch:")
	assert.Contains(t, out, "METHOD")
	assert.Contains(t, out, "berkus")
	assert.Contains(t, out, "comps")
	assert.Contains(t, out, "consensus")
	assert.Contains(t, out, "2 succeeded, 0 failed")
}

func TestValuate_SingleMethodFailureIsAnError(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("comps.json", `{"pitch_id": "acme", "inputs": {"multiples": [8], "target_revenue": 1000000}}`)

	out, _, err := env.run("valuate", "-f", path, "-m", "comps")
	require.Error(t, err)
	assert.Contains(t, out, "FAILED")
}

func TestValuate_Errors(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("valuate", "-f", filepath.Join(env.dir, "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	bad := env.file("bad.yaml", "requests: [\n")
	_, _, err = env.run("valuate", "-f", bad)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = env.run("valuate", "-f", env.file("b.yaml", berkusBody), "-m", "astrology")
	assert.Error(t, err)
}

func TestValuate_Stdin(t *testing.T) {
	_ = newCLIEnv(t)
	root := NewRootCommand()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(berkusBody))
	root.SetArgs([]string{"--no-history", "valuate", "-f", "-", "-m", "berkus", "-o", "json"})
	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), `"result_base": 750000`)
}

func TestMethods(t *testing.T) {
	env := newCLIEnv(t)

	var methods []map[string]string
	env.runJSON(&methods, "methods")
	require.Len(t, methods, 5)
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m["method"]
	}
	assert.ElementsMatch(t, []string{"scorecard", "vc", "comps", "berkus", "rfs"}, names)
}

// ── cap table ────────────────────────────────────────────────────────────────

const roundBody = `
investment_amount: 2000000
pre_money_valuation: 8000000
option_pool_target_pct: 0.10
pre_table:
  - {holder: Alice, holder_type: founder, shares: 5000000}
  - {holder: Bob, holder_type: founder, shares: 5000000}
`

func TestCapTableSimulate_YAML(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("round.yaml", roundBody)

	out, _, err := env.run("captable", "simulate", "-f", path, "--pitch", "acme", "-o", "yaml")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc), out)
	assert.Equal(t, "acme", doc["pitch_id"])
	summary, ok := doc["investment_summary"].(map[string]interface{})
	require.True(t, ok, out)
	assert.EqualValues(t, 10_000_000, summary["post_money"])
	assert.InDelta(t, 0.2, summary["new_investor_ownership"], 1e-4)
	assert.NotNil(t, doc["metrics"])
}

func TestCapTableSimulate_Table(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("round.yaml", roundBody)

	out, _, err := env.run("captable", "simulate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Post-money:")
	assert.Contains(t, out, "HOLDER")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "20.00%")
}

func TestCapTableImpact_PoolFlag(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("scenarios.yaml", `
scenarios:
  - {name: conservative, investment_amount: 1000000, pre_money_valuation: 6000000}
  - {name: aggressive, investment_amount: 3000000, pre_money_valuation: 12000000}
`)

	var resp struct {
		Results []map[string]interface{} `json:"results"`
	}
	env.runJSON(&resp, "captable", "impact", "-f", path, "--pool", "0.15")
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "conservative", resp.Results[0]["scenario_name"])
}

func TestWaterfall(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("exit.yaml", `
round: {investment_amount: 2000000, pre_money_valuation: 8000000, option_pool_target_pct: 0.1}
preference_terms: {preference_multiple: 1, participating: false}
scenarios:
  - {scenario_name: acquihire, exit_value: 5000000}
  - {scenario_name: strong, exit_value: 100000000}
`)

	out, _, err := env.run("waterfall", "-f", path, "--pitch", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, "acquihire")
	assert.Contains(t, out, "strong")

	var runs []map[string]interface{}
	env.runJSON(&runs, "history", "list", "--pitch", "acme", "--kind", "waterfall")
	assert.Len(t, runs, 1)
}

// ── comps library ────────────────────────────────────────────────────────────

const libraryBody = `
samples:
  - {sector: SaaS, stage: seed, multiples: [6, 8, 10, 12, 15]}
  - {sector: fintech, stage: series-a, geo: EU, metric: EV/Revenue, multiples: [4, 5.5, 7]}
`

func TestComps_ImportListAndValuate(t *testing.T) {
	env := newCLIEnv(t)
	lib := env.file("library.yaml", libraryBody)

	out, _, err := env.run("comps", "import", "-f", lib)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 comparables samples")

	var samples []map[string]interface{}
	env.runJSON(&samples, "comps", "list")
	require.Len(t, samples, 2)

	env.runJSON(&samples, "comps", "list", "--sector", "saas")
	require.Len(t, samples, 1)
	assert.Equal(t, "us", samples[0]["geo"])
	assert.Equal(t, "ev/arr", samples[0]["metric"])

	path := env.file("comps.yaml", `
pitch_id: acme
pitch: {sector: saas, stage: seed, current_arr: 1000000}
inputs: {}
`)
	var resp struct {
		Outcomes []struct {
			ResultBase float64 `json:"result_base"`
		} `json:"outcomes"`
	}
	env.runJSON(&resp, "valuate", "-f", path, "-m", "comps")
	require.Len(t, resp.Outcomes, 1)
	assert.InDelta(t, 10_000_000, resp.Outcomes[0].ResultBase, 1e-6)
}

func TestComps_ImportErrors(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("--no-history", "comps", "import", "-f", env.file("lib.yaml", libraryBody))
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = env.run("comps", "import", "-f", env.file("empty.yaml", "samples: []\n"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = env.run("comps", "import", "-f", env.file("nostage.yaml", "samples:\n  - {sector: saas, multiples: [1, 2]}\n"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = env.run("comps", "import", "-f", env.file("nomult.yaml", "samples:\n  - {sector: saas, stage: seed}\n"))
	assert.Error(t, err)
}

func TestComps_NoLibraryFailsOutcome(t *testing.T) {
	env := newCLIEnv(t)
	path := env.file("comps.yaml", "pitch: {sector: saas, stage: seed, current_arr: 1000000}\ninputs: {}\n")

	out, _, err := env.run("--no-history", "valuate", "-f", path, "-m", "comps")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCompsNotFound))
	assert.Contains(t, out, "FAILED")
}

// ── history ──────────────────────────────────────────────────────────────────

func TestHistory_Errors(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.run("history", "list", "--kind", "memo")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = env.run("history", "show", "not-a-uuid")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))

	_, _, err = env.run("history", "show", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.True(t, errors.IsNotFound(err))

	out, _, err := env.run("history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "RUN")
}

// ── root and output ──────────────────────────────────────────────────────────

func TestRoot_BadOutputFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.run("methods", "-o", "xml")
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestRoot_Version(t *testing.T) {
	env := newCLIEnv(t)
	out, _, err := env.run("version", "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "dealscope "+Version)
}

func TestPrintError(t *testing.T) {
	root := NewRootCommand()
	var stderr bytes.Buffer
	root.SetErr(&stderr)

	PrintError(root, errors.InvalidParam("bad pitch").WithDetail("pitch_id=?"))
	assert.Contains(t, stderr.String(), "Error: [COMMON_002] bad pitch")
	assert.Contains(t, stderr.String(), "  detail: pitch_id=?")

	stderr.Reset()
	PrintError(root, os.ErrNotExist)
	assert.Equal(t, "Error: file does not exist\n", stderr.String())
}

func TestFormatTable(t *testing.T) {
	got := FormatTable([]string{"A", "LONGER"}, [][]string{{"wide-cell", "x"}, {"b"}})
	want := "A          LONGER\n" +
		"---------  ------\n" +
		"wide-cell  x\n" +
		"b          \n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatTable(nil, nil))
}
