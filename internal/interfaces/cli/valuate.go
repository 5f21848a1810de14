package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	valapp "github.com/turtacn/DealScope/internal/application/valuation"
	domain "github.com/turtacn/DealScope/internal/domain/valuation"
	"github.com/turtacn/DealScope/pkg/errors"
)

// NewValuateCmd creates the valuate command.
func NewValuateCmd() *cobra.Command {
	var (
		file    string
		pitchID string
		method  string
	)

	cmd := &cobra.Command{
		Use:   "valuate",
		Short: "Run valuation methods for a pitch",
		Long: `Run one or more valuation methods and print each method's low/base/high band
together with the consensus across the methods that succeeded.

The input file (YAML or JSON) holds a batch:

  pitch_id: acme
  pitch: {sector: saas, stage: seed, current_arr: 1200000}
  requests:
    - method: berkus
      inputs: {sound_idea: true, prototype: 0.5, quality_team: true}
    - method: comps
      inputs: {}

With --method the file holds a single method's body instead:

  pitch_id: acme
  inputs: {sound_idea: true, prototype: 0.5}`,
		Example: `  dealscope valuate -f batch.yaml
  dealscope valuate -f berkus.yaml --method berkus -o json
  cat batch.json | dealscope valuate -f - --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			req, err := buildValuateRequest(cmd, file, method)
			if err != nil {
				return err
			}
			if pitchID != "" {
				req.PitchID = pitchID
			}
			if err := req.Validate(); err != nil {
				return err
			}

			backend, err := cliCtx.Backend()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			resp, err := backend.Valuate(ctx, req)
			if err != nil {
				return err
			}
			if err := PrintResult(cmd, valuationView{resp}); err != nil {
				return err
			}
			if method != "" && len(resp.Outcomes) == 1 && !resp.Outcomes[0].OK() {
				oe := resp.Outcomes[0].Err
				return errors.New(oe.Code, oe.Message).WithDetail(oe.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "request file, YAML or JSON (- for stdin)")
	cmd.Flags().StringVar(&pitchID, "pitch", "", "pitch ID, overrides the file's pitch_id")
	cmd.Flags().StringVarP(&method, "method", "m", "", "run a single method; the file holds {pitch_id, pitch, inputs}")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildValuateRequest(cmd *cobra.Command, file, method string) (*valapp.ValuateRequest, error) {
	if method == "" {
		var req valapp.ValuateRequest
		if err := readInput(cmd, file, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	m, err := domain.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	var body struct {
		PitchID string              `json:"pitch_id"`
		Pitch   *domain.PitchInputs `json:"pitch"`
		Inputs  json.RawMessage     `json:"inputs"`
	}
	if err := readInput(cmd, file, &body); err != nil {
		return nil, err
	}
	return &valapp.ValuateRequest{
		PitchID:  body.PitchID,
		Pitch:    body.Pitch,
		Requests: []domain.Request{{MethodName: string(m), Inputs: body.Inputs}},
	}, nil
}

// NewMethodsCmd creates the methods command.
func NewMethodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the supported valuation methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, methodsView(valapp.Catalog()))
		},
	}
}
