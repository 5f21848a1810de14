package cli

import (
	"context"

	"github.com/spf13/cobra"

	capapp "github.com/turtacn/DealScope/internal/application/captable"
)

// NewCapTableCmd creates the captable command group.
func NewCapTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captable",
		Short: "Simulate priced rounds on a cap table",
		Long: `Simulate priced rounds against a pre-investment cap table.  The option pool is
topped up before the money comes in so it reaches its target share of the
post-round table.  Without pre_table the default founders-and-pool table is used.`,
	}
	cmd.AddCommand(newSimulateCmd(), newImpactCmd())
	return cmd
}

func newSimulateCmd() *cobra.Command {
	var (
		file    string
		pitchID string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Apply one round and derive ownership and dilution metrics",
		Example: `  # round.yaml
  # investment_amount: 2000000
  # pre_money_valuation: 8000000
  # option_pool_target_pct: 0.10
  # pre_table:
  #   - {holder: Alice, holder_type: founder, shares: 5000000}
  #   - {holder: Bob, holder_type: founder, shares: 5000000}
  dealscope captable simulate -f round.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req capapp.SimulateRequest
			if err := readInput(cmd, file, &req); err != nil {
				return err
			}
			if pitchID != "" {
				req.PitchID = pitchID
			}
			return runBackend(cmd, func(ctx context.Context, b Backend) (interface{}, error) {
				resp, err := b.Simulate(ctx, &req)
				if err != nil {
					return nil, err
				}
				return simulateView{resp}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "round file, YAML or JSON (- for stdin)")
	cmd.Flags().StringVar(&pitchID, "pitch", "", "pitch ID, overrides the file's pitch_id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newImpactCmd() *cobra.Command {
	var (
		file    string
		pitchID string
		poolPct float64
	)
	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Compare founder dilution across alternative rounds",
		Example: `  # scenarios.yaml
  # scenarios:
  #   - {name: conservative, investment_amount: 1000000, pre_money_valuation: 6000000}
  #   - {name: aggressive, investment_amount: 3000000, pre_money_valuation: 12000000}
  dealscope captable impact -f scenarios.yaml --pool 0.15`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req capapp.ImpactRequest
			if err := readInput(cmd, file, &req); err != nil {
				return err
			}
			if pitchID != "" {
				req.PitchID = pitchID
			}
			if cmd.Flags().Changed("pool") {
				req.OptionPoolTargetPct = &poolPct
			}
			return runBackend(cmd, func(ctx context.Context, b Backend) (interface{}, error) {
				resp, err := b.Impact(ctx, &req)
				if err != nil {
					return nil, err
				}
				return impactView{resp}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario file, YAML or JSON (- for stdin)")
	cmd.Flags().StringVar(&pitchID, "pitch", "", "pitch ID, overrides the file's pitch_id")
	cmd.Flags().Float64Var(&poolPct, "pool", 0, "option pool target fraction, overrides the file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// NewWaterfallCmd creates the waterfall command.
func NewWaterfallCmd() *cobra.Command {
	var (
		file    string
		pitchID string
	)
	cmd := &cobra.Command{
		Use:   "waterfall",
		Short: "Distribute exit values through liquidation preferences",
		Long: `Distribute exit values over a classed post-investment table.  Senior classes
are paid their preference first; non-participating holders convert to common
when that pays more.  Instead of post_table the file may give a round, which
is simulated first.  Without scenarios a default set of exits is derived from
the post-money valuation.`,
		Example: `  # exit.yaml
  # round: {investment_amount: 2000000, pre_money_valuation: 8000000, option_pool_target_pct: 0.1}
  # preference_terms: {preference_multiple: 1, participating: false}
  # scenarios:
  #   - {scenario_name: acquihire, exit_value: 5000000}
  #   - {scenario_name: strong, exit_value: 100000000}
  dealscope waterfall -f exit.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req capapp.WaterfallRequest
			if err := readInput(cmd, file, &req); err != nil {
				return err
			}
			if pitchID != "" {
				req.PitchID = pitchID
			}
			return runBackend(cmd, func(ctx context.Context, b Backend) (interface{}, error) {
				resp, err := b.Waterfall(ctx, &req)
				if err != nil {
					return nil, err
				}
				return waterfallView{resp}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "waterfall file, YAML or JSON (- for stdin)")
	cmd.Flags().StringVar(&pitchID, "pitch", "", "pitch ID, overrides the file's pitch_id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
