package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/pkg/errors"
)

// NewCompsCmd creates the comps command group.
func NewCompsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comps",
		Short: "Manage the comparables library used by the comps method",
		Long: `The comparables library maps (sector, stage, geo, metric) to observed
valuation multiples.  A comps request without multiples is filled from it.`,
	}
	cmd.AddCommand(newCompsListCmd(), newCompsImportCmd())
	return cmd
}

func newCompsListCmd() *cobra.Command {
	var sector string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackend(cmd, func(ctx context.Context, b Backend) (interface{}, error) {
				samples, err := b.ListComps(ctx, sector)
				if err != nil {
					return nil, err
				}
				return compsView(samples), nil
			})
		},
	}
	cmd.Flags().StringVar(&sector, "sector", "", "only samples of this sector")
	return cmd
}

// compsFile is the import format.
type compsFile struct {
	Samples []struct {
		Sector         string    `json:"sector"`
		Stage          string    `json:"stage"`
		Geo            string    `json:"geo"`
		Metric         string    `json:"metric"`
		Multiples      []float64 `json:"multiples"`
		ReportedSample int       `json:"reported_sample"`
		Notes          string    `json:"notes"`
	} `json:"samples"`
}

func newCompsImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load samples into the local library",
		Example: `  # library.yaml
  # samples:
  #   - {sector: saas, stage: seed, multiples: [6, 8, 10, 12, 15]}
  #   - {sector: fintech, stage: series-a, geo: eu, metric: EV/Revenue, multiples: [4, 5.5, 7]}
  dealscope comps import -f library.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			var in compsFile
			if err := readInput(cmd, file, &in); err != nil {
				return err
			}
			if len(in.Samples) == 0 {
				return errors.InvalidParam("no samples in input file")
			}

			vc := cliCtx.Config.Valuation
			samples := make([]*comps.Sample, 0, len(in.Samples))
			for i, s := range in.Samples {
				key := comps.Key{Sector: s.Sector, Stage: s.Stage, Geo: s.Geo, Metric: s.Metric}.
					Normalize(vc.DefaultGeo, vc.DefaultMetric)
				if err := key.Validate(); err != nil {
					return errors.Wrap(err, errors.CodeUnknown, fmt.Sprintf("sample %d", i+1))
				}
				if len(s.Multiples) == 0 {
					return errors.InvalidInput("sample has no multiples").WithDetailf("sample=%d key=%s", i+1, key)
				}
				samples = append(samples, &comps.Sample{
					Key:            key,
					Multiples:      s.Multiples,
					ReportedSample: s.ReportedSample,
					Notes:          s.Notes,
				})
			}

			backend, err := cliCtx.Backend()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()
			if err := backend.ImportComps(ctx, samples); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("imported %d comparables samples", len(samples)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "library file, YAML or JSON (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
