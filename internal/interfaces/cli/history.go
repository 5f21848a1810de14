package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/DealScope/internal/domain/run"
)

// NewHistoryCmd creates the history command group.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded valuation, cap-table and waterfall runs",
	}
	cmd.AddCommand(newHistoryListCmd(), newHistoryShowCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		pitchID string
		kind    string
		limit   int
		offset  int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List runs, newest first",
		Example: "  dealscope history list --pitch acme --kind waterfall --limit 10",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := run.ParseKind(kind)
			if err != nil {
				return err
			}
			return runBackend(cmd, func(ctx context.Context, b Backend) (interface{}, error) {
				runs, err := b.ListRuns(ctx, pitchID, k, limit, offset)
				if err != nil {
					return nil, err
				}
				return runsView(runs), nil
			})
		},
	}
	cmd.Flags().StringVar(&pitchID, "pitch", "", "only runs of this pitch (required with --server)")
	cmd.Flags().StringVar(&kind, "kind", "", "valuation, captable or waterfall")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its request and result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackend(cmd, func(ctx context.Context, b Backend) (interface{}, error) {
				r, err := b.GetRun(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return runView{r}, nil
			})
		},
	}
}

// runView prints a run's scope and summary as text and the full record
// otherwise.
type runView struct {
	*run.Run
}

func (v runView) MarshalJSON() ([]byte, error) { return json.Marshal(v.Run) }

func (v runView) Summary() [][2]string {
	return [][2]string{
		{"Run", v.ID.String()},
		{"Kind", string(v.Kind)},
		{"Pitch", v.PitchID},
		{"Org", v.OrgID},
		{"Created", v.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		{"Summary", v.Run.Summary},
	}
}

func (v runView) TableHeaders() []string { return []string{"FIELD", "JSON"} }

func (v runView) TableRows() [][]string {
	return [][]string{
		{"request", compactJSON(v.Request)},
		{"result", compactJSON(v.Result)},
	}
}

func (v runView) String() string {
	return fmt.Sprintf("%s %s pitch=%s %s", v.ID, v.Kind, v.PitchID, v.Run.Summary)
}

func compactJSON(raw json.RawMessage) string {
	const max = 120
	s := string(raw)
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
