package cli

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	capapp "github.com/turtacn/DealScope/internal/application/captable"
	valapp "github.com/turtacn/DealScope/internal/application/valuation"
	"github.com/turtacn/DealScope/internal/domain/comps"
	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/pkg/money"
)

// The view types wrap service responses for table output.  JSON and YAML
// output encode the embedded response unchanged.

// ── valuation ────────────────────────────────────────────────────────────────

type valuationView struct {
	*valapp.ValuateResponse
}

func (v valuationView) MarshalJSON() ([]byte, error) { return json.Marshal(v.ValuateResponse) }

func (v valuationView) Summary() [][2]string {
	out := [][2]string{}
	if v.PitchID != "" {
		out = append(out, [2]string{"Pitch", v.PitchID})
	}
	if v.RunID != "" {
		out = append(out, [2]string{"Run", v.RunID})
	}
	return out
}

func (v valuationView) TableHeaders() []string {
	return []string{"METHOD", "LOW", "BASE", "HIGH", "NOTES"}
}

func (v valuationView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Outcomes)+1)
	for _, o := range v.Outcomes {
		if !o.OK() {
			rows = append(rows, []string{string(o.Method), "-", "-", "-", "FAILED " + string(o.Err.Code) + ": " + o.Err.Message})
			continue
		}
		r := o.Result
		rows = append(rows, []string{string(r.Method), money.Dollars(r.Low), money.Dollars(r.Base), money.Dollars(r.High), r.Notes})
	}
	c := v.Consensus
	if c.Succeeded > 0 {
		rows = append(rows, []string{"consensus", money.Dollars(c.Low), money.Dollars(c.Base), money.Dollars(c.High),
			strconv.Itoa(c.Succeeded) + " succeeded, " + strconv.Itoa(c.Failed) + " failed"})
	}
	return rows
}

type methodsView []valapp.MethodInfo

func (v methodsView) TableHeaders() []string { return []string{"METHOD", "NAME", "DESCRIPTION"} }

func (v methodsView) TableRows() [][]string {
	rows := make([][]string, len(v))
	for i, m := range v {
		rows[i] = []string{string(m.Method), m.Name, m.Description}
	}
	return rows
}

type compsView []*comps.Sample

func (v compsView) TableHeaders() []string {
	return []string{"SECTOR", "STAGE", "GEO", "METRIC", "N", "MULTIPLES"}
}

func (v compsView) TableRows() [][]string {
	rows := make([][]string, len(v))
	for i, s := range v {
		mults := make([]string, len(s.Multiples))
		for j, m := range s.Multiples {
			mults[j] = money.Multiple(m)
		}
		n := len(s.Multiples)
		if s.ReportedSample > 0 {
			n = s.ReportedSample
		}
		rows[i] = []string{s.Sector, s.Stage, s.Geo, s.Metric, strconv.Itoa(n), strings.Join(mults, " ")}
	}
	return rows
}

// ── cap table ────────────────────────────────────────────────────────────────

type simulateView struct {
	*capapp.SimulateResponse
}

func (v simulateView) MarshalJSON() ([]byte, error) { return json.Marshal(v.SimulateResponse) }

func (v simulateView) Summary() [][2]string {
	s := v.Snapshot.Summary
	out := [][2]string{
		{"Pre-money", money.Dollars(s.PreMoney)},
		{"Investment", money.Dollars(s.InvestmentAmount)},
		{"Post-money", money.Dollars(s.PostMoney)},
		{"Price per share", money.Cents(s.PricePerShare)},
		{"New shares", humanize.Comma(s.NewSharesIssued)},
		{"Pool top-up", humanize.Comma(s.OptionPoolExpansion)},
		{"Investor ownership", money.Percent(s.NewInvestorOwnership, 2)},
	}
	if v.Metrics != nil {
		out = append(out, [2]string{"Founder dilution", money.Percent(v.Metrics.DilutionAnalysis.FounderDilution, 2)})
	}
	for _, w := range v.Warnings {
		out = append(out, [2]string{"Warning", w})
	}
	return out
}

func (v simulateView) TableHeaders() []string {
	return []string{"#", "HOLDER", "TYPE", "SHARES", "OWNERSHIP", "DILUTION"}
}

func (v simulateView) TableRows() [][]string {
	if v.Snapshot == nil || v.PostInvestment == nil {
		return nil
	}
	entries := v.PostInvestment.Entries()
	rows := make([][]string, len(entries))
	for i, e := range entries {
		dilution := money.Percent(e.Dilution, 2)
		if e.DilutionFlagged {
			dilution += " !"
		}
		rows[i] = []string{strconv.Itoa(int(e.ID)), e.Holder, string(e.HolderType), humanize.Comma(e.Shares),
			money.Percent(e.OwnershipFraction, 2), dilution}
	}
	return rows
}

type impactView struct {
	*capapp.ImpactResponse
}

func (v impactView) MarshalJSON() ([]byte, error) { return json.Marshal(v.ImpactResponse) }

func (v impactView) TableHeaders() []string {
	return []string{"SCENARIO", "INVESTMENT", "PRE-MONEY", "POST-MONEY", "FOUNDERS AFTER", "FOUNDER DILUTION", "INVESTOR"}
}

func (v impactView) TableRows() [][]string {
	rows := make([][]string, len(v.Results))
	for i, r := range v.Results {
		rows[i] = []string{r.ScenarioName, money.Dollars(r.InvestmentAmount), money.Dollars(r.PreMoneyValuation),
			money.Dollars(r.PostMoneyValuation), money.Percent(r.FounderOwnershipAfter, 2),
			money.Percent(r.FounderDilution, 2), money.Percent(r.NewInvestorOwnership, 2)}
	}
	return rows
}

type waterfallView struct {
	*capapp.WaterfallResponse
}

func (v waterfallView) MarshalJSON() ([]byte, error) { return json.Marshal(v.WaterfallResponse) }

func (v waterfallView) TableHeaders() []string {
	return []string{"SCENARIO", "EXIT", "HOLDER", "CLASS", "PREFERENCE", "PARTICIPATION", "PAYOUT", "SHARE"}
}

func (v waterfallView) TableRows() [][]string {
	var rows [][]string
	for _, r := range v.Results {
		for i, p := range r.Payouts {
			scenario, exit := "", ""
			if i == 0 {
				scenario, exit = r.Scenario, money.Dollars(r.ExitValue)
			}
			holder := p.Holder
			if p.Converted {
				holder += " (converted)"
			}
			rows = append(rows, []string{scenario, exit, holder, p.Class, money.Dollars(p.PreferencePayout),
				money.Dollars(p.ParticipationPayout), money.Dollars(p.ActualPayout), money.Percent(p.OwnershipPercentageOfPayout, 1)})
		}
	}
	return rows
}

// ── history ──────────────────────────────────────────────────────────────────

type runsView []*run.Run

func (v runsView) TableHeaders() []string {
	return []string{"RUN", "KIND", "PITCH", "CREATED", "SUMMARY"}
}

func (v runsView) TableRows() [][]string {
	rows := make([][]string, len(v))
	for i, r := range v {
		rows[i] = []string{r.ID.String(), string(r.Kind), r.PitchID, humanize.Time(r.CreatedAt), r.Summary}
	}
	return rows
}
