package valuation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/turtacn/DealScope/pkg/errors"
	"github.com/turtacn/DealScope/pkg/money"
)

// DefaultBerkusCeiling is the maximum value a single criterion contributes.
const DefaultBerkusCeiling = 500_000.0

// Grade is how fully a Berkus criterion is met, in [0, 1].  On the wire it
// accepts either a boolean (true = 1) or a number.
type Grade float64

// UnmarshalJSON accepts true/false or a number.
func (g *Grade) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true":
		*g = 1
		return nil
	case "false", "null":
		*g = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("berkus grade must be a boolean or a number: %w", err)
	}
	*g = Grade(f)
	return nil
}

// BerkusInput grades the five Berkus criteria.
type BerkusInput struct {
	SoundIdea              Grade   `json:"sound_idea"`
	Prototype              Grade   `json:"prototype"`
	QualityTeam            Grade   `json:"quality_team"`
	StrategicRelationships Grade   `json:"strategic_relationships"`
	ProductRollout         Grade   `json:"product_rollout"`
	Ceiling                float64 `json:"ceiling,omitempty"`
	Spread                 Spread  `json:"spread,omitempty"`
}

type berkusCriterion struct {
	key   string
	grade Grade
}

func (in *BerkusInput) criteria() []berkusCriterion {
	return []berkusCriterion{
		{"sound_idea", in.SoundIdea},
		{"prototype", in.Prototype},
		{"quality_team", in.QualityTeam},
		{"strategic_relationships", in.StrategicRelationships},
		{"product_rollout", in.ProductRollout},
	}
}

// Berkus sums grade × ceiling over the five criteria; low and high apply the
// spread (default ×0.7 / ×1.3).
func Berkus(in *BerkusInput) (*Result, error) {
	if in == nil {
		return nil, errors.InvalidInput("berkus input is nil")
	}
	ceiling := in.Ceiling
	if ceiling == 0 {
		ceiling = DefaultBerkusCeiling
	}
	if ceiling < 0 || !finite(ceiling) {
		return nil, errors.InvalidInput("ceiling must not be negative").WithDetailf("ceiling=%g", in.Ceiling)
	}
	spread, err := in.Spread.resolve(DefaultBerkusSpread)
	if err != nil {
		return nil, err
	}

	diag := make(map[string]interface{}, 8)
	base := 0.0
	met := 0
	for _, c := range in.criteria() {
		g := float64(c.grade)
		if g < 0 || g > 1 || !finite(g) {
			return nil, errors.InvalidInput("berkus grades must be within [0, 1]").WithDetailf("%s=%g", c.key, g)
		}
		v := g * ceiling
		diag[c.key] = v
		base += v
		if g > 0 {
			met++
		}
	}
	diag["criteria_met"] = met
	diag["ceiling"] = ceiling

	notes := fmt.Sprintf("Berkus method: %d of 5 criteria credited, %s at %s per criterion",
		met, money.Dollars(base), money.Dollars(ceiling))
	return newResult(MethodBerkus, base*spread.Low, base, base*spread.High, notes, diag)
}
