package analytics

import (
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"LabPulse/internal/domain/models"
	domsvc "LabPulse/internal/domain/service"
	"LabPulse/internal/services/features"
)

// RuleRiskScorer scores diabetes and cardiovascular risk from clinical rule tables.
type RuleRiskScorer struct {
	diabetes       []riskRule
	cardiovascular []riskRule
}

func NewRuleRiskScorer() *RuleRiskScorer {
	return &RuleRiskScorer{diabetes: diabetesRules, cardiovascular: cardiovascularRules}
}

func (s *RuleRiskScorer) Score(readings []models.Reading) models.RiskResult {
	latest := features.LatestByName(finiteOnly(readings))
	return models.RiskResult{
		Diabetes:       evaluate(latest, s.diabetes),
		Cardiovascular: evaluate(latest, s.cardiovascular),
	}
}

// evaluate sums rule points in rule order. Biomarkers that are not present
// are left out of the factor list.
func evaluate(latest *orderedmap.OrderedMap[string, models.Reading], rules []riskRule) models.RiskCategory {
	cat := models.RiskCategory{Factors: []models.RiskFactor{}}
	total := 0
	for _, rule := range rules {
		v, ok := features.LookupValue(latest, rule.synonyms...)
		if !ok {
			continue
		}
		pts := rule.table.points(v)
		total += pts
		cat.Factors = append(cat.Factors, models.RiskFactor{Name: rule.factor, Value: v, Points: pts})
	}
	cat.Score = capScore(total)
	return cat
}

func finiteOnly(readings []models.Reading) []models.Reading {
	out := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}

var _ domsvc.RiskScorer = (*RuleRiskScorer)(nil)
