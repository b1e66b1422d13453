package analytics

// band awards points when a value clears threshold.
type band struct {
	threshold float64
	points    int
}

// ruleTable is a monotonic step function over ordered bands; first match wins.
// Bands of an atLeast table run high to low, bands of a below table low to high.
type ruleTable struct {
	bands []band
	below bool
}

func atLeast(bands ...band) ruleTable { return ruleTable{bands: bands} }

func below(bands ...band) ruleTable { return ruleTable{bands: bands, below: true} }

func (t ruleTable) points(v float64) int {
	for _, b := range t.bands {
		if (t.below && v < b.threshold) || (!t.below && v >= b.threshold) {
			return b.points
		}
	}
	return 0
}

// riskRule looks up one biomarker by synonyms and scores it with table.
type riskRule struct {
	factor   string
	synonyms []string
	table    ruleTable
}

var diabetesRules = []riskRule{
	{factor: "HbA1c", synonyms: []string{"hba1c", "hemoglobin a1c"}, table: atLeast(band{6.5, 50}, band{5.7, 30})},
	{factor: "Fasting Glucose", synonyms: []string{"fasting glucose", "glucose"}, table: atLeast(band{126, 50}, band{100, 30})},
}

var cardiovascularRules = []riskRule{
	{factor: "LDL", synonyms: []string{"ldl"}, table: atLeast(band{160, 30}, band{130, 20}, band{100, 10})},
	// low HDL is the risk
	{factor: "HDL", synonyms: []string{"hdl"}, table: below(band{40, 20}, band{60, 10})},
	{factor: "Triglycerides", synonyms: []string{"triglyceride"}, table: atLeast(band{200, 25}, band{150, 15})},
	{factor: "BP Systolic", synonyms: []string{"systolic", "blood pressure"}, table: atLeast(band{140, 25}, band{130, 15})},
}

const maxRiskScore = 100

func capScore(total int) int {
	if total > maxRiskScore {
		return maxRiskScore
	}
	if total < 0 {
		return 0
	}
	return total
}
