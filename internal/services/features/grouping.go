package features

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"LabPulse/internal/domain/models"
)

// GroupByName builds an ordered multi-map of readings keyed by exact name.
// Keys keep first-seen order and each group keeps input order.
func GroupByName(readings []models.Reading) *orderedmap.OrderedMap[string, []models.Reading] {
	groups := orderedmap.New[string, []models.Reading]()
	for _, r := range readings {
		items, _ := groups.Get(r.Name)
		groups.Set(r.Name, append(items, r))
	}
	return groups
}

// LatestByName keeps the newest reading per exact name. Keys keep first-seen
// order even when a later reading replaces the value; on equal timestamps the
// reading seen first is kept.
func LatestByName(readings []models.Reading) *orderedmap.OrderedMap[string, models.Reading] {
	latest := orderedmap.New[string, models.Reading]()
	for _, r := range readings {
		cur, ok := latest.Get(r.Name)
		if !ok || r.RecordedAt.After(cur.RecordedAt) {
			latest.Set(r.Name, r)
		}
	}
	return latest
}

// LookupValue returns the latest value of the first name containing one of
// the candidate substrings, case-insensitively. Candidates are tried in order
// and, for each candidate, names are scanned in grouping order.
func LookupValue(latest *orderedmap.OrderedMap[string, models.Reading], candidates ...string) (float64, bool) {
	for _, c := range candidates {
		needle := strings.ToLower(c)
		for pair := latest.Oldest(); pair != nil; pair = pair.Next() {
			if strings.Contains(strings.ToLower(pair.Key), needle) {
				return pair.Value.Value, true
			}
		}
	}
	return 0, false
}

// Names returns the distinct reading names in first-seen order.
func Names(readings []models.Reading) []string {
	groups := GroupByName(readings)
	out := make([]string, 0, groups.Len())
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Values extracts reading values in order.
func Values(readings []models.Reading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Value
	}
	return out
}
