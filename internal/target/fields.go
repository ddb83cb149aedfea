package target

import "github.com/dgallion1/formforge/internal/source"

// Field is one content control inside a leaf section.
type Field struct {
	Label   string   `json:"label"`
	Kind    string   `json:"kind"` // choice | scale | time | text
	Options []string `json:"options,omitempty"`
	Min     int      `json:"min,omitempty"`
	Max     int      `json:"max,omitempty"`
}

var conditionChoices = []string{"Excellent", "Good", "Fair", "Poor"}

// buildLeafFields derives the fixed field set for one record group. The
// result is deterministic: the value selector dedupes the configured column
// in record order, everything else is constant.
func buildLeafFields(valueColumn string, group []source.Record) []Field {
	var fields []Field

	if valueColumn != "" {
		seen := make(map[string]bool)
		var options []string
		for _, rec := range group {
			v := rec.Get(valueColumn)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			options = append(options, v)
		}
		if len(options) > 0 {
			fields = append(fields, Field{Label: valueColumn, Kind: "choice", Options: options})
		}
	}

	fields = append(fields,
		Field{Label: "Condition", Kind: "choice", Options: conditionChoices},
		Field{Label: "Overall rating", Kind: "scale", Min: 0, Max: 10},
		Field{Label: "Time of visit", Kind: "time"},
		Field{Label: "Notes", Kind: "text"},
	)
	return fields
}
