// Package analysis runs pure passes over an occupancy index. Passes never
// mutate their input and report problems as findings, not errors.
package analysis

type Category string

const (
	CategoryOverlap      Category = "overlap"
	CategoryFloating     Category = "floating"
	CategoryDisconnected Category = "disconnected"
	CategoryOverhang     Category = "overhang"
	CategoryImbalance    Category = "imbalance"
	CategoryNoBase       Category = "no_base"
	CategoryTall         Category = "tall"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityWarning Severity = "warning"
	SeverityLow     Severity = "low"
)

type Finding struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Units    []int    `json:"units,omitempty"`
	Message  string   `json:"message"`
	Fix      string   `json:"fix,omitempty"`
}

// Count returns how many findings in fs have the given category.
func Count(fs []Finding, c Category) int {
	n := 0
	for _, f := range fs {
		if f.Category == c {
			n++
		}
	}
	return n
}
