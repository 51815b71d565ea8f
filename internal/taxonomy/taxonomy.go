// Package taxonomy holds the static rule classification and translation
// tables. Everything here is pure lookup over data loaded once at startup.
package taxonomy

import "strings"

// Priority is this tool's own triage classification, derived from the
// rule code and independent of the engine's error/warning/notice type.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityWarning  Priority = "warning"
	PriorityLow      Priority = "low"
)

// Rank orders priorities for sorting: critical first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityWarning:
		return 1
	default:
		return 2
	}
}

// Pattern fragments matched by substring against full rule codes. A single
// fragment covers every technique variant in its rule family, e.g. "H91"
// matches both H91.A.EmptyNoId and H91.Button.Name. Order matters:
// critical patterns are checked before warning patterns, first match wins.
var criticalPatterns = []string{
	"F77",   // duplicate element IDs
	"H37",   // img missing alt text
	"H91",   // link or control without an accessible name
	"F68",   // form field without a label
	"H25",   // missing or empty page title
	"H64",   // iframe without a title attribute
	"H57",   // html element missing lang
	"4_1_2", // name/role/value failures
}

var warningPatterns = []string{
	"G18",   // text contrast below 4.5:1
	"G145",  // large text contrast below 3:1
	"H67",   // decorative image with title but empty alt
	"H42",   // heading markup not used for headings
	"G141",  // heading levels skipped
	"H71",   // fieldset/legend grouping
	"1_4_3", // other contrast failures
}

// Fragments of critical rule families whose fixes are mechanical: add an
// attribute, not restructure the page. Drawn from the critical list.
var quickWinPatterns = []string{"H37", "H25", "H64", "H57", "F68"}

// Classify maps a rule code to a priority. Deterministic, no side effects.
func Classify(code string) Priority {
	for _, p := range criticalPatterns {
		if strings.Contains(code, p) {
			return PriorityCritical
		}
	}
	for _, p := range warningPatterns {
		if strings.Contains(code, p) {
			return PriorityWarning
		}
	}
	return PriorityLow
}

// IsQuickWin reports whether a rule code belongs to a cheap-to-fix
// critical family. Callers must check priority separately: quick wins
// are a subset of critical issues, never an independent category.
func IsQuickWin(code string) bool {
	for _, p := range quickWinPatterns {
		if strings.Contains(code, p) {
			return true
		}
	}
	return false
}
