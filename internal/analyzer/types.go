package analyzer

import (
	"github.com/okuzmin/a11ylens/internal/engine"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

// Issue is the canonical output unit: one record per distinct rule code
// observed in an audit, with every raw occurrence collapsed into it.
type Issue struct {
	Code string `json:"code"`
	// Type is the engine type of the first raw issue seen for this code.
	Type engine.Severity `json:"type"`
	// Count is raw occurrences, including duplicate selectors/messages.
	Count       int                  `json:"count"`
	Messages    []string             `json:"messages"`
	Samples     []string             `json:"samples"`
	Priority    taxonomy.Priority    `json:"isPriority"`
	Translation taxonomy.Translation `json:"translation"`
}

// Counts tallies raw issues by engine type.
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Notices  int `json:"notices"`
}

// Tally counts raw issues by type. Unrecognized or missing types count
// as notices.
func Tally(raw []engine.RawIssue) Counts {
	var c Counts
	for _, issue := range raw {
		switch issue.Type {
		case engine.SeverityError:
			c.Errors++
		case engine.SeverityWarning:
			c.Warnings++
		default:
			c.Notices++
		}
	}
	return c
}

// MaxPriority returns the highest priority present in a list of issues.
// Returns PriorityLow for an empty list.
func MaxPriority(issues []Issue) taxonomy.Priority {
	max := taxonomy.PriorityLow
	for _, issue := range issues {
		if issue.Priority.Rank() < max.Rank() {
			max = issue.Priority
		}
	}
	return max
}

// ExitCode maps priority to a process exit code for CI gates.
func ExitCode(p taxonomy.Priority) int {
	switch p {
	case taxonomy.PriorityCritical:
		return 2
	case taxonomy.PriorityWarning:
		return 1
	default:
		return 0
	}
}
