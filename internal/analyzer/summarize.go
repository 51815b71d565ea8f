package analyzer

import (
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

const (
	maxTopCritical = 3
	maxQuickWins   = 3
)

// TopIssue is a critical issue projected for the summary digest.
type TopIssue struct {
	Title string `json:"title"`
	Count int    `json:"count"`
	Fix   string `json:"fix"`
}

// Summary is the human-facing digest derived from normalized issues.
type Summary struct {
	Total         int        `json:"total"`
	CriticalCount int        `json:"criticalCount"`
	WarningCount  int        `json:"warningCount"`
	TopCritical   []TopIssue `json:"topCritical"`
	QuickWins     []string   `json:"quickWins"`
}

// Summarize derives the digest from an already-normalized issue list.
// It relies on the normalizer's sort order: the first critical issues
// encountered are the highest-count ones, so topCritical and quickWins
// take them in place without re-sorting.
func Summarize(issues []Issue) Summary {
	s := Summary{
		Total:       len(issues),
		TopCritical: []TopIssue{},
		QuickWins:   []string{},
	}

	for _, issue := range issues {
		switch issue.Priority {
		case taxonomy.PriorityCritical:
			s.CriticalCount++
		case taxonomy.PriorityWarning:
			s.WarningCount++
		}

		if issue.Priority != taxonomy.PriorityCritical {
			continue
		}
		if len(s.TopCritical) < maxTopCritical {
			s.TopCritical = append(s.TopCritical, TopIssue{
				Title: titleOrCode(issue),
				Count: issue.Count,
				Fix:   issue.Translation.Fix,
			})
		}
		if len(s.QuickWins) < maxQuickWins && taxonomy.IsQuickWin(issue.Code) {
			s.QuickWins = append(s.QuickWins, titleOrCode(issue))
		}
	}

	return s
}

func titleOrCode(issue Issue) string {
	if issue.Translation.Title != "" {
		return issue.Translation.Title
	}
	return taxonomy.StripCode(issue.Code)
}
