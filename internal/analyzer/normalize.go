package analyzer

import (
	"sort"
	"strings"

	"github.com/okuzmin/a11ylens/internal/engine"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

// maxSamples caps the number of example selectors kept per issue.
const maxSamples = 3

// unknownCode stands in for raw issues the engine reported without a code.
const unknownCode = "unknown"

// group accumulates raw issues sharing a code during normalization.
type group struct {
	issue   Issue
	seenMsg map[string]bool
	seenSel map[string]bool
}

// Normalize collapses a raw issue stream into one Issue per distinct
// rule code. Classification and translation are computed once per group,
// from the first raw issue's code; later occurrences only bump the count
// and extend the message/selector sets. Output order: critical before
// warning before low, higher count first within equal priority.
func Normalize(raw []engine.RawIssue, dict taxonomy.Dictionary) []Issue {
	groups := make(map[string]*group)
	var order []string

	for _, ri := range raw {
		code := ri.Code
		if code == "" {
			code = unknownCode
		}

		g, ok := groups[code]
		if !ok {
			g = &group{
				issue: Issue{
					Code:        code,
					Type:        ri.Type,
					Priority:    taxonomy.Classify(code),
					Translation: taxonomy.Translate(code, dict),
				},
				seenMsg: make(map[string]bool),
				seenSel: make(map[string]bool),
			}
			groups[code] = g
			order = append(order, code)
		}

		g.issue.Count++
		if msg := strings.TrimSpace(ri.Message); msg != "" && !g.seenMsg[msg] {
			g.seenMsg[msg] = true
			g.issue.Messages = append(g.issue.Messages, msg)
		}
		if ri.Selector != "" && !g.seenSel[ri.Selector] {
			g.seenSel[ri.Selector] = true
			if len(g.issue.Samples) < maxSamples {
				g.issue.Samples = append(g.issue.Samples, ri.Selector)
			}
		}
	}

	issues := make([]Issue, 0, len(order))
	for _, code := range order {
		issues = append(issues, groups[code].issue)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := issues[i].Priority.Rank(), issues[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return issues[i].Count > issues[j].Count
	})

	return issues
}
