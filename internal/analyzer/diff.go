package analyzer

// DeltaStatus tags an issue relative to the previous watch run.
type DeltaStatus string

const (
	StatusNew       DeltaStatus = "new"
	StatusResolved  DeltaStatus = "resolved"
	StatusUnchanged DeltaStatus = "unchanged"
)

// IssueDelta wraps an Issue with its status against the previous run.
type IssueDelta struct {
	Issue
	Status DeltaStatus `json:"status"`
}

// DiffIssues compares the current normalized issues against the previous
// run's, keyed by rule code. Current issues come back tagged new or
// unchanged in their existing order, followed by resolved issues from
// the previous run.
func DiffIssues(current, previous []Issue) []IssueDelta {
	prevSet := make(map[string]bool, len(previous))
	for _, issue := range previous {
		prevSet[issue.Code] = true
	}
	currSet := make(map[string]bool, len(current))
	for _, issue := range current {
		currSet[issue.Code] = true
	}

	var result []IssueDelta
	for _, issue := range current {
		status := StatusNew
		if prevSet[issue.Code] {
			status = StatusUnchanged
		}
		result = append(result, IssueDelta{Issue: issue, Status: status})
	}
	for _, issue := range previous {
		if !currSet[issue.Code] {
			result = append(result, IssueDelta{Issue: issue, Status: StatusResolved})
		}
	}
	return result
}
