// Package reporter renders audit responses as text, JSON, or SARIF.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/okuzmin/a11ylens/internal/audit"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

// Format specifies the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Write outputs the audit response in the given format.
func Write(w io.Writer, resp *audit.Response, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, resp)
	case FormatSARIF:
		return writeSARIF(w, resp)
	default:
		return writeText(w, resp)
	}
}

func writeJSON(w io.Writer, resp *audit.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

var priorityLabel = map[taxonomy.Priority]string{
	taxonomy.PriorityCritical: "CRITICAL",
	taxonomy.PriorityWarning:  "WARNING",
	taxonomy.PriorityLow:      "LOW",
}

func writeText(w io.Writer, resp *audit.Response) error {
	if !resp.Success {
		_, err := fmt.Fprintf(w, "Audit failed: %s (%dms)\n", resp.Error, resp.AnalysisTimeMs)
		return err
	}

	fmt.Fprintf(w, "%s  [%s]\n", resp.URL, resp.Standard)
	fmt.Fprintf(w, "Score: %d (%s)  %s\n", resp.Score, resp.Grade, resp.Assessment)
	if resp.Counts != nil {
		fmt.Fprintf(w, "Raw issues: %d errors, %d warnings, %d notices\n\n",
			resp.Counts.Errors, resp.Counts.Warnings, resp.Counts.Notices)
	}

	if len(resp.Issues) == 0 {
		_, err := fmt.Fprintln(w, "No issues found.")
		return err
	}

	for _, issue := range resp.Issues {
		title := issue.Translation.Title
		if title == "" {
			title = taxonomy.StripCode(issue.Code)
		}
		fmt.Fprintf(w, "[%s] %s (x%d)\n", priorityLabel[issue.Priority], title, issue.Count)
		fmt.Fprintf(w, "  %s\n", issue.Code)
		for _, sel := range issue.Samples {
			fmt.Fprintf(w, "  at %s\n", sel)
		}
		if issue.Translation.Fix != "" {
			fmt.Fprintf(w, "  fix: %s\n", issue.Translation.Fix)
		}
	}

	if s := resp.Summary; s != nil {
		fmt.Fprintf(w, "\nSummary: %d issue types (critical=%d warning=%d)\n",
			s.Total, s.CriticalCount, s.WarningCount)
		if len(s.QuickWins) > 0 {
			fmt.Fprintf(w, "Quick wins: %s\n", strings.Join(s.QuickWins, "; "))
		}
	}
	return nil
}
