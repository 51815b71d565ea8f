// Package audit orchestrates a single accessibility audit: URL
// validation, engine invocation, and the normalize/score/summarize
// pipeline that turns raw engine output into the response clients see.
package audit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/okuzmin/a11ylens/internal/analyzer"
	"github.com/okuzmin/a11ylens/internal/engine"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

// StandardLabel is the descriptive label echoed in every response.
const StandardLabel = "WCAG 2.1 AA"

const maxWorstOffenders = 5

// Meta carries aggregate numbers about the audit.
type Meta struct {
	TotalIssuesFound int      `json:"totalIssuesFound"`
	UniqueIssueTypes int      `json:"uniqueIssueTypes"`
	WorstOffenders   []string `json:"worstOffenders"`
}

// Response is the combined audit result consumed by the widget and any
// other client. On failure only Success, Error, Timestamp and
// AnalysisTimeMs are populated: no partial issue data is ever returned.
type Response struct {
	Success        bool                `json:"success"`
	Error          string              `json:"error,omitempty"`
	URL            string              `json:"url,omitempty"`
	Standard       string              `json:"standard,omitempty"`
	Counts         *analyzer.Counts    `json:"counts,omitempty"`
	Score          int                 `json:"score"`
	Grade          string              `json:"grade,omitempty"`
	GradeColor     string              `json:"gradeColor,omitempty"`
	Breakdown      *analyzer.Breakdown `json:"breakdown,omitempty"`
	Assessment     string              `json:"assessment,omitempty"`
	Timestamp      string              `json:"timestamp"`
	AnalysisTimeMs int64               `json:"analysisTimeMs"`
	Issues         []analyzer.Issue    `json:"issues,omitempty"`
	Summary        *analyzer.Summary   `json:"summary,omitempty"`
	Meta           *Meta               `json:"meta,omitempty"`
}

// Auditor runs audits through a pluggable engine runner.
type Auditor struct {
	Runner  engine.Runner
	Options engine.Options
	Dict    taxonomy.Dictionary

	// Now is swappable for deterministic timestamps in tests.
	Now func() time.Time
}

// New builds an auditor with default options where zero values are given.
func New(runner engine.Runner, opts engine.Options, dict taxonomy.Dictionary) *Auditor {
	if opts.Standard == "" {
		opts = engine.DefaultOptions()
	}
	if dict == nil {
		dict = taxonomy.Dictionary{}
	}
	return &Auditor{Runner: runner, Options: opts, Dict: dict, Now: time.Now}
}

// NormalizeURL validates rawURL as an absolute http/https URL and
// upgrades http to https. Best effort: validation failures are errors,
// but a URL that validates always comes back usable.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url must use http or https, got %q", rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u.String(), nil
}

// Run performs one full audit. A validation failure returns a non-nil
// error before the engine is touched; engine failures are caught and
// reported as a structured failure response instead.
func (a *Auditor) Run(ctx context.Context, rawURL string) (*Response, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	now := a.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	raw, runErr := a.Runner.Run(ctx, target, a.Options)
	elapsed := now().Sub(start).Milliseconds()

	if runErr != nil {
		ee := engine.ClassifyError(runErr)
		return &Response{
			Success:        false,
			Error:          ee.Error(),
			Timestamp:      start.UTC().Format(time.RFC3339),
			AnalysisTimeMs: elapsed,
		}, nil
	}

	counts := analyzer.Tally(raw)

	// Scoring needs only the raw counts and normalization only the raw
	// issues, so the two run concurrently.
	var (
		wg     sync.WaitGroup
		score  analyzer.ScoreResult
		issues []analyzer.Issue
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		score = analyzer.Score(counts)
	}()
	go func() {
		defer wg.Done()
		issues = analyzer.Normalize(raw, a.Dict)
	}()
	wg.Wait()

	summary := analyzer.Summarize(issues)

	return &Response{
		Success:        true,
		URL:            target,
		Standard:       StandardLabel,
		Counts:         &counts,
		Score:          score.Score,
		Grade:          score.Grade,
		GradeColor:     score.GradeColor,
		Breakdown:      &score.Breakdown,
		Assessment:     score.Assessment,
		Timestamp:      start.UTC().Format(time.RFC3339),
		AnalysisTimeMs: elapsed,
		Issues:         issues,
		Summary:        &summary,
		Meta:           buildMeta(raw, issues),
	}, nil
}

func buildMeta(raw []engine.RawIssue, issues []analyzer.Issue) *Meta {
	offenders := make([]string, 0, maxWorstOffenders)
	for _, issue := range issues {
		if len(offenders) == maxWorstOffenders {
			break
		}
		title := issue.Translation.Title
		if title == "" {
			title = taxonomy.StripCode(issue.Code)
		}
		offenders = append(offenders, title)
	}
	return &Meta{
		TotalIssuesFound: len(raw),
		UniqueIssueTypes: len(issues),
		WorstOffenders:   offenders,
	}
}
