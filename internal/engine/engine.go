// Package engine drives an external accessibility testing engine and
// exposes its raw output contract. The engine itself (rule detection,
// browser automation) is a black box; this package only knows how to
// invoke it and decode what comes back.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Severity is the engine's native three-valued classification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNotice  Severity = "notice"
)

// RawIssue is one rule violation as reported by the engine, one per
// offending DOM element. Many raw issues may share the same code.
type RawIssue struct {
	Code     string   `json:"code"`
	Type     Severity `json:"type"`
	Message  string   `json:"message"`
	Selector string   `json:"selector"`
}

// Options is the fixed invocation configuration passed to the engine.
type Options struct {
	Standard        string        // guideline set, e.g. "WCAG2AA"
	IncludeWarnings bool
	IncludeNotices  bool
	Timeout         time.Duration // hard limit on the whole page test
	Wait            time.Duration // settle time after page load
	UserAgent       string
	ChromeArgs      []string // sandbox flags for the underlying browser
}

// DefaultOptions returns the configuration audits run with unless
// overridden from the config file.
func DefaultOptions() Options {
	return Options{
		Standard:        "WCAG2AA",
		IncludeWarnings: true,
		IncludeNotices:  true,
		Timeout:         30 * time.Second,
		Wait:            1 * time.Second,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ChromeArgs:      []string{"--no-sandbox", "--disable-setuid-sandbox", "--disable-dev-shm-usage"},
	}
}

// Runner invokes the external engine against a single URL.
type Runner interface {
	Run(ctx context.Context, url string, opts Options) ([]RawIssue, error)
}

// ErrorKind categorizes engine invocation failures.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindNavigation ErrorKind = "navigation"
	KindCrashed    ErrorKind = "crashed"
	KindOther      ErrorKind = "engine_error"
)

// Error is a classified engine failure. Audits never see the raw
// subprocess or transport error, only this.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ClassifyError wraps err into an *Error, sniffing the failure category
// from the underlying message. Already-classified errors pass through.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*Error); ok {
		return ee
	}
	msg := err.Error()
	kind := KindOther
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timed out"), strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline exceeded"):
		kind = KindTimeout
	case strings.Contains(lower, "net::"), strings.Contains(lower, "navigation"),
		strings.Contains(lower, "err_name_not_resolved"), strings.Contains(lower, "refused"):
		kind = KindNavigation
	case strings.Contains(lower, "crash"), strings.Contains(lower, "target closed"),
		strings.Contains(lower, "protocol error"):
		kind = KindCrashed
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}
