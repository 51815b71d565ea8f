package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// pa11y exit codes: 0 = clean page, 2 = page tested with issues found.
// Both carry a valid JSON report on stdout.
const execExitIssuesFound = 2

// ExecRunner runs the pa11y CLI as a subprocess with the JSON reporter.
type ExecRunner struct {
	// Binary is the pa11y executable. Defaults to "pa11y" on PATH.
	Binary string
}

// execConfig is the pa11y JSON config file written per invocation.
type execConfig struct {
	Standard           string       `json:"standard"`
	Timeout            int64        `json:"timeout"`
	Wait               int64        `json:"wait"`
	UserAgent          string       `json:"userAgent,omitempty"`
	IncludeWarnings    bool         `json:"includeWarnings"`
	IncludeNotices     bool         `json:"includeNotices"`
	ChromeLaunchConfig chromeConfig `json:"chromeLaunchConfig"`
}

type chromeConfig struct {
	Args []string `json:"args,omitempty"`
}

// Run executes the engine against url and decodes its JSON report.
func (r *ExecRunner) Run(ctx context.Context, url string, opts Options) ([]RawIssue, error) {
	binary := r.Binary
	if binary == "" {
		binary = "pa11y"
	}

	cfgPath, err := writeExecConfig(opts)
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: "write engine config: " + err.Error(), Err: err}
	}
	defer func() { _ = os.Remove(cfgPath) }()

	cmd := exec.CommandContext(ctx, binary, buildExecArgs(cfgPath, opts, url)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, &Error{Kind: KindTimeout, Message: "engine run exceeded its timeout", Err: ctx.Err()}
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) || exitErr.ExitCode() != execExitIssuesFound {
			return nil, ClassifyError(fmt.Errorf("%v: %s", runErr, firstLine(stderr.String())))
		}
	}

	issues, err := parseExecOutput(stdout.Bytes())
	if err != nil {
		return nil, &Error{Kind: KindCrashed, Message: "engine produced unreadable output: " + err.Error(), Err: err}
	}
	return issues, nil
}

func buildExecArgs(cfgPath string, opts Options, url string) []string {
	args := []string{
		"--reporter", "json",
		"--config", cfgPath,
		"--timeout", strconv.FormatInt(opts.Timeout.Milliseconds(), 10),
	}
	if opts.IncludeWarnings {
		args = append(args, "--include-warnings")
	}
	if opts.IncludeNotices {
		args = append(args, "--include-notices")
	}
	return append(args, url)
}

func writeExecConfig(opts Options) (string, error) {
	cfg := execConfig{
		Standard:           opts.Standard,
		Timeout:            opts.Timeout.Milliseconds(),
		Wait:               opts.Wait.Milliseconds(),
		UserAgent:          opts.UserAgent,
		IncludeWarnings:    opts.IncludeWarnings,
		IncludeNotices:     opts.IncludeNotices,
		ChromeLaunchConfig: chromeConfig{Args: opts.ChromeArgs},
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "a11ylens-engine-*.json")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return filepath.Clean(f.Name()), nil
}

// parseExecOutput decodes the JSON reporter output: a flat array of issues.
func parseExecOutput(data []byte) ([]RawIssue, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var issues []RawIssue
	if err := json.Unmarshal(trimmed, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
