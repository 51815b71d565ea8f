package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okuzmin/a11ylens/internal/audit"
	"github.com/okuzmin/a11ylens/internal/config"
	"github.com/okuzmin/a11ylens/internal/engine"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

type fakeEngine struct {
	issues []engine.RawIssue
	err    error
	calls  int
}

func (f *fakeEngine) Run(ctx context.Context, url string, opts engine.Options) ([]engine.RawIssue, error) {
	f.calls++
	return f.issues, f.err
}

// withFakes swaps the injectable constructors for the duration of a test.
func withFakes(t *testing.T, fake *fakeEngine) {
	t.Helper()
	origConfig, origDict, origRunner := loadConfig, loadDictionary, newRunner
	loadConfig = func(dir string) (config.Config, error) { return config.DefaultConfig(), nil }
	loadDictionary = func(path string) (taxonomy.Dictionary, error) { return taxonomy.Dictionary{}, nil }
	newRunner = func(cfg config.Config) (engine.Runner, error) { return fake, nil }
	t.Cleanup(func() {
		loadConfig, loadDictionary, newRunner = origConfig, origDict, origRunner
	})
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "a11ylens test") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestAuditCommand_Text(t *testing.T) {
	fake := &fakeEngine{issues: []engine.RawIssue{
		{Code: "WCAG2AA.Principle1.Guideline1_1.1_1_1.H37", Type: engine.SeverityError, Message: "img missing alt", Selector: "#logo"},
	}}
	withFakes(t, fake)

	out, err := runCommand(t, "audit", "https://example.com")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("engine called %d times", fake.calls)
	}
	if !strings.Contains(out, "Score: 90 (A)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "[CRITICAL]") {
		t.Errorf("issue line missing:\n%s", out)
	}
}

func TestAuditCommand_JSON(t *testing.T) {
	withFakes(t, &fakeEngine{})

	out, err := runCommand(t, "audit", "--format", "json", "https://example.com")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var resp audit.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if !resp.Success || resp.Score != 100 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestAuditCommand_InvalidFormat(t *testing.T) {
	withFakes(t, &fakeEngine{})
	_, err := runCommand(t, "audit", "--format", "xml", "https://example.com")
	if err == nil || !strings.Contains(err.Error(), "invalid --format") {
		t.Fatalf("err = %v", err)
	}
}

func TestAuditCommand_InvalidURL(t *testing.T) {
	fake := &fakeEngine{}
	withFakes(t, fake)

	_, err := runCommand(t, "audit", "not-a-url")
	if err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 0 {
		t.Errorf("engine must not run for an invalid url, got %d calls", fake.calls)
	}
}

func TestAuditCommand_EngineFailureExitsNonzero(t *testing.T) {
	withFakes(t, &fakeEngine{err: errors.New("page load timed out")})

	out, err := runCommand(t, "audit", "https://example.com")
	if err == nil {
		t.Fatal("expected error for failed audit")
	}
	if !strings.Contains(out, "Audit failed:") {
		t.Errorf("failure report missing:\n%s", out)
	}
}

func TestAuditCommand_MinScoreGate(t *testing.T) {
	// 5 errors: penalty 50, score 50.
	issues := make([]engine.RawIssue, 0, 5)
	for _, code := range []string{"a", "b", "c", "d", "e"} {
		issues = append(issues, engine.RawIssue{Code: code, Type: engine.SeverityError, Message: "m", Selector: "s"})
	}
	withFakes(t, &fakeEngine{issues: issues})

	_, err := runCommand(t, "audit", "--min-score", "80", "https://example.com")
	if err == nil || !strings.Contains(err.Error(), "below required minimum") {
		t.Fatalf("err = %v", err)
	}

	if _, err := runCommand(t, "audit", "--min-score", "40", "https://example.com"); err != nil {
		t.Fatalf("score above gate must pass: %v", err)
	}
}

func TestAuditCommand_OutputFile(t *testing.T) {
	withFakes(t, &fakeEngine{})
	path := filepath.Join(t.TempDir(), "report.json")

	if _, err := runCommand(t, "audit", "--format", "json", "-o", path, "https://example.com"); err != nil {
		t.Fatalf("audit: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var resp audit.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("output file is not JSON: %v", err)
	}
}

func TestAuditCommand_Interactive(t *testing.T) {
	withFakes(t, &fakeEngine{})

	origTUI := runTUI
	var got *audit.Response
	runTUI = func(resp *audit.Response) error {
		got = resp
		return nil
	}
	t.Cleanup(func() { runTUI = origTUI })

	if _, err := runCommand(t, "audit", "--interactive", "https://example.com"); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if got == nil || !got.Success {
		t.Errorf("tui did not receive the response: %+v", got)
	}
}

func TestReportCommand(t *testing.T) {
	resp := audit.Response{
		Success:  true,
		URL:      "https://example.com",
		Standard: audit.StandardLabel,
		Score:    88,
		Grade:    "B",
	}
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "saved.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCommand(t, "report", path)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "Score: 88 (B)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestReportCommand_MissingFile(t *testing.T) {
	_, err := runCommand(t, "report", filepath.Join(t.TempDir(), "nope.json"))
	if err == nil || !strings.Contains(err.Error(), "read report") {
		t.Fatalf("err = %v", err)
	}
}

func TestReportCommand_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := runCommand(t, "report", path)
	if err == nil || !strings.Contains(err.Error(), "parse report") {
		t.Fatalf("err = %v", err)
	}
}

func requireExitCode(t *testing.T, err error, want int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected ExitError(%d), got nil", want)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError(%d), got %T (%v)", want, err, err)
	}
	if exitErr.Code != want {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, want)
	}
}

func TestAuditCommand_ExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		issues   []engine.RawIssue
		wantCode int
	}{
		{
			name: "critical issue",
			issues: []engine.RawIssue{
				{Code: "WCAG2AA.Principle1.Guideline1_1.1_1_1.H37", Type: engine.SeverityError, Message: "m", Selector: "s"},
			},
			wantCode: 2,
		},
		{
			name: "warning issue",
			issues: []engine.RawIssue{
				{Code: "WCAG2AA.Principle1.Guideline1_4.1_4_3.G18.Fail", Type: engine.SeverityWarning, Message: "m", Selector: "s"},
			},
			wantCode: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFakes(t, &fakeEngine{issues: tt.issues})
			_, err := runCommand(t, "audit", "--exit-code", "https://example.com")
			requireExitCode(t, err, tt.wantCode)
		})
	}
}

func TestAuditCommand_ExitCodeCleanPage(t *testing.T) {
	withFakes(t, &fakeEngine{})
	if _, err := runCommand(t, "audit", "--exit-code", "https://example.com"); err != nil {
		t.Fatalf("clean page must exit zero: %v", err)
	}
}

func TestExitErrorError(t *testing.T) {
	if got := (&ExitError{Code: 2}).Error(); got != "exit code 2" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidateFormat(t *testing.T) {
	if err := validateFormat("json", "text", "json"); err != nil {
		t.Errorf("json should be allowed: %v", err)
	}
	if err := validateFormat("yaml", "text", "json"); err == nil {
		t.Error("yaml should be rejected")
	}
}

func TestNewRunner_PrefersEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.Endpoint = "http://localhost:4000"

	r, err := newRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.(*engine.HTTPRunner); !ok {
		t.Errorf("expected HTTPRunner, got %T", r)
	}

	cfg.Engine.Endpoint = ""
	r, err = newRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.(*engine.ExecRunner); !ok {
		t.Errorf("expected ExecRunner, got %T", r)
	}
}
