package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPRunner talks to a remote engine service (a pa11y-webservice style
// sidecar) instead of shelling out. Useful when the browser automation
// runs in its own container.
type HTTPRunner struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// HTTPConfig configures an HTTPRunner.
type HTTPConfig struct {
	Endpoint string
	// Timeout bounds the whole HTTP exchange. Must exceed the engine's
	// own page timeout or every slow page reports as a transport error.
	Timeout time.Duration
}

// NewHTTPRunner validates the endpoint and builds a runner.
func NewHTTPRunner(cfg HTTPConfig) (*HTTPRunner, error) {
	base := strings.TrimSpace(cfg.Endpoint)
	if base == "" {
		return nil, fmt.Errorf("engine endpoint is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid engine endpoint: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("engine endpoint must be http or https, got %q", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPRunner{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// runRequest is the POST body the remote engine expects.
type runRequest struct {
	URL             string   `json:"url"`
	Standard        string   `json:"standard"`
	IncludeWarnings bool     `json:"includeWarnings"`
	IncludeNotices  bool     `json:"includeNotices"`
	Timeout         int64    `json:"timeout"`
	Wait            int64    `json:"wait"`
	UserAgent       string   `json:"userAgent,omitempty"`
	ChromeArgs      []string `json:"chromeArgs,omitempty"`
}

// runEnvelope accepts both bare-array and wrapped responses.
type runEnvelope struct {
	Issues []RawIssue `json:"issues"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Run posts the audit request and decodes the issue list.
func (r *HTTPRunner) Run(ctx context.Context, target string, opts Options) ([]RawIssue, error) {
	body, err := json.Marshal(runRequest{
		URL:             target,
		Standard:        opts.Standard,
		IncludeWarnings: opts.IncludeWarnings,
		IncludeNotices:  opts.IncludeNotices,
		Timeout:         opts.Timeout.Milliseconds(),
		Wait:            opts.Wait.Milliseconds(),
		UserAgent:       opts.UserAgent,
		ChromeArgs:      opts.ChromeArgs,
	})
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: "encode request: " + err.Error(), Err: err}
	}

	endpoint := r.baseURL.JoinPath("/run").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindOther, Message: err.Error(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, ClassifyError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}

	return decodeIssues(data)
}

func decodeIssues(data []byte) ([]RawIssue, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var issues []RawIssue
		if err := json.Unmarshal(trimmed, &issues); err != nil {
			return nil, &Error{Kind: KindOther, Message: "decode response: " + err.Error(), Err: err}
		}
		return issues, nil
	}
	var envelope runEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, &Error{Kind: KindOther, Message: "decode response: " + err.Error(), Err: err}
	}
	return envelope.Issues, nil
}

func statusError(status int, body []byte) *Error {
	message := strings.TrimSpace(string(body))
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			message = envelope.Message
		} else if envelope.Error != "" {
			message = envelope.Error
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}

	kind := KindOther
	switch status {
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		kind = KindTimeout
	case http.StatusBadGateway:
		kind = KindNavigation
	}
	return &Error{Kind: kind, Message: fmt.Sprintf("engine returned %d: %s", status, message)}
}
