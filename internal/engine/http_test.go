package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHTTPRunner(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{name: "valid", endpoint: "http://localhost:4000"},
		{name: "https", endpoint: "https://engine.internal"},
		{name: "empty", endpoint: "", wantErr: true},
		{name: "whitespace", endpoint: "   ", wantErr: true},
		{name: "bad scheme", endpoint: "tcp://localhost:4000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTPRunner(HTTPConfig{Endpoint: tt.endpoint})
			if tt.wantErr != (err != nil) {
				t.Errorf("NewHTTPRunner(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			}
		})
	}
}

func TestHTTPRunner_Run(t *testing.T) {
	issues := []RawIssue{
		{Code: "WCAG2AA.Principle1.Guideline1_1.1_1_1.H37", Type: SeverityError, Message: "img missing alt", Selector: "#logo"},
	}

	var gotReq runRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/run" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(issues)
	}))
	defer srv.Close()

	r, err := NewHTTPRunner(HTTPConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Run(context.Background(), "https://example.com", DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0].Code != issues[0].Code {
		t.Errorf("unexpected issues: %+v", got)
	}
	if gotReq.URL != "https://example.com" || gotReq.Standard != "WCAG2AA" {
		t.Errorf("unexpected request body: %+v", gotReq)
	}
	if gotReq.Timeout != 30000 || gotReq.Wait != 1000 {
		t.Errorf("timeouts not forwarded: %+v", gotReq)
	}
}

func TestHTTPRunner_EnvelopeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"issues":[{"code":"c1","type":"notice","message":"m","selector":"p"}]}`))
	}))
	defer srv.Close()

	r, err := NewHTTPRunner(HTTPConfig{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Run(context.Background(), "https://example.com", DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0].Code != "c1" {
		t.Errorf("unexpected issues: %+v", got)
	}
}

func TestHTTPRunner_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorKind
	}{
		{name: "gateway timeout", status: http.StatusGatewayTimeout, want: KindTimeout},
		{name: "request timeout", status: http.StatusRequestTimeout, want: KindTimeout},
		{name: "bad gateway", status: http.StatusBadGateway, want: KindNavigation},
		{name: "server error", status: http.StatusInternalServerError, body: `{"message":"browser pool exhausted"}`, want: KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r, err := NewHTTPRunner(HTTPConfig{Endpoint: srv.URL})
			if err != nil {
				t.Fatal(err)
			}
			_, err = r.Run(context.Background(), "https://example.com", DefaultOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			ee, ok := err.(*Error)
			if !ok {
				t.Fatalf("expected *Error, got %T", err)
			}
			if ee.Kind != tt.want {
				t.Errorf("kind = %s, want %s", ee.Kind, tt.want)
			}
		})
	}
}

func TestStatusError_MessageExtraction(t *testing.T) {
	e := statusError(http.StatusInternalServerError, []byte(`{"message":"browser pool exhausted"}`))
	if e.Message != "engine returned 500: browser pool exhausted" {
		t.Errorf("message = %q", e.Message)
	}

	e = statusError(http.StatusServiceUnavailable, nil)
	if e.Message != "engine returned 503: Service Unavailable" {
		t.Errorf("message = %q", e.Message)
	}
}

func TestDecodeIssues_Empty(t *testing.T) {
	got, err := decodeIssues(nil)
	if err != nil || got != nil {
		t.Errorf("decodeIssues(nil) = %v, %v", got, err)
	}
}
