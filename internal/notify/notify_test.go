package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/okuzmin/a11ylens/internal/analyzer"
	"github.com/okuzmin/a11ylens/internal/config"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

var testTime = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func criticalEvent(url string) Event {
	return Event{
		Type:      EventNewCritical,
		Timestamp: testTime.Format(time.RFC3339),
		URL:       url,
		Issue: &analyzer.Issue{
			Code:     "WCAG2AA.Principle1.Guideline1_1.1_1_1.H37",
			Type:     "error",
			Count:    2,
			Priority: taxonomy.PriorityCritical,
			Translation: taxonomy.Translation{
				Title:       "Images missing alternative text",
				Description: "Screen reader users cannot understand these images.",
			},
		},
	}
}

func TestEventsFromDiff(t *testing.T) {
	diff := []analyzer.IssueDelta{
		{Status: analyzer.StatusNew, Issue: analyzer.Issue{Code: "c1", Priority: taxonomy.PriorityCritical}},
		{Status: analyzer.StatusNew, Issue: analyzer.Issue{Code: "c2", Priority: taxonomy.PriorityWarning}},
		{Status: analyzer.StatusNew, Issue: analyzer.Issue{Code: "c3", Priority: taxonomy.PriorityLow}},
		{Status: analyzer.StatusResolved, Issue: analyzer.Issue{Code: "c4", Priority: taxonomy.PriorityLow}},
		{Status: analyzer.StatusUnchanged, Issue: analyzer.Issue{Code: "c5", Priority: taxonomy.PriorityCritical}},
	}

	events := EventsFromDiff("https://example.com", diff, testTime)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != EventNewCritical || events[0].Issue.Code != "c1" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Type != EventNewWarning {
		t.Errorf("events[1].Type = %s", events[1].Type)
	}
	if events[2].Type != EventResolved || events[2].Issue.Code != "c4" {
		t.Errorf("events[2] = %+v", events[2])
	}
	for _, e := range events {
		if e.URL != "https://example.com" || e.Timestamp != "2026-08-30T12:00:00Z" {
			t.Errorf("event missing context: %+v", e)
		}
	}
}

func TestScoreDropEvent(t *testing.T) {
	e := ScoreDropEvent("https://example.com", 62, 85, testTime)
	if e.Type != EventScoreDrop || e.Score != 62 || e.PrevScore != 85 {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestNewDispatcher_NoChannels(t *testing.T) {
	if _, err := NewDispatcher(nil, DispatcherOptions{}); err == nil {
		t.Fatal("expected error with no channels")
	}
}

func TestNewDispatcher_UnsupportedType(t *testing.T) {
	_, err := NewDispatcher([]config.Notification{{Type: "pager"}}, DispatcherOptions{})
	if err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewDispatcher_BadEventFilter(t *testing.T) {
	t.Setenv("SLACK_HOOK", "https://hooks.slack.example/T/B/x")
	_, err := NewDispatcher([]config.Notification{{
		Type:       "slack",
		WebhookURL: "${SLACK_HOOK}",
		On:         []string{"everything"},
	}}, DispatcherOptions{})
	if err == nil || !strings.Contains(err.Error(), "unsupported event filter") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewDispatcher_SlackSecretMustBePlaceholder(t *testing.T) {
	_, err := NewDispatcher([]config.Notification{{
		Type:       "slack",
		WebhookURL: "https://hooks.slack.example/T/B/literal",
	}}, DispatcherOptions{})
	if err == nil || !strings.Contains(err.Error(), "placeholder") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewDispatcher_UnsetEnvVar(t *testing.T) {
	t.Setenv("A11Y_TEST_UNSET_HOOK", "")
	_, err := NewDispatcher([]config.Notification{{
		Type:       "slack",
		WebhookURL: "${A11Y_TEST_UNSET_HOOK}",
	}}, DispatcherOptions{})
	if err == nil || !strings.Contains(err.Error(), "unset env var") {
		t.Fatalf("err = %v", err)
	}
}

func TestNotify_Webhook(t *testing.T) {
	var got map[string]interface{}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	t.Setenv("A11Y_TEST_TOKEN", "tok-123")
	d, err := NewDispatcher([]config.Notification{{
		Type:    "webhook",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "${A11Y_TEST_TOKEN}"},
	}}, DispatcherOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Notify(context.Background(), []Event{criticalEvent("https://example.com")}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotAuth != "tok-123" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if got["source"] != "a11ylens" || got["event"] != "new_critical" {
		t.Errorf("unexpected payload: %+v", got)
	}
	issue, ok := got["issue"].(map[string]interface{})
	if !ok || issue["priority"] != "critical" {
		t.Errorf("unexpected issue field: %+v", got["issue"])
	}
}

func TestNotify_WebhookServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no thanks", http.StatusForbidden)
	}))
	defer srv.Close()

	d, err := NewDispatcher([]config.Notification{{Type: "webhook", URL: srv.URL}}, DispatcherOptions{})
	if err != nil {
		t.Fatal(err)
	}
	err = d.Notify(context.Background(), []Event{criticalEvent("https://example.com")})
	if err == nil || !strings.Contains(err.Error(), "http 403") {
		t.Fatalf("err = %v", err)
	}
}

func TestNotify_EventFilter(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	d, err := NewDispatcher([]config.Notification{{
		Type: "webhook",
		URL:  srv.URL,
		On:   []string{"score_drop"},
	}}, DispatcherOptions{})
	if err != nil {
		t.Fatal(err)
	}

	events := []Event{
		criticalEvent("https://example.com"),
		ScoreDropEvent("https://example.com", 50, 90, testTime),
	}
	if err := d.Notify(context.Background(), events); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected only the score_drop to be delivered, got %d calls", calls)
	}
}

func TestNotify_RateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	clock := testTime
	d, err := NewDispatcher([]config.Notification{{Type: "webhook", URL: srv.URL}}, DispatcherOptions{
		Interval: time.Hour,
		Now:      func() time.Time { return clock },
	})
	if err != nil {
		t.Fatal(err)
	}

	event := criticalEvent("https://example.com")
	if err := d.Notify(context.Background(), []Event{event, event}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls != 1 {
		t.Errorf("duplicate event within interval must be suppressed, got %d calls", calls)
	}

	clock = clock.Add(2 * time.Hour)
	if err := d.Notify(context.Background(), []Event{event}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls != 2 {
		t.Errorf("event after interval must be delivered, got %d calls", calls)
	}
}

func TestNotify_DryRun(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	var out bytes.Buffer
	d, err := NewDispatcher([]config.Notification{{Type: "webhook", URL: srv.URL}}, DispatcherOptions{
		DryRun: true,
		Writer: &out,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Notify(context.Background(), []Event{criticalEvent("https://example.com")}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls != 0 {
		t.Errorf("dry run must not hit the network, got %d calls", calls)
	}
	if !strings.Contains(out.String(), "[notify dry-run] channel=webhook[0] event=new_critical") {
		t.Errorf("unexpected dry-run output: %s", out.String())
	}
}

func TestNotify_Email(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	fakeSend := func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	d, err := NewDispatcher([]config.Notification{{
		Type:     "email",
		SMTPHost: "mail.example.com",
		SMTPPort: 587,
		From:     "alerts@example.com",
		To:       []string{"dev@example.com"},
	}}, DispatcherOptions{SendMail: fakeSend})
	if err != nil {
		t.Fatal(err)
	}

	if err := d.Notify(context.Background(), []Event{criticalEvent("https://example.com")}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotAddr != "mail.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "alerts@example.com" || len(gotTo) != 1 || gotTo[0] != "dev@example.com" {
		t.Errorf("from=%q to=%v", gotFrom, gotTo)
	}
	if !strings.Contains(string(gotMsg), "Images missing alternative text") {
		t.Error("email body missing issue title")
	}
	if !strings.Contains(string(gotMsg), "Subject: [a11ylens] NEW_CRITICAL https://example.com") {
		t.Errorf("unexpected subject in message:\n%s", gotMsg)
	}
}

func TestBuildSlackPayload(t *testing.T) {
	event := criticalEvent("https://example.com")
	payload, err := buildSlackPayload(&event, "https://dash.example.com")
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	text, _ := decoded["text"].(string)
	if !strings.Contains(text, "NEW_CRITICAL") || !strings.Contains(text, "Images missing alternative text") {
		t.Errorf("text = %q", text)
	}
	if !strings.Contains(text, "<https://dash.example.com|Open dashboard>") {
		t.Errorf("dashboard link missing: %q", text)
	}
	attachments, _ := decoded["attachments"].([]interface{})
	if len(attachments) != 1 {
		t.Fatalf("attachments = %v", attachments)
	}
	attachment := attachments[0].(map[string]interface{})
	if attachment["color"] != "#d40e0d" {
		t.Errorf("critical color = %v", attachment["color"])
	}
}

func TestIsSensitiveHeader(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"Authorization", true},
		{"X-Api-Key", true},
		{"X-Auth-Token", true},
		{"Content-Type", false},
		{"Accept", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isSensitiveHeader(tt.header); got != tt.want {
			t.Errorf("isSensitiveHeader(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestRateLimitKey(t *testing.T) {
	event := criticalEvent("https://example.com")
	key := rateLimitKey("slack[0]", &event)
	want := "slack[0]|new_critical|https://example.com|WCAG2AA.Principle1.Guideline1_1.1_1_1.H37"
	if key != want {
		t.Errorf("key = %q, want %q", key, want)
	}

	drop := ScoreDropEvent("https://example.com", 50, 90, testTime)
	key = rateLimitKey("slack[0]", &drop)
	if key != "slack[0]|score_drop|https://example.com|score_drop" {
		t.Errorf("score drop key = %q", key)
	}
}
