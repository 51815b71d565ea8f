// Package config loads .a11ylens.yml configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/okuzmin/a11ylens/internal/engine"
)

// Config holds all a11ylens configuration.
type Config struct {
	Engine        Engine         `yaml:"engine"`
	Dictionary    string         `yaml:"dictionary"` // path to a YAML translation dictionary
	Thresholds    Thresholds     `yaml:"thresholds"`
	Defaults      Defaults       `yaml:"defaults"`
	Notifications []Notification `yaml:"notifications"`
}

// Engine configures how the external testing engine is invoked.
type Engine struct {
	Binary    string `yaml:"binary"`   // pa11y executable (exec runner)
	Endpoint  string `yaml:"endpoint"` // remote engine URL (http runner, wins over binary)
	Standard  string `yaml:"standard"`
	Timeout   string `yaml:"timeout"` // parsed as time.Duration
	Wait      string `yaml:"wait"`
	UserAgent string `yaml:"user_agent"`
}

// Thresholds control watch-mode alerting sensitivity.
type Thresholds struct {
	MinScore  int `yaml:"min_score"`  // alert when a run scores below this
	ScoreDrop int `yaml:"score_drop"` // alert when score falls this much between runs
}

// Defaults holds default CLI flag values.
type Defaults struct {
	Format  string `yaml:"format"`
	Timeout string `yaml:"timeout"` // parsed as time.Duration
}

// Notification configures one watch-mode notification channel.
type Notification struct {
	Type string   `yaml:"type"` // slack, webhook, or email
	On   []string `yaml:"on"`   // event filters, empty means all

	// Slack.
	WebhookURL   string `yaml:"webhook_url"`
	DashboardURL string `yaml:"dashboard_url"`

	// Generic webhook.
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`

	// Email.
	SMTPHost     string   `yaml:"smtp_host"`
	SMTPPort     int      `yaml:"smtp_port"`
	SMTPUsername string   `yaml:"smtp_username"`
	SMTPPassword string   `yaml:"smtp_password"`
	From         string   `yaml:"from"`
	To           []string `yaml:"to"`
	Subject      string   `yaml:"subject"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Engine: Engine{
			Binary:   "pa11y",
			Standard: "WCAG2AA",
			Timeout:  "30s",
			Wait:     "1s",
		},
		Thresholds: Thresholds{
			MinScore:  60,
			ScoreDrop: 10,
		},
		Defaults: Defaults{
			Format:  "text",
			Timeout: "60s",
		},
	}
}

// Load reads configuration from .a11ylens.yml in the given directory,
// falling back to ~/.a11ylens.yml. Returns DefaultConfig if no file found.
func Load(dir string) (Config, error) {
	cfg := DefaultConfig()

	paths := []string{filepath.Join(dir, ".a11ylens.yml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".a11ylens.yml"))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue // file not found, try next
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	return cfg, nil
}

// EngineOptions converts the engine section into invocation options,
// filling gaps from the built-in defaults.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	if c.Engine.Standard != "" {
		opts.Standard = c.Engine.Standard
	}
	if d, err := time.ParseDuration(c.Engine.Timeout); err == nil && d > 0 {
		opts.Timeout = d
	}
	if d, err := time.ParseDuration(c.Engine.Wait); err == nil && d >= 0 {
		opts.Wait = d
	}
	if c.Engine.UserAgent != "" {
		opts.UserAgent = c.Engine.UserAgent
	}
	return opts
}

// TimeoutDuration parses the Defaults.Timeout string as a time.Duration.
// Returns 60s if parsing fails.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Defaults.Timeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.Defaults.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
