package cli

import (
	"fmt"
	"strings"

	"github.com/okuzmin/a11ylens/internal/audit"
	"github.com/okuzmin/a11ylens/internal/config"
	"github.com/okuzmin/a11ylens/internal/engine"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

// Constructors are swappable so command tests can inject fakes.
var (
	loadConfig     = config.Load
	loadDictionary = taxonomy.LoadDictionary

	newRunner = func(cfg config.Config) (engine.Runner, error) {
		endpoint := engineEndpoint
		if endpoint == "" {
			endpoint = cfg.Engine.Endpoint
		}
		if endpoint != "" {
			return engine.NewHTTPRunner(engine.HTTPConfig{
				Endpoint: endpoint,
				Timeout:  cfg.TimeoutDuration(),
			})
		}
		binary := engineBinary
		if binary == "" {
			binary = cfg.Engine.Binary
		}
		return &engine.ExecRunner{Binary: binary}, nil
	}
)

// newAuditor wires config, dictionary and runner into an auditor.
func newAuditor(cfg config.Config) (*audit.Auditor, error) {
	runner, err := newRunner(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	dict, err := loadDictionary(cfg.Dictionary)
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	return audit.New(runner, cfg.EngineOptions(), dict), nil
}

func validateFormat(format string, allowed ...string) error {
	for _, v := range allowed {
		if format == v {
			return nil
		}
	}
	return fmt.Errorf("invalid --format %q (allowed: %s)", format, strings.Join(allowed, ", "))
}
