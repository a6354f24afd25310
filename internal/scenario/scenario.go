// Package scenario loads declarative command batches from YAML files.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/analysta-ai/playwrightium/internal/engine"
)

// Scenario is a named, ordered batch of commands with a failure policy.
type Scenario struct {
	Name     string           `yaml:"name"`
	Policy   string           `yaml:"policy"`
	Commands []engine.Command `yaml:"commands"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	if len(s.Commands) == 0 {
		return fmt.Errorf("scenario has no commands")
	}
	switch s.Policy {
	case "", engine.PolicyAbort, engine.PolicyContinue:
	default:
		return fmt.Errorf("unknown policy %q", s.Policy)
	}
	for i, cmd := range s.Commands {
		if cmd.Type == "" {
			return fmt.Errorf("command %d has no type", i)
		}
	}
	return nil
}

// RunPolicy returns the effective policy, defaulting to abort.
func (s *Scenario) RunPolicy() string {
	if s.Policy == "" {
		return engine.PolicyAbort
	}
	return s.Policy
}
