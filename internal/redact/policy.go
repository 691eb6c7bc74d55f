package redact

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds deployment-specific redaction settings loaded from YAML.
type Policy struct {
	// SensitiveKeys extends the built-in sensitive-field-name list.
	SensitiveKeys []string `yaml:"sensitive_keys"`
}

// LoadPolicy reads a redaction policy file. A missing file is not an
// error — the built-in defaults apply.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return &Policy{}, nil
	}
	b, err := os.ReadFile(path) //nolint:gosec // path is operator-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{}, nil
		}
		return nil, fmt.Errorf("read redaction policy %s: %w", path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse redaction policy %s: %w", path, err)
	}
	return &p, nil
}

// NewEngineFromPolicy builds an engine with the policy's extra keys applied.
func NewEngineFromPolicy(p *Policy) *Engine {
	if p == nil {
		return NewEngine()
	}
	return NewEngine(p.SensitiveKeys...)
}
