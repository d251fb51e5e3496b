// Package parser reads YAML task plans for the CLI and the REST surface and
// converts them into the engine's step model. Parsing is strict: unknown
// fields are errors, so typos in plan files fail loudly.
package parser

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// Plan is the on-disk task definition.
type Plan struct {
	Name     string                  `yaml:"name,omitempty"`
	Strategy string                  `yaml:"strategy,omitempty"`
	Context  *types.ExecutionContext `yaml:"context,omitempty"`
	Steps    []StepSpec              `yaml:"steps"`
}

// StepSpec is one step as written in a plan file. Durations are strings
// ("500ms", "2s") and converted during parsing.
type StepSpec struct {
	ID                string                     `yaml:"id"`
	Type              string                     `yaml:"type"`
	Target            string                     `yaml:"target,omitempty"`
	Value             string                     `yaml:"value,omitempty"`
	Priority          int                        `yaml:"priority,omitempty"`
	Dependencies      []string                   `yaml:"dependencies,omitempty"`
	EstimatedDuration string                     `yaml:"estimated_duration,omitempty"`
	Timeout           string                     `yaml:"timeout,omitempty"`
	Requirements      types.ResourceRequirements `yaml:"requirements,omitempty"`
	Retry             RetrySpec                  `yaml:"retry,omitempty"`
}

// RetrySpec mirrors types.RetryStrategy with string durations.
type RetrySpec struct {
	MaxAttempts int    `yaml:"max_attempts,omitempty"`
	Backoff     string `yaml:"backoff,omitempty"`
	BaseDelay   string `yaml:"base_delay,omitempty"`
	MaxDelay    string `yaml:"max_delay,omitempty"`
}

// ParseError carries the plan file position when the YAML library exposes
// one.
type ParseError struct {
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("plan line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("plan: %s", e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes and validates a plan from bytes.
func Parse(data []byte) (*Plan, error) {
	var plan Plan

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&plan); err != nil {
		return nil, wrapYAMLError(err)
	}
	if err := plan.validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ParseFile decodes and validates a plan file.
func ParseFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("read %s: %v", path, err), Err: err}
	}
	return Parse(data)
}

// Compile converts the plan's step specs into engine steps.
func (p *Plan) Compile() ([]*types.Step, error) {
	steps := make([]*types.Step, 0, len(p.Steps))
	for i := range p.Steps {
		step, err := p.Steps[i].convert()
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (s *StepSpec) convert() (*types.Step, error) {
	estimated, err := parseDuration(s.EstimatedDuration)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("step %s: estimated_duration: %v", s.ID, err), Err: err}
	}
	timeout, err := parseDuration(s.Timeout)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("step %s: timeout: %v", s.ID, err), Err: err}
	}
	baseDelay, err := parseDuration(s.Retry.BaseDelay)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("step %s: retry.base_delay: %v", s.ID, err), Err: err}
	}
	maxDelay, err := parseDuration(s.Retry.MaxDelay)
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("step %s: retry.max_delay: %v", s.ID, err), Err: err}
	}

	return &types.Step{
		ID:                s.ID,
		Type:              s.Type,
		Target:            s.Target,
		Value:             s.Value,
		Priority:          s.Priority,
		Dependencies:      s.Dependencies,
		EstimatedDuration: estimated,
		Timeout:           timeout,
		Requirements:      s.Requirements,
		Retry: types.RetryStrategy{
			MaxAttempts: s.Retry.MaxAttempts,
			Backoff:     types.BackoffStrategy(s.Retry.Backoff),
			BaseDelay:   baseDelay,
			MaxDelay:    maxDelay,
		},
	}, nil
}

func (p *Plan) validate() error {
	if len(p.Steps) == 0 {
		return &ParseError{Message: "plan defines no steps"}
	}
	switch p.Strategy {
	case "", "sequential", "parallel", "adaptive":
	default:
		return &ParseError{Message: fmt.Sprintf("unknown strategy: %s", p.Strategy)}
	}

	seen := make(map[string]bool, len(p.Steps))
	for i, s := range p.Steps {
		if s.ID == "" {
			return &ParseError{Message: fmt.Sprintf("step %d has no id", i)}
		}
		if seen[s.ID] {
			return &ParseError{Message: fmt.Sprintf("duplicate step id: %s", s.ID)}
		}
		seen[s.ID] = true

		if s.Type == "" {
			return &ParseError{Message: fmt.Sprintf("step %s has no type", s.ID)}
		}
		switch types.BackoffStrategy(s.Retry.Backoff) {
		case "", types.BackoffFixed, types.BackoffLinear, types.BackoffExponential:
		default:
			return &ParseError{Message: fmt.Sprintf("step %s: unknown backoff strategy: %s", s.ID, s.Retry.Backoff)}
		}
		if s.Retry.MaxAttempts < 0 {
			return &ParseError{Message: fmt.Sprintf("step %s: negative max_attempts", s.ID)}
		}
	}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}

func wrapYAMLError(err error) error {
	msg := err.Error()
	line := 0
	if idx := strings.Index(msg, "line "); idx != -1 {
		fmt.Sscanf(msg[idx:], "line %d", &line)
	}
	msg = strings.TrimPrefix(msg, "yaml: ")
	return &ParseError{Line: line, Message: msg, Err: err}
}
