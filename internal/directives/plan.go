// Package directives loads patch plans: a target file plus the table of
// line directives to apply to it. Plans are YAML; JSON plans work too since
// YAML accepts them.
package directives

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"line-patcher/internal/models"
	"line-patcher/internal/patch"
)

// Plan is a directive table for one file.
type Plan struct {
	// Target is the file to patch, relative to the working directory.
	Target string `yaml:"target" json:"target"`
	// Strict rejects the whole plan if any directive fails.
	Strict bool `yaml:"strict,omitempty" json:"strict,omitempty"`
	// Description is free text for humans.
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Directives  []models.DirectiveSpec `yaml:"directives" json:"directives"`
}

// ErrInvalidPlan wraps every validation failure returned by Validate.
var ErrInvalidPlan = errors.New("invalid plan")

// Load reads and validates the plan at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan %s: %w", path, err)
	}
	plan, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return plan, nil
}

// Parse decodes and validates a plan. Unknown keys are rejected so a typo
// such as "expected:" cannot silently drop a guard.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks the plan without looking at the target file. Range and
// guard checks happen later, against the file's actual content.
func (p *Plan) Validate() error {
	if p.Target == "" {
		return fmt.Errorf("%w: target is required", ErrInvalidPlan)
	}
	if len(p.Directives) == 0 {
		return fmt.Errorf("%w: no directives", ErrInvalidPlan)
	}
	for i, d := range p.Directives {
		if _, err := patch.ParseKind(d.Action); err != nil {
			return fmt.Errorf("%w: directive #%d: %v", ErrInvalidPlan, i+1, err)
		}
		if d.Line < 0 {
			return fmt.Errorf("%w: directive #%d: line must not be negative, got %d", ErrInvalidPlan, i+1, d.Line)
		}
	}
	return nil
}

// Request turns the plan into a service request.
func (p *Plan) Request(dryRun bool) models.PatchFileRequest {
	return models.PatchFileRequest{
		Name:       p.Target,
		Directives: p.Directives,
		Strict:     p.Strict,
		DryRun:     dryRun,
	}
}
