// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package executive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/telemetry"
)

// Sequence is a fixed, externally authored list of skills to run in order.
type Sequence struct {
	ID    string `json:"id" yaml:"id"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Step names one skill of a sequence.
type Step struct {
	Skill string `json:"skill" yaml:"skill"`
	// MaxSteps overrides Config.MaxSteps for this step when positive.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
}

// Validate ensures the sequence is well-formed.
func (s *Sequence) Validate() error {
	if s == nil {
		return errors.New(errors.CodeInvalidInput, "sequence is nil", nil)
	}
	if len(s.Steps) == 0 {
		return errors.New(errors.CodeInvalidInput, "sequence has no steps", nil)
	}
	for i, step := range s.Steps {
		if strings.TrimSpace(step.Skill) == "" {
			return errors.Newf(errors.CodeInvalidInput, "step %d has no skill", i)
		}
		if step.MaxSteps < 0 {
			return errors.Newf(errors.CodeInvalidInput, "step %d has negative max_steps", i)
		}
	}
	return nil
}

// CheckRegistered ensures every step names a registered skill.
func (s *Sequence) CheckRegistered(reg interface{ Names() []string }) error {
	names := reg.Names()
	for i, step := range s.Steps {
		if !slices.Contains(names, step.Skill) {
			return errors.Newf(errors.CodeNotFound, "step %d: skill %q not registered", i, step.Skill)
		}
	}
	return nil
}

// LoadSequence loads a sequence from a YAML or JSON file.
func LoadSequence(path string) (*Sequence, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "sequence path is required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseSequenceJSON(data)
	case ".yaml", ".yml":
		return ParseSequenceYAML(data)
	default:
		return parseSequenceAuto(data)
	}
}

func parseSequenceAuto(data []byte) (*Sequence, error) {
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		if seq, err := ParseSequenceJSON(data); err == nil {
			return seq, nil
		}
	}
	if seq, err := ParseSequenceYAML(data); err == nil {
		return seq, nil
	}
	return nil, errors.New(errors.CodeInvalidInput, "unsupported sequence format", nil)
}

// ParseSequenceJSON loads a sequence from JSON and validates it.
func ParseSequenceJSON(data []byte) (*Sequence, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "empty JSON payload", nil)
	}
	var seq Sequence
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "parse json sequence", err)
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return &seq, nil
}

// ParseSequenceYAML loads a sequence from YAML and validates it.
func ParseSequenceYAML(data []byte) (*Sequence, error) {
	if len(data) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "empty YAML payload", nil)
	}
	var seq Sequence
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "parse yaml sequence", err)
	}
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return &seq, nil
}

// MarshalSequenceYAML serializes a sequence to YAML.
func MarshalSequenceYAML(seq *Sequence) ([]byte, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(seq)
}

// RunSequence executes the steps of seq in order. It stops at the first
// error or at the first episode that did not succeed, returning the
// episodes run so far.
func (e *Executive[S, A]) RunSequence(ctx context.Context, seq *Sequence) ([]*Episode[S], error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	if err := seq.CheckRegistered(e.registry); err != nil {
		return nil, err
	}
	ctx, span := e.tracer.Start(ctx, "Executive.Sequence")
	defer span.End()
	span.SetAttributes(telemetry.SequenceAttributes(seq.ID, len(seq.Steps))...)

	episodes := make([]*Episode[S], 0, len(seq.Steps))
	for i, step := range seq.Steps {
		ep, err := e.execute(ctx, step.Skill, episodeRun{maxSteps: step.MaxSteps, sequenceID: seq.ID})
		if ep != nil {
			episodes = append(episodes, ep)
		}
		if err != nil {
			e.fail(ctx, span, err, step.Skill)
			return episodes, fmt.Errorf("sequence step %d (%s): %w", i, step.Skill, err)
		}
		if !ep.Succeeded {
			err := errors.Newf(errors.CodeExecutionFailed, "sequence step %d (%s) did not succeed", i, step.Skill).
				WithContext("success", float64(ep.Success)).
				WithContext("outcome", string(ep.Outcome))
			e.fail(ctx, span, err, step.Skill)
			return episodes, err
		}
	}
	return episodes, nil
}
