// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	stderrors "errors"
	"testing"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/skill"
)

// constSkill has a fixed satisfiable probability and counts generator use.
type constSkill struct {
	skill.NoEffects
	satisfiable skill.Probability
	generators  *int
}

func (s constSkill) PreconditionSatisfiable(float64) skill.Probability { return s.satisfiable }

func (s constSkill) PreconditionSatisfied(float64, string) skill.Probability { return s.satisfiable }

func (s constSkill) TerminationSatisfied(float64, string, skill.Policy[float64, string], int) skill.Probability {
	return skill.Certain
}

func (s constSkill) ExecutionSuccessful(float64, float64, string, skill.Policy[float64, string], int) skill.Probability {
	return skill.Certain
}

func (s constSkill) MakeParameterGenerator(_ float64, maxBatch int) (skill.ParameterGenerator[string], error) {
	if s.generators != nil {
		*s.generators++
	}
	return skill.FromSlice([]string{"only"}, maxBatch), nil
}

func (s constSkill) MakePolicy(float64, string) (skill.Policy[float64, string], error) {
	return skill.PolicyFunc[float64, string](func(float64) (string, error) { return "noop", nil }), nil
}

func TestRegisterAndLookup(t *testing.T) {
	reg := New[float64, string]()
	if err := Add(reg, "wave", skill.Skill[float64, string, string](constSkill{satisfiable: 1})); err != nil {
		t.Fatalf("add: %v", err)
	}
	h, err := reg.Lookup("wave")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if h.Name() != "wave" {
		t.Fatalf("unexpected handle %q", h.Name())
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 skill, got %d", reg.Len())
	}

	if _, err := reg.Lookup("missing"); !stderrors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRegisterRejectsBadHandles(t *testing.T) {
	reg := New[float64, string]()
	sk := skill.Skill[float64, string, string](constSkill{satisfiable: 1})

	if err := reg.Register(nil); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for nil, got %v", err)
	}
	if err := Add(reg, "  ", sk); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for blank name, got %v", err)
	}
	if err := Add(reg, "wave", sk); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := Add(reg, "wave", sk); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestApplicablePrunesWithoutGenerators(t *testing.T) {
	generators := 0
	reg := New[float64, string]()
	for name, p := range map[string]skill.Probability{"a": 0.4, "b": 0, "c": 0.9, "d": 0.4} {
		sk := skill.Skill[float64, string, string](constSkill{satisfiable: p, generators: &generators})
		if err := Add(reg, name, sk); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	got := reg.Applicable(0)
	var names []string
	for _, c := range got {
		names = append(names, c.Handle.Name())
	}
	want := []string{"c", "a", "d"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
	if generators != 0 {
		t.Fatalf("pruning must not create generators, created %d", generators)
	}
	if names := reg.Names(); names[0] != "a" || names[3] != "d" {
		t.Fatalf("unexpected name order %v", names)
	}
}
