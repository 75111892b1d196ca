// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package skilltest checks concrete skills against the properties every
// skill.Skill must hold.
//
// Example usage:
//
//	suite := skilltest.Suite[State, float64, Action]{
//	    Skill:  reach,
//	    States: []State{home, holding},
//	    Params: []float64{-1, 0, 4.5},
//	}
//	suite.Run(t)
package skilltest

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/skill"
)

// Suite probes one skill over a set of states and parameters. Parameters
// drawn from the skill's own generators are probed alongside Params.
type Suite[S, P, A any] struct {
	Skill  skill.Skill[S, P, A]
	States []S
	Params []P

	// MaxBatch is the batch bound handed to generators. Defaults to 4.
	MaxBatch int
	// MaxPulls bounds the batches drawn from each generator. Defaults to 8.
	MaxPulls int
	// Horizon is the number of control steps probed for termination.
	// Defaults to 32.
	Horizon int

	// Key identifies a parameter for the uniqueness check of finite
	// generators. Defaults to fmt.Sprint.
	Key func(P) string
	// SameAction compares actions for the policy independence check.
	// Defaults to reflect.DeepEqual.
	SameAction func(a, b A) bool

	// EagerValidation asserts MakePolicy rejects every probed pair whose
	// PreconditionSatisfied is zero.
	EagerValidation bool
	// MonotoneTermination asserts TerminationSatisfied never decreases in
	// tStep for a fixed state, as timeout-based termination must.
	MonotoneTermination bool
	// SkipIndependence skips the policy independence check for skills
	// whose policies are not deterministic.
	SkipIndependence bool
}

// Run runs every check as a subtest.
func (s Suite[S, P, A]) Run(t *testing.T) {
	t.Helper()
	if s.Skill == nil {
		t.Fatal("skilltest: suite has no skill")
	}
	t.Run("probabilities in range", func(t *testing.T) { s.CheckProbabilities(t) })
	t.Run("satisfiable gates satisfied", func(t *testing.T) { s.CheckSatisfiableGate(t) })
	t.Run("generator batches", func(t *testing.T) { s.CheckGenerators(t) })
	t.Run("effects capability", func(t *testing.T) { s.CheckEffects(t) })
	if !s.SkipIndependence {
		t.Run("independent policies", func(t *testing.T) { s.CheckIndependentPolicies(t) })
	}
	if s.EagerValidation {
		t.Run("eager validation", func(t *testing.T) { s.CheckEagerValidation(t) })
	}
	if s.MonotoneTermination {
		t.Run("monotone termination", func(t *testing.T) { s.CheckMonotoneTermination(t) })
	}
}

func (s Suite[S, P, A]) maxBatch() int {
	if s.MaxBatch > 0 {
		return s.MaxBatch
	}
	return 4
}

func (s Suite[S, P, A]) maxPulls() int {
	if s.MaxPulls > 0 {
		return s.MaxPulls
	}
	return 8
}

func (s Suite[S, P, A]) horizon() int {
	if s.Horizon > 0 {
		return s.Horizon
	}
	return 32
}

func (s Suite[S, P, A]) key(p P) string {
	if s.Key != nil {
		return s.Key(p)
	}
	return fmt.Sprint(p)
}

func (s Suite[S, P, A]) sameAction(a, b A) bool {
	if s.SameAction != nil {
		return s.SameAction(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// probes returns Params plus whatever the skill generates for state.
func (s Suite[S, P, A]) probes(state S) []P {
	out := append([]P(nil), s.Params...)
	gen, err := s.Skill.MakeParameterGenerator(state, s.maxBatch())
	if err != nil {
		return out
	}
	return append(out, skill.Collect(gen, s.maxBatch(), s.maxPulls())...)
}

func checkRange(tb testing.TB, what string, p skill.Probability) {
	tb.Helper()
	if !p.Valid() {
		tb.Errorf("%s returned %v, outside [0, 1]", what, p)
	}
}

// CheckProbabilities asserts every probability the skill reports is in
// [0, 1].
func (s Suite[S, P, A]) CheckProbabilities(tb testing.TB) {
	tb.Helper()
	for i, state := range s.States {
		checkRange(tb, fmt.Sprintf("state %d: PreconditionSatisfiable", i), s.Skill.PreconditionSatisfiable(state))
		for _, param := range s.probes(state) {
			label := fmt.Sprintf("state %d, param %s", i, s.key(param))
			checkRange(tb, label+": PreconditionSatisfied", s.Skill.PreconditionSatisfied(state, param))

			policy, err := s.Skill.MakePolicy(state, param)
			if err != nil {
				continue
			}
			for step := 0; step <= s.horizon(); step++ {
				checkRange(tb, fmt.Sprintf("%s, t=%d: TerminationSatisfied", label, step),
					s.Skill.TerminationSatisfied(state, param, policy, step))
			}
			checkRange(tb, label+": ExecutionSuccessful",
				s.Skill.ExecutionSuccessful(state, state, param, policy, s.horizon()))
		}
	}
}

// CheckSatisfiableGate asserts a zero PreconditionSatisfiable implies a
// zero PreconditionSatisfied for every probed parameter.
func (s Suite[S, P, A]) CheckSatisfiableGate(tb testing.TB) {
	tb.Helper()
	for i, state := range s.States {
		if !s.Skill.PreconditionSatisfiable(state).Impossible() {
			continue
		}
		for _, param := range s.probes(state) {
			if p := s.Skill.PreconditionSatisfied(state, param); !p.Impossible() {
				tb.Errorf("state %d: satisfiable is 0 but satisfied(%s) = %v", i, s.key(param), p)
			}
		}
	}
}

// CheckGenerators asserts batch bounds, narrowing and, for finite
// generators, that no candidate repeats. A zero maxBatch must be rejected.
func (s Suite[S, P, A]) CheckGenerators(tb testing.TB) {
	tb.Helper()
	k := s.maxBatch()
	for i, state := range s.States {
		if _, err := s.Skill.MakeParameterGenerator(state, 0); err == nil {
			tb.Errorf("state %d: generator accepted maxBatch 0", i)
		}

		gen, err := s.Skill.MakeParameterGenerator(state, k)
		if err != nil {
			if !s.Skill.PreconditionSatisfiable(state).Impossible() {
				tb.Errorf("state %d: generator failed for an applicable state: %v", i, err)
			}
			continue
		}
		seen := map[string]bool{}
		for pull := 0; pull < s.maxPulls(); pull++ {
			limit := k
			if pull%2 == 1 && k > 1 {
				limit = k - 1
			}
			batch, ok := gen.NextBatch(limit)
			if !ok {
				break
			}
			if len(batch) > limit {
				tb.Errorf("state %d, pull %d: batch of %d exceeds %d", i, pull, len(batch), limit)
			}
			if !gen.Finite() {
				continue
			}
			for _, param := range batch {
				key := s.key(param)
				if seen[key] {
					tb.Errorf("state %d: finite generator repeated %s", i, key)
				}
				seen[key] = true
			}
		}
	}
}

// CheckEffects asserts the effects capability is reported honestly: a skill
// without it fails with UNIMPLEMENTED, a skill with it rejects mismatched
// batches with ARGUMENT_MISMATCH and no partial result.
func (s Suite[S, P, A]) CheckEffects(tb testing.TB) {
	tb.Helper()
	if len(s.States) == 0 {
		return
	}
	state := s.States[0]
	params := s.probes(state)
	if len(params) == 0 {
		return
	}

	if !s.Skill.SupportsEffects() {
		if _, err := skill.PredictEffects(s.Skill, state, params[0]); !errors.HasCode(err, errors.CodeUnimplemented) {
			tb.Errorf("skill without effects returned %v, want UNIMPLEMENTED", err)
		}
		return
	}

	states := make([]S, len(params)+1)
	for i := range states {
		states[i] = state
	}
	out, err := skill.PredictEffectsBatch(s.Skill, states, params)
	if !errors.HasCode(err, errors.CodeArgumentMismatch) {
		tb.Errorf("mismatched effects batch returned %v, want ARGUMENT_MISMATCH", err)
	}
	if out != nil {
		tb.Errorf("mismatched effects batch returned %d partial results", len(out))
	}

	model, ok := s.Skill.(skill.EffectModel[S, P])
	if !ok {
		tb.Errorf("skill reports effects but does not implement EffectModel")
		return
	}
	out, err = model.EffectsBatch(states, params)
	if !errors.HasCode(err, errors.CodeArgumentMismatch) || out != nil {
		tb.Errorf("EffectsBatch returned (%d results, %v) for a mismatched batch", len(out), err)
	}
}

// CheckIndependentPolicies asserts two policies made from the same
// arguments do not share execution state: invoking one repeatedly leaves
// the other's first action unchanged.
func (s Suite[S, P, A]) CheckIndependentPolicies(tb testing.TB) {
	tb.Helper()
	for i, state := range s.States {
		for _, param := range s.probes(state) {
			first, err := s.Skill.MakePolicy(state, param)
			if err != nil {
				continue
			}
			second, err := s.Skill.MakePolicy(state, param)
			if err != nil {
				tb.Errorf("state %d, param %s: second MakePolicy failed: %v", i, s.key(param), err)
				continue
			}
			a1, err1 := first.Invoke(state)
			for range 3 {
				_, _ = first.Invoke(state)
			}
			b1, err2 := second.Invoke(state)
			if (err1 == nil) != (err2 == nil) {
				tb.Errorf("state %d, param %s: policies disagree on failure: %v vs %v", i, s.key(param), err1, err2)
				continue
			}
			if err1 == nil && !s.sameAction(a1, b1) {
				tb.Errorf("state %d, param %s: second policy saw the first one's invocations", i, s.key(param))
			}
		}
	}
}

// CheckEagerValidation asserts MakePolicy rejects zero-precondition pairs
// with INVALID_PARAMETER.
func (s Suite[S, P, A]) CheckEagerValidation(tb testing.TB) {
	tb.Helper()
	for i, state := range s.States {
		for _, param := range s.probes(state) {
			if !s.Skill.PreconditionSatisfied(state, param).Impossible() {
				continue
			}
			if _, err := s.Skill.MakePolicy(state, param); !errors.HasCode(err, errors.CodeInvalidParameter) {
				tb.Errorf("state %d, param %s: MakePolicy returned %v, want INVALID_PARAMETER", i, s.key(param), err)
			}
		}
	}
}

// CheckMonotoneTermination asserts termination does not decrease as tStep
// grows while the state stays fixed.
func (s Suite[S, P, A]) CheckMonotoneTermination(tb testing.TB) {
	tb.Helper()
	for i, state := range s.States {
		for _, param := range s.probes(state) {
			policy, err := s.Skill.MakePolicy(state, param)
			if err != nil {
				continue
			}
			prev := skill.Never
			for step := 0; step <= s.horizon(); step++ {
				p := s.Skill.TerminationSatisfied(state, param, policy, step)
				if p < prev {
					tb.Errorf("state %d, param %s: termination fell from %v to %v at t=%d", i, s.key(param), prev, p, step)
					break
				}
				prev = p
			}
		}
	}
}
