// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package executive

import (
	"context"
	"math"
	"sync"

	"github.com/jllopis/pillar/pkg/skill"
)

// lineWorld is an integer position moved by unit actions.
type lineWorld struct {
	mu       sync.Mutex
	pos      int
	applied  int
	onApply  func(n int)
	applyErr error
}

func (w *lineWorld) Observe(context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos, nil
}

func (w *lineWorld) Apply(_ context.Context, delta int) error {
	w.mu.Lock()
	if w.applyErr != nil {
		w.mu.Unlock()
		return w.applyErr
	}
	w.pos += delta
	w.applied++
	n := w.applied
	hook := w.onApply
	w.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (w *lineWorld) position() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

// stepSkill walks toward a target in [0, limit], preferring targets near
// preferred.
type stepSkill struct {
	skill.NoEffects
	preferred   int
	limit       int
	satisfiable skill.Probability
	// termination overrides the exact-arrival termination when set.
	termination *skill.Probability

	mu           sync.Mutex
	generators   int
	terminations int
	failPolicy   int
	policyErr    error
}

func newStepSkill(preferred int) *stepSkill {
	return &stepSkill{preferred: preferred, limit: 9, satisfiable: skill.Certain}
}

func (s *stepSkill) PreconditionSatisfiable(int) skill.Probability { return s.satisfiable }

func (s *stepSkill) PreconditionSatisfied(_ int, target int) skill.Probability {
	if target < 0 || target > s.limit {
		return skill.Never
	}
	return skill.Clamp(1 - math.Abs(float64(target-s.preferred))/10)
}

func (s *stepSkill) TerminationSatisfied(state, target int, _ skill.Policy[int, int], _ int) skill.Probability {
	s.mu.Lock()
	s.terminations++
	s.mu.Unlock()
	if s.termination != nil {
		return *s.termination
	}
	if state == target {
		return skill.Certain
	}
	return skill.Never
}

func (s *stepSkill) ExecutionSuccessful(_, final, target int, _ skill.Policy[int, int], _ int) skill.Probability {
	if final == target {
		return skill.Certain
	}
	return skill.Never
}

func (s *stepSkill) MakeParameterGenerator(_ int, maxBatch int) (skill.ParameterGenerator[int], error) {
	if err := skill.CheckMaxBatch(maxBatch); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.generators++
	s.mu.Unlock()
	targets := make([]int, s.limit+1)
	for i := range targets {
		targets[i] = i
	}
	return skill.FromSlice(targets, maxBatch), nil
}

func (s *stepSkill) MakePolicy(_ int, target int) (skill.Policy[int, int], error) {
	return skill.PolicyFunc[int, int](func(state int) (int, error) {
		s.mu.Lock()
		if s.failPolicy > 0 {
			s.failPolicy--
			s.mu.Unlock()
			return 0, s.policyErr
		}
		s.mu.Unlock()
		switch {
		case state < target:
			return 1, nil
		case state > target:
			return -1, nil
		}
		return 0, nil
	}), nil
}

func (s *stepSkill) counts() (generators, terminations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generators, s.terminations
}
