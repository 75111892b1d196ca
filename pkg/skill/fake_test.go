// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"fmt"
)

// counterSkill moves an integer state toward a target parameter in unit steps.
type counterSkill struct {
	NoEffects
	limit int
}

func (s counterSkill) PreconditionSatisfiable(state int) Probability {
	if state < 0 {
		return Never
	}
	return Certain
}

func (s counterSkill) PreconditionSatisfied(state, target int) Probability {
	if state < 0 || target < 0 || target > s.limit {
		return Never
	}
	return Certain
}

func (s counterSkill) TerminationSatisfied(state, target int, _ Policy[int, int], tStep int) Probability {
	if state == target {
		return Certain
	}
	return Clamp(float64(tStep) / float64(s.limit+1))
}

func (s counterSkill) ExecutionSuccessful(_, final, target int, _ Policy[int, int], _ int) Probability {
	if final == target {
		return Certain
	}
	return Never
}

func (s counterSkill) MakeParameterGenerator(state int, maxBatch int) (ParameterGenerator[int], error) {
	if err := CheckMaxBatch(maxBatch); err != nil {
		return nil, err
	}
	candidates := make([]int, s.limit+1)
	for i := range candidates {
		candidates[i] = i
	}
	return FromSlice(candidates, maxBatch), nil
}

func (s counterSkill) MakePolicy(state, target int) (Policy[int, int], error) {
	if s.PreconditionSatisfied(state, target).Impossible() {
		return nil, fmt.Errorf("target %d unreachable", target)
	}
	return PolicyFunc[int, int](func(cur int) (int, error) {
		switch {
		case cur < target:
			return 1, nil
		case cur > target:
			return -1, nil
		}
		return 0, nil
	}), nil
}

// predictingSkill adds an effect model to counterSkill.
type predictingSkill struct {
	counterSkill
}

func (predictingSkill) SupportsEffects() bool { return true }

func (s predictingSkill) Effects(state, target int) (Effect[int], error) {
	if s.PreconditionSatisfied(state, target).Impossible() {
		return Predict(state), nil
	}
	return Predict(target), nil
}

func (s predictingSkill) EffectsBatch(states, targets []int) ([]Effect[int], error) {
	return BatchEffects(states, targets, 2, s.Effects)
}

// liarSkill claims effects support without an effect model.
type liarSkill struct {
	counterSkill
}

func (liarSkill) SupportsEffects() bool { return true }
