// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package linearworld

import (
	"math"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/skill"
)

// Place carries the held object to a free slot on a grid and releases it.
// Slots are proposed nearest first.
//
// Place validates eagerly and has no effect model.
type Place struct {
	skill.NoEffects
	Speed float64
	// Slots is the number of grid intervals along the rail. Defaults to 10.
	Slots int
}

func (p Place) PreconditionSatisfiable(s State) skill.Probability {
	if s.Holding == "" {
		return skill.Never
	}
	return skill.Certain
}

func (p Place) PreconditionSatisfied(s State, x float64) skill.Probability {
	if s.Holding == "" || !s.OnRail(x) || s.Near(x) {
		return skill.Never
	}
	return skill.Certain
}

func (p Place) TerminationSatisfied(s State, x float64, policy skill.Policy[State, Action], tStep int) skill.Probability {
	if s.Holding == "" {
		return skill.Certain
	}
	return overdue(tStep, budgetOf(policy, s, x, p.Speed))
}

func (p Place) ExecutionSuccessful(initial, final State, x float64, _ skill.Policy[State, Action], _ int) skill.Probability {
	if final.Holding != "" {
		return skill.Never
	}
	o, ok := final.Object(initial.Holding)
	if !ok || math.Abs(o.Position-x) > Tolerance {
		return skill.Never
	}
	return skill.Certain
}

// MakeParameterGenerator walks the grid outward from the gripper, skipping
// occupied slots.
func (p Place) MakeParameterGenerator(s State, maxBatch int) (skill.ParameterGenerator[float64], error) {
	if err := skill.CheckMaxBatch(maxBatch); err != nil {
		return nil, err
	}
	slots := p.grid(s)
	next := 0
	return skill.GeneratorFunc(true, maxBatch, func(n int) ([]float64, bool) {
		var batch []float64
		for next < len(slots) && len(batch) < n {
			x := slots[next]
			next++
			if !s.Near(x) {
				batch = append(batch, x)
			}
		}
		return batch, len(batch) > 0
	}), nil
}

func (p Place) grid(s State) []float64 {
	n := p.Slots
	if n <= 0 {
		n = 10
	}
	if s.Length <= 0 {
		return nil
	}
	step := s.Length / float64(n)
	slots := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		slots = append(slots, float64(i)*step)
	}
	return skill.Collect(skill.Ranked(slots, func(x float64) float64 {
		return -math.Abs(x - s.Gripper)
	}, len(slots)), len(slots), 1)
}

func (p Place) MakePolicy(s State, x float64) (skill.Policy[State, Action], error) {
	if p.PreconditionSatisfied(s, x).Impossible() {
		return nil, errors.Newf(errors.CodeInvalidParameter, "cannot place at %v", x).
			WithContext("holding", s.Holding)
	}
	return &movePolicy{target: x, speed: p.Speed, budget: budget(s.Gripper, x, p.Speed), release: true}, nil
}
