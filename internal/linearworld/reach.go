// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package linearworld

import (
	"math"
	"math/rand"

	"github.com/jllopis/pillar/pkg/skill"
)

// Reach moves the gripper to a target position. Positions of objects on the
// rail are proposed first, then uniformly sampled positions without end.
//
// Reach validates lazily: MakePolicy accepts any target and the policy
// stops at the rail ends.
type Reach struct {
	Speed float64
	Seed  int64
}

// freeSpace is the precondition of a reach that does not end at an object.
const freeSpace skill.Probability = 0.8

func (r Reach) PreconditionSatisfiable(s State) skill.Probability {
	if s.Length <= 0 {
		return skill.Never
	}
	return skill.Certain
}

func (r Reach) PreconditionSatisfied(s State, target float64) skill.Probability {
	if s.Length <= 0 || !s.OnRail(target) {
		return skill.Never
	}
	if s.Near(target) {
		return skill.Certain
	}
	return freeSpace
}

func (r Reach) TerminationSatisfied(s State, target float64, policy skill.Policy[State, Action], tStep int) skill.Probability {
	if math.Abs(s.Gripper-target) <= Tolerance {
		return skill.Certain
	}
	return overdue(tStep, budgetOf(policy, s, target, r.Speed))
}

func (r Reach) ExecutionSuccessful(_, final State, target float64, _ skill.Policy[State, Action], _ int) skill.Probability {
	if math.Abs(final.Gripper-target) <= Tolerance {
		return skill.Certain
	}
	return skill.Never
}

func (r Reach) MakeParameterGenerator(s State, maxBatch int) (skill.ParameterGenerator[float64], error) {
	if err := skill.CheckMaxBatch(maxBatch); err != nil {
		return nil, err
	}
	positions := make([]float64, 0, len(s.Objects))
	for _, o := range s.Objects {
		positions = append(positions, o.Position)
	}
	length := s.Length
	sample := skill.Sampler[float64](func(rng *rand.Rand) float64 {
		return rng.Float64() * length
	})
	return skill.Chain(maxBatch,
		skill.FromSlice(positions, maxBatch),
		skill.FromSampler(sample, rand.New(rand.NewSource(r.Seed)), maxBatch),
	), nil
}

func (r Reach) MakePolicy(s State, target float64) (skill.Policy[State, Action], error) {
	return &movePolicy{target: target, speed: r.Speed, budget: budget(s.Gripper, target, r.Speed)}, nil
}

func (Reach) SupportsEffects() bool { return true }

// Effects predicts the gripper at the target, clipped to the rail.
func (r Reach) Effects(s State, target float64) (skill.Effect[State], error) {
	next := s.Clone()
	next.Gripper = math.Max(0, math.Min(s.Length, target))
	return skill.Predict(next), nil
}

func (r Reach) EffectsBatch(states []State, targets []float64) ([]skill.Effect[State], error) {
	return skill.BatchEffects(states, targets, 0, r.Effects)
}

// movePolicy steps toward target at most speed per step. It carries the
// step budget its skill's timeout is measured against.
type movePolicy struct {
	target  float64
	speed   float64
	budget  int
	release bool
}

func (p *movePolicy) Invoke(s State) (Action, error) {
	delta := p.target - s.Gripper
	if p.release && math.Abs(delta) <= Tolerance {
		return Action{Kind: Open}, nil
	}
	return Action{Kind: Move, Delta: math.Max(-p.speed, math.Min(p.speed, delta))}, nil
}

// budget is the number of steps a move from x to target should take, with
// slack for the final adjustment and a release.
func budget(x, target, speed float64) int {
	if speed <= 0 {
		return 1
	}
	return int(math.Ceil(math.Abs(target-x)/speed)) + 2
}

func budgetOf(policy skill.Policy[State, Action], s State, target, speed float64) int {
	if mp, ok := policy.(*movePolicy); ok {
		return mp.budget
	}
	return budget(0, s.Length, speed)
}

// overdue is zero within the budget and climbs to one at twice the budget.
func overdue(tStep, budget int) skill.Probability {
	if budget < 1 {
		budget = 1
	}
	return skill.Clamp(float64(tStep-budget) / float64(budget))
}
