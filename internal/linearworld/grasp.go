// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package linearworld

import (
	"math"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/skill"
)

// GripRate is the modelled probability that closing on an object holds it.
const GripRate = 0.9

// graspAttempts bounds how long a grasp waits for the object to be held.
const graspAttempts = 3

// Grasp closes the gripper on a named object under it. Candidates are the
// objects on the rail, nearest first.
//
// Grasp validates eagerly: MakePolicy rejects an object that is not within
// reach with INVALID_PARAMETER.
type Grasp struct{}

func (Grasp) PreconditionSatisfiable(s State) skill.Probability {
	if s.Holding != "" || !s.Near(s.Gripper) {
		return skill.Never
	}
	return GripRate
}

func (Grasp) PreconditionSatisfied(s State, name string) skill.Probability {
	if s.Holding != "" {
		return skill.Never
	}
	for _, o := range s.Objects {
		if o.Name == name && math.Abs(o.Position-s.Gripper) <= Tolerance {
			return GripRate
		}
	}
	return skill.Never
}

func (Grasp) TerminationSatisfied(s State, name string, _ skill.Policy[State, Action], tStep int) skill.Probability {
	if s.Holding == name {
		return skill.Certain
	}
	return skill.Clamp(float64(tStep) / graspAttempts)
}

func (Grasp) ExecutionSuccessful(_, final State, name string, _ skill.Policy[State, Action], _ int) skill.Probability {
	if final.Holding == name {
		return skill.Certain
	}
	return skill.Never
}

func (Grasp) MakeParameterGenerator(s State, maxBatch int) (skill.ParameterGenerator[string], error) {
	if err := skill.CheckMaxBatch(maxBatch); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.Objects))
	distance := make(map[string]float64, len(s.Objects))
	for _, o := range s.Objects {
		d := math.Abs(o.Position - s.Gripper)
		if seen, ok := distance[o.Name]; ok {
			distance[o.Name] = min(seen, d)
			continue
		}
		names = append(names, o.Name)
		distance[o.Name] = d
	}
	return skill.Ranked(names, func(name string) float64 { return -distance[name] }, maxBatch), nil
}

func (g Grasp) MakePolicy(s State, name string) (skill.Policy[State, Action], error) {
	if g.PreconditionSatisfied(s, name).Impossible() {
		return nil, errors.Newf(errors.CodeInvalidParameter, "object %q is not under the gripper", name).
			WithContext("gripper", s.Gripper)
	}
	return skill.PolicyFunc[State, Action](func(State) (Action, error) {
		return Action{Kind: Close, Object: name}, nil
	}), nil
}

func (Grasp) SupportsEffects() bool { return true }

// Effects predicts the object held with the probability that the grasp
// can succeed and the state unchanged otherwise. An object out of reach
// predicts no change.
func (g Grasp) Effects(s State, name string) (skill.Effect[State], error) {
	p := g.PreconditionSatisfied(s, name)
	if p.Impossible() {
		return skill.Predict(s.Clone()), nil
	}
	held := s.Clone()
	held.Holding = name
	held.Objects = removeObject(held.Objects, name)
	return skill.Distribution(
		skill.Outcome[State]{State: held, Weight: float64(p)},
		skill.Outcome[State]{State: s.Clone(), Weight: 1 - float64(p)},
	)
}

func (g Grasp) EffectsBatch(states []State, names []string) ([]skill.Effect[State], error) {
	return skill.BatchEffects(states, names, 0, g.Effects)
}

func removeObject(objects []Object, name string) []Object {
	out := objects[:0]
	for _, o := range objects {
		if o.Name != name {
			out = append(out, o)
		}
	}
	return out
}
