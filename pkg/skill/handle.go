// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"fmt"

	"github.com/jllopis/pillar/pkg/errors"
)

// Handle is a named Skill with its parameter type erased, so skills with
// different parameter types can share one registry. Parameters travel as
// any and are checked against the underlying type on every call.
//
// Probabilities coming out of a Handle are clamped into [0, 1]. A parameter
// of the wrong dynamic type has zero precondition and success probability
// and is rejected by MakePolicy and Effects with INVALID_PARAMETER.
type Handle[S, A any] interface {
	Name() string
	PreconditionSatisfiable(state S) Probability
	PreconditionSatisfied(state S, param any) Probability
	TerminationSatisfied(state S, param any, policy Policy[S, A], tStep int) Probability
	ExecutionSuccessful(initial, final S, param any, policy Policy[S, A], tStep int) Probability
	MakeParameterGenerator(state S, maxBatch int) (ParameterGenerator[any], error)
	MakePolicy(state S, param any) (Policy[S, A], error)
	SupportsEffects() bool
	Effects(state S, param any) (Effect[S], error)
	EffectsBatch(states []S, params []any) ([]Effect[S], error)
}

type erased[S, P, A any] struct {
	name  string
	skill Skill[S, P, A]
}

// Erase wraps sk under name.
func Erase[S, P, A any](name string, sk Skill[S, P, A]) Handle[S, A] {
	return &erased[S, P, A]{name: name, skill: sk}
}

func (h *erased[S, P, A]) Name() string { return h.name }

func (h *erased[S, P, A]) PreconditionSatisfiable(state S) Probability {
	return Clamp(float64(h.skill.PreconditionSatisfiable(state)))
}

func (h *erased[S, P, A]) PreconditionSatisfied(state S, param any) Probability {
	p, ok := param.(P)
	if !ok {
		return Never
	}
	return Clamp(float64(h.skill.PreconditionSatisfied(state, p)))
}

// TerminationSatisfied returns Certain for a mistyped parameter: no policy
// can have been made from it, so there is nothing left to run.
func (h *erased[S, P, A]) TerminationSatisfied(state S, param any, policy Policy[S, A], tStep int) Probability {
	p, ok := param.(P)
	if !ok {
		return Certain
	}
	return Clamp(float64(h.skill.TerminationSatisfied(state, p, policy, tStep)))
}

func (h *erased[S, P, A]) ExecutionSuccessful(initial, final S, param any, policy Policy[S, A], tStep int) Probability {
	p, ok := param.(P)
	if !ok {
		return Never
	}
	return Clamp(float64(h.skill.ExecutionSuccessful(initial, final, p, policy, tStep)))
}

func (h *erased[S, P, A]) MakeParameterGenerator(state S, maxBatch int) (ParameterGenerator[any], error) {
	gen, err := h.skill.MakeParameterGenerator(state, maxBatch)
	if err != nil {
		return nil, err
	}
	return anyGenerator[P]{inner: gen}, nil
}

func (h *erased[S, P, A]) MakePolicy(state S, param any) (Policy[S, A], error) {
	p, err := h.param(param)
	if err != nil {
		return nil, err
	}
	return h.skill.MakePolicy(state, p)
}

func (h *erased[S, P, A]) SupportsEffects() bool { return h.skill.SupportsEffects() }

func (h *erased[S, P, A]) Effects(state S, param any) (Effect[S], error) {
	p, err := h.param(param)
	if err != nil {
		return Effect[S]{}, err
	}
	return PredictEffects(h.skill, state, p)
}

func (h *erased[S, P, A]) EffectsBatch(states []S, params []any) ([]Effect[S], error) {
	if err := CheckBatch(states, params); err != nil {
		return nil, err
	}
	typed := make([]P, len(params))
	for i, raw := range params {
		p, err := h.param(raw)
		if err != nil {
			return nil, err.WithContext("index", i)
		}
		typed[i] = p
	}
	return PredictEffectsBatch(h.skill, states, typed)
}

func (h *erased[S, P, A]) param(raw any) (P, *errors.PillarError) {
	p, ok := raw.(P)
	if !ok {
		var zero P
		return zero, errors.Newf(errors.CodeInvalidParameter,
			"skill %q expects parameter of type %T, got %T", h.name, zero, raw).
			WithAttribute("skill", h.name)
	}
	return p, nil
}

// String names the handle for logs.
func (h *erased[S, P, A]) String() string {
	var zero P
	return fmt.Sprintf("%s[%T]", h.name, zero)
}

type anyGenerator[P any] struct {
	inner ParameterGenerator[P]
}

func (g anyGenerator[P]) NextBatch(max int) ([]any, bool) {
	batch, ok := g.inner.NextBatch(max)
	if !ok {
		return nil, false
	}
	out := make([]any, len(batch))
	for i, p := range batch {
		out[i] = p
	}
	return out, true
}

func (g anyGenerator[P]) Finite() bool { return g.inner.Finite() }
