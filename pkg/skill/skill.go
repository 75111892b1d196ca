// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"github.com/jllopis/pillar/pkg/errors"
)

// Skill is one behavior family. S is the world state, P the parameter type
// that configures the behavior and A the action its policies emit.
//
// A Skill lives for the whole planning session and must be safe to query
// concurrently for different (state, parameter) pairs.
type Skill[S, P, A any] interface {
	// PreconditionSatisfiable returns the probability that some parameter
	// makes PreconditionSatisfied nonzero for state. It must be cheap and
	// conservative: a zero lets the caller skip parameter generation.
	PreconditionSatisfiable(state S) Probability

	// PreconditionSatisfied returns the probability that (state, param) is
	// safely executable. A nonzero result implies a nonzero
	// PreconditionSatisfiable(state).
	PreconditionSatisfied(state S, param P) Probability

	// TerminationSatisfied returns the probability that execution should stop
	// now. tStep counts the control steps elapsed since policy started. For
	// any execution that is not cancelled externally the result must
	// eventually approach 1.
	TerminationSatisfied(state S, param P, policy Policy[S, A], tStep int) Probability

	// ExecutionSuccessful judges a finished execution from its initial and
	// final states. It must not invoke policy.
	ExecutionSuccessful(initial, final S, param P, policy Policy[S, A], tStep int) Probability

	// MakeParameterGenerator returns a lazy generator of candidate
	// parameters bound to state, each batch holding at most maxBatch items.
	MakeParameterGenerator(state S, maxBatch int) (ParameterGenerator[P], error)

	// MakePolicy binds param, chosen for state, into an executable Policy.
	// Skills that validate eagerly fail with an INVALID_PARAMETER error when
	// PreconditionSatisfied(state, param) is zero.
	MakePolicy(state S, param P) (Policy[S, A], error)

	// SupportsEffects reports whether the skill also implements EffectModel.
	SupportsEffects() bool
}

// EffectModel is the optional prediction capability of a Skill. It is only
// consulted when SupportsEffects returns true.
type EffectModel[S, P any] interface {
	// Effects predicts the outcome of running the skill from state with
	// param, without executing anything.
	Effects(state S, param P) (Effect[S], error)

	// EffectsBatch is the elementwise form of Effects. States and params
	// must have equal length.
	EffectsBatch(states []S, params []P) ([]Effect[S], error)
}

// NoEffects is embedded by skills that do not predict effects.
type NoEffects struct{}

// SupportsEffects always returns false.
func (NoEffects) SupportsEffects() bool { return false }

// PredictEffects asks sk for its predicted effects. It fails with an
// UNIMPLEMENTED error when the skill has no effect model, which callers must
// not confuse with a prediction of "no change".
func PredictEffects[S, P, A any](sk Skill[S, P, A], state S, param P) (Effect[S], error) {
	model, err := effectModel(sk)
	if err != nil {
		return Effect[S]{}, err
	}
	return model.Effects(state, param)
}

// PredictEffectsBatch is the batched form of PredictEffects. Length
// disagreement is reported before the capability is consulted.
func PredictEffectsBatch[S, P, A any](sk Skill[S, P, A], states []S, params []P) ([]Effect[S], error) {
	if err := CheckBatch(states, params); err != nil {
		return nil, err
	}
	model, err := effectModel(sk)
	if err != nil {
		return nil, err
	}
	return model.EffectsBatch(states, params)
}

func effectModel[S, P, A any](sk Skill[S, P, A]) (EffectModel[S, P], error) {
	if !sk.SupportsEffects() {
		return nil, errors.New(errors.CodeUnimplemented, "skill does not predict effects", nil)
	}
	model, ok := sk.(EffectModel[S, P])
	if !ok {
		return nil, errors.New(errors.CodeUnimplemented, "skill reports effects support but has no effect model", nil)
	}
	return model, nil
}
