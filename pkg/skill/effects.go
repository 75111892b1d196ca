// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jllopis/pillar/pkg/errors"
)

// EffectKind tells which shape of prediction an Effect carries.
type EffectKind int

const (
	// EffectState is a single predicted terminal state.
	EffectState EffectKind = iota
	// EffectSequence is an ordered sequence of predicted states.
	EffectSequence
	// EffectDistribution is a weighted set of possible terminal states.
	EffectDistribution
)

func (k EffectKind) String() string {
	switch k {
	case EffectState:
		return "state"
	case EffectSequence:
		return "sequence"
	case EffectDistribution:
		return "distribution"
	default:
		return "unknown"
	}
}

// Outcome is one weighted branch of a distribution effect.
type Outcome[S any] struct {
	State  S
	Weight float64
}

// Effect is a skill's belief about what running it would produce.
type Effect[S any] struct {
	Kind     EffectKind
	State    S
	Sequence []S
	Outcomes []Outcome[S]
}

// Predict returns an effect predicting a single terminal state.
func Predict[S any](state S) Effect[S] {
	return Effect[S]{Kind: EffectState, State: state}
}

// Trajectory returns an effect predicting an ordered sequence of states.
// The last state is the predicted terminal state.
func Trajectory[S any](states ...S) (Effect[S], error) {
	if len(states) == 0 {
		return Effect[S]{}, errors.New(errors.CodeInvalidInput, "trajectory needs at least one state", nil)
	}
	return Effect[S]{Kind: EffectSequence, Sequence: states}, nil
}

// Distribution returns an effect over weighted outcomes. Weights must be
// finite and non-negative with positive total; they are normalized to sum
// to one.
func Distribution[S any](outcomes ...Outcome[S]) (Effect[S], error) {
	total := 0.0
	for i, o := range outcomes {
		if math.IsNaN(o.Weight) || math.IsInf(o.Weight, 0) || o.Weight < 0 {
			return Effect[S]{}, errors.Newf(errors.CodeInvalidInput, "outcome %d has invalid weight %v", i, o.Weight)
		}
		total += o.Weight
	}
	if total <= 0 {
		return Effect[S]{}, errors.New(errors.CodeInvalidInput, "distribution has no probability mass", nil)
	}
	normalized := make([]Outcome[S], len(outcomes))
	for i, o := range outcomes {
		normalized[i] = Outcome[S]{State: o.State, Weight: o.Weight / total}
	}
	return Effect[S]{Kind: EffectDistribution, Outcomes: normalized}, nil
}

// MostLikely returns the single state the effect considers most probable:
// the predicted state, the end of a trajectory, or the heaviest outcome
// (first one on ties).
func (e Effect[S]) MostLikely() S {
	switch e.Kind {
	case EffectSequence:
		if len(e.Sequence) > 0 {
			return e.Sequence[len(e.Sequence)-1]
		}
	case EffectDistribution:
		best := -1
		for i, o := range e.Outcomes {
			if best < 0 || o.Weight > e.Outcomes[best].Weight {
				best = i
			}
		}
		if best >= 0 {
			return e.Outcomes[best].State
		}
	}
	return e.State
}

// CheckBatch fails with an ARGUMENT_MISMATCH error when states and params
// differ in length.
func CheckBatch[S, P any](states []S, params []P) error {
	if len(states) != len(params) {
		return errors.Newf(errors.CodeArgumentMismatch,
			"effects batch needs equal lengths, got %d states and %d parameters", len(states), len(params)).
			WithContext("states", len(states)).
			WithContext("parameters", len(params))
	}
	return nil
}

// BatchEffects evaluates predict for every (states[i], params[i]) pair on at
// most workers goroutines (GOMAXPROCS when workers < 1). It blocks until all
// pairs are done and returns either every result, in input order, or the
// first error and no results.
func BatchEffects[S, P any](states []S, params []P, workers int, predict func(S, P) (Effect[S], error)) ([]Effect[S], error) {
	if err := CheckBatch(states, params); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]Effect[S], len(states))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i := range states {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			effect, err := predict(states[i], params[i])
			if err != nil {
				return err
			}
			out[i] = effect
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
