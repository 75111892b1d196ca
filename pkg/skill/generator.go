// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"cmp"
	"iter"
	"math/rand"
	"slices"

	"github.com/jllopis/pillar/pkg/errors"
)

// ParameterGenerator lazily yields batches of candidate parameters for the
// state it was created for. It is forward-only; making a new generator is
// the only way to start over or to target another state.
type ParameterGenerator[P any] interface {
	// NextBatch pulls the next batch. The batch never exceeds the generator's
	// maxBatch, nor max when 0 < max. It is shorter than that bound only when
	// a finite generator runs out. The boolean is false at end of sequence,
	// in which case the batch is nil.
	NextBatch(max int) ([]P, bool)

	// Finite reports whether the sequence ends. Callers pulling from an
	// infinite generator must bound their own pull count.
	Finite() bool
}

// CheckMaxBatch validates the batch bound handed to MakeParameterGenerator.
func CheckMaxBatch(maxBatch int) error {
	if maxBatch < 1 {
		return errors.Newf(errors.CodeInvalidInput, "max batch must be at least 1, got %d", maxBatch)
	}
	return nil
}

func batchSize(limit, max int) int {
	if limit < 1 {
		limit = 1
	}
	if max > 0 && max < limit {
		return max
	}
	return limit
}

type sliceGenerator[P any] struct {
	items []P
	next  int
	limit int
}

// FromSlice returns a finite generator yielding candidates in order, each
// exactly once. The slice is copied.
func FromSlice[P any](candidates []P, maxBatch int) ParameterGenerator[P] {
	return &sliceGenerator[P]{items: slices.Clone(candidates), limit: maxBatch}
}

func (g *sliceGenerator[P]) NextBatch(max int) ([]P, bool) {
	if g.next >= len(g.items) {
		return nil, false
	}
	end := min(g.next+batchSize(g.limit, max), len(g.items))
	out := slices.Clone(g.items[g.next:end])
	g.next = end
	return out, true
}

func (g *sliceGenerator[P]) Finite() bool { return true }

// Ranked returns a finite generator yielding candidates by descending score.
// Ties keep their input order. Score is evaluated once per candidate.
func Ranked[P any](candidates []P, score func(P) float64, maxBatch int) ParameterGenerator[P] {
	type scored struct {
		item  P
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{item: c, score: score(c)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	items := make([]P, len(ranked))
	for i, r := range ranked {
		items[i] = r.item
	}
	return &sliceGenerator[P]{items: items, limit: maxBatch}
}

// Sampler draws one candidate parameter.
type Sampler[P any] func(r *rand.Rand) P

type samplerGenerator[P any] struct {
	sample Sampler[P]
	rng    *rand.Rand
	limit  int
}

// FromSampler returns an infinite generator filling every batch from
// sample. The generator owns r.
func FromSampler[P any](sample Sampler[P], r *rand.Rand, maxBatch int) ParameterGenerator[P] {
	return &samplerGenerator[P]{sample: sample, rng: r, limit: maxBatch}
}

func (g *samplerGenerator[P]) NextBatch(max int) ([]P, bool) {
	n := batchSize(g.limit, max)
	out := make([]P, n)
	for i := range out {
		out[i] = g.sample(g.rng)
	}
	return out, true
}

func (g *samplerGenerator[P]) Finite() bool { return false }

type chainGenerator[P any] struct {
	gens  []ParameterGenerator[P]
	idx   int
	limit int
}

// Chain yields every batch of gens in turn, topping up a batch from the
// next generator when the current one runs out, so batches stay full until
// the whole chain is exhausted.
func Chain[P any](maxBatch int, gens ...ParameterGenerator[P]) ParameterGenerator[P] {
	return &chainGenerator[P]{gens: gens, limit: maxBatch}
}

func (g *chainGenerator[P]) NextBatch(max int) ([]P, bool) {
	n := batchSize(g.limit, max)
	out := make([]P, 0, n)
	for len(out) < n && g.idx < len(g.gens) {
		batch, ok := g.gens[g.idx].NextBatch(n - len(out))
		if !ok || len(batch) == 0 {
			g.idx++
			continue
		}
		out = append(out, batch...)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func (g *chainGenerator[P]) Finite() bool {
	for _, gen := range g.gens[g.idx:] {
		if !gen.Finite() {
			return false
		}
	}
	return true
}

type funcGenerator[P any] struct {
	pull   func(n int) ([]P, bool)
	finite bool
	limit  int
	done   bool
}

// GeneratorFunc adapts pull into a generator. pull receives the effective
// batch bound; longer results are truncated and an empty result ends the
// sequence.
func GeneratorFunc[P any](finite bool, maxBatch int, pull func(n int) ([]P, bool)) ParameterGenerator[P] {
	return &funcGenerator[P]{pull: pull, finite: finite, limit: maxBatch}
}

func (g *funcGenerator[P]) NextBatch(max int) ([]P, bool) {
	if g.done {
		return nil, false
	}
	n := batchSize(g.limit, max)
	batch, ok := g.pull(n)
	if !ok || len(batch) == 0 {
		g.done = true
		return nil, false
	}
	if len(batch) > n {
		batch = batch[:n]
	}
	return batch, true
}

func (g *funcGenerator[P]) Finite() bool { return g.finite }

// Batches ranges over at most pulls batches of g. A non-positive pulls
// ranges until g ends, which never happens for an infinite generator.
func Batches[P any](g ParameterGenerator[P], max, pulls int) iter.Seq[[]P] {
	return func(yield func([]P) bool) {
		for i := 0; pulls <= 0 || i < pulls; i++ {
			batch, ok := g.NextBatch(max)
			if !ok || !yield(batch) {
				return
			}
		}
	}
}

// Collect flattens at most pulls batches of g into one slice.
func Collect[P any](g ParameterGenerator[P], max, pulls int) []P {
	var out []P
	for batch := range Batches(g, max, pulls) {
		out = append(out, batch...)
	}
	return out
}
