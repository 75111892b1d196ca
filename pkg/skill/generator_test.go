// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/jllopis/pillar/pkg/errors"
)

func TestCheckMaxBatch(t *testing.T) {
	if err := CheckMaxBatch(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := CheckMaxBatch(0)
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestFromSliceBatches(t *testing.T) {
	gen := FromSlice([]int{1, 2, 3, 4, 5, 6, 7}, 3)
	if !gen.Finite() {
		t.Fatalf("slice generator must be finite")
	}

	var sizes []int
	var seen []int
	for {
		batch, ok := gen.NextBatch(0)
		if !ok {
			break
		}
		sizes = append(sizes, len(batch))
		seen = append(seen, batch...)
	}
	if !slices.Equal(sizes, []int{3, 3, 1}) {
		t.Fatalf("unexpected batch sizes: %v", sizes)
	}
	if !slices.Equal(seen, []int{1, 2, 3, 4, 5, 6, 7}) {
		t.Fatalf("unexpected candidates: %v", seen)
	}
	if batch, ok := gen.NextBatch(0); ok || batch != nil {
		t.Fatalf("expected end of sequence to persist")
	}
}

func TestNextBatchNarrowsButNeverWidens(t *testing.T) {
	gen := FromSlice([]string{"a", "b", "c", "d", "e"}, 2)
	batch, _ := gen.NextBatch(1)
	if len(batch) != 1 {
		t.Fatalf("expected narrowed batch of 1, got %d", len(batch))
	}
	batch, _ = gen.NextBatch(10)
	if len(batch) != 2 {
		t.Fatalf("expected batch capped at 2, got %d", len(batch))
	}
}

func TestFromSliceCopiesInput(t *testing.T) {
	in := []int{1, 2}
	gen := FromSlice(in, 5)
	in[0] = 99
	batch, _ := gen.NextBatch(0)
	if batch[0] != 1 {
		t.Fatalf("generator observed caller mutation: %v", batch)
	}
	batch[1] = 42
	if in[1] != 2 {
		t.Fatalf("caller observed batch mutation")
	}
}

func TestRankedOrdersByDescendingScore(t *testing.T) {
	calls := 0
	gen := Ranked([]string{"far", "near", "mid", "near2"}, func(s string) float64 {
		calls++
		switch s {
		case "near", "near2":
			return 0.9
		case "mid":
			return 0.5
		default:
			return 0.1
		}
	}, 10)
	got := Collect(gen, 0, 0)
	want := []string{"near", "near2", "mid", "far"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if calls != 4 {
		t.Fatalf("expected one score evaluation per candidate, got %d", calls)
	}
}

func TestFromSamplerIsInfinite(t *testing.T) {
	gen := FromSampler(func(r *rand.Rand) float64 { return r.Float64() }, rand.New(rand.NewSource(3)), 4)
	if gen.Finite() {
		t.Fatalf("sampler generator must be infinite")
	}
	for i := 0; i < 50; i++ {
		batch, ok := gen.NextBatch(0)
		if !ok || len(batch) != 4 {
			t.Fatalf("pull %d: expected full batch, got %d (ok=%v)", i, len(batch), ok)
		}
	}
}

func TestChainTopsUpAcrossGenerators(t *testing.T) {
	head := FromSlice([]int{1, 2, 3}, 10)
	tail := FromSlice([]int{4, 5, 6, 7}, 10)
	gen := Chain(3, head, tail)

	first, _ := gen.NextBatch(0)
	second, _ := gen.NextBatch(0)
	third, _ := gen.NextBatch(0)
	if !slices.Equal(first, []int{1, 2, 3}) || !slices.Equal(second, []int{4, 5, 6}) || !slices.Equal(third, []int{7}) {
		t.Fatalf("unexpected batches: %v %v %v", first, second, third)
	}
	if _, ok := gen.NextBatch(0); ok {
		t.Fatalf("expected chain exhaustion")
	}
	if !gen.Finite() {
		t.Fatalf("chain of finite generators must be finite")
	}
}

func TestChainWithInfiniteTail(t *testing.T) {
	gen := Chain(4,
		FromSlice([]int{-1, -2}, 4),
		FromSampler(func(*rand.Rand) int { return 0 }, rand.New(rand.NewSource(1)), 4),
	)
	if gen.Finite() {
		t.Fatalf("chain ending in a sampler must be infinite")
	}
	batch, _ := gen.NextBatch(0)
	if !slices.Equal(batch, []int{-1, -2, 0, 0}) {
		t.Fatalf("expected topped-up first batch, got %v", batch)
	}
}

// emptyBatches claims more candidates but never yields any.
type emptyBatches struct{}

func (emptyBatches) NextBatch(int) ([]int, bool) { return []int{}, true }

func (emptyBatches) Finite() bool { return true }

func TestChainSkipsEmptyBatches(t *testing.T) {
	gen := Chain[int](4, emptyBatches{}, FromSlice([]int{9}, 4))
	batch, ok := gen.NextBatch(4)
	if !ok || !slices.Equal(batch, []int{9}) {
		t.Fatalf("expected the tail after an empty generator, got %v %v", batch, ok)
	}
	if _, ok := Chain[int](4, emptyBatches{}).NextBatch(4); ok {
		t.Fatalf("a chain of empty generators is exhausted")
	}
}

func TestGeneratorFuncTruncatesAndEnds(t *testing.T) {
	pulls := 0
	gen := GeneratorFunc(true, 2, func(n int) ([]int, bool) {
		pulls++
		if pulls > 2 {
			return nil, false
		}
		return []int{1, 2, 3, 4}, true
	})
	batch, ok := gen.NextBatch(0)
	if !ok || len(batch) != 2 {
		t.Fatalf("expected truncated batch of 2, got %v", batch)
	}
	gen.NextBatch(0)
	if _, ok := gen.NextBatch(0); ok {
		t.Fatalf("expected end of sequence")
	}
	if _, ok := gen.NextBatch(0); ok || pulls != 3 {
		t.Fatalf("pull must not be called after the end, pulls=%d", pulls)
	}
}

func TestBatchesBoundsPulls(t *testing.T) {
	gen := FromSampler(func(*rand.Rand) int { return 1 }, rand.New(rand.NewSource(1)), 5)
	count := 0
	for batch := range Batches(gen, 2, 3) {
		count++
		if len(batch) != 2 {
			t.Fatalf("expected narrowed batches of 2, got %d", len(batch))
		}
	}
	if count != 3 {
		t.Fatalf("expected 3 pulls, got %d", count)
	}
	if got := Collect(gen, 0, 2); len(got) != 10 {
		t.Fatalf("expected 10 collected candidates, got %d", len(got))
	}
}
