// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package skill

import (
	"math"
	"math/rand"
)

// Probability is a calibrated probability in the closed interval [0, 1].
type Probability float64

const (
	// Never means the event definitely does not hold.
	Never Probability = 0
	// Certain means the event definitely holds.
	Certain Probability = 1
)

// Clamp maps p into [0, 1]. NaN becomes 0.
func Clamp(p float64) Probability {
	switch {
	case math.IsNaN(p), p <= 0:
		return Never
	case p >= 1:
		return Certain
	default:
		return Probability(p)
	}
}

// Valid reports whether p lies in [0, 1].
func (p Probability) Valid() bool {
	return !math.IsNaN(float64(p)) && p >= 0 && p <= 1
}

// Impossible reports whether p is exactly zero.
func (p Probability) Impossible() bool {
	return p == Never
}

// Sample draws a Bernoulli outcome with success probability p.
// Zero never succeeds and one always does, whatever r returns.
func (p Probability) Sample(r *rand.Rand) bool {
	switch {
	case p <= Never:
		return false
	case p >= Certain:
		return true
	}
	return r.Float64() < float64(p)
}
