// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package linearworld is a gripper on a one-dimensional rail. It provides
// the state and action types, a simulated World and three skills (reach,
// grasp, place) used by the CLI and by tests.
package linearworld

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
)

// Tolerance is how close the gripper must be to a position to count as at
// that position.
const Tolerance = 0.05

// Object is a named item lying on the rail.
type Object struct {
	Name     string  `json:"name"`
	Position float64 `json:"position"`
}

// State is a snapshot of the rail.
type State struct {
	Length  float64  `json:"length"`
	Gripper float64  `json:"gripper"`
	Holding string   `json:"holding,omitempty"`
	Objects []Object `json:"objects,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Objects = slices.Clone(s.Objects)
	return s
}

// Object returns the object named name lying on the rail.
func (s State) Object(name string) (Object, bool) {
	for _, o := range s.Objects {
		if o.Name == name {
			return o, true
		}
	}
	return Object{}, false
}

// Near reports whether some object lies within Tolerance of x.
func (s State) Near(x float64) bool {
	for _, o := range s.Objects {
		if math.Abs(o.Position-x) <= Tolerance {
			return true
		}
	}
	return false
}

// OnRail reports whether x lies on the rail.
func (s State) OnRail(x float64) bool {
	return x >= 0 && x <= s.Length
}

// ActionKind selects what an Action does.
type ActionKind int

const (
	// Move shifts the gripper by Delta.
	Move ActionKind = iota
	// Close grips the named object.
	Close
	// Open releases the held object at the gripper.
	Open
)

func (k ActionKind) String() string {
	switch k {
	case Move:
		return "move"
	case Close:
		return "close"
	case Open:
		return "open"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is one gripper command.
type Action struct {
	Kind   ActionKind
	Delta  float64
	Object string
}

// Sim is an in-memory rail. Moves are clipped to the rail and to the
// speed limit; a Close succeeds only within Tolerance of the object.
type Sim struct {
	mu    sync.Mutex
	state State
	speed float64
	steps int
}

// NewSim returns a simulator starting at initial.
func NewSim(initial State, speed float64) *Sim {
	return &Sim{state: initial.Clone(), speed: speed}
}

// Observe returns a copy of the current state.
func (s *Sim) Observe(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

// Apply executes action.
func (s *Sim) Apply(ctx context.Context, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps++

	st := &s.state
	switch action.Kind {
	case Move:
		delta := math.Max(-s.speed, math.Min(s.speed, action.Delta))
		st.Gripper = math.Max(0, math.Min(st.Length, st.Gripper+delta))
	case Close:
		if st.Holding != "" {
			return fmt.Errorf("gripper already holds %q", st.Holding)
		}
		idx := slices.IndexFunc(st.Objects, func(o Object) bool { return o.Name == action.Object })
		if idx < 0 {
			return fmt.Errorf("no object %q on the rail", action.Object)
		}
		if math.Abs(st.Objects[idx].Position-st.Gripper) > Tolerance {
			// Missed grasp: the jaws close on nothing.
			return nil
		}
		st.Holding = action.Object
		st.Objects = slices.Delete(st.Objects, idx, idx+1)
	case Open:
		if st.Holding == "" {
			return nil
		}
		st.Objects = append(st.Objects, Object{Name: st.Holding, Position: st.Gripper})
		st.Holding = ""
	default:
		return fmt.Errorf("unknown action %s", action.Kind)
	}
	return nil
}

// Steps returns the number of actions applied so far.
func (s *Sim) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}
