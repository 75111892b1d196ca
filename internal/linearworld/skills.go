// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package linearworld

import (
	"github.com/jllopis/pillar/pkg/registry"
)

// Skill names used when registering.
const (
	ReachSkill = "reach"
	GraspSkill = "grasp"
	PlaceSkill = "place"
)

// Options configures the rail skills.
type Options struct {
	Speed float64
	Seed  int64
	Slots int
}

// Register adds reach, grasp and place to reg.
func Register(reg *registry.Registry[State, Action], opts Options) error {
	if err := registry.Add[State, float64, Action](reg, ReachSkill, Reach{Speed: opts.Speed, Seed: opts.Seed}); err != nil {
		return err
	}
	if err := registry.Add[State, string, Action](reg, GraspSkill, Grasp{}); err != nil {
		return err
	}
	return registry.Add[State, float64, Action](reg, PlaceSkill, Place{Speed: opts.Speed, Slots: opts.Slots})
}
