// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package skill defines the contract a parameterized, temporally-extended
// robot behavior must satisfy to be driven by an external executive.
//
// A Skill gatekeeps and manufactures Policies. The executive asks
// PreconditionSatisfiable to prune the skill cheaply, pulls candidate
// parameters from a ParameterGenerator, binds one with MakePolicy, then
// alternates Policy.Invoke with TerminationSatisfied until it decides to
// stop. ExecutionSuccessful judges the outcome afterwards.
//
// Every probability-valued method returns a value in [0, 1]. Zero means
// "definitely not" and is how a skill reports that it does not apply; errors
// are reserved for contract violations such as a parameter of the wrong type,
// disagreeing batch lengths or a missing optional capability.
//
// States, parameters and actions are type parameters. This package never
// mutates a state it is handed.
package skill
