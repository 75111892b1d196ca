// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration and structured
// logging for skill selection and execution.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Pillar telemetry.
const (
	// Skill attributes
	AttrSkillName        = "pillar.skill.name"
	AttrSkillSatisfiable = "pillar.skill.satisfiable"
	AttrSkillEffects     = "pillar.skill.supports_effects"

	// Parameter selection attributes
	AttrSelectionPulls       = "pillar.selection.pulls"
	AttrSelectionCandidates  = "pillar.selection.candidates"
	AttrSelectionProbability = "pillar.selection.probability"
	AttrSelectionParameter   = "pillar.selection.parameter"

	// Episode attributes
	AttrEpisodeRunID   = "pillar.episode.run_id"
	AttrEpisodeSteps   = "pillar.episode.steps"
	AttrEpisodeOutcome = "pillar.episode.outcome"
	AttrEpisodeSuccess = "pillar.episode.success"

	// Sequence attributes
	AttrSequenceID    = "pillar.sequence.id"
	AttrSequenceSteps = "pillar.sequence.steps"
)

// SkillAttributes returns attributes identifying a skill.
func SkillAttributes(name string, satisfiable float64, effects bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSkillName, name),
		attribute.Float64(AttrSkillSatisfiable, satisfiable),
		attribute.Bool(AttrSkillEffects, effects),
	}
}

// SelectionAttributes returns attributes for a parameter selection span.
// The parameter text is truncated to maxLen (500 when maxLen <= 0).
func SelectionAttributes(pulls, candidates int, probability float64, parameter string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{
		attribute.Int(AttrSelectionPulls, pulls),
		attribute.Int(AttrSelectionCandidates, candidates),
		attribute.Float64(AttrSelectionProbability, probability),
	}
	if parameter != "" {
		if len(parameter) > maxLen {
			parameter = parameter[:maxLen] + "..."
		}
		attrs = append(attrs, attribute.String(AttrSelectionParameter, parameter))
	}
	return attrs
}

// EpisodeAttributes returns attributes for a finished episode.
func EpisodeAttributes(runID string, steps int, outcome string, success float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrEpisodeSteps, steps),
		attribute.String(AttrEpisodeOutcome, outcome),
		attribute.Float64(AttrEpisodeSuccess, success),
	}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrEpisodeRunID, runID))
	}
	return attrs
}

// SequenceAttributes returns attributes for a sequence span.
func SequenceAttributes(id string, steps int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(AttrSequenceSteps, steps)}
	if id != "" {
		attrs = append(attrs, attribute.String(AttrSequenceID, id))
	}
	return attrs
}
