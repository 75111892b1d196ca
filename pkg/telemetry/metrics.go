// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/pillar/pkg/errors"
)

// SkillMetrics tracks selection and execution of skills.
// All methods are safe on a nil receiver.
type SkillMetrics struct {
	// episodeCounter counts finished episodes by skill and outcome
	episodeCounter metric.Int64Counter

	// stepHistogram records control steps per episode
	stepHistogram metric.Int64Histogram

	// pullHistogram records generator pulls per parameter selection
	pullHistogram metric.Int64Histogram

	// terminationHistogram records termination probabilities as queried
	terminationHistogram metric.Float64Histogram

	// successHistogram records execution success probabilities
	successHistogram metric.Float64Histogram

	// errorCounter counts errors by code and skill
	errorCounter metric.Int64Counter
}

// NewSkillMetrics creates skill metrics on the global meter provider.
func NewSkillMetrics(_ context.Context) (*SkillMetrics, error) {
	meter := otel.Meter("pillar/executive")

	episodeCounter, err := meter.Int64Counter(
		"pillar.episodes.total",
		metric.WithDescription("Finished episodes by skill and outcome"),
	)
	if err != nil {
		return nil, err
	}

	stepHistogram, err := meter.Int64Histogram(
		"pillar.episode.steps",
		metric.WithDescription("Control steps per episode"),
	)
	if err != nil {
		return nil, err
	}

	pullHistogram, err := meter.Int64Histogram(
		"pillar.selection.pulls",
		metric.WithDescription("Parameter generator pulls per selection"),
	)
	if err != nil {
		return nil, err
	}

	terminationHistogram, err := meter.Float64Histogram(
		"pillar.termination.probability",
		metric.WithDescription("Termination probabilities returned by skills"),
	)
	if err != nil {
		return nil, err
	}

	successHistogram, err := meter.Float64Histogram(
		"pillar.episode.success",
		metric.WithDescription("Execution success probabilities by skill"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"pillar.errors.total",
		metric.WithDescription("Errors by code and skill"),
	)
	if err != nil {
		return nil, err
	}

	return &SkillMetrics{
		episodeCounter:       episodeCounter,
		stepHistogram:        stepHistogram,
		pullHistogram:        pullHistogram,
		terminationHistogram: terminationHistogram,
		successHistogram:     successHistogram,
		errorCounter:         errorCounter,
	}, nil
}

// RecordEpisode records a finished episode.
func (sm *SkillMetrics) RecordEpisode(ctx context.Context, skillName, outcome string, steps int, success float64) {
	if sm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrSkillName, skillName),
		attribute.String(AttrEpisodeOutcome, outcome),
	)
	sm.episodeCounter.Add(ctx, 1, attrs)
	sm.stepHistogram.Record(ctx, int64(steps), attrs)
	sm.successHistogram.Record(ctx, success, metric.WithAttributes(attribute.String(AttrSkillName, skillName)))
}

// RecordSelection records how many batches a parameter selection pulled.
func (sm *SkillMetrics) RecordSelection(ctx context.Context, skillName string, pulls int) {
	if sm == nil {
		return
	}
	sm.pullHistogram.Record(ctx, int64(pulls), metric.WithAttributes(attribute.String(AttrSkillName, skillName)))
}

// RecordTermination records one termination query.
func (sm *SkillMetrics) RecordTermination(ctx context.Context, skillName string, p float64) {
	if sm == nil {
		return
	}
	sm.terminationHistogram.Record(ctx, p, metric.WithAttributes(attribute.String(AttrSkillName, skillName)))
}

// RecordError increments the error counter for err's code.
func (sm *SkillMetrics) RecordError(ctx context.Context, err error, skillName string) {
	if sm == nil || err == nil {
		return
	}
	code := "UNKNOWN"
	recoverable := "unknown"
	var pe *errors.PillarError
	if stderrors.As(err, &pe) {
		code = string(pe.Code)
		recoverable = pe.RecoverableString()
	}
	sm.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", code),
			attribute.String(AttrSkillName, skillName),
			attribute.String("recoverable", recoverable),
		),
	)
}
