// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package executive

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/resilience"
	"github.com/jllopis/pillar/pkg/skill"
	"github.com/jllopis/pillar/pkg/telemetry"
)

// Outcome says why an episode stopped.
type Outcome string

const (
	// OutcomeTerminated means the skill's termination condition fired.
	OutcomeTerminated Outcome = "terminated"
	// OutcomeStepLimit means the executive's step bound was reached.
	OutcomeStepLimit Outcome = "step_limit"
	// OutcomeCanceled means the caller cancelled the context.
	OutcomeCanceled Outcome = "canceled"
	// OutcomeFailed means policy construction, invocation or actuation failed.
	OutcomeFailed Outcome = "failed"
)

// Episode is one execution of one skill with one parameter.
type Episode[S any] struct {
	RunID      string
	SequenceID string
	Skill      string
	Parameter  any
	Initial    S
	Final      S
	// Steps counts policy invocations.
	Steps   int
	Outcome Outcome
	// Success is the skill's own judgement; only set for terminated and
	// step-limited episodes.
	Success    skill.Probability
	Succeeded  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type episodeRun struct {
	maxSteps   int
	sequenceID string
}

// RunEpisode binds sel to a policy and runs it from initial, which must be
// the state sel was chosen for.
//
// Each step asks TerminationSatisfied with the current state and step count
// before invoking the policy, so a skill can stop at step zero. Once ctx is
// cancelled the loop stops without querying termination again. Policy
// errors are returned wrapped as EXECUTION_FAILED with the original error as
// cause.
func (e *Executive[S, A]) RunEpisode(ctx context.Context, h skill.Handle[S, A], initial S, sel Selection) (*Episode[S], error) {
	return e.runEpisode(ctx, h, initial, sel, episodeRun{maxSteps: e.cfg.MaxSteps})
}

func (e *Executive[S, A]) runEpisode(ctx context.Context, h skill.Handle[S, A], initial S, sel Selection, run episodeRun) (*Episode[S], error) {
	if run.maxSteps <= 0 {
		run.maxSteps = e.cfg.MaxSteps
	}
	ep := &Episode[S]{
		RunID:      uuid.NewString(),
		SequenceID: run.sequenceID,
		Skill:      h.Name(),
		Parameter:  sel.Parameter,
		Initial:    initial,
		Final:      initial,
		StartedAt:  e.now(),
	}
	ctx, span := e.tracer.Start(ctx, "Executive.Episode",
		trace.WithAttributes(
			attribute.String(telemetry.AttrSkillName, h.Name()),
			attribute.String(telemetry.AttrEpisodeRunID, ep.RunID),
		),
	)
	defer span.End()
	logger := e.logger.With(slog.String("skill", h.Name()), slog.String("run_id", ep.RunID))

	policy, err := h.MakePolicy(initial, sel.Parameter)
	if err != nil {
		return e.finish(ctx, span, ep, OutcomeFailed, err)
	}

	state := initial
	for t := 0; ; t++ {
		if ctx.Err() != nil {
			ep.Final = state
			return e.finish(ctx, span, ep, OutcomeCanceled,
				errors.New(errors.CodeContextLost, "episode canceled", ctx.Err()).WithContext("t_step", t))
		}
		if t > 0 {
			observed, err := e.world.Observe(ctx)
			if err != nil {
				return e.finish(ctx, span, ep, OutcomeFailed, e.worldError(ctx, "observe state", err, h.Name(), t))
			}
			state = observed
			ep.Final = state
		}

		p := h.TerminationSatisfied(state, sel.Parameter, policy, t)
		e.metrics.RecordTermination(ctx, h.Name(), float64(p))
		if e.shouldTerminate(p) {
			logger.DebugContext(ctx, "termination condition met", slog.Int("t_step", t), slog.Float64("probability", float64(p)))
			return e.judge(ctx, span, ep, h, policy, OutcomeTerminated)
		}
		if t >= run.maxSteps {
			logger.WarnContext(ctx, "step limit reached", slog.Int("max_steps", run.maxSteps))
			return e.judge(ctx, span, ep, h, policy, OutcomeStepLimit)
		}

		action, err := policy.Invoke(state)
		if err != nil {
			return e.finish(ctx, span, ep, OutcomeFailed,
				errors.New(errors.CodeExecutionFailed, "policy failed", err).
					WithRecoverable(true).
					WithContext("t_step", t).
					WithAttribute(telemetry.AttrSkillName, h.Name()))
		}
		if err := e.world.Apply(ctx, action); err != nil {
			return e.finish(ctx, span, ep, OutcomeFailed, e.worldError(ctx, "apply action", err, h.Name(), t))
		}
		ep.Steps = t + 1
	}
}

// worldError maps actuation failures. Cancellation surfaces as CONTEXT_LOST,
// anything else as a recoverable EXECUTION_FAILED.
func (e *Executive[S, A]) worldError(ctx context.Context, what string, err error, skillName string, t int) error {
	if ctx.Err() != nil {
		return errors.New(errors.CodeContextLost, what+" canceled", err).WithContext("t_step", t)
	}
	return errors.New(errors.CodeExecutionFailed, what, err).
		WithRecoverable(true).
		WithContext("t_step", t).
		WithAttribute(telemetry.AttrSkillName, skillName)
}

func (e *Executive[S, A]) judge(ctx context.Context, span trace.Span, ep *Episode[S], h skill.Handle[S, A], policy skill.Policy[S, A], outcome Outcome) (*Episode[S], error) {
	ep.Success = h.ExecutionSuccessful(ep.Initial, ep.Final, ep.Parameter, policy, ep.Steps)
	ep.Succeeded = float64(ep.Success) >= e.cfg.SuccessThreshold
	return e.finish(ctx, span, ep, outcome, nil)
}

func (e *Executive[S, A]) finish(ctx context.Context, span trace.Span, ep *Episode[S], outcome Outcome, err error) (*Episode[S], error) {
	ep.Outcome = outcome
	ep.Err = err
	ep.FinishedAt = e.now()

	span.SetAttributes(telemetry.EpisodeAttributes(ep.RunID, ep.Steps, string(outcome), float64(ep.Success))...)
	if err != nil {
		e.fail(ctx, span, err, ep.Skill)
	}
	e.metrics.RecordEpisode(ctx, ep.Skill, string(outcome), ep.Steps, float64(ep.Success))
	e.record(ctx, ep)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	e.logger.Log(ctx, level, "episode finished",
		slog.String("skill", ep.Skill),
		slog.String("run_id", ep.RunID),
		slog.String("outcome", string(outcome)),
		slog.Int("steps", ep.Steps),
		slog.Float64("success", float64(ep.Success)),
		slog.Bool("succeeded", ep.Succeeded),
	)
	return ep, err
}

func (e *Executive[S, A]) record(ctx context.Context, ep *Episode[S]) {
	if e.audit == nil {
		return
	}
	event := AuditEvent{
		RunID:      ep.RunID,
		SequenceID: ep.SequenceID,
		Skill:      ep.Skill,
		Parameter:  ep.Parameter,
		Outcome:    string(ep.Outcome),
		Steps:      ep.Steps,
		Success:    float64(ep.Success),
		StartedAt:  ep.StartedAt,
		FinishedAt: ep.FinishedAt,
	}
	if ep.Err != nil {
		event.Error = ep.Err.Error()
	}
	// Audit runs after cancellation too, so it must not inherit ctx's deadline.
	if err := e.audit.Record(context.WithoutCancel(ctx), event); err != nil {
		e.logger.ErrorContext(ctx, "audit record failed", slog.String("run_id", ep.RunID), slog.Any("error", err))
	}
}

// Execute observes the world, selects a parameter for the named skill and
// runs one episode. Episodes failing with EXECUTION_FAILED are retried from
// a fresh observation according to Config.Retry.
func (e *Executive[S, A]) Execute(ctx context.Context, name string) (*Episode[S], error) {
	return e.execute(ctx, name, episodeRun{maxSteps: e.cfg.MaxSteps})
}

func (e *Executive[S, A]) execute(ctx context.Context, name string, run episodeRun) (*Episode[S], error) {
	h, err := e.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	rc := e.cfg.Retry
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = resilience.RetryOnCodes(errors.CodeExecutionFailed)
	}
	rc = rc.WithOnRetry(func(attempt int, lastErr error) {
		e.logger.WarnContext(ctx, "retrying skill execution",
			slog.String("skill", name),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr),
		)
	})
	return resilience.Retry(ctx, rc, func() (*Episode[S], error) {
		state, err := e.world.Observe(ctx)
		if err != nil {
			return nil, errors.New(errors.CodeInternal, "observe initial state", err)
		}
		sel, err := e.Select(ctx, h, state)
		if err != nil {
			return nil, err
		}
		return e.runEpisode(ctx, h, state, sel, run)
	})
}
