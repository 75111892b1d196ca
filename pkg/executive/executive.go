// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package executive is a reference executive for the skill contract. It
// prunes inapplicable skills, selects a parameter from a skill's generator,
// runs the bound policy against a World until the skill asks to terminate,
// and records every episode in an audit store.
//
// The executive never searches over skill sequences. It runs one named
// skill, or a fixed Sequence authored elsewhere.
package executive

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/registry"
	"github.com/jllopis/pillar/pkg/resilience"
	"github.com/jllopis/pillar/pkg/skill"
	"github.com/jllopis/pillar/pkg/telemetry"
)

// World is the external actuation layer the executive drives.
type World[S, A any] interface {
	// Observe returns the current state.
	Observe(ctx context.Context) (S, error)
	// Apply executes one action.
	Apply(ctx context.Context, action A) error
}

// TerminationMode decides how a termination probability becomes a stop.
type TerminationMode string

const (
	// TerminateThreshold stops once the probability reaches the threshold.
	TerminateThreshold TerminationMode = "threshold"
	// TerminateSample stops on a Bernoulli draw with the given probability.
	TerminateSample TerminationMode = "sample"
)

// Config bounds the executive's own work.
type Config struct {
	// MaxBatch is the batch bound handed to parameter generators.
	MaxBatch int
	// MaxPulls bounds the batches pulled per selection.
	MaxPulls int
	// MaxSteps bounds the control steps of one episode.
	MaxSteps int
	// TerminationMode selects threshold or sampled termination.
	TerminationMode TerminationMode
	// TerminationThreshold is used by TerminateThreshold.
	TerminationThreshold float64
	// SuccessThreshold marks an episode as succeeded.
	SuccessThreshold float64
	// Seed feeds the RNG used by TerminateSample.
	Seed int64
	// Retry governs Execute. A nil IsRecoverable retries EXECUTION_FAILED
	// errors only.
	Retry resilience.RetryConfig
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		MaxBatch:             16,
		MaxPulls:             4,
		MaxSteps:             500,
		TerminationMode:      TerminateThreshold,
		TerminationThreshold: 0.5,
		SuccessThreshold:     0.5,
		Seed:                 1,
		Retry: resilience.DefaultRetryConfig().
			WithMaxAttempts(1).
			WithIsRecoverable(resilience.RetryOnCodes(errors.CodeExecutionFailed)),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxBatch < 1:
		return errors.Newf(errors.CodeInvalidInput, "max batch must be at least 1, got %d", c.MaxBatch)
	case c.MaxPulls < 1:
		return errors.Newf(errors.CodeInvalidInput, "max pulls must be at least 1, got %d", c.MaxPulls)
	case c.MaxSteps < 1:
		return errors.Newf(errors.CodeInvalidInput, "max steps must be at least 1, got %d", c.MaxSteps)
	case c.TerminationMode != TerminateThreshold && c.TerminationMode != TerminateSample:
		return errors.Newf(errors.CodeInvalidInput, "unknown termination mode %q", c.TerminationMode)
	case c.TerminationThreshold <= 0 || c.TerminationThreshold > 1:
		return errors.Newf(errors.CodeInvalidInput, "termination threshold must be in (0, 1], got %v", c.TerminationThreshold)
	case c.SuccessThreshold <= 0 || c.SuccessThreshold > 1:
		return errors.Newf(errors.CodeInvalidInput, "success threshold must be in (0, 1], got %v", c.SuccessThreshold)
	case c.Retry.MaxAttempts < 1:
		return errors.Newf(errors.CodeInvalidInput, "max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// Option configures an Executive.
type Option func(*options)

type options struct {
	cfg     Config
	logger  *slog.Logger
	audit   AuditStore
	metrics *telemetry.SkillMetrics
	rng     *rand.Rand
	now     func() time.Time
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditStore records every episode to store.
func WithAuditStore(store AuditStore) Option {
	return func(o *options) { o.audit = store }
}

// WithMetrics records skill metrics.
func WithMetrics(metrics *telemetry.SkillMetrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithRand overrides the RNG seeded from Config.Seed.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithClock overrides time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Selection is the parameter chosen for one episode.
type Selection struct {
	Parameter   any
	Probability skill.Probability
	Pulls       int
	Candidates  int
}

// Executive drives skills from a registry against a world.
type Executive[S, A any] struct {
	registry *registry.Registry[S, A]
	world    World[S, A]
	cfg      Config
	logger   *slog.Logger
	audit    AuditStore
	metrics  *telemetry.SkillMetrics
	tracer   trace.Tracer
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates an executive. The configuration is validated.
func New[S, A any](reg *registry.Registry[S, A], world World[S, A], opts ...Option) (*Executive[S, A], error) {
	if reg == nil {
		return nil, errors.New(errors.CodeInvalidInput, "registry is nil", nil)
	}
	if world == nil {
		return nil, errors.New(errors.CodeInvalidInput, "world is nil", nil)
	}
	o := options{cfg: DefaultConfig(), logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.cfg.Seed))
	}
	return &Executive[S, A]{
		registry: reg,
		world:    world,
		cfg:      o.cfg,
		logger:   o.logger,
		audit:    o.audit,
		metrics:  o.metrics,
		tracer:   otel.Tracer("pillar/executive"),
		now:      o.now,
		rng:      o.rng,
	}, nil
}

// Config returns the active configuration.
func (e *Executive[S, A]) Config() Config {
	return e.cfg
}

// Applicable lists the registered skills that may apply to state, most
// probable first. It never creates parameter generators.
func (e *Executive[S, A]) Applicable(_ context.Context, state S) []registry.Candidate[S, A] {
	return e.registry.Applicable(state)
}

// Select picks the parameter with the highest precondition probability
// among at most MaxPulls batches. A skill whose PreconditionSatisfiable is
// zero is rejected with NOT_APPLICABLE before any generator is created.
func (e *Executive[S, A]) Select(ctx context.Context, h skill.Handle[S, A], state S) (Selection, error) {
	ctx, span := e.tracer.Start(ctx, "Executive.Select",
		trace.WithAttributes(attribute.String(telemetry.AttrSkillName, h.Name())),
	)
	defer span.End()

	satisfiable := h.PreconditionSatisfiable(state)
	span.SetAttributes(telemetry.SkillAttributes(h.Name(), float64(satisfiable), h.SupportsEffects())...)
	if satisfiable.Impossible() {
		err := errors.Newf(errors.CodeNotApplicable, "skill %q cannot apply to the current state", h.Name()).
			WithAttribute(telemetry.AttrSkillName, h.Name())
		e.fail(ctx, span, err, h.Name())
		return Selection{}, err
	}

	gen, err := h.MakeParameterGenerator(state, e.cfg.MaxBatch)
	if err != nil {
		e.fail(ctx, span, err, h.Name())
		return Selection{}, err
	}

	var best Selection
	found := false
	pulls := 0
	candidates := 0
pull:
	for pulls < e.cfg.MaxPulls {
		if err := ctx.Err(); err != nil {
			lost := errors.New(errors.CodeContextLost, "selection canceled", err)
			e.fail(ctx, span, lost, h.Name())
			return Selection{}, lost
		}
		batch, ok := gen.NextBatch(e.cfg.MaxBatch)
		if !ok {
			break
		}
		pulls++
		for _, param := range batch {
			candidates++
			p := h.PreconditionSatisfied(state, param)
			if !found || p > best.Probability {
				best = Selection{Parameter: param, Probability: p}
				found = true
			}
			if p == skill.Certain {
				break pull
			}
		}
	}
	best.Pulls = pulls
	best.Candidates = candidates
	e.metrics.RecordSelection(ctx, h.Name(), pulls)

	if !found || best.Probability.Impossible() {
		err := errors.Newf(errors.CodeNotApplicable, "skill %q has no parameter with nonzero precondition", h.Name()).
			WithContext("pulls", pulls).
			WithContext("candidates", candidates).
			WithAttribute(telemetry.AttrSkillName, h.Name())
		e.fail(ctx, span, err, h.Name())
		return Selection{}, err
	}

	span.SetAttributes(telemetry.SelectionAttributes(pulls, candidates, float64(best.Probability), fmt.Sprint(best.Parameter), 0)...)
	e.logger.DebugContext(ctx, "parameter selected",
		slog.String("skill", h.Name()),
		slog.Any("parameter", best.Parameter),
		slog.Float64("probability", float64(best.Probability)),
		slog.Int("pulls", pulls),
	)
	return best, nil
}

func (e *Executive[S, A]) shouldTerminate(p skill.Probability) bool {
	if e.cfg.TerminationMode == TerminateSample {
		e.rngMu.Lock()
		defer e.rngMu.Unlock()
		return p.Sample(e.rng)
	}
	return float64(p) >= e.cfg.TerminationThreshold
}

func (e *Executive[S, A]) fail(ctx context.Context, span trace.Span, err error, skillName string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.metrics.RecordError(ctx, err, skillName)
}
