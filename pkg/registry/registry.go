// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry is the lookup table an executive uses to find skills by
// name and to prune the ones that cannot apply to a state.
package registry

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/skill"
)

// Candidate is a skill that may apply to a state.
type Candidate[S, A any] struct {
	Handle      skill.Handle[S, A]
	Satisfiable skill.Probability
}

// Registry maps skill names to handles. It is safe for concurrent use.
type Registry[S, A any] struct {
	mu     sync.RWMutex
	skills map[string]skill.Handle[S, A]
	logger *slog.Logger
}

// New returns an empty registry.
func New[S, A any]() *Registry[S, A] {
	return &Registry[S, A]{
		skills: make(map[string]skill.Handle[S, A]),
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used for registration events.
func (r *Registry[S, A]) WithLogger(logger *slog.Logger) *Registry[S, A] {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Register adds h. Names must be non-empty and unique.
func (r *Registry[S, A]) Register(h skill.Handle[S, A]) error {
	if h == nil {
		return errors.New(errors.CodeInvalidInput, "skill handle is nil", nil)
	}
	name := strings.TrimSpace(h.Name())
	if name == "" {
		return errors.New(errors.CodeInvalidInput, "skill name is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.skills[name]; exists {
		return errors.Newf(errors.CodeInvalidInput, "skill %q already registered", name)
	}
	r.skills[name] = h
	r.logger.Debug("skill registered", slog.String("skill", name), slog.Bool("effects", h.SupportsEffects()))
	return nil
}

// Add erases sk under name and registers it.
func Add[S, P, A any](r *Registry[S, A], name string, sk skill.Skill[S, P, A]) error {
	return r.Register(skill.Erase(name, sk))
}

// Lookup returns the handle registered under name.
func (r *Registry[S, A]) Lookup(name string) (skill.Handle[S, A], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.skills[name]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "skill %q not registered", name).
			WithAttribute("skill", name)
	}
	return h, nil
}

// Names returns the registered names in lexical order.
func (r *Registry[S, A]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered skills.
func (r *Registry[S, A]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Applicable returns the skills whose PreconditionSatisfiable is nonzero
// for state, most probable first, ties by name. No parameter generator is
// created.
func (r *Registry[S, A]) Applicable(state S) []Candidate[S, A] {
	var out []Candidate[S, A]
	for _, name := range r.Names() {
		h, err := r.Lookup(name)
		if err != nil {
			continue
		}
		p := h.PreconditionSatisfiable(state)
		if p.Impossible() {
			r.logger.Debug("skill pruned", slog.String("skill", name))
			continue
		}
		out = append(out, Candidate[S, A]{Handle: h, Satisfiable: p})
	}
	slices.SortStableFunc(out, func(a, b Candidate[S, A]) int {
		return cmp.Compare(b.Satisfiable, a.Satisfiable)
	})
	return out
}
