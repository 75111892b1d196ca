// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/jllopis/pillar/internal/linearworld"
	"github.com/jllopis/pillar/pkg/executive"
)

type skillResult struct {
	Name        string  `json:"name"`
	Applicable  bool    `json:"applicable"`
	Satisfiable float64 `json:"satisfiable"`
	Effects     bool    `json:"effects"`
}

type episodeResult struct {
	RunID      string            `json:"run_id"`
	SequenceID string            `json:"sequence_id,omitempty"`
	Skill      string            `json:"skill"`
	Parameter  any               `json:"parameter"`
	Outcome    string            `json:"outcome"`
	Steps      int               `json:"steps"`
	Success    float64           `json:"success"`
	Succeeded  bool              `json:"succeeded"`
	Error      string            `json:"error,omitempty"`
	Final      linearworld.State `json:"final"`
}

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "error"
	Message string `json:"message,omitempty"`
}

func toEpisodeResult(ep *executive.Episode[linearworld.State]) episodeResult {
	res := episodeResult{
		RunID:      ep.RunID,
		SequenceID: ep.SequenceID,
		Skill:      ep.Skill,
		Parameter:  ep.Parameter,
		Outcome:    string(ep.Outcome),
		Steps:      ep.Steps,
		Success:    float64(ep.Success),
		Succeeded:  ep.Succeeded,
		Final:      ep.Final,
	}
	if ep.Err != nil {
		res.Error = ep.Err.Error()
	}
	return res
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runSkills(ctx context.Context, a *app, args []string, out output) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("skills", fmt.Sprintf("unexpected args: %v", args))
	}
	state, err := a.world.Observe(ctx)
	if err != nil {
		return err
	}
	applicable := map[string]float64{}
	for _, c := range a.exec.Applicable(ctx, state) {
		applicable[c.Handle.Name()] = float64(c.Satisfiable)
	}

	results := make([]skillResult, 0, a.registry.Len())
	for _, name := range a.registry.Names() {
		h, err := a.registry.Lookup(name)
		if err != nil {
			return err
		}
		p, ok := applicable[name]
		results = append(results, skillResult{Name: name, Applicable: ok, Satisfiable: p, Effects: h.SupportsEffects()})
	}
	if out.json {
		return out.printJSON(results)
	}
	w := out.table()
	writeRow(w, "SKILL", "APPLICABLE", "SATISFIABLE", "EFFECTS")
	for _, r := range results {
		writeRow(w, r.Name, strconv.FormatBool(r.Applicable), formatProbability(r.Satisfiable), strconv.FormatBool(r.Effects))
	}
	return w.Flush()
}

func runSkill(ctx context.Context, a *app, args []string, out output) error {
	if len(args) != 1 {
		return NewInvalidArgumentError("run", "usage: pillar run <skill>")
	}
	ep, err := a.exec.Execute(ctx, args[0])
	if ep != nil {
		if printErr := printEpisodes(out, []*executive.Episode[linearworld.State]{ep}); printErr != nil {
			return printErr
		}
	}
	return err
}

func runSequence(ctx context.Context, a *app, args []string, out output) error {
	if len(args) != 1 {
		return NewInvalidArgumentError("sequence", "usage: pillar sequence <file>")
	}
	seq, err := executive.LoadSequence(args[0])
	if err != nil {
		return err
	}
	episodes, err := a.exec.RunSequence(ctx, seq)
	if len(episodes) > 0 {
		if printErr := printEpisodes(out, episodes); printErr != nil {
			return printErr
		}
	}
	return err
}

func printEpisodes(out output, episodes []*executive.Episode[linearworld.State]) error {
	results := make([]episodeResult, 0, len(episodes))
	for _, ep := range episodes {
		results = append(results, toEpisodeResult(ep))
	}
	if out.json {
		return out.printJSON(results)
	}
	w := out.table()
	writeRow(w, "RUN", "SKILL", "PARAMETER", "OUTCOME", "STEPS", "SUCCESS", "GRIPPER", "HOLDING")
	for _, r := range results {
		writeRow(w,
			truncateMessage(r.RunID, 8),
			r.Skill,
			fmt.Sprint(r.Parameter),
			r.Outcome,
			strconv.Itoa(r.Steps),
			formatProbability(r.Success),
			strconv.FormatFloat(r.Final.Gripper, 'f', 2, 64),
			r.Final.Holding,
		)
	}
	return w.Flush()
}

func runValidate(a *app, args []string, out output) error {
	if len(args) != 1 {
		return NewInvalidArgumentError("validate", "usage: pillar validate <file>")
	}
	checks := []checkResult{{Name: "config", Status: "ok"}}
	var failed error

	seq, err := executive.LoadSequence(args[0])
	if err != nil {
		checks = append(checks, checkResult{Name: "sequence", Status: "error", Message: err.Error()})
		failed = err
	} else {
		checks = append(checks, checkResult{Name: "sequence", Status: "ok", Message: fmt.Sprintf("%d steps", len(seq.Steps))})
		if err := seq.CheckRegistered(a.registry); err != nil {
			checks = append(checks, checkResult{Name: "skills", Status: "error", Message: err.Error()})
			failed = err
		} else {
			checks = append(checks, checkResult{Name: "skills", Status: "ok"})
		}
	}

	if out.json {
		if err := out.printJSON(checks); err != nil {
			return err
		}
		return failed
	}
	w := out.table()
	writeRow(w, "CHECK", "STATUS", "MESSAGE")
	for _, c := range checks {
		writeRow(w, c.Name, c.Status, c.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return failed
}

func runAudit(ctx context.Context, a *app, args []string, out output) error {
	fs := newFlagSet("audit")
	var filter executive.AuditFilter
	fs.StringVar(&filter.Skill, "skill", "", "filter by skill")
	fs.StringVar(&filter.SequenceID, "sequence", "", "filter by sequence id")
	fs.StringVar(&filter.Outcome, "outcome", "", "filter by outcome")
	fs.IntVar(&filter.Limit, "limit", 50, "maximum events")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("audit", err.Error())
	}
	if fs.NArg() > 0 {
		return NewInvalidArgumentError("audit", fmt.Sprintf("unexpected args: %v", fs.Args()))
	}
	if a.audit == nil {
		return NewInvalidArgumentError("audit.driver", "auditing is disabled; set audit.driver=sqlite")
	}

	events, err := a.audit.List(ctx, filter)
	if err != nil {
		return err
	}
	if out.json {
		return out.printJSON(events)
	}
	w := out.table()
	writeRow(w, "STARTED", "RUN", "SEQUENCE", "SKILL", "OUTCOME", "STEPS", "SUCCESS", "ERROR")
	for _, ev := range events {
		writeRow(w,
			formatTime(ev.StartedAt),
			truncateMessage(ev.RunID, 8),
			ev.SequenceID,
			ev.Skill,
			ev.Outcome,
			strconv.Itoa(ev.Steps),
			formatProbability(ev.Success),
			truncateMessage(ev.Error, 60),
		)
	}
	return w.Flush()
}
