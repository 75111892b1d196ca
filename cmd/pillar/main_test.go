// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/pillar/internal/linearworld"
	"github.com/jllopis/pillar/pkg/config"
	"github.com/jllopis/pillar/pkg/errors"
	"github.com/jllopis/pillar/pkg/executive"
)

const testConfig = `
log:
  level: error
world:
  length: 10
  speed: 0.5
  objects:
    - name: cup
      position: 3
    - name: box
      position: 7
`

func newTestApp(t *testing.T, sets ...string) *app {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pillar.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	args := []string{"--config", path}
	for _, s := range sets {
		args = append(args, "--set", s)
	}
	cfg, err := config.LoadWithCLI(args)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	a, err := newApp(context.Background(), cfg, io.Discard)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func writeSequence(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sequence.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write sequence: %v", err)
	}
	return path
}

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantArgs   []string
		wantConfig []string
		wantJSON   bool
		wantHelp   bool
		wantErr    bool
	}{
		{name: "command only", args: []string{"skills"}, wantArgs: []string{"skills"}},
		{name: "json", args: []string{"--json", "run", "reach"}, wantArgs: []string{"run", "reach"}, wantJSON: true},
		{
			name:       "config flags",
			args:       []string{"--config", "p.yaml", "--set=audit.driver=none", "audit"},
			wantArgs:   []string{"audit"},
			wantConfig: []string{"--config", "p.yaml", "--set=audit.driver=none"},
		},
		{name: "double dash", args: []string{"--", "--json"}, wantArgs: []string{"--json"}},
		{name: "help", args: []string{"-h", "skills"}, wantHelp: true},
		{name: "missing value", args: []string{"--profile"}, wantErr: true},
		{name: "unknown flag", args: []string{"--verbose", "skills"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, args, err := parseGlobalFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if flags.JSON != tt.wantJSON || flags.Help != tt.wantHelp {
				t.Fatalf("unexpected flags %+v", flags)
			}
			if strings.Join(args, " ") != strings.Join(tt.wantArgs, " ") {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			if strings.Join(flags.ConfigArgs, " ") != strings.Join(tt.wantConfig, " ") {
				t.Fatalf("config args = %v, want %v", flags.ConfigArgs, tt.wantConfig)
			}
		})
	}
}

func TestWorldState(t *testing.T) {
	state := worldState(config.WorldConfig{
		Length:  4,
		Gripper: 1,
		Objects: []config.ObjectConfig{{Name: "cup", Position: 2}},
	})
	if state.Length != 4 || state.Gripper != 1 {
		t.Fatalf("unexpected state %+v", state)
	}
	if cup, ok := state.Object("cup"); !ok || cup.Position != 2 {
		t.Fatalf("cup missing from %+v", state)
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.Newf(errors.CodeNotFound, "skill %q not registered", "wave"), false)
	text := buf.String()
	if !strings.Contains(text, "Error [NOT_FOUND]") || !strings.Contains(text, "pillar skills") {
		t.Fatalf("unexpected text output %q", text)
	}

	buf.Reset()
	PrintError(&buf, NewInvalidArgumentError("run", "usage: pillar run <skill>"), true)
	var payload struct {
		Error struct {
			Code string `json:"code"`
			Hint string `json:"hint"`
		} `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	if payload.Error.Code != string(errors.CodeInvalidInput) || payload.Error.Hint == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestNewConfigErrorKeepsCode(t *testing.T) {
	err := NewConfigError(errors.New(errors.CodeNotFound, "missing", nil))
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", errors.CodeOf(err))
	}
	err = NewConfigError(stderrors.New("boom"))
	if errors.CodeOf(err) != errors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", errors.CodeOf(err))
	}
}

func TestSkillsCommand(t *testing.T) {
	a := newTestApp(t)
	var buf bytes.Buffer
	if err := runSkills(context.Background(), a, nil, output{w: &buf, json: true}); err != nil {
		t.Fatalf("skills: %v", err)
	}
	var results []skillResult
	if err := json.Unmarshal(buf.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	byName := map[string]skillResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	if len(byName) != 3 {
		t.Fatalf("expected 3 skills, got %v", results)
	}
	if !byName[linearworld.ReachSkill].Applicable || !byName[linearworld.ReachSkill].Effects {
		t.Fatalf("reach should be applicable with effects: %+v", byName[linearworld.ReachSkill])
	}
	if byName[linearworld.GraspSkill].Applicable {
		t.Fatalf("grasp should not apply with nothing under the gripper: %+v", byName[linearworld.GraspSkill])
	}
	if byName[linearworld.PlaceSkill].Applicable || byName[linearworld.PlaceSkill].Effects {
		t.Fatalf("place should not apply with an empty gripper: %+v", byName[linearworld.PlaceSkill])
	}

	buf.Reset()
	if err := runSkills(context.Background(), a, nil, output{w: &buf}); err != nil {
		t.Fatalf("skills table: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "SKILL") || !strings.Contains(buf.String(), "reach") {
		t.Fatalf("unexpected table %q", buf.String())
	}

	if err := runSkills(context.Background(), a, []string{"extra"}, output{w: io.Discard}); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestRunCommand(t *testing.T) {
	a := newTestApp(t)
	var buf bytes.Buffer
	if err := runSkill(context.Background(), a, []string{linearworld.ReachSkill}, output{w: &buf, json: true}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var results []episodeResult
	if err := json.Unmarshal(buf.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one episode, got %d", len(results))
	}
	ep := results[0]
	if ep.Parameter != 3.0 || ep.Outcome != string(executive.OutcomeTerminated) || !ep.Succeeded {
		t.Fatalf("unexpected episode %+v", ep)
	}
	if ep.Final.Gripper != 3 {
		t.Fatalf("gripper at %v, want 3", ep.Final.Gripper)
	}
}

func TestRunCommandErrors(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	if err := runSkill(ctx, a, nil, output{w: io.Discard}); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if err := runSkill(ctx, a, []string{"wave"}, output{w: io.Discard}); !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if err := runSkill(ctx, a, []string{linearworld.PlaceSkill}, output{w: io.Discard}); !errors.HasCode(err, errors.CodeNotApplicable) {
		t.Fatalf("expected NOT_APPLICABLE, got %v", err)
	}
}

func TestSequenceAndAuditCommands(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	path := writeSequence(t, `
id: pick-and-place
steps:
  - skill: reach
  - skill: grasp
  - skill: place
`)
	var buf bytes.Buffer
	if err := runSequence(ctx, a, []string{path}, output{w: &buf}); err != nil {
		t.Fatalf("sequence: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %q", buf.String())
	}

	buf.Reset()
	if err := runAudit(ctx, a, []string{"--sequence", "pick-and-place"}, output{w: &buf, json: true}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	var events []executive.AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 audit events, got %d", len(events))
	}

	buf.Reset()
	if err := runAudit(ctx, a, []string{"--skill", "grasp", "--limit", "5"}, output{w: &buf}); err != nil {
		t.Fatalf("audit table: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 2 {
		t.Fatalf("expected header and 1 row, got %q", buf.String())
	}

	if err := runAudit(ctx, a, []string{"--bogus"}, output{w: io.Discard}); !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestSequenceCommandStopsAtFailure(t *testing.T) {
	a := newTestApp(t)
	path := writeSequence(t, `
id: too-short
steps:
  - skill: reach
    max_steps: 2
  - skill: grasp
`)
	var buf bytes.Buffer
	err := runSequence(context.Background(), a, []string{path}, output{w: &buf, json: true})
	if !errors.HasCode(err, errors.CodeExecutionFailed) {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}
	var results []episodeResult
	if err := json.Unmarshal(buf.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || results[0].Outcome != string(executive.OutcomeStepLimit) {
		t.Fatalf("unexpected episodes %+v", results)
	}
}

func TestValidateCommand(t *testing.T) {
	a := newTestApp(t)
	good := writeSequence(t, "steps:\n  - skill: reach\n")
	bad := writeSequence(t, "steps:\n  - skill: wave\n")

	var buf bytes.Buffer
	if err := runValidate(a, []string{good}, output{w: &buf}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if strings.Contains(buf.String(), "error") {
		t.Fatalf("unexpected failure in %q", buf.String())
	}

	buf.Reset()
	err := runValidate(a, []string{bad}, output{w: &buf, json: true})
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	var checks []checkResult
	if err := json.Unmarshal(buf.Bytes(), &checks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last := checks[len(checks)-1]; last.Name != "skills" || last.Status != "error" {
		t.Fatalf("unexpected checks %+v", checks)
	}
}

func TestAuditDisabled(t *testing.T) {
	a := newTestApp(t, "audit.driver=none")
	err := runAudit(context.Background(), a, nil, output{w: io.Discard})
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestSQLiteAuditSurvivesRestart(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")
	first := newTestApp(t, "audit.driver=sqlite", "audit.dsn="+dsn)
	if err := runSkill(context.Background(), first, []string{linearworld.ReachSkill}, output{w: io.Discard}); err != nil {
		t.Fatalf("run: %v", err)
	}
	first.Close(context.Background())

	second := newTestApp(t, "audit.driver=sqlite", "audit.dsn="+dsn)
	var buf bytes.Buffer
	if err := runAudit(context.Background(), second, nil, output{w: &buf, json: true}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	var events []executive.AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].Skill != linearworld.ReachSkill {
		t.Fatalf("unexpected events %+v", events)
	}
}
