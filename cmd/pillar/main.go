// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the Pillar CLI. It drives the rail simulator
// through the reference executive.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jllopis/pillar/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err, false)
	}
	if global.Help || len(args) == 0 {
		printUsage(os.Stdout)
		return
	}

	cmd := args[0]
	switch cmd {
	case "help":
		printUsage(os.Stdout)
		return
	case "version":
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err), global.JSON)
	}
	app, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		fatal(err, global.JSON)
	}
	defer app.Close(context.Background())

	out := output{w: os.Stdout, json: global.JSON}
	switch cmd {
	case "skills":
		err = runSkills(ctx, app, args[1:], out)
	case "run":
		err = runSkill(ctx, app, args[1:], out)
	case "sequence":
		err = runSequence(ctx, app, args[1:], out)
	case "validate":
		err = runValidate(app, args[1:], out)
	case "audit":
		err = runAudit(ctx, app, args[1:], out)
	default:
		err = NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		app.Close(context.Background())
		fatal(err, global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--profile" || arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--profile="), strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// output renders command results as tables or JSON.
type output struct {
	w    io.Writer
	json bool
}

func (o output) printJSON(value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(o.w, string(payload))
	return err
}

func (o output) table() *tabwriter.Writer {
	return tabwriter.NewWriter(o.w, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}

func formatProbability(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Pillar CLI

Usage:
  pillar [global flags] <command> [args]

Global flags:
  --config <path>      Path to pillar.yaml
  --profile <name>     Merge pillar.<name>.yaml over the config file
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  skills               List skills and their applicability in the current state
  run <skill>          Select a parameter and run one episode
  sequence <file>      Run a YAML or JSON skill sequence
  validate <file>      Check a sequence file against the registered skills
  audit [--skill S] [--sequence ID] [--outcome O] [--limit N]
  version`)
}

func fatal(err error, asJSON bool) {
	PrintError(os.Stderr, err, asJSON)
	os.Exit(1)
}
