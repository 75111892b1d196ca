// Copyright 2026 © The Pillar Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jllopis/pillar/internal/linearworld"
	"github.com/jllopis/pillar/pkg/config"
	"github.com/jllopis/pillar/pkg/executive"
	"github.com/jllopis/pillar/pkg/registry"
	"github.com/jllopis/pillar/pkg/telemetry"
)

// app is the composition root: config, telemetry, audit store, registry,
// simulator and executive.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry[linearworld.State, linearworld.Action]
	world    *linearworld.Sim
	exec     *executive.Executive[linearworld.State, linearworld.Action]
	audit    executive.AuditStore

	closeOnce sync.Once
	closers   []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg}
	a.logger = telemetry.ConfigureSlog(logOut, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig(cfg.Telemetry.ServiceName, version, cfg.Telemetry.ToTelemetry())
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	metrics, err := telemetry.NewSkillMetrics(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	audit, err := openAuditStore(cfg.Audit)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if sqlite, ok := audit.(*executive.SQLiteAuditStore); ok {
		a.closers = append(a.closers, func(context.Context) error { return sqlite.Close() })
	}
	a.audit = audit

	a.registry = registry.New[linearworld.State, linearworld.Action]().WithLogger(a.logger)
	opts := linearworld.Options{Speed: cfg.World.Speed, Seed: cfg.Executive.Seed}
	if err := linearworld.Register(a.registry, opts); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.world = linearworld.NewSim(worldState(cfg.World), cfg.World.Speed)

	execOpts := []executive.Option{
		executive.WithConfig(cfg.Executive.ToExecutive()),
		executive.WithLogger(a.logger),
		executive.WithMetrics(metrics),
	}
	if audit != nil {
		execOpts = append(execOpts, executive.WithAuditStore(audit))
	}
	a.exec, err = executive.New[linearworld.State, linearworld.Action](a.registry, a.world, execOpts...)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// Close flushes telemetry and closes the audit store. It is safe to call
// more than once.
func (a *app) Close(ctx context.Context) {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil && a.logger != nil {
				a.logger.WarnContext(ctx, "shutdown failed", slog.Any("error", err))
			}
		}
	})
}

func openAuditStore(cfg config.AuditConfig) (executive.AuditStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "none":
		return nil, nil
	case "sqlite":
		store, err := executive.OpenSQLiteAuditStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return store, nil
	default:
		return executive.NewMemoryAuditStore(), nil
	}
}

func worldState(cfg config.WorldConfig) linearworld.State {
	state := linearworld.State{Length: cfg.Length, Gripper: cfg.Gripper}
	for _, o := range cfg.Objects {
		state.Objects = append(state.Objects, linearworld.Object{Name: o.Name, Position: o.Position})
	}
	return state
}
