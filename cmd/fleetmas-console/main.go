// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// fleetmas-console connects to a fleet of daemons and streams their
// state changes to the terminal: node lifecycles, launch file
// changes, diagnostics, warnings, and daemons appearing through
// discovery.
//
// Endpoints come from a JSONC seed file (--endpoints); daemons those
// endpoints discover are connected automatically. With --demo the
// console runs against an in-process simulated fleet, no daemon
// required.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/fleetmas/fleetmas/lib/cache"
	"github.com/fleetmas/fleetmas/lib/config"
	"github.com/fleetmas/fleetmas/provider"
	"github.com/fleetmas/fleetmas/registry"
	"github.com/fleetmas/fleetmas/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    string
		endpointsPath string
		logLevel      string
		demo          bool
	)
	flagSet := pflag.NewFlagSet("fleetmas-console", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "settings file (YAML)")
	flagSet.StringVar(&endpointsPath, "endpoints", "", "endpoint seed file (JSONC; needs --demo until a wire transport lands)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.BoolVar(&demo, "demo", false, "run against an in-process simulated fleet")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	settings := config.Default()
	if configPath != "" {
		settings, err = config.LoadFile(configPath)
		if err != nil {
			return err
		}
	}

	var store *cache.Store
	if settings.Cache.Dir != "" {
		tag, err := cache.ParseCompressionTag(settings.Cache.Compression)
		if err != nil {
			return err
		}
		store, err = cache.New(settings.Cache.Dir, tag)
		if err != nil {
			return err
		}
	}

	var dial transport.DialFunc
	var endpoints []config.Endpoint
	switch {
	case demo:
		dial, endpoints = demoFleet()
		if endpointsPath != "" {
			// Seed the simulated fleet from the file instead of the
			// built-in endpoint; the demo dialer answers for any
			// address.
			endpoints, err = config.ReadEndpoints(endpointsPath)
			if err != nil {
				return err
			}
		}
	case endpointsPath != "":
		return fmt.Errorf("no wire transport is built into this binary yet; run with --demo")
	default:
		return fmt.Errorf("either --endpoints or --demo is required")
	}

	reg, err := registry.New(registry.Config{
		Dial:     dial,
		Settings: settings,
		Cache:    store,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, seed := range endpoints {
		session, err := reg.Add(seed)
		if err != nil {
			return err
		}
		go watchSession(ctx, logger, session)
	}
	if err := reg.ConnectAll(ctx); err != nil {
		logger.Warn("some endpoints failed to connect", "error", err)
	}

	logger.Info("console running", "endpoints", len(endpoints))
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// watchSession streams one session's events into the log until the
// session or the console shuts down.
func watchSession(ctx context.Context, logger *slog.Logger, session *provider.Provider) {
	events, cancel := session.Subscribe()
	defer cancel()
	log := logger.With("endpoint", session.ID())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			logEvent(ctx, log, session, ev)
		}
	}
}

func logEvent(ctx context.Context, log *slog.Logger, session *provider.Provider, ev provider.Event) {
	switch ev.Kind {
	case provider.EventStateChanged:
		log.Info("state", "to", ev.State.String(), "detail", ev.Detail)
	case provider.EventNodesChanged:
		nodes := session.Nodes()
		running := 0
		for _, n := range nodes {
			if n.PID > 0 {
				running++
			}
		}
		log.Info("nodes", "total", len(nodes), "running", running)
	case provider.EventLaunchesChanged:
		log.Info("launches", "loaded", len(session.Launches()))
	case provider.EventWarningsChanged:
		for _, group := range session.Warnings() {
			for _, w := range group.Warnings {
				log.Warn("daemon warning", "group", group.ID, "msg", w.Msg)
			}
		}
	case provider.EventDiagnosticsChanged:
		log.Info("diagnostics updated")
	case provider.EventPeerDiscovered:
		log.Info("peer discovered", "peer", ev.PeerKey, "name", ev.Descriptor.Name)
		if ev.Peer != nil {
			go watchSession(ctx, log, ev.Peer)
		}
	case provider.EventPeerRemoved:
		log.Info("peer removed", "peer", ev.PeerKey)
	case provider.EventDelayUpdated:
		log.Info("clock skew", "skew", ev.Skew)
	case provider.EventPathChanged:
		log.Info("path changed", "path", ev.Path)
	}
}

// newLogger builds the console logger: text for terminals, JSON when
// output is piped.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}
	options := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler), nil
}
