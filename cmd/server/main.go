// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package main is the entry point for the Shinchaku server.
//
// Shinchaku aggregates anime episode and manga volume release events from
// multiple upstream sources (the AniList airing schedule, calendar-style JSON
// APIs, RSS/Atom feeds), deduplicates them across sources, and stores them in
// DuckDB for downstream notifiers.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML file,
//     environment variables)
//  2. Database: DuckDB storage with the works/releases/run-history schema
//  3. Collectors: one per enabled source, each with its own rate limiter,
//     circuit breaker, and retry policy
//  4. Supervisor tree: the collect scheduler and the HTTP API as supervised
//     services
//
// Graceful shutdown on SIGINT/SIGTERM cancels the run context; an in-flight
// ingestion transaction commits or rolls back before the process exits.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayatori/shinchaku/internal/api"
	"github.com/ayatori/shinchaku/internal/collect"
	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/database"
	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/normalize"
	"github.com/ayatori/shinchaku/internal/source"
	"github.com/ayatori/shinchaku/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Int("sources", cfg.EnabledSourceCount()).
		Msg("starting shinchaku")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close database")
		}
	}()

	orchestrator := buildOrchestrator(cfg, db)
	if orchestrator.SourceCount() == 0 {
		logging.Warn().Msg("no sources enabled; only the API will run")
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.Timeout,
	})
	tree.AddIngestService(collect.NewScheduler(orchestrator, cfg.Collect))

	router := api.NewRouter(api.NewHandler(db), cfg.Server)
	server := api.NewServer(router, cfg.Server)
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.Timeout))
	logging.Info().Str("addr", server.Addr).Msg("api server configured")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("shutdown complete")
}

// buildOrchestrator wires one collector per enabled source, each with its
// source-level resilience overrides merged onto the global block.
func buildOrchestrator(cfg *config.Config, db *database.DB) *collect.Orchestrator {
	normalizer := normalize.New(cfg.Normalizer)
	orchestrator := collect.NewOrchestrator(db, normalizer)
	fetcher := source.NewFetcher(nil)

	if cfg.Sources.AniList.Enabled {
		res := cfg.Sources.AniList.Resilience.Merged(cfg.Resilience)
		orchestrator.Register(
			source.NewAniListCollector(cfg.Sources.AniList, res, fetcher, db),
			res.SourceTimeout)
	}
	if cfg.Sources.Calendar.Enabled {
		res := cfg.Sources.Calendar.Resilience.Merged(cfg.Resilience)
		orchestrator.Register(
			source.NewCalendarCollector(cfg.Sources.Calendar, res, fetcher, db),
			res.SourceTimeout)
	}
	for _, feed := range cfg.Sources.Feeds {
		res := feed.Resilience.Merged(cfg.Resilience)
		orchestrator.Register(
			source.NewFeedCollector(feed, res, fetcher, db),
			res.SourceTimeout)
	}
	return orchestrator
}
