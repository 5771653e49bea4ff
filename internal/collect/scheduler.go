// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

package collect

import (
	"context"
	"time"

	"github.com/ayatori/shinchaku/internal/config"
)

// Scheduler drives the orchestrator on a fixed interval. It implements
// suture.Service so the supervisor tree restarts it if a run panics.
type Scheduler struct {
	orchestrator *Orchestrator
	cfg          config.CollectConfig
}

func NewScheduler(orchestrator *Orchestrator, cfg config.CollectConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	return &Scheduler{orchestrator: orchestrator, cfg: cfg}
}

// Serve implements suture.Service. Run outcomes are logged and persisted by
// the orchestrator itself; a failed run does not bring the service down.
func (s *Scheduler) Serve(ctx context.Context) error {
	if s.cfg.RunOnStartup {
		_, _ = s.orchestrator.Run(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = s.orchestrator.Run(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor log messages.
func (s *Scheduler) String() string {
	return "collect-scheduler"
}
