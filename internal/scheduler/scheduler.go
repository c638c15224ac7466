// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler implements the Commit Scheduler: a single
// dedicated loop that, at a fixed period, drains the dirty set, swaps
// each dirtied file's pending revision into its visible slot, and
// releases every waiter blocked on the clock barrier. Each iteration
// measures its start time, does the work, then sleeps out the
// remainder of the period; the loop is driven by an injectable
// clock.Clock so tests can step ticks deterministically instead of
// sleeping in real time.
package scheduler

import (
	"context"
	"time"

	"github.com/geekmug/go-syncfs/clock"
	"github.com/geekmug/go-syncfs/internal/barrier"
	"github.com/geekmug/go-syncfs/internal/dirtyset"
	"github.com/geekmug/go-syncfs/internal/logger"
)

// committable is satisfied by any dirty-set entry the drain step can
// install: *vfile.VersionedFile directly, or a richer entry (e.g.
// internal/nametree's commit entry) that also stamps owning metadata
// once the swap lands.
type committable interface {
	DrainAndCommit()
}

// ClockTicker is rendered by the clock file each tick; it is a
// separate hook (rather than folding clock-content generation into the
// drain loop) so an allocation failure there can be swallowed without
// affecting the rest of the tick.
type ClockTicker interface {
	Tick() error
}

// Scheduler runs the Commit Scheduler loop.
type Scheduler struct {
	clk      clock.Clock
	period   time.Duration
	dirty    *dirtyset.Set
	barrier  *barrier.Queue
	clockTck ClockTicker

	metrics Metrics
}

// Metrics receives scheduler observability events. All methods are
// optional no-ops in NopMetrics.
type Metrics interface {
	TickCompleted(dirtyDrained int, barrierReleased int)
}

// NopMetrics implements Metrics with no-ops.
type NopMetrics struct{}

// TickCompleted implements Metrics.
func (NopMetrics) TickCompleted(int, int) {}

// New returns a Scheduler. period is the tick cadence; clockTck may be
// nil if the caller does not want clock-file rendering wired in
// (primarily for tests that exercise the drain/release path alone).
func New(clk clock.Clock, period time.Duration, dirty *dirtyset.Set, q *barrier.Queue, clockTck ClockTicker, m Metrics) *Scheduler {
	if m == nil {
		m = NopMetrics{}
	}
	return &Scheduler{clk: clk, period: period, dirty: dirty, barrier: q, clockTck: clockTck, metrics: m}
}

// Run executes the Commit Scheduler loop until ctx is cancelled. Each
// iteration is fully synchronous and, once started, is not
// cancellable mid-tick — shutdown only takes effect between ticks.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		start := s.clk.Now()
		s.tick()
		elapsed := s.clk.Now().Sub(start)

		remaining := s.period - elapsed
		if remaining <= 0 {
			continue // the tick ran long; proceed immediately, this frame is late
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clk.After(remaining):
		}
	}
}

// tick performs one commit: render the clock file, drain the dirty
// set, commit every entry, and release the barrier.
func (s *Scheduler) tick() {
	if s.clockTck != nil {
		if err := s.clockTck.Tick(); err != nil {
			logger.Warnf("scheduler: clock tick render failed (non-fatal): %v", err)
		}
	}

	drained := s.dirty.Drain()
	for _, e := range drained {
		if c, ok := e.(committable); ok {
			c.DrainAndCommit()
		}
	}

	released := s.barrier.ReleaseAll()
	s.metrics.TickCompleted(len(drained), released)
}
