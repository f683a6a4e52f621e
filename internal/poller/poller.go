// Copyright (c) 2026 John Earle
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

// Package poller runs the background reconciliation loop: one cycle
// immediately on startup, then one per tick. Cycles run inline in the loop,
// so they can never overlap.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/rentflow/reconciler/internal/metrics"
	"github.com/rentflow/reconciler/internal/reconcile"
)

// CycleFunc runs one reconciliation cycle and reports its batch result.
type CycleFunc func(ctx context.Context) *reconcile.BatchResult

// Poller drives reconciliation cycles at a fixed interval.
type Poller struct {
	run      CycleFunc
	interval time.Duration
}

// New creates a poller running one cycle per interval.
func New(run CycleFunc, interval time.Duration) *Poller {
	return &Poller{
		run:      run,
		interval: interval,
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("payment poller starting", "interval", p.interval)

	// Do an initial cycle immediately
	p.cycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("payment poller stopping")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one reconciliation pass and records its duration and counts.
func (p *Poller) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	result := p.run(ctx)
	elapsed := time.Since(start)
	metrics.RecordCycleDuration(elapsed)

	processed, errors, skipped := result.Counts()
	if processed == 0 && errors == 0 && skipped == 0 {
		slog.Debug("reconcile cycle found nothing to do")
		return
	}

	slog.Info("reconcile cycle complete",
		"processed", processed,
		"errors", errors,
		"skipped", skipped,
		"duration", elapsed.Round(time.Millisecond),
	)
}
