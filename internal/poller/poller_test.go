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

package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rentflow/reconciler/internal/reconcile"
)

// TestRun_InitialCycleImmediate verifies the first cycle does not wait for
// the first tick.
func TestRun_InitialCycleImmediate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ran := make(chan struct{})
	p := New(func(ctx context.Context) *reconcile.BatchResult {
		close(ran)
		cancel()
		return &reconcile.BatchResult{}
	}, time.Hour)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("initial cycle did not run")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

// TestRun_CyclesUntilCancelled verifies ticks keep driving cycles and that
// cancellation stops the loop.
func TestRun_CyclesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	p := New(func(ctx context.Context) *reconcile.BatchResult {
		if atomic.AddInt32(&calls, 1) >= 3 {
			cancel()
		}
		return &reconcile.BatchResult{}
	}, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	if n := atomic.LoadInt32(&calls); n < 3 {
		t.Errorf("expected at least 3 cycles, got %d", n)
	}
}
