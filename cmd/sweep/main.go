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

// RentFlow — Historical Sweep Command
//
// Standalone CLI tool that re-walks a window of mailbox history and runs any
// unprocessed payment notifications through reconciliation. Intended for
// seeding new deployments and for catching up after downtime.
//
// Usage:
//
//	go run ./cmd/sweep/ [--since 720h] [--limit 100] [--config config.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rentflow/reconciler/internal/config"
	"github.com/rentflow/reconciler/internal/dedup"
	"github.com/rentflow/reconciler/internal/gmail"
	"github.com/rentflow/reconciler/internal/invoicing"
	"github.com/rentflow/reconciler/internal/notify"
	"github.com/rentflow/reconciler/internal/reconcile"
	"github.com/rentflow/reconciler/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	sinceFlag := flag.String("since", "720h", "Lookback duration (e.g. 168h for 1 week, 720h for 30 days)")
	limitFlag := flag.Int("limit", 100, "Maximum messages to consider")
	configFlag := flag.String("config", "", "Path to config.yaml (overrides CONFIG_PATH)")
	flag.Parse()

	sinceDuration, err := time.ParseDuration(*sinceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --since duration %q: %v\n", *sinceFlag, err)
		os.Exit(1)
	}
	if *configFlag != "" {
		os.Setenv("CONFIG_PATH", *configFlag)
	}

	// Gmail's after: operator works on whole days.
	sinceDay := time.Now().Add(-sinceDuration).Format("2006/01/02")

	slog.Info("starting payment sweep", "since", sinceDay, "limit", *limitFlag)

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	notifier := notify.NewPublisher(rdb, cfg.AlertsQueue, cfg.LandlordEmail)
	if err := notifier.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// --- Stores ---
	if _, err := store.NewPropertyStore(ctx, pgPool); err != nil {
		slog.Error("failed to initialise property store", "error", err)
		os.Exit(1)
	}
	tenantStore, err := store.NewTenantStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise tenant store", "error", err)
		os.Exit(1)
	}
	paymentStore, err := store.NewPaymentStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise payment store", "error", err)
		os.Exit(1)
	}

	// --- Gmail Mailbox ---
	gmailHTTP, err := gmail.NewHTTPClient(ctx, cfg.GmailCredentialsPath, cfg.GmailTokenPath)
	if err != nil {
		slog.Error("failed to authorize gmail", "error", err)
		os.Exit(1)
	}
	gmailClient := gmail.NewClient(gmailHTTP, gmail.DefaultBaseURL)

	if _, err := gmailClient.EnsureLabel(ctx); err != nil {
		slog.Error("failed to ensure processed label", "error", err)
		os.Exit(1)
	}

	watcher := gmail.NewWatcher(gmail.WatcherConfig{
		Client:         gmailClient,
		Filter:         dedup.NewFilter(rdb),
		TrustedSenders: cfg.TrustedSenders,
		MaxResults:     *limitFlag,
	})

	// --- Reconciliation Engine ---
	engine := reconcile.NewEngine(reconcile.EngineConfig{
		Mailbox:   watcher,
		Tenants:   tenantStore,
		Payments:  paymentStore,
		Invoicer:  invoicing.NewClient(cfg.InvoiceNinjaURL, cfg.InvoiceNinjaAPIKey),
		Notifier:  notifier,
		OpTimeout: cfg.OpTimeout,
	})

	// --- Run Sweep ---
	start := time.Now()

	payments, err := watcher.FetchSince(ctx, sinceDay)
	if err != nil {
		slog.Error("mailbox sweep failed", "error", err)
		os.Exit(1)
	}

	result := engine.ProcessAll(ctx, payments)

	// --- Summary ---
	processed, errCount, skipped := result.Counts()
	slog.Info("sweep complete",
		"fetched", len(payments),
		"processed", processed,
		"errors", errCount,
		"skipped", skipped,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	for _, o := range result.Errors {
		slog.Warn("unreconciled payment",
			"email_id", o.EmailID,
			"status", o.Status,
			"reason", o.Reason,
		)
	}
}
