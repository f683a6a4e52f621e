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

// RentFlow — Payment Reconciliation Service
//
// Entry point for the reconciler. It:
//  1. Loads configuration from config.yaml and the environment
//  2. Connects to PostgreSQL and Redis
//  3. Authorizes the Gmail mailbox and ensures the processed label
//  4. Runs the reconciliation poller (parse → match → validate → receipt)
//  5. Serves the admin API, health check, and metrics
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rentflow/reconciler/internal/api"
	"github.com/rentflow/reconciler/internal/config"
	"github.com/rentflow/reconciler/internal/dedup"
	"github.com/rentflow/reconciler/internal/gmail"
	"github.com/rentflow/reconciler/internal/invoicing"
	"github.com/rentflow/reconciler/internal/notify"
	"github.com/rentflow/reconciler/internal/poller"
	"github.com/rentflow/reconciler/internal/reconcile"
	"github.com/rentflow/reconciler/internal/store"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting RentFlow reconciler")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"poll_interval", cfg.PollInterval,
		"trusted_senders", len(cfg.TrustedSenders),
		"alerts_queue", cfg.AlertsQueue,
	)

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
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	notifier := notify.NewPublisher(rdb, cfg.AlertsQueue, cfg.LandlordEmail)
	if err := notifier.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Seen Filter ---
	filter := dedup.NewFilter(rdb)

	// --- Stores (Postgres) ---
	// Property schema first; tenants and payments reference it.
	propertyStore, err := store.NewPropertyStore(ctx, pgPool)
	if err != nil {
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
	slog.Info("gmail mailbox ready", "label", gmail.ProcessedLabel)

	watcher := gmail.NewWatcher(gmail.WatcherConfig{
		Client:         gmailClient,
		Filter:         filter,
		TrustedSenders: cfg.TrustedSenders,
		MaxResults:     cfg.MaxResults,
	})

	// --- Invoicing ---
	invoicer := invoicing.NewClient(cfg.InvoiceNinjaURL, cfg.InvoiceNinjaAPIKey)

	// --- Reconciliation Engine ---
	engine := reconcile.NewEngine(reconcile.EngineConfig{
		Mailbox:   watcher,
		Tenants:   tenantStore,
		Payments:  paymentStore,
		Invoicer:  invoicer,
		Notifier:  notifier,
		OpTimeout: cfg.OpTimeout,
	})

	// --- Poller ---
	p := poller.New(engine.Run, cfg.PollInterval)
	go p.Run(ctx)

	// --- Admin API ---
	apiServer := api.NewServer(api.ServerConfig{
		DB:         pgPool,
		Redis:      notifier,
		Properties: propertyStore,
		Tenants:    tenantStore,
		Payments:   paymentStore,
		Engine:     engine,
		Invoicer:   invoicer,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     apiServer.Handler(),
		ReadTimeout: 10 * time.Second,
		// The manual process endpoint runs a full reconcile cycle inline.
		WriteTimeout: 2 * time.Minute,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel() // Stops the poller

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		pgPool.Close()
	}()

	slog.Info("reconciler listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("reconciler stopped")
}
