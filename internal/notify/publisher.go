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

// Package notify publishes operator alerts to Redis as JSON envelopes. An
// out-of-process mail sender drains the queue and delivers them to the
// landlord.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rentflow/reconciler/internal/metrics"
)

// Publisher sends operator alerts to a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
	recipient string
}

// NewPublisher creates a publisher targeting the specified alert queue.
// recipient is the landlord address the mail sender delivers to.
func NewPublisher(rdb *redis.Client, queueName, recipient string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		recipient: recipient,
	}
}

// Alert is the envelope the mail-sender worker consumes.
type Alert struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// NotifyOperator enqueues one alert. Callers treat failures as best-effort;
// a reconciliation outcome never depends on alert delivery.
func (p *Publisher) NotifyOperator(ctx context.Context, subject, details string) error {
	alert := Alert{
		ID:        uuid.New().String(),
		Recipient: p.recipient,
		Subject:   subject,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(data)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	metrics.IncrementAlertsPublished()
	slog.Info("published operator alert",
		"alert_id", alert.ID,
		"subject", subject,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
