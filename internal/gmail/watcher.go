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

package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rentflow/reconciler/internal/dedup"
	"github.com/rentflow/reconciler/internal/models"
	"github.com/rentflow/reconciler/internal/parser"
)

// subjectFilter matches the fixed prefix of Interac payment notifications.
const subjectFilter = "Interac e-Transfer: You've received"

// DefaultMaxResults caps how many messages one poll cycle considers.
const DefaultMaxResults = 20

// DefaultTrustedSenders are the notification origins accepted when the
// configuration names none.
var DefaultTrustedSenders = []string{"notify@payments.interac.ca", "cibc.com"}

// Watcher composes the Gmail client, the notification parser, and the
// seen-filter into the engine's mailbox.
type Watcher struct {
	client *Client
	filter *dedup.Filter
	query  string
	max    int
}

// WatcherConfig holds the watcher's dependencies.
type WatcherConfig struct {
	Client *Client

	// Filter short-circuits messages already handled in this or a recent
	// cycle. Optional; without it the processed label alone gates rework.
	Filter *dedup.Filter

	// TrustedSenders are from: clauses for the mailbox search. Defaults to
	// DefaultTrustedSenders.
	TrustedSenders []string

	// MaxResults overrides DefaultMaxResults when positive.
	MaxResults int
}

// NewWatcher creates a mailbox watcher.
func NewWatcher(cfg WatcherConfig) *Watcher {
	senders := cfg.TrustedSenders
	if len(senders) == 0 {
		senders = DefaultTrustedSenders
	}
	max := cfg.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	return &Watcher{
		client: cfg.Client,
		filter: cfg.Filter,
		query:  buildQuery(senders),
		max:    max,
	}
}

// buildQuery assembles the mailbox search: payment-shaped subjects from
// trusted senders, excluding mail already labelled processed.
func buildQuery(senders []string) string {
	clauses := make([]string, 0, len(senders))
	for _, s := range senders {
		clauses = append(clauses, "from:"+s)
	}
	return fmt.Sprintf("subject:%q (%s) -label:%s",
		subjectFilter, strings.Join(clauses, " OR "), ProcessedLabel)
}

// FetchNewPayments searches the mailbox and parses every unseen match into a
// payment. Messages that match the search but not the notification format
// are left untouched for manual review.
func (w *Watcher) FetchNewPayments(ctx context.Context) ([]models.ParsedPayment, error) {
	return w.fetch(ctx, w.query)
}

// FetchSince behaves like FetchNewPayments but restricts the search to mail
// received on or after the given day. Used by the sweep command to re-walk a
// window of history.
func (w *Watcher) FetchSince(ctx context.Context, since string) ([]models.ParsedPayment, error) {
	query := w.query
	if since != "" {
		query += " after:" + since
	}
	return w.fetch(ctx, query)
}

func (w *Watcher) fetch(ctx context.Context, query string) ([]models.ParsedPayment, error) {
	ids, err := w.client.Search(ctx, query, w.max)
	if err != nil {
		return nil, fmt.Errorf("search mailbox: %w", err)
	}
	if len(ids) == 0 {
		slog.Debug("no new payment notifications")
		return nil, nil
	}

	var payments []models.ParsedPayment
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if w.filter != nil {
			seen, err := w.filter.Seen(ctx, id)
			if err != nil {
				slog.Warn("seen-filter check failed", "email_id", id, "error", err)
			} else if seen {
				continue
			}
		}

		msg, err := w.client.GetMessage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch message %s: %w", id, err)
		}

		p := parser.Parse(id, msg.Subject(), msg.BodyText(), msg.ReceivedAt())
		if p == nil {
			slog.Debug("message is not a payment notification", "email_id", id)
			continue
		}
		payments = append(payments, *p)
	}

	slog.Info("fetched payment notifications", "matched", len(ids), "parsed", len(payments))
	return payments, nil
}

// MarkProcessed labels the email consumed and records it in the seen-filter.
// A filter failure is logged but not returned; the label is the durable
// marker.
func (w *Watcher) MarkProcessed(ctx context.Context, emailID string) error {
	if err := w.client.MarkProcessed(ctx, emailID); err != nil {
		return err
	}
	if w.filter != nil {
		if err := w.filter.MarkSeen(ctx, emailID); err != nil {
			slog.Warn("seen-filter mark failed", "email_id", emailID, "error", err)
		}
	}
	return nil
}
