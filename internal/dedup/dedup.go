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

// Package dedup provides a short-lived seen-filter for processed email ids,
// backed by Redis keys with a TTL. The Gmail label is the durable consumed
// marker; this filter only keeps just-processed ids out of the next search
// while the label write propagates. Check and mark are separate operations
// because an email must only become "seen" after a terminal outcome; a
// failed payment has to resurface on the next poll.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long we remember a processed email id. The search
	// query also excludes labelled mail, so a short memory is enough.
	DefaultTTL = 72 * time.Hour

	// keyPrefix namespaces seen-filter keys in Redis.
	keyPrefix = "rentflow:seen:"
)

// Filter tracks which email ids have recently reached a terminal outcome.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a seen-filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// Seen reports whether the email id was already marked processed.
func (f *Filter) Seen(ctx context.Context, emailID string) (bool, error) {
	n, err := f.rdb.Exists(ctx, keyPrefix+emailID).Result()
	if err != nil {
		return false, fmt.Errorf("seen-filter EXISTS: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records the email id with the filter's TTL. Called alongside the
// label write once an outcome is terminal.
func (f *Filter) MarkSeen(ctx context.Context, emailID string) error {
	if err := f.rdb.Set(ctx, keyPrefix+emailID, 1, f.ttl).Err(); err != nil {
		return fmt.Errorf("seen-filter SET: %w", err)
	}
	return nil
}
