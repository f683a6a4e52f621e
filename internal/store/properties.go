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

// Package store provides the Postgres-backed stores for properties, tenants,
// and payments. Each store ensures its own table on construction; create
// them in dependency order (properties, then tenants, then payments) so the
// foreign keys have their targets.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentflow/reconciler/internal/models"
)

// PropertyStore provides CRUD operations for rental properties.
type PropertyStore struct {
	pool *pgxpool.Pool
}

// NewPropertyStore creates a property store backed by the given Postgres
// pool. It ensures the properties table exists on creation.
func NewPropertyStore(ctx context.Context, pool *pgxpool.Pool) (*PropertyStore, error) {
	s := &PropertyStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure properties schema: %w", err)
	}
	slog.Info("property store initialised")
	return s, nil
}

func (s *PropertyStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			address     TEXT NOT NULL,
			city        TEXT NOT NULL,
			province    TEXT NOT NULL DEFAULT 'AB',
			postal_code TEXT NOT NULL,
			phone       TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Create inserts a property. Province defaults to Alberta when unset.
func (s *PropertyStore) Create(ctx context.Context, p *models.Property) (*models.Property, error) {
	if p.Province == "" {
		p.Province = "AB"
	}
	p.ID = uuid.NewString()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO properties (id, name, address, city, province, postal_code, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, p.ID, p.Name, p.Address, p.City, p.Province, p.PostalCode, p.Phone).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert property: %w", err)
	}
	return p, nil
}

// Get retrieves a property by id. Returns (nil, nil) when absent.
func (s *PropertyStore) Get(ctx context.Context, id string) (*models.Property, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, address, city, province, postal_code, phone, created_at
		FROM properties
		WHERE id = $1
	`, id)
	return scanProperty(row)
}

// List returns all properties ordered by name.
func (s *PropertyStore) List(ctx context.Context) ([]models.Property, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, address, city, province, postal_code, phone, created_at
		FROM properties
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.City, &p.Province,
			&p.PostalCode, &p.Phone, &p.CreatedAt); err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.City, &p.Province,
		&p.PostalCode, &p.Phone, &p.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
