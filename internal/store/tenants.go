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

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentflow/reconciler/internal/models"
)

// TenantStore provides lookups and ledger updates for tenants. It serves the
// reconciliation engine (FindByName, UpdateLedger) and the admin API.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore creates a tenant store backed by the given Postgres pool.
// It ensures the tenants table exists on creation; the properties table must
// already exist (construct the PropertyStore first).
func NewTenantStore(ctx context.Context, pool *pgxpool.Pool) (*TenantStore, error) {
	s := &TenantStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure tenants schema: %w", err)
	}
	slog.Info("tenant store initialised")
	return s, nil
}

func (s *TenantStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id                TEXT PRIMARY KEY,
			property_id       TEXT NOT NULL REFERENCES properties(id),
			name              TEXT NOT NULL,
			email             TEXT NOT NULL,
			phone             TEXT NOT NULL DEFAULT '',
			unit              TEXT NOT NULL,
			monthly_rent      NUMERIC(10,2) NOT NULL,
			parking_fee       NUMERIC(10,2) NOT NULL DEFAULT 0,
			lease_start       DATE,
			lease_end         DATE,
			next_due_month    TEXT NOT NULL DEFAULT '',
			last_invoice_no   INTEGER NOT NULL DEFAULT 0,
			invoice_client_id TEXT NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_tenants_property ON tenants(property_id);
		CREATE INDEX IF NOT EXISTS idx_tenants_name_lower ON tenants(LOWER(name));
	`)
	return err
}

// FindByName resolves a tenant by display name, case-insensitively and
// exactly. No fuzzy matching: crediting the wrong tenant is worse than
// flagging an email for manual review. Returns (nil, nil) when absent.
func (s *TenantStore) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT t.id, t.property_id, t.name, t.email, t.phone, t.unit,
		       t.monthly_rent, t.parking_fee, t.lease_start, t.lease_end,
		       t.next_due_month, t.last_invoice_no, t.invoice_client_id,
		       t.created_at, t.updated_at,
		       p.id, p.name, p.address, p.city, p.province, p.postal_code,
		       p.phone, p.created_at
		FROM tenants t
		JOIN properties p ON p.id = t.property_id
		WHERE LOWER(t.name) = LOWER($1)
	`, name)
	return scanTenant(row)
}

// FindByID retrieves a tenant by id. Returns (nil, nil) when absent.
func (s *TenantStore) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT t.id, t.property_id, t.name, t.email, t.phone, t.unit,
		       t.monthly_rent, t.parking_fee, t.lease_start, t.lease_end,
		       t.next_due_month, t.last_invoice_no, t.invoice_client_id,
		       t.created_at, t.updated_at,
		       p.id, p.name, p.address, p.city, p.province, p.postal_code,
		       p.phone, p.created_at
		FROM tenants t
		JOIN properties p ON p.id = t.property_id
		WHERE t.id = $1
	`, id)
	return scanTenant(row)
}

// List returns all tenants with their properties, ordered by name.
func (s *TenantStore) List(ctx context.Context) ([]models.Tenant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.property_id, t.name, t.email, t.phone, t.unit,
		       t.monthly_rent, t.parking_fee, t.lease_start, t.lease_end,
		       t.next_due_month, t.last_invoice_no, t.invoice_client_id,
		       t.created_at, t.updated_at,
		       p.id, p.name, p.address, p.city, p.province, p.postal_code,
		       p.phone, p.created_at
		FROM tenants t
		JOIN properties p ON p.id = t.property_id
		ORDER BY t.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTenants(rows)
}

// Create inserts a tenant. The due period defaults to the current calendar
// month and the invoice sequence starts at zero.
func (s *TenantStore) Create(ctx context.Context, t *models.Tenant) (*models.Tenant, error) {
	if t.NextDueMonth == "" {
		t.NextDueMonth = time.Now().Format("2006-01")
	}
	t.ID = uuid.NewString()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO tenants
			(id, property_id, name, email, phone, unit, monthly_rent,
			 parking_fee, lease_start, lease_end, next_due_month)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING last_invoice_no, created_at, updated_at
	`, t.ID, t.PropertyID, t.Name, t.Email, t.Phone, t.Unit, t.MonthlyRent,
		t.ParkingFee, t.LeaseStart, t.LeaseEnd, t.NextDueMonth,
	).Scan(&t.LastInvoiceNo, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	return t, nil
}

// UpdateLedger advances a tenant's invoice sequence and due period after a
// reconciled payment. The invoicing client id is written only when non-empty,
// so a caller without one never clears a stored id.
func (s *TenantStore) UpdateLedger(ctx context.Context, tenantID string, lastInvoiceNo int, nextDueMonth, invoiceClientID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants
		SET last_invoice_no   = $2,
		    next_due_month    = $3,
		    invoice_client_id = COALESCE(NULLIF($4, ''), invoice_client_id),
		    updated_at        = NOW()
		WHERE id = $1
	`, tenantID, lastInvoiceNo, nextDueMonth, invoiceClientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant %s not found", tenantID)
	}
	return nil
}

// scanTenant scans a single tenant row with its joined property.
func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	var p models.Property
	err := row.Scan(
		&t.ID, &t.PropertyID, &t.Name, &t.Email, &t.Phone, &t.Unit,
		&t.MonthlyRent, &t.ParkingFee, &t.LeaseStart, &t.LeaseEnd,
		&t.NextDueMonth, &t.LastInvoiceNo, &t.InvoiceClientID,
		&t.CreatedAt, &t.UpdatedAt,
		&p.ID, &p.Name, &p.Address, &p.City, &p.Province, &p.PostalCode,
		&p.Phone, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Property = &p
	return &t, nil
}

// collectTenants scans multiple tenant rows with their joined properties.
func collectTenants(rows pgx.Rows) ([]models.Tenant, error) {
	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		var p models.Property
		if err := rows.Scan(
			&t.ID, &t.PropertyID, &t.Name, &t.Email, &t.Phone, &t.Unit,
			&t.MonthlyRent, &t.ParkingFee, &t.LeaseStart, &t.LeaseEnd,
			&t.NextDueMonth, &t.LastInvoiceNo, &t.InvoiceClientID,
			&t.CreatedAt, &t.UpdatedAt,
			&p.ID, &p.Name, &p.Address, &p.City, &p.Province, &p.PostalCode,
			&p.Phone, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		t.Property = &p
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}
