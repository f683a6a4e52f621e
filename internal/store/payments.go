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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rentflow/reconciler/internal/models"
)

// PaymentStore persists reconciled payments. The email_id column is UNIQUE:
// it backs the workflow's duplicate check and catches a concurrent retry the
// check itself cannot see.
type PaymentStore struct {
	pool *pgxpool.Pool
}

// NewPaymentStore creates a payment store backed by the given Postgres pool.
// It ensures the payments table exists on creation; the tenants table must
// already exist (construct the TenantStore first).
func NewPaymentStore(ctx context.Context, pool *pgxpool.Pool) (*PaymentStore, error) {
	s := &PaymentStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure payments schema: %w", err)
	}
	slog.Info("payment store initialised")
	return s, nil
}

func (s *PaymentStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL REFERENCES tenants(id),
			amount       NUMERIC(10,2) NOT NULL,
			payment_date DATE NOT NULL,
			period       TEXT NOT NULL,
			status       TEXT NOT NULL DEFAULT 'completed',
			email_id     TEXT NOT NULL UNIQUE,
			invoice_id   TEXT NOT NULL DEFAULT '',
			receipt_sent BOOLEAN NOT NULL DEFAULT FALSE,
			notes        TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payments_tenant ON payments(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_payments_created ON payments(created_at);
	`)
	return err
}

// ExistsByEmailID reports whether a payment has already been recorded for
// the given source email.
func (s *PaymentStore) ExistsByEmailID(ctx context.Context, emailID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE email_id = $1)
	`, emailID).Scan(&exists)
	return exists, err
}

// Insert persists a payment and returns its generated id. A duplicate
// email_id violates the unique constraint and surfaces as an error.
func (s *PaymentStore) Insert(ctx context.Context, p *models.Payment) (string, error) {
	p.ID = uuid.NewString()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO payments
			(id, tenant_id, amount, payment_date, period, status, email_id,
			 invoice_id, receipt_sent, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, p.ID, p.TenantID, p.Amount, p.PaymentDate, p.Period, p.Status,
		p.EmailID, p.InvoiceID, p.ReceiptSent, p.Notes,
	).Scan(&p.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert payment: %w", err)
	}
	return p.ID, nil
}

// MarkReceiptSent flips the receipt flag once the invoice email went out.
func (s *PaymentStore) MarkReceiptSent(ctx context.Context, paymentID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments SET receipt_sent = TRUE WHERE id = $1
	`, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment %s not found", paymentID)
	}
	return nil
}

// List returns recent payments newest-first, optionally filtered by tenant.
// The tenant's display name is joined in for the admin API.
func (s *PaymentStore) List(ctx context.Context, tenantID string, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pm.id, pm.tenant_id, t.name, pm.amount, pm.payment_date,
		       pm.period, pm.status, pm.email_id, pm.invoice_id,
		       pm.receipt_sent, pm.notes, pm.created_at
		FROM payments pm
		JOIN tenants t ON t.id = pm.tenant_id
		WHERE ($1 = '' OR pm.tenant_id = $1)
		ORDER BY pm.created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(
			&p.ID, &p.TenantID, &p.TenantName, &p.Amount, &p.PaymentDate,
			&p.Period, &p.Status, &p.EmailID, &p.InvoiceID,
			&p.ReceiptSent, &p.Notes, &p.CreatedAt,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
