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

// Package models defines the data structures shared across the reconciler service.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParsedPayment is the structured fact extracted from a single e-transfer
// notification email. EmailID is the source message identifier and the
// idempotency key for the entire downstream pipeline: the payment store
// enforces uniqueness on it and the workflow's duplicate check queries by it.
//
// A ParsedPayment is only constructed when both amount and sender were
// extracted; Amount is always positive and PaymentDate always carries a
// value (extracted from the body or fallen back to the received date).
type ParsedPayment struct {
	EmailID     string          `json:"email_id"`
	SenderName  string          `json:"sender_name"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	MessageLine string          `json:"message_line,omitempty"`
	RawSubject  string          `json:"raw_subject"`
}

// Payment represents a reconciled payment persisted in Postgres.
type Payment struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	TenantName  string          `json:"tenant_name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Period      string          `json:"period"`
	Status      string          `json:"status"` // "completed"
	EmailID     string          `json:"email_id"`
	InvoiceID   string          `json:"invoice_id,omitempty"`
	ReceiptSent bool            `json:"receipt_sent"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Receipt carries the identifiers returned by the invoicing service once a
// receipt invoice has been created, marked paid, and emailed to the tenant.
type Receipt struct {
	ClientID      string `json:"client_id"`
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
}
