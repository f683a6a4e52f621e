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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant represents a tenant under management, including the ledger state the
// workflow advances after every reconciled payment: LastInvoiceNo increments
// by exactly one and NextDueMonth rolls forward exactly one calendar month.
type Tenant struct {
	ID              string          `json:"id"`
	PropertyID      string          `json:"property_id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	Unit            string          `json:"unit"`
	MonthlyRent     decimal.Decimal `json:"monthly_rent"`
	ParkingFee      decimal.Decimal `json:"parking_fee"`
	LeaseStart      *time.Time      `json:"lease_start,omitempty"`
	LeaseEnd        *time.Time      `json:"lease_end,omitempty"`
	NextDueMonth    string          `json:"next_due_month,omitempty"` // "YYYY-MM"
	LastInvoiceNo   int             `json:"last_invoice_no"`
	InvoiceClientID string          `json:"invoice_client_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Property is populated on reads that join the owning property.
	Property *Property `json:"property,omitempty"`
}

// ExpectedCharge is the amount a tenant's e-transfer must match: monthly rent
// plus parking fee. ParkingFee defaults to zero when the tenant has none.
func (t *Tenant) ExpectedCharge() decimal.Decimal {
	return t.MonthlyRent.Add(t.ParkingFee)
}

// Property represents a rental property tenants belong to. Address fields
// appear on receipt invoices.
type Property struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postal_code"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
