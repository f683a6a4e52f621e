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

package invoicing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentflow/reconciler/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testTenant() *models.Tenant {
	return &models.Tenant{
		ID:          "t-1",
		Name:        "John Doe",
		Email:       "john@example.com",
		Phone:       "555-0100",
		Unit:        "101",
		MonthlyRent: dec("1200.00"),
		ParkingFee:  dec("150.00"),
		Property: &models.Property{
			Address:    "123 Main St",
			City:       "Calgary",
			Province:   "AB",
			PostalCode: "T2A 0A1",
		},
	}
}

// receiptServer fakes the Invoice Ninja endpoints the receipt sequence hits
// and records each call's payload.
type receiptServer struct {
	*httptest.Server

	clientHits    int
	knownClients  string // JSON array body for the email lookup
	createdClient *clientPayload
	invoice       *invoicePayload
	payment       *paymentPayload
	emailed       []string
	invoiceStatus int
}

func newReceiptServer(t *testing.T) *receiptServer {
	rs := &receiptServer{knownClients: `[]`, invoiceStatus: http.StatusOK}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Token") != "test-key" {
			t.Errorf("missing api token on %s", r.URL.Path)
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("missing XMLHttpRequest header on %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/clients" && r.Method == http.MethodGet:
			rs.clientHits++
			w.Write([]byte(`{"data": ` + rs.knownClients + `}`))
		case r.URL.Path == "/api/v1/clients" && r.Method == http.MethodPost:
			var p clientPayload
			json.NewDecoder(r.Body).Decode(&p)
			rs.createdClient = &p
			w.Write([]byte(`{"data": {"id": "nc-1"}}`))
		case r.URL.Path == "/api/v1/invoices" && r.Method == http.MethodPost:
			if rs.invoiceStatus != http.StatusOK {
				w.WriteHeader(rs.invoiceStatus)
				return
			}
			var p invoicePayload
			json.NewDecoder(r.Body).Decode(&p)
			rs.invoice = &p
			w.Write([]byte(`{"data": {"id": "inv-1", "number": "0042"}}`))
		case r.URL.Path == "/api/v1/payments" && r.Method == http.MethodPost:
			var p paymentPayload
			json.NewDecoder(r.Body).Decode(&p)
			rs.payment = &p
			w.Write([]byte(`{"data": {"id": "pay-1"}}`))
		case r.URL.Path == "/api/v1/invoices/inv-1/email" && r.Method == http.MethodPost:
			rs.emailed = append(rs.emailed, "inv-1")
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return rs
}

// TestCreateAndSendReceipt verifies the full sequence against an existing
// billing client: invoice with both charge lines, payment record, email.
func TestCreateAndSendReceipt(t *testing.T) {
	rs := newReceiptServer(t)
	defer rs.Close()
	rs.knownClients = `[{"id": "nc-9"}]`

	c := NewClient(rs.URL, "test-key")

	date := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	receipt, err := c.CreateAndSendReceipt(context.Background(), testTenant(), dec("1350.00"), "November", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.ClientID != "nc-9" {
		t.Errorf("client id = %q, want nc-9", receipt.ClientID)
	}
	if receipt.InvoiceID != "inv-1" || receipt.InvoiceNumber != "0042" {
		t.Errorf("invoice = %q/%q, want inv-1/0042", receipt.InvoiceID, receipt.InvoiceNumber)
	}
	if rs.createdClient != nil {
		t.Error("existing client should not be re-created")
	}

	inv := rs.invoice
	if inv == nil {
		t.Fatal("no invoice created")
	}
	if inv.ClientID != "nc-9" {
		t.Errorf("invoice client = %q, want nc-9", inv.ClientID)
	}
	if inv.Date != "2024-11-01" || inv.DueDate != "2024-11-01" {
		t.Errorf("invoice dates = %s/%s, want 2024-11-01", inv.Date, inv.DueDate)
	}
	if inv.PublicNotes != "Rent Receipt (Unit 101) for November" {
		t.Errorf("public notes = %q", inv.PublicNotes)
	}
	if len(inv.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(inv.LineItems))
	}
	if inv.LineItems[0].ProductKey != "RENT" || inv.LineItems[0].Cost != 1200 {
		t.Errorf("rent line = %+v", inv.LineItems[0])
	}
	if inv.LineItems[0].Notes != "Monthly Rent - November" {
		t.Errorf("rent notes = %q", inv.LineItems[0].Notes)
	}
	if inv.LineItems[1].ProductKey != "PARKING" || inv.LineItems[1].Cost != 150 {
		t.Errorf("parking line = %+v", inv.LineItems[1])
	}

	pay := rs.payment
	if pay == nil {
		t.Fatal("invoice was not marked paid")
	}
	if pay.TypeID != "1" {
		t.Errorf("payment type = %q, want 1", pay.TypeID)
	}
	if len(pay.Invoices) != 1 || pay.Invoices[0].InvoiceID != "inv-1" || pay.Invoices[0].Amount != 1350 {
		t.Errorf("payment invoices = %+v", pay.Invoices)
	}

	if len(rs.emailed) != 1 {
		t.Errorf("expected 1 emailed invoice, got %d", len(rs.emailed))
	}
}

// TestCreateAndSendReceipt_CreatesClient verifies a missing billing client is
// created with the tenant's contact and property address.
func TestCreateAndSendReceipt_CreatesClient(t *testing.T) {
	rs := newReceiptServer(t)
	defer rs.Close()

	c := NewClient(rs.URL, "test-key")

	date := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	receipt, err := c.CreateAndSendReceipt(context.Background(), testTenant(), dec("1350.00"), "November", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receipt.ClientID != "nc-1" {
		t.Errorf("client id = %q, want nc-1", receipt.ClientID)
	}

	created := rs.createdClient
	if created == nil {
		t.Fatal("client was not created")
	}
	if created.Name != "John Doe" {
		t.Errorf("client name = %q", created.Name)
	}
	if len(created.Contacts) != 1 {
		t.Fatalf("expected 1 contact, got %d", len(created.Contacts))
	}
	contact := created.Contacts[0]
	if contact.FirstName != "John" || contact.LastName != "Doe" {
		t.Errorf("contact name = %q %q, want John Doe", contact.FirstName, contact.LastName)
	}
	if contact.Email != "john@example.com" {
		t.Errorf("contact email = %q", contact.Email)
	}
	if created.City != "Calgary" || created.State != "AB" {
		t.Errorf("address = %q %q, want Calgary AB", created.City, created.State)
	}
}

// TestCreateAndSendReceipt_NoParking verifies tenants without a parking fee
// get a single charge line.
func TestCreateAndSendReceipt_NoParking(t *testing.T) {
	rs := newReceiptServer(t)
	defer rs.Close()
	rs.knownClients = `[{"id": "nc-9"}]`

	tenant := testTenant()
	tenant.ParkingFee = decimal.Zero

	c := NewClient(rs.URL, "test-key")

	date := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.CreateAndSendReceipt(context.Background(), tenant, dec("1200.00"), "November", date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rs.invoice.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(rs.invoice.LineItems))
	}
	if rs.invoice.LineItems[0].ProductKey != "RENT" {
		t.Errorf("line = %+v, want RENT", rs.invoice.LineItems[0])
	}
}

// TestCreateAndSendReceipt_InvoiceFailure verifies a failed invoice creation
// aborts the sequence before payment and email.
func TestCreateAndSendReceipt_InvoiceFailure(t *testing.T) {
	rs := newReceiptServer(t)
	defer rs.Close()
	rs.knownClients = `[{"id": "nc-9"}]`
	rs.invoiceStatus = http.StatusUnprocessableEntity

	c := NewClient(rs.URL, "test-key")

	date := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.CreateAndSendReceipt(context.Background(), testTenant(), dec("1350.00"), "November", date); err == nil {
		t.Fatal("expected error for failed invoice creation, got nil")
	}

	if rs.payment != nil {
		t.Error("payment should not be recorded after invoice failure")
	}
	if len(rs.emailed) != 0 {
		t.Error("email should not be sent after invoice failure")
	}
}

// TestPublicNotes verifies the receipt title with and without a unit.
func TestPublicNotes(t *testing.T) {
	if got := publicNotes("101", "November"); got != "Rent Receipt (Unit 101) for November" {
		t.Errorf("publicNotes = %q", got)
	}
	if got := publicNotes("", "November"); got != "Rent Receipt for November" {
		t.Errorf("publicNotes = %q", got)
	}
}
