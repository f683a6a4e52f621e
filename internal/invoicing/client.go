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

// Package invoicing issues rent receipts through an Invoice Ninja v5
// instance: resolve the billing client, create the invoice, record the
// payment against it, and email it to the tenant.
package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentflow/reconciler/internal/models"
)

const requestTimeout = 30 * time.Second

// Client talks to the Invoice Ninja v5 REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates an invoicing client for the instance at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// LineItem is one charge line on an invoice.
type LineItem struct {
	ProductKey string  `json:"product_key"`
	Notes      string  `json:"notes"`
	Quantity   int     `json:"quantity"`
	Cost       float64 `json:"cost"`
}

type contact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type clientPayload struct {
	Name       string    `json:"name"`
	Contacts   []contact `json:"contacts"`
	Address1   string    `json:"address1"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
}

type invoicePayload struct {
	ClientID        string     `json:"client_id"`
	Date            string     `json:"date"`
	DueDate         string     `json:"due_date"`
	LineItems       []LineItem `json:"line_items"`
	PublicNotes     string     `json:"public_notes"`
	AutoBillEnabled bool       `json:"auto_bill_enabled"`
}

type paymentPayload struct {
	Invoices []paymentInvoice `json:"invoices"`
	Date     string           `json:"date"`
	TypeID   string           `json:"type_id"`
}

type paymentInvoice struct {
	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
}

type ninjaClient struct {
	ID string `json:"id"`
}

type ninjaInvoice struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// CreateAndSendReceipt runs the full receipt sequence for one reconciled
// payment: resolve or create the billing client, create a paid invoice for
// the period, and email it. Any step's failure aborts the sequence; the
// caller decides retry semantics.
func (c *Client) CreateAndSendReceipt(ctx context.Context, tenant *models.Tenant, amount decimal.Decimal, period string, paymentDate time.Time) (*models.Receipt, error) {
	clientID, err := c.getOrCreateClient(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("resolve billing client: %w", err)
	}

	inv, err := c.createInvoice(ctx, clientID, lineItems(tenant, period), paymentDate, publicNotes(tenant.Unit, period))
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	if err := c.markPaid(ctx, inv.ID, amount, paymentDate); err != nil {
		return nil, fmt.Errorf("mark invoice %s paid: %w", inv.ID, err)
	}

	if err := c.emailInvoice(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("email invoice %s: %w", inv.ID, err)
	}

	slog.Info("receipt issued",
		"tenant", tenant.Name,
		"invoice_id", inv.ID,
		"invoice_number", inv.Number,
		"period", period)

	return &models.Receipt{
		ClientID:      clientID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
	}, nil
}

// getOrCreateClient finds the billing client by the tenant's email or
// creates one carrying the tenant's contact and property address.
func (c *Client) getOrCreateClient(ctx context.Context, tenant *models.Tenant) (string, error) {
	existing, err := c.findClientByEmail(ctx, tenant.Email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	created, err := c.createClient(ctx, tenant)
	if err != nil {
		return "", err
	}
	slog.Info("created billing client", "tenant", tenant.Name, "client_id", created.ID)
	return created.ID, nil
}

func (c *Client) findClientByEmail(ctx context.Context, email string) (*ninjaClient, error) {
	var wrap struct {
		Data []ninjaClient `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/clients?email="+url.QueryEscape(email), nil, &wrap); err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	if len(wrap.Data) == 0 {
		return nil, nil
	}
	return &wrap.Data[0], nil
}

func (c *Client) createClient(ctx context.Context, tenant *models.Tenant) (*ninjaClient, error) {
	first, last := splitName(tenant.Name)
	payload := clientPayload{
		Name: tenant.Name,
		Contacts: []contact{{
			FirstName: first,
			LastName:  last,
			Email:     tenant.Email,
			Phone:     tenant.Phone,
		}},
	}
	if p := tenant.Property; p != nil {
		payload.Address1 = p.Address
		payload.City = p.City
		payload.State = p.Province
		payload.PostalCode = p.PostalCode
	}

	var wrap struct {
		Data ninjaClient `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/clients", payload, &wrap); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &wrap.Data, nil
}

func (c *Client) createInvoice(ctx context.Context, clientID string, items []LineItem, date time.Time, notes string) (*ninjaInvoice, error) {
	day := date.Format("2006-01-02")
	payload := invoicePayload{
		ClientID:    clientID,
		Date:        day,
		DueDate:     day,
		LineItems:   items,
		PublicNotes: notes,
	}

	var wrap struct {
		Data ninjaInvoice `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/invoices", payload, &wrap); err != nil {
		return nil, err
	}
	return &wrap.Data, nil
}

// markPaid records a manual payment for the invoice's full amount. Type id
// "1" is Invoice Ninja's cash/manual payment type.
func (c *Client) markPaid(ctx context.Context, invoiceID string, amount decimal.Decimal, date time.Time) error {
	payload := paymentPayload{
		Invoices: []paymentInvoice{{InvoiceID: invoiceID, Amount: amount.InexactFloat64()}},
		Date:     date.Format("2006-01-02"),
		TypeID:   "1",
	}
	return c.do(ctx, http.MethodPost, "/payments", payload, nil)
}

func (c *Client) emailInvoice(ctx context.Context, invoiceID string) error {
	return c.do(ctx, http.MethodPost, "/invoices/"+invoiceID+"/email", nil, nil)
}

// lineItems builds the charge lines: rent always, parking when the tenant
// pays for it.
func lineItems(tenant *models.Tenant, period string) []LineItem {
	var items []LineItem
	if tenant.MonthlyRent.IsPositive() {
		items = append(items, LineItem{
			ProductKey: "RENT",
			Notes:      "Monthly Rent - " + period,
			Quantity:   1,
			Cost:       tenant.MonthlyRent.InexactFloat64(),
		})
	}
	if tenant.ParkingFee.IsPositive() {
		items = append(items, LineItem{
			ProductKey: "PARKING",
			Notes:      "Parking Fee - " + period,
			Quantity:   1,
			Cost:       tenant.ParkingFee.InexactFloat64(),
		})
	}
	return items
}

func publicNotes(unit, period string) string {
	if unit != "" {
		return fmt.Sprintf("Rent Receipt (Unit %s) for %s", unit, period)
	}
	return fmt.Sprintf("Rent Receipt for %s", period)
}

func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Token", c.apiKey)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		slog.Error("invoice ninja API error", "path", path, "status", resp.StatusCode, "body", string(data))
		return fmt.Errorf("invoice ninja returned HTTP %d", resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
