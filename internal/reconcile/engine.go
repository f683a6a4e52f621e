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

// Package reconcile implements the payment reconciliation workflow: duplicate
// check, tenant match, amount validation, billing-period resolution, and the
// record-and-receipt sequence, with at-least-once retry semantics keyed on
// the source email id.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentflow/reconciler/internal/metrics"
	"github.com/rentflow/reconciler/internal/models"
)

// DefaultOpTimeout bounds every collaborator call made by the engine.
const DefaultOpTimeout = 30 * time.Second

// amountTolerance is the absolute tolerance when comparing a received amount
// to the tenant's expected charge. One cent, in either direction.
var amountTolerance = decimal.New(1, -2)

// Mailbox supplies parsed payment notifications and records consumption.
type Mailbox interface {
	FetchNewPayments(ctx context.Context) ([]models.ParsedPayment, error)
	MarkProcessed(ctx context.Context, emailID string) error
}

// TenantDirectory resolves tenants and advances their ledger state.
type TenantDirectory interface {
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	UpdateLedger(ctx context.Context, tenantID string, lastInvoiceNo int, nextDueMonth, invoiceClientID string) error
}

// PaymentLedger persists reconciled payments, keyed uniquely by email id.
type PaymentLedger interface {
	ExistsByEmailID(ctx context.Context, emailID string) (bool, error)
	Insert(ctx context.Context, payment *models.Payment) (string, error)
	MarkReceiptSent(ctx context.Context, paymentID string) error
}

// ReceiptIssuer creates, marks paid, and emails a receipt invoice.
type ReceiptIssuer interface {
	CreateAndSendReceipt(ctx context.Context, tenant *models.Tenant, amount decimal.Decimal, period string, paymentDate time.Time) (*models.Receipt, error)
}

// Notifier alerts the operator about payments needing manual review.
// Best-effort: failures are logged and never change an outcome.
type Notifier interface {
	NotifyOperator(ctx context.Context, subject, details string) error
}

// Engine drives parsed payments through the reconciliation state machine.
type Engine struct {
	mailbox  Mailbox
	tenants  TenantDirectory
	payments PaymentLedger
	invoicer ReceiptIssuer
	notifier Notifier
	timeout  time.Duration
}

// EngineConfig holds the engine's collaborators.
type EngineConfig struct {
	Mailbox  Mailbox
	Tenants  TenantDirectory
	Payments PaymentLedger
	Invoicer ReceiptIssuer
	Notifier Notifier

	// OpTimeout bounds each collaborator call. Defaults to DefaultOpTimeout.
	OpTimeout time.Duration
}

// NewEngine creates a reconciliation engine.
func NewEngine(cfg EngineConfig) *Engine {
	timeout := cfg.OpTimeout
	if timeout == 0 {
		timeout = DefaultOpTimeout
	}
	return &Engine{
		mailbox:  cfg.Mailbox,
		tenants:  cfg.Tenants,
		payments: cfg.Payments,
		invoicer: cfg.Invoicer,
		notifier: cfg.Notifier,
		timeout:  timeout,
	}
}

// Run fetches the current batch of unprocessed notifications and reconciles
// them. A mailbox-level fetch failure yields a batch carrying a single fatal
// error and nothing else; nothing is consumed, so the next cycle retries.
func (e *Engine) Run(ctx context.Context) *BatchResult {
	payments, err := e.fetchNewPayments(ctx)
	if err != nil {
		slog.Error("failed to fetch payment notifications", "error", err)
		return &BatchResult{Errors: []Outcome{{
			Status: StatusFatal,
			Reason: fmt.Sprintf("fetch notifications: %v", err),
		}}}
	}

	metrics.IncrementNotificationsFetched(len(payments))
	return e.ProcessAll(ctx, payments)
}

// ProcessAll reconciles a batch strictly sequentially. One payment's fatal
// outcome never aborts the rest. Cancellation is honoured between items:
// payments not yet started stay unconsumed and are picked up next cycle.
func (e *Engine) ProcessAll(ctx context.Context, payments []models.ParsedPayment) *BatchResult {
	result := &BatchResult{}

	for i := range payments {
		select {
		case <-ctx.Done():
			slog.Info("reconcile batch cancelled", "remaining", len(payments)-i)
			return result
		default:
		}

		p := &payments[i]
		outcome := e.Process(ctx, p)
		metrics.RecordOutcome(string(outcome.Status))

		switch outcome.Status {
		case StatusSuccess:
			result.Processed = append(result.Processed, outcome)
		case StatusSkipped:
			result.Skipped = append(result.Skipped, outcome)
		default:
			result.Errors = append(result.Errors, outcome)
		}

		if outcome.Status == StatusValidationFailed {
			e.alertOperator(ctx, p, outcome.Reason)
		}

		if outcome.Consumable() {
			e.markProcessed(ctx, p.EmailID)
		}
	}

	return result
}

// Process runs one parsed payment through the state machine and classifies
// the result. Collaborator failures become Fatal outcomes; no error escapes.
func (e *Engine) Process(ctx context.Context, p *models.ParsedPayment) Outcome {
	exists, err := e.existsByEmailID(ctx, p.EmailID)
	if err != nil {
		return e.fatal(p, fmt.Errorf("duplicate check: %w", err))
	}
	if exists {
		slog.Info("duplicate payment notification skipped",
			"email_id", p.EmailID,
			"sender", p.SenderName,
		)
		return Outcome{
			Status:  StatusSkipped,
			EmailID: p.EmailID,
			Tenant:  p.SenderName,
			Amount:  p.Amount,
			Reason:  "duplicate: payment already recorded for this email",
		}
	}

	tenant, err := e.findTenant(ctx, p.SenderName)
	if err != nil {
		return e.fatal(p, fmt.Errorf("tenant lookup: %w", err))
	}
	if tenant == nil {
		return e.validationFailed(p, fmt.Sprintf("no tenant matches sender %q", p.SenderName))
	}

	if reason, ok := validateAmount(p.Amount, tenant); !ok {
		return e.validationFailed(p, reason)
	}

	period := ResolvePeriod(p, tenant)

	receipt, err := e.issueReceipt(ctx, tenant, p, period)
	if err != nil {
		return e.fatal(p, fmt.Errorf("issue receipt: %w", err))
	}
	metrics.IncrementReceiptsIssued()

	paymentID, err := e.recordPayment(ctx, tenant, p, period, receipt)
	if err != nil {
		return e.fatal(p, fmt.Errorf("record payment: %w", err))
	}

	if err := e.advanceLedger(ctx, tenant, receipt); err != nil {
		return e.fatal(p, fmt.Errorf("advance tenant ledger: %w", err))
	}

	if err := e.markReceiptSent(ctx, paymentID); err != nil {
		return e.fatal(p, fmt.Errorf("mark receipt sent: %w", err))
	}

	slog.Info("payment reconciled",
		"email_id", p.EmailID,
		"tenant", tenant.Name,
		"amount", p.Amount,
		"period", period,
		"invoice_number", receipt.InvoiceNumber,
	)

	return Outcome{
		Status:        StatusSuccess,
		EmailID:       p.EmailID,
		Tenant:        tenant.Name,
		Amount:        p.Amount,
		Period:        period,
		PaymentID:     paymentID,
		ClientID:      receipt.ClientID,
		InvoiceID:     receipt.InvoiceID,
		InvoiceNumber: receipt.InvoiceNumber,
	}
}

// validateAmount checks the received amount against rent plus parking within
// a one-cent absolute tolerance. Under- and over-payment are rejected
// identically; there is no partial-payment handling.
func validateAmount(received decimal.Decimal, tenant *models.Tenant) (string, bool) {
	expected := tenant.ExpectedCharge()
	if received.Sub(expected).Abs().LessThanOrEqual(amountTolerance) {
		return "", true
	}

	reason := fmt.Sprintf("amount mismatch: received $%s, expected $%s (rent $%s + parking $%s)",
		received.StringFixed(2), expected.StringFixed(2),
		tenant.MonthlyRent.StringFixed(2), tenant.ParkingFee.StringFixed(2))
	return reason, false
}

func (e *Engine) fatal(p *models.ParsedPayment, err error) Outcome {
	slog.Error("payment reconciliation failed, will retry next cycle",
		"email_id", p.EmailID,
		"sender", p.SenderName,
		"error", err,
	)
	return Outcome{
		Status:  StatusFatal,
		EmailID: p.EmailID,
		Tenant:  p.SenderName,
		Amount:  p.Amount,
		Reason:  err.Error(),
	}
}

func (e *Engine) validationFailed(p *models.ParsedPayment, reason string) Outcome {
	slog.Warn("payment failed validation",
		"email_id", p.EmailID,
		"sender", p.SenderName,
		"reason", reason,
	)
	return Outcome{
		Status:  StatusValidationFailed,
		EmailID: p.EmailID,
		Tenant:  p.SenderName,
		Amount:  p.Amount,
		Reason:  reason,
	}
}

// alertOperator tells the landlord a payment needs manual review. A notifier
// failure is logged and otherwise ignored.
func (e *Engine) alertOperator(ctx context.Context, p *models.ParsedPayment, reason string) {
	if e.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	subject := fmt.Sprintf("Payment needs review: %s", p.SenderName)
	details := fmt.Sprintf("E-transfer %s from %s for $%s could not be reconciled: %s",
		p.EmailID, p.SenderName, p.Amount.StringFixed(2), reason)

	if err := e.notifier.NotifyOperator(ctx, subject, details); err != nil {
		slog.Warn("operator notification failed", "email_id", p.EmailID, "error", err)
	}
}

// markProcessed labels the source email consumed. A failure here is logged
// and left alone: the email resurfaces next cycle and the duplicate check
// turns the reprocess into a skip.
func (e *Engine) markProcessed(ctx context.Context, emailID string) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.mailbox.MarkProcessed(ctx, emailID); err != nil {
		slog.Warn("failed to mark notification processed", "email_id", emailID, "error", err)
	}
}

func (e *Engine) fetchNewPayments(ctx context.Context) ([]models.ParsedPayment, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.mailbox.FetchNewPayments(ctx)
}

func (e *Engine) existsByEmailID(ctx context.Context, emailID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.payments.ExistsByEmailID(ctx, emailID)
}

func (e *Engine) findTenant(ctx context.Context, name string) (*models.Tenant, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.tenants.FindByName(ctx, name)
}

func (e *Engine) issueReceipt(ctx context.Context, tenant *models.Tenant, p *models.ParsedPayment, period string) (*models.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.invoicer.CreateAndSendReceipt(ctx, tenant, p.Amount, period, p.PaymentDate)
}

func (e *Engine) recordPayment(ctx context.Context, tenant *models.Tenant, p *models.ParsedPayment, period string, receipt *models.Receipt) (string, error) {
	notes := "Auto-processed from email. Message: N/A"
	if p.MessageLine != "" {
		notes = "Auto-processed from email. Message: " + p.MessageLine
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.payments.Insert(ctx, &models.Payment{
		TenantID:    tenant.ID,
		Amount:      p.Amount,
		PaymentDate: p.PaymentDate,
		Period:      period,
		Status:      "completed",
		EmailID:     p.EmailID,
		InvoiceID:   receipt.InvoiceID,
		Notes:       notes,
	})
}

// advanceLedger bumps the tenant's invoice sequence by one and rolls the due
// period forward one month. The invoicing client id travels along; the store
// only writes it when non-empty.
func (e *Engine) advanceLedger(ctx context.Context, tenant *models.Tenant, receipt *models.Receipt) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.tenants.UpdateLedger(ctx, tenant.ID,
		tenant.LastInvoiceNo+1,
		BumpMonth(tenant.NextDueMonth),
		receipt.ClientID,
	)
}
