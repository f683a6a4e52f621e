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

package reconcile

import "github.com/shopspring/decimal"

// Status classifies the result of processing one parsed payment.
type Status string

const (
	// StatusSuccess: the payment was recorded and a receipt sent.
	StatusSuccess Status = "success"

	// StatusSkipped: a payment with this email id already exists. Benign
	// under at-least-once delivery.
	StatusSkipped Status = "skipped"

	// StatusValidationFailed: no matching tenant or wrong amount. Needs a
	// data fix, so the source email is consumed and the operator alerted
	// rather than retrying forever.
	StatusValidationFailed Status = "validation_failed"

	// StatusFatal: a collaborator call failed. The source email stays
	// unconsumed and the payment is retried on the next poll cycle.
	StatusFatal Status = "fatal"
)

// Outcome is the tagged result of processing one parsed payment. Callers
// switch on Status; Reason is populated for everything except Success.
type Outcome struct {
	Status        Status          `json:"status"`
	EmailID       string          `json:"email_id,omitempty"`
	Tenant        string          `json:"tenant,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Period        string          `json:"period,omitempty"`
	PaymentID     string          `json:"payment_id,omitempty"`
	ClientID      string          `json:"client_id,omitempty"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// Consumable reports whether the source email is safe to mark processed.
// Fatal outcomes must stay unconsumed so the next poll cycle retries them.
func (o Outcome) Consumable() bool {
	return o.Status != StatusFatal
}

// BatchResult buckets the outcomes of one reconcile cycle. Successes land in
// Processed, duplicates in Skipped, and both validation failures and fatal
// collaborator failures in Errors. A mailbox fetch failure appears as a
// single fatal entry in Errors with no EmailID.
type BatchResult struct {
	Processed []Outcome `json:"processed"`
	Errors    []Outcome `json:"errors"`
	Skipped   []Outcome `json:"skipped"`
}

// Counts returns the bucket sizes for logging.
func (r *BatchResult) Counts() (processed, errors, skipped int) {
	return len(r.Processed), len(r.Errors), len(r.Skipped)
}
