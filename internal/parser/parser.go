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

// Package parser extracts structured payment facts from Interac e-Transfer
// notification emails. The subject line carries the amount and sender name;
// the body optionally carries a free-text memo and the transfer date.
//
// Regex extraction is inherently fragile against format drift from the
// notification sender, so the pattern set lives in one place below and each
// pattern has its own test.
package parser

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/rentflow/reconciler/internal/models"
)

// Pattern set for the Interac / CIBC notification format (2024 generation).
var (
	// amountPattern matches "received $1,350.00" in the subject. Two fraction
	// digits are required; thousands separators are stripped before conversion.
	amountPattern = regexp.MustCompile(`(?i)received \$([0-9,]+\.[0-9]{2})`)

	// senderPattern captures everything after "from" to the end of the subject.
	senderPattern = regexp.MustCompile(`(?i)from\s+(.+)$`)

	// messagePattern captures the sender's memo from the canonicalized body,
	// up to the next field marker.
	messagePattern = regexp.MustCompile(`(?i)Message:\s*(.+?)\s*(?:Date:|Reference|Sent From:|Amount:)`)

	// datePattern captures "Date: November 1, 2024" (full or 3-letter month).
	datePattern = regexp.MustCompile(`(?i)Date:\s*([A-Za-z]{3,}\s*\d{1,2},\s*\d{4})`)

	markupPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// dateLayouts are tried in order against the captured date text.
var dateLayouts = []string{"January 2, 2006", "Jan 2, 2006"}

// Parse turns one raw notification email into a ParsedPayment. It returns nil
// when the email is not a parseable payment notification (subject missing the
// amount or the sender); that is an expected non-event, not an error. The
// payment date falls back to the calendar date of receivedAt when the body
// carries no parseable date.
func Parse(messageID, subject, body string, receivedAt time.Time) *models.ParsedPayment {
	amount, ok := extractAmount(subject)
	if !ok {
		return nil
	}

	sender, ok := extractSender(subject)
	if !ok {
		return nil
	}

	canonical := canonicalBody(body)

	return &models.ParsedPayment{
		EmailID:     messageID,
		SenderName:  sender,
		Amount:      amount,
		PaymentDate: extractDate(canonical, receivedAt),
		MessageLine: extractMessageLine(canonical),
		RawSubject:  subject,
	}
}

// canonicalBody strips markup and collapses whitespace runs to single spaces.
// All body-level extraction operates on this form.
func canonicalBody(body string) string {
	stripped := markupPattern.ReplaceAllString(body, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(stripped, " "))
}

func extractAmount(subject string) (decimal.Decimal, bool) {
	m := amountPattern.FindStringSubmatch(subject)
	if m == nil {
		return decimal.Decimal{}, false
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, false
	}
	return amount, true
}

func extractSender(subject string) (string, bool) {
	m := senderPattern.FindStringSubmatch(subject)
	if m == nil {
		return "", false
	}

	name := titleCase(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}

// titleCase normalizes a sender name the way the tenant records store it:
// each whitespace-separated token gets an upper-case first letter and a
// lower-case remainder, so "john DOE" becomes "John Doe".
func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		runes := []rune(strings.ToLower(f))
		runes[0] = unicode.ToUpper(runes[0])
		fields[i] = string(runes)
	}
	return strings.Join(fields, " ")
}

func extractMessageLine(body string) string {
	m := messagePattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractDate(body string, receivedAt time.Time) time.Time {
	if m := datePattern.FindStringSubmatch(body); m != nil {
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, m[1]); err == nil {
				return d
			}
		}
	}

	// No parseable date in the body: use the day the email arrived.
	year, month, day := receivedAt.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
