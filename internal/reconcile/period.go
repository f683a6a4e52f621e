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

import (
	"regexp"
	"strings"
	"time"

	"github.com/rentflow/reconciler/internal/models"
)

// ledgerPeriodLayout is the "YYYY-MM" form the tenant ledger stores.
const ledgerPeriodLayout = "2006-01"

// periodLabelLayout is the human-readable form used on receipts.
const periodLabelLayout = "January 2006"

var rentWordPattern = regexp.MustCompile(`(?i)rent`)

// ResolvePeriod determines the billing period label a payment applies to.
// First applicable rule wins:
//
//  1. The sender's memo with the word "rent" removed, when non-empty
//     ("November Rent" resolves to "November").
//  2. The tenant's next due period rendered as a month name plus year.
//  3. The payment date rendered as a month name plus year.
func ResolvePeriod(p *models.ParsedPayment, tenant *models.Tenant) string {
	if p.MessageLine != "" {
		label := strings.TrimSpace(rentWordPattern.ReplaceAllString(p.MessageLine, ""))
		if label != "" {
			return label
		}
	}

	if tenant.NextDueMonth != "" {
		if due, err := time.Parse(ledgerPeriodLayout, tenant.NextDueMonth); err == nil {
			return due.Format(periodLabelLayout)
		}
	}

	return p.PaymentDate.Format(periodLabelLayout)
}

// BumpMonth advances a "YYYY-MM" period by exactly one calendar month,
// wrapping December into January of the following year. An empty or
// malformed input bumps from the current calendar month instead of erroring.
func BumpMonth(period string) string {
	return bumpMonthFrom(period, time.Now())
}

func bumpMonthFrom(period string, now time.Time) string {
	base, err := time.Parse(ledgerPeriodLayout, period)
	if err != nil {
		base = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(base.Year(), base.Month()+1, 1, 0, 0, 0, 0, time.UTC).Format(ledgerPeriodLayout)
}
