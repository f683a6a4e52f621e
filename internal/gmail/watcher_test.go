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

package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const paymentHTML = `<html><body>
<p>Hi PARKDALE PROPERTIES,</p>
<p>john DOE has sent you money and it has been automatically deposited.</p>
<p>Message: November rent</p>
<p>Date: November 1, 2024</p>
<p>Reference Number: CA1xyz</p>
</body></html>`

func paymentMessage(id string) Message {
	return Message{
		ID: id,
		Payload: Payload{
			MimeType: "text/html",
			Headers: []Header{
				{Name: "Subject", Value: "Interac e-Transfer: You've received $1,350.00 from john DOE"},
				{Name: "Date", Value: "Fri, 01 Nov 2024 16:30:00 +0000 (UTC)"},
			},
			Body: Body{Data: b64(paymentHTML)},
		},
	}
}

// TestBuildQuery verifies the search combines the subject filter, the
// trusted senders, and the processed-label exclusion.
func TestBuildQuery(t *testing.T) {
	got := buildQuery([]string{"notify@payments.interac.ca", "cibc.com"})
	want := `subject:"Interac e-Transfer: You've received" ` +
		`(from:notify@payments.interac.ca OR from:cibc.com) -label:RentFlow_Processed`
	if got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

// TestFetchNewPayments verifies matched messages are fetched and parsed, and
// that non-payment matches are skipped without error.
func TestFetchNewPayments(t *testing.T) {
	newsletter := Message{
		ID: "m2",
		Payload: Payload{
			MimeType: "text/plain",
			Headers: []Header{
				{Name: "Subject", Value: "Your monthly statement is ready"},
			},
			Body: Body{Data: b64("nothing to see")},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/messages":
			w.Write([]byte(`{"messages": [{"id": "m1"}, {"id": "m2"}]}`))
		case "/messages/m1":
			data, _ := json.Marshal(paymentMessage("m1"))
			w.Write(data)
		case "/messages/m2":
			data, _ := json.Marshal(newsletter)
			w.Write(data)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	w := NewWatcher(WatcherConfig{
		Client: NewClient(server.Client(), server.URL),
	})

	payments, err := w.FetchNewPayments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(payments) != 1 {
		t.Fatalf("expected 1 parsed payment, got %d", len(payments))
	}

	p := payments[0]
	if p.EmailID != "m1" {
		t.Errorf("email id = %q, want m1", p.EmailID)
	}
	if p.SenderName != "John Doe" {
		t.Errorf("sender = %q, want John Doe", p.SenderName)
	}
	if p.Amount.String() != "1350" {
		t.Errorf("amount = %s, want 1350", p.Amount)
	}
	if p.MessageLine != "November rent" {
		t.Errorf("memo = %q, want November rent", p.MessageLine)
	}
	if got := p.PaymentDate.Format("2006-01-02"); got != "2024-11-01" {
		t.Errorf("payment date = %s, want 2024-11-01", got)
	}
}

// TestFetchNewPayments_Empty verifies an empty search result yields no
// payments and no error.
func TestFetchNewPayments_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	w := NewWatcher(WatcherConfig{
		Client: NewClient(server.Client(), server.URL),
	})

	payments, err := w.FetchNewPayments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("expected no payments, got %d", len(payments))
	}
}

// TestFetchNewPayments_SearchError verifies a mailbox failure is returned to
// the caller rather than swallowed.
func TestFetchNewPayments_SearchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	w := NewWatcher(WatcherConfig{
		Client: NewClient(server.Client(), server.URL),
	})

	if _, err := w.FetchNewPayments(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 503, got nil")
	}
}

// TestFetchSince verifies the sweep window adds an after: clause to the
// standard query.
func TestFetchSince(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	w := NewWatcher(WatcherConfig{
		Client: NewClient(server.Client(), server.URL),
	})

	if _, err := w.FetchSince(context.Background(), "2024/10/01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasSuffix(gotQuery, " after:2024/10/01") {
		t.Errorf("query %q missing after: clause", gotQuery)
	}
	if !strings.Contains(gotQuery, "-label:RentFlow_Processed") {
		t.Errorf("query %q missing label exclusion", gotQuery)
	}
}

// TestWatcherMarkProcessed verifies the consume path labels the message.
func TestWatcherMarkProcessed(t *testing.T) {
	var modified bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/labels":
			w.Write([]byte(`{"labels": [{"id": "Label_7", "name": "RentFlow_Processed"}]}`))
		case "/messages/m1/modify":
			modified = true
			w.Write([]byte(`{"id": "m1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	w := NewWatcher(WatcherConfig{
		Client: NewClient(server.Client(), server.URL),
	})

	if err := w.MarkProcessed(context.Background(), "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !modified {
		t.Error("expected the message to be labelled")
	}
}
