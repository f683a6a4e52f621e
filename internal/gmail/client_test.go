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
	"testing"
)

// TestSearch verifies the query and page size reach the API and the matched
// ids come back in order.
func TestSearch(t *testing.T) {
	var gotQuery, gotMax string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotMax = r.URL.Query().Get("maxResults")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages": [{"id": "m1"}, {"id": "m2"}]}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	ids, err := c.Search(context.Background(), "subject:rent", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery != "subject:rent" {
		t.Errorf("query = %q, want %q", gotQuery, "subject:rent")
	}
	if gotMax != "20" {
		t.Errorf("maxResults = %q, want %q", gotMax, "20")
	}
	if len(ids) != 2 || ids[0] != "m1" || ids[1] != "m2" {
		t.Errorf("ids = %v, want [m1 m2]", ids)
	}
}

// TestSearch_NoMatches verifies an empty mailbox result is not an error.
func TestSearch_NoMatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	ids, err := c.Search(context.Background(), "subject:rent", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

// TestSearch_HTTPError verifies API failures surface as errors.
func TestSearch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	if _, err := c.Search(context.Background(), "subject:rent", 20); err == nil {
		t.Fatal("expected error for HTTP 403, got nil")
	}
}

// TestGetMessage verifies the full-format fetch and payload decoding.
func TestGetMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages/m1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "full" {
			t.Errorf("format = %q, want full", r.URL.Query().Get("format"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "m1",
			"payload": {
				"mimeType": "text/plain",
				"headers": [{"name": "Subject", "value": "INTERAC e-Transfer: You've received money"}],
				"body": {"data": "aGVsbG8="}
			}
		}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	msg, err := c.GetMessage(context.Background(), "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Subject() != "INTERAC e-Transfer: You've received money" {
		t.Errorf("subject = %q", msg.Subject())
	}
	if msg.BodyText() != "hello" {
		t.Errorf("body = %q, want %q", msg.BodyText(), "hello")
	}
}

// TestEnsureLabel_Existing verifies a present label is found and cached so a
// second call makes no API request.
func TestEnsureLabel_Existing(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"labels": [
			{"id": "INBOX", "name": "INBOX"},
			{"id": "Label_7", "name": "RentFlow_Processed"}
		]}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	id, err := c.EnsureLabel(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "Label_7" {
		t.Errorf("label id = %q, want Label_7", id)
	}

	if _, err := c.EnsureLabel(context.Background()); err != nil {
		t.Fatalf("unexpected error on cached call: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 API call, got %d", calls)
	}
}

// TestEnsureLabel_Creates verifies the label is created when absent.
func TestEnsureLabel_Creates(t *testing.T) {
	var createdName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"labels": [{"id": "INBOX", "name": "INBOX"}]}`))
		case http.MethodPost:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			createdName = body["name"]
			w.Write([]byte(`{"id": "Label_9", "name": "RentFlow_Processed"}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	id, err := c.EnsureLabel(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "Label_9" {
		t.Errorf("label id = %q, want Label_9", id)
	}
	if createdName != ProcessedLabel {
		t.Errorf("created label %q, want %q", createdName, ProcessedLabel)
	}
}

// TestMarkProcessed verifies the modify call adds the processed label.
func TestMarkProcessed(t *testing.T) {
	var modified string
	var addedLabels []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/labels":
			w.Write([]byte(`{"labels": [{"id": "Label_7", "name": "RentFlow_Processed"}]}`))
		case "/messages/m1/modify":
			modified = r.URL.Path
			var body map[string][]string
			json.NewDecoder(r.Body).Decode(&body)
			addedLabels = body["addLabelIds"]
			w.Write([]byte(`{"id": "m1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.Client(), server.URL)

	if err := c.MarkProcessed(context.Background(), "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if modified != "/messages/m1/modify" {
		t.Errorf("modify path = %q", modified)
	}
	if len(addedLabels) != 1 || addedLabels[0] != "Label_7" {
		t.Errorf("addLabelIds = %v, want [Label_7]", addedLabels)
	}
}
