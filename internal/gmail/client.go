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

// Package gmail implements the mailbox collaborator against the Gmail REST
// API: searching for payment notifications, fetching message content, and
// managing the processed label that marks an email consumed.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

const (
	// DefaultBaseURL is the Gmail API root scoped to the authorized user.
	DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

	// ProcessedLabel marks emails whose reconciliation reached a terminal
	// outcome. The watcher's search query excludes it.
	ProcessedLabel = "RentFlow_Processed"
)

// Client talks to the Gmail REST API for a single mailbox.
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu      sync.Mutex
	labelID string
}

// NewClient creates a Gmail client. The httpClient must already handle
// authentication (e.g. an oauth2 token-source client).
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// messageList is the messages.list response.
type messageList struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// labelList is the labels.list response.
type labelList struct {
	Labels []labelInfo `json:"labels"`
}

type labelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Search returns the ids of messages matching the query, up to max.
func (c *Client) Search(ctx context.Context, query string, max int) ([]string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(max))

	var list messageList
	if err := c.get(ctx, "/messages?"+params.Encode(), &list); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// GetMessage fetches a message with its full MIME payload.
func (c *Client) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	if err := c.get(ctx, "/messages/"+id+"?format=full", &msg); err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return &msg, nil
}

// EnsureLabel finds or creates the processed label and caches its id for the
// lifetime of the client.
func (c *Client) EnsureLabel(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.labelID != "" {
		return c.labelID, nil
	}

	var list labelList
	if err := c.get(ctx, "/labels", &list); err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range list.Labels {
		if l.Name == ProcessedLabel {
			c.labelID = l.ID
			return l.ID, nil
		}
	}

	var created labelInfo
	payload := map[string]string{
		"name":                  ProcessedLabel,
		"labelListVisibility":   "labelShow",
		"messageListVisibility": "show",
	}
	if err := c.post(ctx, "/labels", payload, &created); err != nil {
		return "", fmt.Errorf("create label: %w", err)
	}

	slog.Info("created processed label", "label", ProcessedLabel, "label_id", created.ID)
	c.labelID = created.ID
	return created.ID, nil
}

// MarkProcessed adds the processed label to a message so subsequent searches
// skip it.
func (c *Client) MarkProcessed(ctx context.Context, messageID string) error {
	labelID, err := c.EnsureLabel(ctx)
	if err != nil {
		return err
	}

	payload := map[string][]string{"addLabelIds": {labelID}}
	if err := c.post(ctx, "/messages/"+messageID+"/modify", payload, nil); err != nil {
		return fmt.Errorf("modify message %s: %w", messageID, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("gmail API error", "path", path, "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("gmail API returned HTTP %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("gmail API error", "path", path, "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("gmail API returned HTTP %d", resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
