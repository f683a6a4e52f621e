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
	"encoding/base64"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// Message is a Gmail message in format=full.
type Message struct {
	ID           string  `json:"id"`
	ThreadID     string  `json:"threadId"`
	InternalDate string  `json:"internalDate"`
	Payload      Payload `json:"payload"`
}

// Payload is one node of the message's MIME tree.
type Payload struct {
	MimeType string    `json:"mimeType"`
	Headers  []Header  `json:"headers"`
	Body     Body      `json:"body"`
	Parts    []Payload `json:"parts"`
}

// Body holds a part's base64url content.
type Body struct {
	Data string `json:"data"`
}

// Header is a single RFC 5322 header.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Subject returns the Subject header, or "" if absent.
func (m *Message) Subject() string {
	return m.header("Subject")
}

// ReceivedAt returns when the message arrived: the Date header if it parses,
// otherwise Gmail's internal timestamp, otherwise now.
func (m *Message) ReceivedAt() time.Time {
	if raw := m.header("Date"); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t
		}
	}
	if m.InternalDate != "" {
		if ms, err := strconv.ParseInt(m.InternalDate, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
	}
	return time.Now()
}

// BodyText returns the decoded message body. Interac notifications carry
// their fields in the HTML part, so text/html is preferred and text/plain is
// the fallback.
func (m *Message) BodyText() string {
	if s := findPart(&m.Payload, "text/html"); s != "" {
		return s
	}
	return findPart(&m.Payload, "text/plain")
}

func (m *Message) header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// findPart walks the MIME tree depth-first for the first part of the wanted
// type that has body data.
func findPart(p *Payload, mimeType string) string {
	if strings.EqualFold(p.MimeType, mimeType) && p.Body.Data != "" {
		if s := decodeBody(p.Body.Data); s != "" {
			return s
		}
	}
	for i := range p.Parts {
		if s := findPart(&p.Parts[i], mimeType); s != "" {
			return s
		}
	}
	return ""
}

// decodeBody handles both padded and unpadded base64url, which the API mixes.
func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}
