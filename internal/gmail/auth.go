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
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
)

// gmailScope grants read plus label-modify access, the minimum the watcher
// needs.
const gmailScope = "https://www.googleapis.com/auth/gmail.modify"

// googleEndpoint is the OAuth2 endpoint pair for Google accounts.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// credentialsFile mirrors the Google OAuth client-secret JSON for an
// "installed" application.
type credentialsFile struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
}

// NewHTTPClient builds an authorized Gmail HTTP client from a client-secret
// file and a stored token. The token file holds an oauth2.Token in JSON and
// must carry a refresh token from a one-time interactive consent; refreshes
// after that are automatic.
func NewHTTPClient(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	credData, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	var creds credentialsFile
	if err := json.Unmarshal(credData, &creds); err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}
	if creds.Installed.ClientID == "" || creds.Installed.ClientSecret == "" {
		return nil, fmt.Errorf("gmail credentials %s missing installed client id or secret", credentialsPath)
	}

	tokenData, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read gmail token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("parse gmail token: %w", err)
	}

	conf := &oauth2.Config{
		ClientID:     creds.Installed.ClientID,
		ClientSecret: creds.Installed.ClientSecret,
		Endpoint:     googleEndpoint,
		Scopes:       []string{gmailScope},
	}
	return conf.Client(ctx, &token), nil
}
