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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the reconciler service.
type Config struct {
	// Postgres
	DatabaseURL string

	// Redis
	RedisURL    string
	AlertsQueue string

	// Gmail
	GmailCredentialsPath string
	GmailTokenPath       string
	TrustedSenders       []string
	MaxResults           int

	// Invoice Ninja
	InvoiceNinjaURL    string
	InvoiceNinjaAPIKey string

	// Operator alerts
	LandlordEmail string

	// Reconciliation
	PollInterval time.Duration
	OpTimeout    time.Duration

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Alerts string `yaml:"alerts"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Gmail struct {
		CredentialsPath string   `yaml:"credentials_path"`
		TokenPath       string   `yaml:"token_path"`
		TrustedSenders  []string `yaml:"trusted_senders"`
		MaxResults      int      `yaml:"max_results"`
	} `yaml:"gmail"`
	InvoiceNinja struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"invoice_ninja"`
	LandlordEmail string `yaml:"landlord_email"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables. A missing file is not an error; the environment
// and defaults then carry the whole config.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	case os.IsNotExist(err):
		// No file; env vars and defaults below take over.
	default:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	cfg := &Config{
		DatabaseURL:          firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		RedisURL:             firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		AlertsQueue:          firstNonEmpty(raw.Redis.Queues.Alerts, envOrDefault("ALERTS_QUEUE", "alerts")),
		GmailCredentialsPath: firstNonEmpty(raw.Gmail.CredentialsPath, envOrDefault("GMAIL_CREDENTIALS_PATH", "credentials/gmail_credentials.json")),
		GmailTokenPath:       firstNonEmpty(raw.Gmail.TokenPath, envOrDefault("GMAIL_TOKEN_PATH", "credentials/gmail_token.json")),
		TrustedSenders:       raw.Gmail.TrustedSenders,
		MaxResults:           raw.Gmail.MaxResults,
		InvoiceNinjaURL:      firstNonEmpty(raw.InvoiceNinja.URL, envOrDefault("INVOICENINJA_URL", "http://invoiceninja:80")),
		InvoiceNinjaAPIKey:   firstNonEmpty(raw.InvoiceNinja.APIKey, os.Getenv("INVOICENINJA_API_KEY")),
		LandlordEmail:        firstNonEmpty(raw.LandlordEmail, os.Getenv("LANDLORD_EMAIL")),
		PollInterval:         envOrDefaultDuration("POLL_INTERVAL", 5*time.Minute),
		OpTimeout:            envOrDefaultDuration("OP_TIMEOUT", 30*time.Second),
		Port:                 envOrDefaultInt("PORT", 8080),
	}

	if len(cfg.TrustedSenders) == 0 {
		cfg.TrustedSenders = splitList(os.Getenv("TRUSTED_SENDERS"))
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = envOrDefaultInt("GMAIL_MAX_RESULTS", 20)
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database.url is required (set DATABASE_URL or database.url in %s)", configPath)
	}
	if cfg.LandlordEmail == "" {
		return nil, fmt.Errorf("landlord_email is required (set LANDLORD_EMAIL or landlord_email in %s)", configPath)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
