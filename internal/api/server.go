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

// Package api serves the admin surface: property and tenant records, payment
// history, manual reconciliation triggers, health, and metrics.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/rentflow/reconciler/internal/models"
	"github.com/rentflow/reconciler/internal/reconcile"
)

const serviceVersion = "0.1.0"

// PropertyStore is the slice of the property store the API serves.
type PropertyStore interface {
	Create(ctx context.Context, p *models.Property) (*models.Property, error)
	List(ctx context.Context) ([]models.Property, error)
}

// TenantStore is the slice of the tenant store the API serves.
type TenantStore interface {
	Create(ctx context.Context, t *models.Tenant) (*models.Tenant, error)
	FindByID(ctx context.Context, id string) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
}

// PaymentStore is the slice of the payment store the API serves.
type PaymentStore interface {
	List(ctx context.Context, tenantID string, limit int) ([]models.Payment, error)
}

// CycleRunner triggers one reconciliation cycle on demand.
type CycleRunner interface {
	Run(ctx context.Context) *reconcile.BatchResult
}

// ReceiptIssuer sends a manual receipt outside the reconciliation flow.
type ReceiptIssuer interface {
	CreateAndSendReceipt(ctx context.Context, tenant *models.Tenant, amount decimal.Decimal, period string, paymentDate time.Time) (*models.Receipt, error)
}

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the admin API's collaborators.
type Server struct {
	db         Pinger
	redis      Pinger
	properties PropertyStore
	tenants    TenantStore
	payments   PaymentStore
	engine     CycleRunner
	invoicer   ReceiptIssuer
}

// ServerConfig wires the API's dependencies.
type ServerConfig struct {
	DB         Pinger
	Redis      Pinger
	Properties PropertyStore
	Tenants    TenantStore
	Payments   PaymentStore
	Engine     CycleRunner
	Invoicer   ReceiptIssuer
}

// NewServer creates the admin API server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		db:         cfg.DB,
		redis:      cfg.Redis,
		properties: cfg.Properties,
		tenants:    cfg.Tenants,
		payments:   cfg.Payments,
		engine:     cfg.Engine,
		invoicer:   cfg.Invoicer,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/properties", s.handleListProperties)
	mux.HandleFunc("POST /api/properties", s.handleCreateProperty)

	mux.HandleFunc("GET /api/tenants", s.handleListTenants)
	mux.HandleFunc("POST /api/tenants", s.handleCreateTenant)
	mux.HandleFunc("GET /api/tenants/{id}", s.handleGetTenant)

	mux.HandleFunc("GET /api/payments", s.handleListPayments)
	mux.HandleFunc("POST /api/payments/process", s.handleProcessPayments)
	mux.HandleFunc("POST /api/receipts/send", s.handleSendReceipt)

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "RentFlow Reconciler",
		"version": serviceVersion,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":   "ok",
		"database": "ok",
		"redis":    "ok",
	}
	code := http.StatusOK

	if err := s.db.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	if err := s.redis.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["redis"] = "unreachable"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status)
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := s.properties.List(r.Context())
	if err != nil {
		slog.Error("list properties failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list properties failed")
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	var p models.Property
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if p.Name == "" || p.Address == "" {
		writeError(w, http.StatusBadRequest, "name and address are required")
		return
	}

	created, err := s.properties.Create(r.Context(), &p)
	if err != nil {
		slog.Error("create property failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create property failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := s.tenants.List(r.Context())
	if err != nil {
		slog.Error("list tenants failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list tenants failed")
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var t models.Tenant
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if t.PropertyID == "" || t.Name == "" || t.Email == "" {
		writeError(w, http.StatusBadRequest, "property_id, name and email are required")
		return
	}
	if !t.MonthlyRent.IsPositive() {
		writeError(w, http.StatusBadRequest, "monthly_rent must be positive")
		return
	}

	created, err := s.tenants.Create(r.Context(), &t)
	if err != nil {
		slog.Error("create tenant failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create tenant failed")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.tenants.FindByID(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("get tenant failed", "error", err)
		writeError(w, http.StatusInternalServerError, "get tenant failed")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	payments, err := s.payments.List(r.Context(), r.URL.Query().Get("tenant_id"), limit)
	if err != nil {
		slog.Error("list payments failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list payments failed")
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// handleProcessPayments runs one reconciliation cycle synchronously and
// returns its batch result. The scheduled poller keeps running on its own;
// duplicate checking makes the overlap with a manual trigger harmless.
func (s *Server) handleProcessPayments(w http.ResponseWriter, r *http.Request) {
	result := s.engine.Run(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "processed",
		"result": result,
	})
}

func (s *Server) handleSendReceipt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string          `json:"tenant_id"`
		Amount   decimal.Decimal `json:"amount"`
		Period   string          `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TenantID == "" || req.Period == "" {
		writeError(w, http.StatusBadRequest, "tenant_id and period are required")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	tenant, err := s.tenants.FindByID(r.Context(), req.TenantID)
	if err != nil {
		slog.Error("get tenant failed", "error", err)
		writeError(w, http.StatusInternalServerError, "get tenant failed")
		return
	}
	if tenant == nil {
		writeError(w, http.StatusNotFound, "tenant not found")
		return
	}

	receipt, err := s.invoicer.CreateAndSendReceipt(r.Context(), tenant, req.Amount, req.Period, time.Now().UTC())
	if err != nil {
		slog.Error("manual receipt failed", "tenant_id", req.TenantID, "error", err)
		writeError(w, http.StatusBadGateway, "send receipt failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "sent",
		"invoice": receipt,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
