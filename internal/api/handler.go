package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/store"
)

// ProfileObserver records screened transactions into the behavioral
// profiles feeding the location and new-account rules.
type ProfileObserver interface {
	Observe(userID string, loc *domain.Location)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	transactions *store.TransactionStore
	alerts       *store.AlertStore
	engine       *rules.Engine

	// Optional collaborators; any may be nil.
	bus      domain.EventBus
	archive  domain.Archiver
	metrics  *metrics.Metrics
	velocity domain.VelocityCounter
	profiles ProfileObserver

	version string
}

// NewHandler creates a new API handler.
func NewHandler(transactions *store.TransactionStore, alerts *store.AlertStore, engine *rules.Engine, bus domain.EventBus, archive domain.Archiver, m *metrics.Metrics, velocity domain.VelocityCounter, profiles ProfileObserver, version string) *Handler {
	return &Handler{
		transactions: transactions,
		alerts:       alerts,
		engine:       engine,
		bus:          bus,
		archive:      archive,
		metrics:      m,
		velocity:     velocity,
		profiles:     profiles,
		version:      version,
	}
}

// ScreenResponse is the response for POST /api/transactions.
type ScreenResponse struct {
	Transaction *domain.Transaction  `json:"transaction"`
	Decision    domain.FraudDecision `json:"decision"`
	Alert       *domain.FraudAlert   `json:"alert,omitempty"`
}

// Screen handles POST /api/transactions: store the transaction, evaluate
// it, and raise an alert when the decision flags fraud. Storing and
// alerting are two separate operations; there is no cross-store
// transactionality.
func (h *Handler) Screen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if tx.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId is required",
		})
		return
	}
	if tx.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be non-negative",
		})
		return
	}

	stored := h.transactions.Add(&tx)

	// Feed the signal providers before evaluating so the current
	// transaction participates in its own velocity and profile checks.
	if h.velocity != nil {
		if _, err := h.velocity.Observe(ctx, stored.UserID); err != nil {
			slog.Warn("velocity observation failed", "user_id", stored.UserID, "error", err)
		}
	}
	if h.profiles != nil {
		h.profiles.Observe(stored.UserID, stored.Location)
	}

	decision := h.evaluate(ctx, stored)

	resp := ScreenResponse{Transaction: stored, Decision: decision}

	if decision.Fraud {
		alert := h.alerts.Add(domain.AlertFromDecision(stored, decision))
		resp.Alert = alert

		if h.metrics != nil {
			h.metrics.AlertsCreated.WithLabelValues(alert.Severity).Inc()
		}
		h.publish(ctx, domain.TopicAlertCreated, alert)
	}

	h.publish(ctx, domain.TopicTransactionScreened, domain.ScreenedEvent{
		Transaction: stored,
		Decision:    decision,
	})

	writeJSON(w, http.StatusCreated, resp)
}

// Analyze handles POST /api/transactions/analyze: evaluate without
// storing the transaction or raising an alert.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	decision := h.evaluate(r.Context(), &tx)

	writeJSON(w, http.StatusOK, map[string]any{
		"decision":  decision,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) evaluate(ctx context.Context, tx *domain.Transaction) domain.FraudDecision {
	start := time.Now()
	decision := h.engine.Evaluate(ctx, tx)

	if h.metrics != nil {
		h.metrics.TransactionsScreened.Inc()
		h.metrics.RecordDecision(decision.Fraud)
		h.metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}
	return decision
}

// ListTransactions handles GET /api/transactions, optionally filtered by
// ?userId=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if userID := r.URL.Query().Get("userId"); userID != "" {
		writeJSON(w, http.StatusOK, h.transactions.ByUser(userID))
		return
	}
	writeJSON(w, http.StatusOK, h.transactions.All())
}

// GetTransaction handles GET /api/transactions/{id}.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx := h.transactions.Get(id)
	if tx == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found: " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}. Malformed fields
// in the partial update are ignored per field, not rejected.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd domain.TransactionUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !h.transactions.Update(id, upd) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found: " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, h.transactions.Get(id))
}

// DeleteTransaction handles DELETE /api/transactions/{id}.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.transactions.Delete(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found: " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "transaction deleted: " + id,
	})
}

// ListAlerts handles GET /api/alerts, optionally filtered by ?status=.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		writeJSON(w, http.StatusOK, h.alerts.ByStatus(status))
		return
	}
	writeJSON(w, http.StatusOK, h.alerts.All())
}

// GetAlert handles GET /api/alerts/{id}.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	alert := h.alerts.Get(id)
	if alert == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found: " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// UpdateAlertStatus handles PUT /api/alerts/{id}/status. Status is
// free-form; no workflow is enforced.
func (h *Handler) UpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "status is required",
		})
		return
	}

	if !h.alerts.UpdateStatus(id, req.Status) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found: " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, h.alerts.Get(id))
}

// ResolveAlert handles POST /api/alerts/{id}/resolve.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if !h.alerts.Resolve(id, req.Resolution) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found: " + id,
		})
		return
	}

	alert := h.alerts.Get(id)
	h.publish(r.Context(), domain.TopicAlertResolved, alert)
	writeJSON(w, http.StatusOK, alert)
}

// DeleteAlert handles DELETE /api/alerts/{id}.
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.alerts.Delete(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found: " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "alert deleted: " + id,
	})
}

// RuleInfo describes one rule's configuration.
type RuleInfo struct {
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Threshold int    `json:"threshold"`
}

// ListRules handles GET /api/rules, in evaluation order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	enabled := h.engine.EnabledRules()

	infos := make([]RuleInfo, 0, len(enabled))
	for _, name := range h.engine.RuleNames() {
		infos = append(infos, RuleInfo{
			Name:      name,
			Enabled:   enabled[name],
			Threshold: h.engine.RuleThreshold(name),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// UpdateRule handles PUT /api/rules: enable/disable a rule and/or set its
// threshold. An unknown rule name leaves configuration unchanged.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Enabled   *bool  `json:"enabled,omitempty"`
		Threshold *int   `json:"threshold,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if req.Enabled == nil && req.Threshold == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "enabled or threshold is required",
		})
		return
	}

	if req.Enabled != nil && !h.engine.SetRuleEnabled(req.Name, *req.Enabled) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown rule: " + req.Name,
		})
		return
	}
	if req.Threshold != nil && !h.engine.SetRuleThreshold(req.Name, *req.Threshold) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown rule: " + req.Name,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule updated: " + domain.NormalizeRuleName(req.Name),
	})
}

// CreateRule handles POST /api/rules: compile a custom expression rule
// and register it beside the builtins. The rule is enabled immediately
// and configurable through PUT /api/rules like any other.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Expression string `json:"expression"`
		Score      int    `json:"score"`
		Reason     string `json:"reason"`
		Threshold  int    `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	rule, err := rules.NewExprRule(req.Name, req.Expression, req.Score, req.Reason)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.engine.Register(rule, req.Threshold, true); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusCreated, RuleInfo{
		Name:      rule.Name(),
		Enabled:   true,
		Threshold: req.Threshold,
	})
}

// ListArchivedAlerts handles GET /api/alerts/archive, reading from the
// durable archive rather than the in-memory store. An optional ?since=
// (RFC 3339) bounds the window; without it the full history is returned.
func (h *Handler) ListArchivedAlerts(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "archive is not enabled",
		})
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be RFC 3339",
			})
			return
		}
		since = parsed
	}

	alerts, err := h.archive.ListAlerts(r.Context(), since)
	if err != nil {
		slog.Error("failed to list archived alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to query archive",
		})
		return
	}
	if alerts == nil {
		alerts = []*domain.FraudAlert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// GetArchivedAlert handles GET /api/alerts/archive/{id}.
func (h *Handler) GetArchivedAlert(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "archive is not enabled",
		})
		return
	}

	id := chi.URLParam(r, "id")
	alert, err := h.archive.GetAlert(r.Context(), id)
	if err != nil {
		slog.Error("failed to read archived alert", "alert_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to query archive",
		})
		return
	}
	if alert == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "alert not found: " + id,
		})
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// Stats handles GET /api/stats with overall totals.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"totalTransactions": h.transactions.Count(),
		"totalAlerts":       h.alerts.Count(),
		"totalAmount":       h.transactions.TotalAmount(),
		"enabledRules":      h.engine.EnabledCount(),
		"totalRules":        h.engine.TotalCount(),
	})
}

// PatternStats handles GET /api/stats/patterns.
func (h *Handler) PatternStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.transactions.PatternStats())
}

// GeographyStats handles GET /api/stats/geography.
func (h *Handler) GeographyStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"byCountry": h.transactions.CountryDistribution(),
		"byCity":    h.transactions.CityDistribution(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.archive != nil {
		if err := h.archive.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready reports readiness to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// publish marshals and publishes an event, logging failures without
// affecting the request.
func (h *Handler) publish(ctx context.Context, topic string, v any) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, topic, payload); err != nil {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
