package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/database"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/features"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/logging"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/service"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/validation"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
	flags       *features.Manager
	health      Pinger
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
	Flags       *features.Manager
	Health      Pinger
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultHandlerOptions().MaxBodySize
	}
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
		flags:       opts.Flags,
		health:      opts.Health,
	}
}

// Routes registers the API endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.CreateTransaction)
		r.Get("/", h.ListTransactions)
		r.Get("/{id}", h.GetTransaction)
		r.Patch("/{id}/status", h.UpdateStatus)
	})

	r.Post("/score", h.Score)
	r.Get("/analytics/dashboard", h.Dashboard)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/fraud-cases", h.ListFraudCases)
		r.Post("/transactions/{id}/approve", h.ApproveTransaction)
		r.Post("/transactions/{id}/block", h.BlockTransaction)
		r.Get("/fraud-logs", h.ListFraudLogs)
		r.Get("/features", h.ListFeatures)
		r.Put("/features/{name}", h.SetFeature)
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			logging.L(r.Context()).Error("health check failed", zap.Error(err))
			h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateTransaction handles POST /transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}

	txn, err := h.service.CreateTransaction(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, txn)
}

// ListTransactions handles GET /transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.TransactionFilter{
		UserID: validation.SanitizeString(q.Get("user_id")),
		Status: models.Status(validation.SanitizeString(q.Get("status"))),
	}
	if raw := validation.SanitizeString(q.Get("classification")); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				filter.Classifications = append(filter.Classifications, models.Classification(c))
			}
		}
	}

	var err error
	if filter.From, err = parseTimeParam(q.Get("from"), "from"); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if filter.To, err = parseTimeParam(q.Get("to"), "to"); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if filter.Limit, err = parseLimit(q.Get("limit")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	txns, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, transactionList(txns))
}

// GetTransaction handles GET /transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, txn)
}

// UpdateStatus handles PATCH /transactions/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.StatusUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	txn, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, txn)
}

// Score handles POST /score. Nothing is stored.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req models.ScoreRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.ScoreOnly(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Dashboard handles GET /analytics/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.DashboardQuery{UserID: q.Get("user_id")}

	var err error
	if query.From, err = parseTimeParam(q.Get("from"), "from"); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if query.To, err = parseTimeParam(q.Get("to"), "to"); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	d, err := h.service.Dashboard(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, d)
}

// ListFraudCases handles GET /admin/fraud-cases
func (h *Handler) ListFraudCases(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	txns, err := h.service.ListFraudCases(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, transactionList(txns))
}

// ApproveTransaction handles POST /admin/transactions/{id}/approve
func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.service.ApproveTransaction)
}

// BlockTransaction handles POST /admin/transactions/{id}/block
func (h *Handler) BlockTransaction(w http.ResponseWriter, r *http.Request) {
	h.override(w, r, h.service.BlockTransaction)
}

type overrideFunc func(ctx context.Context, id string, req models.OverrideRequest) (models.Transaction, error)

func (h *Handler) override(w http.ResponseWriter, r *http.Request, apply overrideFunc) {
	var req models.OverrideRequest
	// The body is optional for overrides.
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	txn, err := apply(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, txn)
}

// ListFraudLogs handles GET /admin/fraud-logs
func (h *Handler) ListFraudLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	logs, err := h.service.ListFraudLogs(r.Context(), database.LogFilter{
		TransactionID: validation.SanitizeString(q.Get("transaction_id")),
		UserID:        validation.SanitizeString(q.Get("user_id")),
		Limit:         limit,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.FraudLog{}
	}
	h.respondJSON(w, http.StatusOK, models.FraudLogListResponse{Logs: logs, Count: len(logs)})
}

// ListFeatures handles GET /admin/features
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	if h.flags == nil {
		h.respondJSON(w, http.StatusOK, []features.FeatureFlag{})
		return
	}
	h.respondJSON(w, http.StatusOK, h.flags.GetAll())
}

// SetFeature handles PUT /admin/features/{name}
func (h *Handler) SetFeature(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		h.respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	name := validation.SanitizeString(chi.URLParam(r, "name"))
	if h.flags == nil || !h.flags.Set(name, *req.Enabled) {
		h.respondError(w, http.StatusNotFound, "unknown feature flag")
		return
	}

	logging.L(r.Context()).Info("feature flag changed",
		zap.String("flag", name),
		zap.Bool("enabled", *req.Enabled),
	)
	h.respondJSON(w, http.StatusOK, features.FeatureFlag{Name: name, Enabled: *req.Enabled})
}

func transactionList(txns []models.Transaction) models.TransactionListResponse {
	if txns == nil {
		txns = []models.Transaction{}
	}
	return models.TransactionListResponse{Transactions: txns, Count: len(txns)}
}

func parseTimeParam(raw, field string) (time.Time, error) {
	raw = validation.SanitizeString(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := validation.ValidateTimeString(raw)
	if err != nil {
		return time.Time{}, &validation.ValidationError{Field: field, Message: "must be RFC3339 format"}
	}
	return t, nil
}

func parseLimit(raw string) (int, error) {
	raw = validation.SanitizeString(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &validation.ValidationError{Field: "limit", Message: "must be a non-negative integer"}
	}
	return n, nil
}

// decode reads a JSON body into dst, writing the error response itself when
// it returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	// Limit request body size to prevent abuse
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			h.respondError(w, http.StatusBadRequest, "request body is required")
		case errors.As(err, &tooLarge):
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		}
		return false
	}
	return true
}

// respondServiceError maps service errors onto status codes. Unexpected
// errors are logged and hidden from the client.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.ValidationError
	switch {
	case errors.As(err, &ve):
		h.respondError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, database.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "transaction not found")
	default:
		logging.L(r.Context()).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
