package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"payment_validator/internal/domain"
	"payment_validator/internal/processor"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 1 << 20
)

// Evaluator is the part of the validation processor the handler needs.
type Evaluator interface {
	Evaluate(ctx context.Context, req *domain.PaymentRequest) (*domain.ValidationResult, error)
}

type APIHandler struct {
	evaluator      Evaluator
	logger         *slog.Logger
	requestTimeout time.Duration
}

func NewAPIHandler(evaluator Evaluator, requestTimeout time.Duration, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	return &APIHandler{
		evaluator:      evaluator,
		logger:         logger,
		requestTimeout: requestTimeout,
	}
}

type ValidatePaymentRequest struct {
	ID                 string             `json:"id,omitempty"`
	Mode               domain.PaymentMode `json:"mode"`
	SourceAccount      string             `json:"source_account"`
	DestinationAccount string             `json:"destination_account"`
	Amount             decimal.Decimal    `json:"amount"`
	Currency           string             `json:"currency,omitempty"`
	Purpose            string             `json:"purpose,omitempty"`
	UserID             string             `json:"user_id,omitempty"`
	ScheduledAt        *time.Time         `json:"scheduled_at,omitempty"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
}

// ToDomain converts the wire request. Currency defaults to INR.
func (r ValidatePaymentRequest) ToDomain() *domain.PaymentRequest {
	req := domain.NewPaymentRequest(r.Mode, r.SourceAccount, r.DestinationAccount, r.Amount).
		WithPurpose(r.Purpose).
		WithUser(r.UserID)
	if r.ID != "" {
		req.ID = r.ID
	}
	if r.Currency != "" {
		req.Currency = r.Currency
	}
	if r.ScheduledAt != nil {
		req.WithSchedule(*r.ScheduledAt)
	}
	for k, v := range r.Metadata {
		req.WithMetadata(k, v)
	}
	return req
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (h *APIHandler) ValidatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	var body ValidatePaymentRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		h.sendError(w, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"}, http.StatusBadRequest)
		return
	}

	req := body.ToDomain()
	if _, ok := req.Metadata[domain.MetaClientIP]; !ok {
		if ip := clientIP(r); ip != "" {
			req.WithMetadata(domain.MetaClientIP, ip)
		}
	}

	result, err := h.evaluator.Evaluate(ctx, req)
	if err != nil {
		var sysErr *processor.SystemError
		if errors.As(err, &sysErr) {
			h.logger.ErrorContext(ctx, "Payment evaluation failed",
				slog.String("request_id", req.ID),
				slog.String("stage", sysErr.Stage),
				slog.String("error", err.Error()))
			h.sendError(w, ErrorResponse{
				Error:     "Payment could not be evaluated",
				Code:      "SYSTEM_FAULT",
				Stage:     sysErr.Stage,
				Retryable: sysErr.Retryable(),
			}, http.StatusServiceUnavailable)
			return
		}
		h.logger.ErrorContext(ctx, "Unexpected evaluation error",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()))
		h.sendError(w, ErrorResponse{Error: "Internal error", Code: "SERVER_ERROR"}, http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, result, http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	h.sendJSON(w, response, http.StatusOK)
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, resp ErrorResponse, statusCode int) {
	h.sendJSON(w, resp, statusCode)

	h.logger.Warn("API error response",
		slog.String("message", resp.Error),
		slog.String("code", resp.Code),
		slog.Int("status", statusCode))
}

func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/payments/validate", h.ValidatePaymentHandler)
	r.Get("/api/health", h.HealthCheckHandler)
}

// NewRouter mounts the handler behind the standard middleware stack.
func NewRouter(h *APIHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
