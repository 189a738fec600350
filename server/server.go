// Package server exposes the propose/resume flow over HTTP so the staging
// and approving turns can land on different process instances. Request
// payloads are parsed strictly at this boundary; the core only ever sees
// typed requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polybroker/approval"
	"polybroker/logger"
	"polybroker/safety"
)

type Server struct {
	httpServer *http.Server
	staging    *approval.Staging
	policy     func() approval.Policy
	log        *logger.Logger
	metrics    *metrics
	registry   *prometheus.Registry
}

func NewServer(addr string, staging *approval.Staging, policy func() approval.Policy, log *logger.Logger) *Server {
	registry := prometheus.NewRegistry()

	s := &Server{
		staging:  staging,
		policy:   policy,
		log:      log,
		metrics:  newMetrics(registry),
		registry: registry,
	}

	router := mux.NewRouter()
	router.HandleFunc("/propose", s.handlePropose).Methods(http.MethodPost)
	router.HandleFunc("/resume", s.handleResume).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.Use(s.requestIDMiddleware)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) ListenAndServe() error {
	s.log.Info("api_listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		s.log.Debug("http_request", "id", requestID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// =============================
// Request/Response Shapes
// =============================

type ProposeRequestBody struct {
	Market    string  `json:"market,omitempty"`
	TokenID   string  `json:"token_id,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	SessionID string  `json:"session_id,omitempty"`
}

type ProposeResponseBody struct {
	PendingApproval bool   `json:"pending_approval"`
	Token           string `json:"token"`
	Summary         string `json:"summary"`
}

type ResumeRequestBody struct {
	Token     string `json:"token"`
	Approve   *bool  `json:"approve"`
	SessionID string `json:"session_id,omitempty"`
}

type ResumeResponseBody struct {
	Outcome string `json:"outcome"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// =============================
// Handlers
// =============================

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var body ProposeRequestBody
	if !s.decodeStrict(w, r, &body) {
		s.metrics.proposals.WithLabelValues("invalid_request").Inc()
		return
	}

	if body.Market == "" && body.TokenID == "" {
		s.metrics.proposals.WithLabelValues("invalid_request").Inc()
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "either market or token_id is required")
		return
	}
	side := approval.Side(body.Side)
	if side != approval.SideBuy && side != approval.SideSell {
		s.metrics.proposals.WithLabelValues("invalid_request").Inc()
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "side must be BUY or SELL")
		return
	}

	result, err := s.staging.Propose(r.Context(), s.policy(), approval.ProposeRequest{
		Market:    body.Market,
		TokenID:   body.TokenID,
		Outcome:   body.Outcome,
		Side:      side,
		Price:     body.Price,
		Size:      body.Size,
		SessionID: body.SessionID,
	})
	if err != nil {
		kind, status := classifyError(err)
		s.metrics.proposals.WithLabelValues(metricResult(kind)).Inc()
		s.writeError(w, status, kind, safeMessage(kind, err))
		return
	}

	s.metrics.proposals.WithLabelValues("staged").Inc()
	s.writeJSON(w, http.StatusOK, ProposeResponseBody{
		PendingApproval: true,
		Token:           result.Token,
		Summary:         result.Summary,
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var body ResumeRequestBody
	if !s.decodeStrict(w, r, &body) {
		s.metrics.resumes.WithLabelValues("invalid_request").Inc()
		return
	}

	if body.Token == "" || body.Approve == nil {
		s.metrics.resumes.WithLabelValues("invalid_request").Inc()
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "token and approve are required")
		return
	}

	result, err := s.staging.Resume(r.Context(), s.policy(), approval.ResumeRequest{
		Token:     body.Token,
		Approve:   *body.Approve,
		SessionID: body.SessionID,
	})
	if err != nil {
		kind, status := classifyError(err)
		s.metrics.resumes.WithLabelValues(metricResult(kind)).Inc()
		s.writeError(w, status, kind, safeMessage(kind, err))
		return
	}

	s.metrics.resumes.WithLabelValues(string(result.Outcome)).Inc()
	s.writeJSON(w, http.StatusOK, ResumeResponseBody{
		Outcome: string(result.Outcome),
		OrderID: result.OrderID,
		Status:  result.Status,
		Reason:  result.Reason,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================
// Helpers
// =============================

func (s *Server) decodeStrict(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response_encode_failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
}

var errorKinds = []struct {
	err    error
	kind   string
	status int
}{
	{approval.ErrMalformedToken, "MalformedToken", http.StatusBadRequest},
	{approval.ErrInvalidSignature, "InvalidSignature", http.StatusBadRequest},
	{approval.ErrInvalidPayload, "InvalidPayload", http.StatusBadRequest},
	{approval.ErrNoTradableInstruments, "NoTradableInstruments", http.StatusBadRequest},
	{approval.ErrUnknownOutcome, "UnknownOutcome", http.StatusBadRequest},
	{approval.ErrOutcomeUnresolvable, "OutcomeUnresolvable", http.StatusBadRequest},
	{approval.ErrMarketClosed, "MarketClosed", http.StatusBadRequest},
	{safety.ErrTradingDisabled, "TradingDisabled", http.StatusForbidden},
	{safety.ErrSandboxed, "Sandboxed", http.StatusForbidden},
	{safety.ErrCredentialUnavailable, "CredentialUnavailable", http.StatusForbidden},
	{safety.ErrMarketNotAllowed, "MarketNotAllowed", http.StatusForbidden},
	{safety.ErrNotionalLimitExceeded, "NotionalLimitExceeded", http.StatusBadRequest},
	{safety.ErrInvalidPriceOrSize, "InvalidPriceOrSize", http.StatusBadRequest},
	{safety.ErrTickMisaligned, "TickMisaligned", http.StatusBadRequest},
}

func classifyError(err error) (kind string, status int) {
	for _, entry := range errorKinds {
		if errors.Is(err, entry.err) {
			return entry.kind, entry.status
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Cancelled", http.StatusServiceUnavailable
	}
	return "Internal", http.StatusInternalServerError
}

// metricResult buckets an error kind for the counters: transient
// cancellations and internal faults are counted apart from policy denials.
func metricResult(kind string) string {
	switch kind {
	case "Cancelled":
		return "cancelled"
	case "Internal":
		return "error"
	default:
		return "denied"
	}
}

// safeMessage hides internals for unexpected failures; callers only see
// detail for errors they caused.
func safeMessage(kind string, err error) string {
	if kind == "Internal" {
		return "internal error"
	}
	return err.Error()
}
