// Package handlers exposes the pipeline over a thin HTTP surface. Routing
// and payload validation live here; all semantics live in the pipeline
// packages.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/behavioral"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/database"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/metrics"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/trust"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/workflow"
)

// HTTPHandler handles HTTP requests for the scoring pipeline.
type HTTPHandler struct {
	workflow   *workflow.Workflow
	calculator *trust.Calculator
	classifier *behavioral.Classifier
	alertRepo  *database.AlertRepository
	reviewRepo *database.ReviewRepository
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	wf *workflow.Workflow,
	calculator *trust.Calculator,
	classifier *behavioral.Classifier,
	alertRepo *database.AlertRepository,
	reviewRepo *database.ReviewRepository,
	collector *metrics.Collector,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		workflow:   wf,
		calculator: calculator,
		classifier: classifier,
		alertRepo:  alertRepo,
		reviewRepo: reviewRepo,
		metrics:    collector,
		logger:     logger.With(zap.String("component", "http")),
	}
}

// RegisterRoutes registers HTTP routes.
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/status", h.handleStatus).Methods("GET")

	reviewRouter := router.PathPrefix("/reviews").Subrouter()
	reviewRouter.HandleFunc("/{id}/authenticate", h.handleAuthenticateReview).Methods("POST")
	reviewRouter.HandleFunc("/{id}/authentication", h.handleGetRecord).Methods("GET")
	reviewRouter.HandleFunc("/{id}/votes", h.handleSubmitVote).Methods("POST")
	reviewRouter.HandleFunc("/{id}/decision", h.handleSetDecision).Methods("POST")

	actorRouter := router.PathPrefix("/actors").Subrouter()
	actorRouter.HandleFunc("/recalculate", h.handleBulkRecalculate).Methods("POST")
	actorRouter.HandleFunc("/{id}/recalculate", h.handleRecalculate).Methods("POST")

	router.HandleFunc("/behavioral/analyze", h.handleAnalyzeBehavior).Methods("POST")

	alertRouter := router.PathPrefix("/alerts").Subrouter()
	alertRouter.HandleFunc("", h.handleListAlerts).Methods("GET")
	alertRouter.HandleFunc("/{id}/resolve", h.handleResolveAlert).Methods("POST")
	alertRouter.HandleFunc("/{id}/dismiss", h.handleDismissAlert).Methods("POST")
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	stages, err := h.reviewRepo.CountRecordsByStage(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	alerts, err := h.alertRepo.CountByStatus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"authentication_stages": stages,
		"alerts":                alerts,
	})
}

type authenticateRequest struct {
	Behavioral *models.BehavioralMetrics `json:"behavioral,omitempty"`
}

func (h *HTTPHandler) handleAuthenticateReview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reviewID := mux.Vars(r)["id"]

	var req authenticateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, models.NewValidation("invalid request body: %v", err))
			return
		}
	}

	record, err := h.workflow.AuthenticateReview(r.Context(), reviewID, req.Behavioral)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.ObserveClassification("workflow", string(record.CurrentStage), start)
	h.writeJSON(w, http.StatusOK, record)
}

func (h *HTTPHandler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.workflow.GetRecord(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func (h *HTTPHandler) handleSubmitVote(w http.ResponseWriter, r *http.Request) {
	var vote models.CommunityVote
	if err := json.NewDecoder(r.Body).Decode(&vote); err != nil {
		h.writeError(w, models.NewValidation("invalid request body: %v", err))
		return
	}

	record, err := h.workflow.SubmitVote(r.Context(), mux.Vars(r)["id"], vote)
	if err != nil {
		h.metrics.VotesTotal.WithLabelValues("rejected").Inc()
		h.writeError(w, err)
		return
	}

	h.metrics.VotesTotal.WithLabelValues("accepted").Inc()
	h.writeJSON(w, http.StatusOK, record)
}

func (h *HTTPHandler) handleSetDecision(w http.ResponseWriter, r *http.Request) {
	var input workflow.DecisionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, models.NewValidation("invalid request body: %v", err))
		return
	}

	record, err := h.workflow.SetFinalDecision(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

func (h *HTTPHandler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	actor, err := h.calculator.Recalculate(r.Context(), mux.Vars(r)["id"], nil)
	if err != nil {
		h.metrics.TrustRecalculationsTotal.WithLabelValues("failed").Inc()
		h.writeError(w, err)
		return
	}

	h.metrics.TrustRecalculationsTotal.WithLabelValues("success").Inc()
	h.metrics.TrustScoreDistribution.Observe(float64(actor.TrustScore))
	h.writeJSON(w, http.StatusOK, actor)
}

func (h *HTTPHandler) handleBulkRecalculate(w http.ResponseWriter, r *http.Request) {
	success, failed, err := h.calculator.RecalculateAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"success_count": success,
		"fail_count":    failed,
	})
}

type analyzeBehaviorRequest struct {
	ActorID            string `json:"actor_id"`
	KeystrokeIntervals []int  `json:"keystroke_intervals"`
	PointerIntervals   []int  `json:"pointer_intervals,omitempty"`
	OtherAccounts      int    `json:"other_accounts,omitempty"`
}

func (h *HTTPHandler) handleAnalyzeBehavior(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req analyzeBehaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, models.NewValidation("invalid request body: %v", err))
		return
	}

	for _, interval := range req.KeystrokeIntervals {
		if interval <= 0 {
			h.writeError(w, models.NewValidation("timing intervals must be positive"))
			return
		}
	}

	var ip *behavioral.IPSignal
	if req.OtherAccounts > 0 {
		ip = &behavioral.IPSignal{OtherAccounts: req.OtherAccounts}
	}

	cls := h.classifier.Classify(r.Context(), req.KeystrokeIntervals, req.PointerIntervals, ip)
	h.metrics.ObserveClassification("behavioral", cls.Type, start)
	h.writeJSON(w, http.StatusOK, cls)
}

func (h *HTTPHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	status := models.AlertStatus(r.URL.Query().Get("status"))
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, models.NewValidation("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	alerts, err := h.alertRepo.List(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

func (h *HTTPHandler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.alertRepo.Resolve(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *HTTPHandler) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.alertRepo.Dismiss(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case models.IsNotFound(err):
		status = http.StatusNotFound
	case models.IsValidation(err):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
