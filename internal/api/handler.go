package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-travel/cormorant/internal/burst"
	"github.com/opensource-travel/cormorant/internal/cohort"
	"github.com/opensource-travel/cormorant/internal/detector"
	"github.com/opensource-travel/cormorant/internal/domain"
	"github.com/opensource-travel/cormorant/internal/rules"
	"github.com/opensource-travel/cormorant/internal/velocity"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	cache     domain.Cache
	bus       domain.EventBus
	detector  *detector.Detector
	engine    *rules.Engine
	tracker   *velocity.Tracker
	rulesFile string
	evalTTL   time.Duration
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(cache domain.Cache, bus domain.EventBus, det *detector.Detector, engine *rules.Engine, tracker *velocity.Tracker, rulesFile string, evalTTL time.Duration, version string) *Handler {
	if evalTTL <= 0 {
		evalTTL = time.Hour
	}
	return &Handler{
		cache:     cache,
		bus:       bus,
		detector:  det,
		engine:    engine,
		tracker:   tracker,
		rulesFile: rulesFile,
		evalTTL:   evalTTL,
		version:   version,
	}
}

// PredictRequest is the request body for POST /predict. The embedded feature
// fields keep their upstream snake_case names; the identity fields around
// them are camelCase like the rest of the API.
type PredictRequest struct {
	domain.BookingFeatures

	BookingID   string  `json:"bookingId,omitempty"`
	GuestID     string  `json:"userId,omitempty"`
	OwnerEmail  string  `json:"ownerEmail,omitempty"`
	StartDate   string  `json:"startDate,omitempty"`
	EndDate     string  `json:"endDate,omitempty"`
	TotalAmount float64 `json:"totalAmount,omitempty"`

	// UseModel forces the scoring path. Absent means "model when loaded".
	UseModel *bool `json:"useModel,omitempty"`
}

// PredictResponse mirrors the scoring result with snake_case result keys.
type PredictResponse struct {
	EvaluationID     string           `json:"evaluationId"`
	FraudProbability float64          `json:"fraud_probability"`
	IsFraud          bool             `json:"is_fraud"`
	RiskLevel        domain.RiskLevel `json:"risk_level"`
	FraudIndicators  []string         `json:"fraud_indicators"`
	RuleBased        bool             `json:"rule_based"`
	RulesProbability *float64         `json:"rules_probability,omitempty"`
	MLProbability    *float64         `json:"ml_probability,omitempty"`
	Timestamp        string           `json:"timestamp"`
	Metadata         struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Predict handles POST /predict requests.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Request must contain JSON data",
		})
		return
	}

	// Fill the same-day counter from the velocity tracker when the caller
	// identified the guest but did not supply the count.
	if h.tracker != nil && req.GuestID != "" {
		h.tracker.Observe(ctx, tenantID, req.GuestID, &req.BookingFeatures)
	}

	preferModel := true
	if req.UseModel != nil {
		preferModel = *req.UseModel
	}

	eval, err := h.detector.Score(ctx, &detector.Input{
		TenantID:    tenantID,
		BookingID:   req.BookingID,
		GuestID:     req.GuestID,
		TraceID:     traceID,
		Features:    &req.BookingFeatures,
		PreferModel: preferModel,
		StartTime:   start,
	})
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			if len(ve.Fields) > 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error":   "Missing required fields",
					"details": "The following fields are required: " + strings.Join(ve.Fields, ", "),
				})
			} else {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": ve.Msg,
				})
			}
			return
		}
		slog.Error("scoring failed", "error", err, "trace_id", traceID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Server error during prediction",
		})
		return
	}

	// Scoring itself is side-effect free; the cache write and bus publishes
	// happen here and are all best-effort.
	if h.cache != nil {
		if err := h.cache.SetEvaluation(ctx, tenantID, eval, h.evalTTL); err != nil {
			slog.Warn("failed to cache evaluation", "id", eval.ID, "error", err)
		}
	}
	h.publishEvents(r, &req, eval)

	resp := PredictResponse{
		EvaluationID:     eval.ID,
		FraudProbability: eval.Result.FraudProbability,
		IsFraud:          eval.Result.IsFraud,
		RiskLevel:        eval.Result.RiskLevel,
		FraudIndicators:  eval.Result.Indicators,
		RuleBased:        eval.Result.RuleBased,
		RulesProbability: eval.Result.RulesProbability,
		MLProbability:    eval.Result.MLProbability,
		Timestamp:        eval.Timestamp.Format(time.RFC3339),
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = eval.Metadata.TotalMs
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// publishEvents pushes the scored event, and the alert event for flagged
// bookings, onto the bus. Failures are logged, never surfaced.
func (h *Handler) publishEvents(r *http.Request, req *PredictRequest, eval *domain.Evaluation) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	event := domain.AlertEvent{
		EvaluationID:     eval.ID,
		TenantID:         eval.TenantID,
		BookingID:        eval.BookingID,
		GuestID:          eval.GuestID,
		OwnerEmail:       req.OwnerEmail,
		FraudProbability: eval.Result.FraudProbability,
		RiskLevel:        eval.Result.RiskLevel,
		Indicators:       eval.Result.Indicators,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		TotalAmount:      req.TotalAmount,
	}
	if req.Adults != nil {
		event.Adults = int(*req.Adults)
	}
	event.Children = int(req.Children)

	payload, err := json.Marshal(&event)
	if err != nil {
		slog.Error("failed to marshal scored event", "id", eval.ID, "error", err)
		return
	}

	if err := h.bus.Publish(ctx, eval.TenantID, domain.TopicBookingScored, payload); err != nil {
		slog.Warn("failed to publish scored event", "id", eval.ID, "error", err)
	}
	if detector.ShouldAlert(eval) {
		if err := h.bus.Publish(ctx, eval.TenantID, domain.TopicAlert, payload); err != nil {
			slog.Warn("failed to publish alert event", "id", eval.ID, "error", err)
		}
	}
}

// ComparePatternsRequest is the request body for POST /compare-patterns.
type ComparePatternsRequest struct {
	UserID      string `json:"userId"`
	UserProfile struct {
		CancellationRatio        float64 `json:"cancellationRatio"`
		MultipleBookingsCount    float64 `json:"multipleBookingsCount"`
		MultipleBookingsCanceled float64 `json:"multipleBookingsCanceled"`
	} `json:"userProfile"`
	Cancellations []struct {
		TimeBeforeDeparture float64 `json:"timeBeforeDeparture"`
		TimeSinceBooking    float64 `json:"timeSinceBooking"`
		OriginalBookingData struct {
			Adults   float64 `json:"adults"`
			Children float64 `json:"children"`
		} `json:"originalBookingData"`
	} `json:"cancellations"`
}

// ComparePatterns handles POST /compare-patterns requests.
func (h *Handler) ComparePatterns(w http.ResponseWriter, r *http.Request) {
	var req ComparePatternsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Request must be JSON",
		})
		return
	}

	profile := &cohort.Profile{
		UserID:                   req.UserID,
		CancellationRatio:        req.UserProfile.CancellationRatio,
		MultipleBookingsCount:    req.UserProfile.MultipleBookingsCount,
		MultipleBookingsCanceled: req.UserProfile.MultipleBookingsCanceled,
	}
	records := make([]cohort.CancellationRecord, 0, len(req.Cancellations))
	for _, c := range req.Cancellations {
		records = append(records, cohort.CancellationRecord{
			DaysBeforeDeparture: c.TimeBeforeDeparture,
			HoursSinceBooking:   c.TimeSinceBooking,
			Adults:              c.OriginalBookingData.Adults,
			Children:            c.OriginalBookingData.Children,
		})
	}

	result, err := cohort.Compare(profile, records)
	if err != nil {
		if domain.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "User ID is required",
			})
			return
		}
		slog.Error("pattern comparison failed", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Server error during pattern comparison",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AnalyzeBookingsRequest is the request body for POST /analyze-bookings.
type AnalyzeBookingsRequest struct {
	UserID   string `json:"userId"`
	Bookings []struct {
		BookingDate time.Time `json:"bookingDate"`
		LeadTime    float64   `json:"leadTime"`
		ResourceID  string    `json:"resourceId"`
	} `json:"bookings"`
	CancellationRatio float64 `json:"cancellationRatio"`
}

// AnalyzeBookings handles POST /analyze-bookings requests.
func (h *Handler) AnalyzeBookings(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeBookingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Request must be JSON",
		})
		return
	}

	bookings := make([]burst.Booking, 0, len(req.Bookings))
	for _, b := range req.Bookings {
		bookings = append(bookings, burst.Booking{
			CreatedAt:  b.BookingDate,
			LeadTime:   b.LeadTime,
			ResourceID: b.ResourceID,
		})
	}

	result, err := burst.Analyze(&burst.Input{
		UserID:            req.UserID,
		Bookings:          bookings,
		CancellationRatio: req.CancellationRatio,
	})
	if err != nil {
		if domain.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "User ID is required",
			})
			return
		}
		slog.Error("booking analysis failed", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Server error during multiple bookings analysis",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetEvaluation retrieves a recently scored evaluation by ID. Evaluations are
// TTL-bound: an expired entry is a plain 404.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}

	eval, err := h.cache.GetEvaluation(ctx, tenantID, evalID)
	if err != nil {
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get evaluation",
		})
		return
	}
	if eval == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, eval)
}

// Status reports service readiness the way upstream clients expect it.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	modelLoaded := h.detector.ModelAvailable()

	version := "1.2.0 (Rule-Based)"
	if modelLoaded {
		version = "1.2.0 (ML Model)"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "active",
		"modelLoaded":       modelLoaded,
		"featuresAvailable": true,
		"version":           version,
		"timestamp":         time.Now().Format(time.RFC3339),
		"ml":                modelLoaded,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
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

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded supplemental rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a loaded rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a supplemental rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Indicator   string  `json:"indicator,omitempty"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule compiles and loads a supplemental rule into the engine. Rules
// added this way live in memory only; the rules file is the durable source
// and POST /rules/reload resets to it.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Indicator:   req.Indicator,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": ruleConfig,
	})
}

// GlobalTenantID marks rules that apply to all tenants.
const GlobalTenantID = "*"

// ReloadRules re-reads the rules file and replaces the loaded rule set.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.LoadFile(h.rulesFile)
	if err != nil {
		slog.Error("failed to reload rules", "file", h.rulesFile, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded", "file", h.rulesFile, "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
