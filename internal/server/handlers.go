package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imperius/imperius/internal/abtest"
	"github.com/imperius/imperius/internal/stats"
	"github.com/imperius/imperius/internal/store"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]any{"success": false, "error": msg})
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation. A false return means a response has already been written.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

// corsPreflight sets permissive CORS headers for the public tracking API and
// answers OPTIONS. Returns true when the request was a preflight.
func corsPreflight(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

type HealthResponse struct {
	Status        string `json:"status"`
	TestsCount    int    `json:"tests_count"`
	SignupsCount  int    `json:"signups_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	tests, err := s.store.ListTests(ctx)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	signups, err := s.store.CountSignups(ctx)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		TestsCount:    len(tests),
		SignupsCount:  signups,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	})
}

type assignmentRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	TestName  string `json:"testName" validate:"required"`
}

func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request) {
	if corsPreflight(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assignmentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	assignment, err := s.abtests.Assign(r.Context(), req.SessionID, req.TestName)
	if err != nil {
		s.writeAssignmentError(w, err)
		return
	}

	s.metrics.assignments.Inc()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"assignment": assignment,
	})
}

type assignRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	TestName  string `json:"testName" validate:"required"`
	Variant   string `json:"variant" validate:"required"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	if corsPreflight(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assignRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	assignment, err := s.abtests.ForceAssign(r.Context(), req.SessionID, req.TestName, req.Variant)
	if err != nil {
		s.writeAssignmentError(w, err)
		return
	}

	s.metrics.assignments.Inc()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"assignment": assignment,
	})
}

// writeAssignmentError maps assignment-path failures. Unlike tracking,
// these surface: the variant shown to the user depends on the answer.
func (s *Server) writeAssignmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, abtest.ErrTestNotFound), errors.Is(err, abtest.ErrTestNotRunning):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, abtest.ErrUnknownVariant), errors.Is(err, abtest.ErrMissingVariants):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("assignment failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "assignment failed")
	}
}

type conversionRequest struct {
	SessionID       string   `json:"sessionId" validate:"required"`
	TestName        string   `json:"testName" validate:"required"`
	Variant         string   `json:"variant" validate:"required"`
	ConversionValue *float64 `json:"conversionValue"`
}

func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	if corsPreflight(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req conversionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	value := 1.0
	if req.ConversionValue != nil {
		value = *req.ConversionValue
	}

	pageEvent, err := s.abtests.RecordConversion(r.Context(), req.SessionID, req.TestName, req.Variant, value)
	if err != nil {
		switch {
		case errors.Is(err, abtest.ErrTestNotFound), errors.Is(err, abtest.ErrTestNotRunning):
			s.respondError(w, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, abtest.ErrUnknownVariant):
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Storage failure on the tracking path: log and report success with
		// an empty payload so the page flow is unaffected
		s.logger.Warn("conversion recording failed", zap.Error(err))
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success": true, "leadAction": nil, "pageEvent": nil,
		})
		return
	}

	leadAction, err := s.scores.Track(r.Context(), req.SessionID, "conversion", req.TestName)
	if err != nil {
		s.logger.Warn("conversion lead action failed", zap.Error(err))
	}

	s.metrics.conversions.Inc()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"leadAction": leadAction,
		"pageEvent":  pageEvent,
	})
}

type leadActionRequest struct {
	SessionID   string `json:"sessionId" validate:"required"`
	ActionType  string `json:"actionType" validate:"required"`
	ActionValue string `json:"actionValue"`
}

func (s *Server) handleLeadAction(w http.ResponseWriter, r *http.Request) {
	if corsPreflight(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req leadActionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	action, err := s.scores.Track(r.Context(), req.SessionID, req.ActionType, req.ActionValue)
	if err != nil {
		// Tracking must never break the page that sent it
		s.logger.Warn("lead action tracking failed", zap.Error(err))
		s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "action": nil})
		return
	}

	s.metrics.actions.WithLabelValues(req.ActionType).Inc()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"action":  action,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if corsPreflight(w, r, "GET") {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	testName := r.URL.Query().Get("testName")
	if testName == "" {
		s.respondError(w, http.StatusBadRequest, "testName parameter required")
		return
	}

	since, ok := timeframeCutoff(r.URL.Query().Get("timeframe"), time.Now())
	if !ok {
		s.respondError(w, http.StatusBadRequest, "timeframe must be day, week or month")
		return
	}

	summary, err := s.store.GetAnalyticsSummary(r.Context(), testName, since)
	if err != nil {
		s.logger.Error("analytics query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "analytics query failed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"analytics": summary,
	})
}

func timeframeCutoff(timeframe string, now time.Time) (time.Time, bool) {
	switch timeframe {
	case "", "day":
		return now.Add(-24 * time.Hour), true
	case "week":
		return now.Add(-7 * 24 * time.Hour), true
	case "month":
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}

type significancePayload struct {
	Status  string            `json:"status"` // "ok" or "insufficient_data"
	Results *stats.TestResult `json:"results,omitempty"`
}

func (s *Server) handleSignificance(w http.ResponseWriter, r *http.Request) {
	if corsPreflight(w, r, "GET") {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	testName := strings.TrimPrefix(r.URL.Path, "/api/analytics/ab-tests/significance/")
	if testName == "" || strings.Contains(testName, "/") {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()

	test, err := s.store.GetTest(ctx, testName)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "test not found")
		return
	}
	if err != nil {
		s.logger.Error("significance query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "significance query failed")
		return
	}

	samples, err := s.store.GetVariantSamples(ctx, testName)
	if err != nil {
		s.logger.Error("significance query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "significance query failed")
		return
	}

	result := stats.AnalyzeTest(test, samples)

	payload := significancePayload{Status: "insufficient_data"}
	for _, v := range result.Variants {
		if v.Significance != nil {
			payload.Status = "ok"
			payload.Results = result
			break
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"testName":     testName,
		"significance": payload,
	})
}
