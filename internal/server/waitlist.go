package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imperius/imperius/internal/scoring"
	"github.com/imperius/imperius/internal/store"
)

type waitlistRequest struct {
	Email     string `json:"email" validate:"required,email"`
	SessionID string `json:"sessionId"`
	Source    string `json:"source"`
}

// handleWaitlist accepts a landing-page signup. Duplicate emails are treated
// as success so the form never scolds a returning visitor. A successful
// signup also scores an email_fill action for the session.
func (s *Server) handleWaitlist(w http.ResponseWriter, r *http.Request) {
	if corsPreflight(w, r, "POST") {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req waitlistRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	signup, err := s.store.CreateSignup(r.Context(), req.Email, req.SessionID, req.Source, scoring.IsBusinessEmail(req.Email))
	if errors.Is(err, store.ErrDuplicate) {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"duplicate": true,
		})
		return
	}
	if err != nil {
		s.logger.Error("signup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "signup failed")
		return
	}

	if _, err := s.scores.Track(r.Context(), req.SessionID, scoring.ActionEmailFill, req.Email); err != nil {
		s.logger.Warn("signup lead action failed", zap.Error(err))
	}

	s.metrics.signups.Inc()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": signup.SessionID,
	})
}
