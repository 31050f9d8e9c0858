package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imperius/imperius/internal/abtest"
	"github.com/imperius/imperius/internal/scoring"
	"github.com/imperius/imperius/internal/store"
)

type Server struct {
	store     *store.SQLiteStore
	abtests   *abtest.Service
	scores    *scoring.Accumulator
	logger    *zap.Logger
	validate  *validator.Validate
	metrics   *metrics
	live      *liveHub
	host      string
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time
}

type Options struct {
	Host      string
	Port      int
	Token     string // Empty generates a fresh token
	TokenFile string
}

func New(s *store.SQLiteStore, abtests *abtest.Service, scores *scoring.Accumulator, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	token := opts.Token
	if token == "" {
		token = generateToken()
	}

	srv := &Server{
		store:     s,
		abtests:   abtests,
		scores:    scores,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		metrics:   newMetrics(),
		live:      newLiveHub(logger),
		host:      opts.Host,
		port:      opts.Port,
		token:     token,
		tokenFile: opts.TokenFile,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.handler())
	s.router.HandleFunc("/imperius.js", s.handleTrackerJS)
	s.router.HandleFunc("/ws/live", s.handleLiveWS)

	s.router.HandleFunc("/api/waitlist", s.handleWaitlist)
	s.router.HandleFunc("/api/analytics/lead-action", s.handleLeadAction)
	s.router.HandleFunc("/api/analytics/ab-tests/assignment", s.handleAssignment)
	s.router.HandleFunc("/api/analytics/ab-tests/assign", s.handleAssign)
	s.router.HandleFunc("/api/analytics/ab-tests/conversion", s.handleConversion)
	s.router.HandleFunc("/api/analytics/ab-tests/analytics", s.handleAnalytics)
	s.router.HandleFunc("/api/analytics/ab-tests/significance/", s.handleSignificance)

	// Dashboard endpoints (protected)
	s.router.Handle("/dashboard", s.requireToken(http.HandlerFunc(s.handleDashboard)))
	s.router.Handle("/dashboard/test/", s.requireToken(http.HandlerFunc(s.handleDashboardTest)))
	s.router.Handle("/dashboard/api/summary", s.requireToken(http.HandlerFunc(s.handleDashboardAPI)))
}

func (s *Server) Start() error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.logger.Warn("failed to write token file", zap.Error(err))
		}
	}

	go s.live.run()

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("imperius listening",
		zap.String("addr", addr),
		zap.String("dashboard", fmt.Sprintf("http://localhost:%d/dashboard?token=%s", s.port, s.token)))

	return http.ListenAndServe(addr, s.router)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// crypto/rand failing is effectively fatal elsewhere; keep the
		// dashboard reachable anyway
		return "0badc0de0badc0de"
	}
	return hex.EncodeToString(bytes)
}
