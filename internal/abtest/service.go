package abtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/imperius/imperius/internal/store"
)

var (
	ErrTestNotFound    = errors.New("test not found")
	ErrTestNotRunning  = errors.New("test is not running")
	ErrUnknownVariant  = errors.New("variant not configured for test")
	ErrMissingVariants = errors.New("test has no variants")
)

// DrawFunc returns a uniform random value in [0, 100). Injectable so tests
// can pin the draw.
type DrawFunc func() float64

// Service hands out variant assignments. It is constructed explicitly and
// passed by reference; there is no package-level instance.
type Service struct {
	store  store.Store
	logger *zap.Logger
	draw   DrawFunc
}

type Option func(*Service)

// WithDraw overrides the random source.
func WithDraw(draw DrawFunc) Option {
	return func(s *Service) {
		s.draw = draw
	}
}

func NewService(st store.Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:  st,
		logger: logger,
		draw:   func() float64 { return rand.Float64() * 100 },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign returns the session's variant for a test, creating the assignment
// on first request. Repeat calls return the same variant: the insert goes
// through the store's insert-or-return-existing primitive, so even racing
// first requests converge on one row.
func (s *Service) Assign(ctx context.Context, sessionID, testName string) (*store.Assignment, error) {
	test, err := s.runningTest(ctx, testName)
	if err != nil {
		return nil, err
	}

	// Cheap fast path for repeat visitors
	if existing, err := s.store.GetAssignment(ctx, sessionID, testName); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up assignment: %w", err)
	}

	variant := SelectVariant(test.Variants, s.draw())

	assignment, created, err := s.store.GetOrCreateAssignment(ctx, sessionID, testName, variant)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assignment: %w", err)
	}

	if created {
		s.logger.Debug("assigned variant",
			zap.String("session_id", sessionID),
			zap.String("test", testName),
			zap.String("variant", assignment.Variant))
	}

	return assignment, nil
}

// ForceAssign records a caller-chosen variant, used when the client already
// rendered a variant (e.g. server-side selection). First assignment still
// wins: if the session already has a variant for this test, that one is
// returned and the requested variant is ignored.
func (s *Service) ForceAssign(ctx context.Context, sessionID, testName, variant string) (*store.Assignment, error) {
	test, err := s.runningTest(ctx, testName)
	if err != nil {
		return nil, err
	}

	if !hasVariant(test, variant) {
		return nil, ErrUnknownVariant
	}

	assignment, _, err := s.store.GetOrCreateAssignment(ctx, sessionID, testName, variant)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assignment: %w", err)
	}

	return assignment, nil
}

// RecordConversion writes the conversion page event for a (test, variant)
// pair. The variant must belong to the test; the session does not need an
// assignment row, matching client-side assigned traffic.
func (s *Service) RecordConversion(ctx context.Context, sessionID, testName, variant string, value float64) (*store.PageEvent, error) {
	test, err := s.runningTest(ctx, testName)
	if err != nil {
		return nil, err
	}

	if !hasVariant(test, variant) {
		return nil, ErrUnknownVariant
	}

	event := &store.PageEvent{
		SessionID: sessionID,
		EventType: "conversion",
		TestName:  testName,
		Variant:   variant,
		Value:     value,
	}
	if err := s.store.RecordPageEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record conversion: %w", err)
	}

	return event, nil
}

func (s *Service) runningTest(ctx context.Context, testName string) (*store.Test, error) {
	test, err := s.store.GetTest(ctx, testName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load test: %w", err)
	}

	if test.State != store.StateRunning {
		return nil, ErrTestNotRunning
	}
	if len(test.Variants) == 0 {
		return nil, ErrMissingVariants
	}

	return test, nil
}

func hasVariant(test *store.Test, name string) bool {
	for _, v := range test.Variants {
		if v.Name == name {
			return true
		}
	}
	return false
}
