package store

import (
	"context"
	"time"
)

// Store defines the interface for persistence operations
type Store interface {
	// Test operations
	CreateTest(ctx context.Context, name string, variants []Variant) (*Test, error)
	GetTest(ctx context.Context, name string) (*Test, error)
	ListTests(ctx context.Context) ([]*Test, error)
	UpdateTestState(ctx context.Context, name string, state TestState, winnerVariant string) error
	DeleteTest(ctx context.Context, name string) error

	// Assignment operations. GetOrCreateAssignment is atomic: concurrent
	// first-time requests for the same (session, test) pair resolve to a
	// single row via the unique constraint.
	GetAssignment(ctx context.Context, sessionID, testName string) (*Assignment, error)
	GetOrCreateAssignment(ctx context.Context, sessionID, testName, variant string) (*Assignment, bool, error)

	// Lead action operations
	RecordAction(ctx context.Context, a *Action) error
	GetActions(ctx context.Context, sessionID string) ([]*Action, error)

	// Page event operations
	RecordPageEvent(ctx context.Context, e *PageEvent) error

	// Aggregations
	GetVariantSamples(ctx context.Context, testName string) ([]VariantSample, error)
	GetAnalyticsSummary(ctx context.Context, testName string, since time.Time) (*AnalyticsSummary, error)

	// Lead score operations. ListLeadScores treats limit 0 as a default of
	// 100 and a negative limit as no limit.
	UpsertLeadScore(ctx context.Context, score *LeadScore) error
	GetLeadScore(ctx context.Context, sessionID string) (*LeadScore, error)
	ListLeadScores(ctx context.Context, limit int) ([]*LeadScore, error)

	// Waitlist operations
	CreateSignup(ctx context.Context, email, sessionID, source string, businessEmail bool) (*Signup, error)
	ListSignups(ctx context.Context) ([]*Signup, error)
	CountSignups(ctx context.Context) (int, error)

	// Lifecycle
	Close() error
}
