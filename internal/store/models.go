package store

import (
	"encoding/json"
	"time"
)

type TestState string

const (
	StateRunning   TestState = "running"
	StatePaused    TestState = "paused"
	StateCompleted TestState = "completed"
)

// Variant is one named option within an A/B test. Order in Test.Variants is
// the insertion order and is significant for weighted selection.
type Variant struct {
	Name    string          `json:"name"`
	Weight  float64         `json:"weight"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Test struct {
	ID            int64
	Name          string
	Variants      []Variant // Decoded from JSON, order preserved
	State         TestState
	WinnerVariant string // Variant name, set when completed with a winner
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Assignment pins a session to a variant. At most one row exists per
// (session, test) pair; the first assignment wins.
type Assignment struct {
	ID         int64     `json:"-"`
	SessionID  string    `json:"sessionId"`
	TestName   string    `json:"testName"`
	Variant    string    `json:"variant"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Action is an append-only behavioral event used for lead scoring.
type Action struct {
	ID          int64     `json:"-"`
	SessionID   string    `json:"sessionId"`
	ActionType  string    `json:"actionType"`
	ActionValue string    `json:"actionValue,omitempty"`
	ScoreImpact int       `json:"scoreImpact"`
	CreatedAt   time.Time `json:"timestamp"`
}

// PageEvent is a page-level analytics row. Conversion events carry the
// test name, variant and conversion value.
type PageEvent struct {
	ID        int64     `json:"-"`
	SessionID string    `json:"sessionId"`
	EventType string    `json:"eventType"`
	ElementID string    `json:"elementId,omitempty"`
	TestName  string    `json:"testName,omitempty"`
	Variant   string    `json:"variant,omitempty"`
	Value     float64   `json:"value,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// LeadScore is derived from the full action history of a session and
// upserted on every recompute. Category scores are clamped to [0, 100].
type LeadScore struct {
	SessionID       string    `json:"sessionId"`
	TotalScore      int       `json:"totalScore"`
	EngagementScore int       `json:"engagementScore"`
	IntentScore     int       `json:"intentScore"`
	QualityScore    int       `json:"qualityScore"`
	LastCalculated  time.Time `json:"lastCalculated"`
}

// Signup is a waitlist entry from the landing page form.
type Signup struct {
	ID            int64
	Email         string
	SessionID     string
	Source        string
	BusinessEmail bool
	CreatedAt     time.Time
}

// VariantSample aggregates visitors and conversions for one variant of a
// test, computed on demand for significance testing.
type VariantSample struct {
	Variant     string `json:"variant"`
	Visitors    int    `json:"visitors"`
	Conversions int    `json:"conversions"`
}

type ElementCount struct {
	Element string `json:"element"`
	Count   int    `json:"count"`
}

// AnalyticsSummary is the per-test rollup served by the analytics endpoint.
type AnalyticsSummary struct {
	TestName    string         `json:"testName"`
	Sessions    int            `json:"sessions"`
	Conversions int            `json:"conversions"`
	TopElements []ElementCount `json:"topElements"`
}
