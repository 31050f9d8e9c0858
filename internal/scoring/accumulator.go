package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imperius/imperius/internal/store"
)

// Accumulator records lead actions and keeps per-session lead scores
// current. Scoring is best-effort: recompute failures are logged, never
// propagated, so tracking can never break the page flow that triggered it.
type Accumulator struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewAccumulator(st store.Store, logger *zap.Logger) *Accumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Track persists one action with its point impact, then recomputes the
// session's lead score. The returned action carries the impact that was
// applied.
func (a *Accumulator) Track(ctx context.Context, sessionID, actionType, actionValue string) (*store.Action, error) {
	action := &store.Action{
		SessionID:   sessionID,
		ActionType:  actionType,
		ActionValue: actionValue,
		ScoreImpact: Impact(actionType, actionValue),
		CreatedAt:   a.now(),
	}

	if err := a.store.RecordAction(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to record action: %w", err)
	}

	a.Recompute(ctx, sessionID)

	return action, nil
}

// Recompute rebuilds the lead score from the session's full action history
// and upserts it. Idempotent: with no new events the result is unchanged.
// Errors are swallowed after logging; the returned score is nil on failure.
func (a *Accumulator) Recompute(ctx context.Context, sessionID string) *store.LeadScore {
	actions, err := a.store.GetActions(ctx, sessionID)
	if err != nil {
		a.logger.Warn("lead score recompute: failed to load actions",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}

	b := Compute(actions)

	score := &store.LeadScore{
		SessionID:       sessionID,
		TotalScore:      b.Total,
		EngagementScore: b.Engagement,
		IntentScore:     b.Intent,
		QualityScore:    b.Quality,
		LastCalculated:  a.now(),
	}

	if err := a.store.UpsertLeadScore(ctx, score); err != nil {
		a.logger.Warn("lead score recompute: failed to upsert",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil
	}

	return score
}
