package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperius/imperius/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestAccumulator_Track(t *testing.T) {
	s := newTestStore(t)
	acc := NewAccumulator(s, nil)
	ctx := context.Background()

	a, err := acc.Track(ctx, "sess-1", ActionEmailFill, "ceo@acme.io")
	require.NoError(t, err)
	assert.Equal(t, 40, a.ScoreImpact)

	score, err := s.GetLeadScore(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 40, score.TotalScore)
	assert.Equal(t, 40, score.EngagementScore)
}

func TestAccumulator_RecomputeIdempotent(t *testing.T) {
	s := newTestStore(t)
	acc := NewAccumulator(s, nil)
	ctx := context.Background()

	_, err := acc.Track(ctx, "sess-1", ActionPageView, "/")
	require.NoError(t, err)
	_, err = acc.Track(ctx, "sess-1", ActionCTAClick, "hero")
	require.NoError(t, err)

	first := acc.Recompute(ctx, "sess-1")
	require.NotNil(t, first)
	second := acc.Recompute(ctx, "sess-1")
	require.NotNil(t, second)

	assert.Equal(t, first.TotalScore, second.TotalScore)
	assert.Equal(t, first.EngagementScore, second.EngagementScore)
	assert.Equal(t, first.IntentScore, second.IntentScore)
	assert.Equal(t, first.QualityScore, second.QualityScore)
}

func TestAccumulator_RecomputeSurvivesStoreFailure(t *testing.T) {
	s := newTestStore(t)
	acc := NewAccumulator(s, nil)
	ctx := context.Background()

	_, err := acc.Track(ctx, "sess-1", ActionPageView, "/")
	require.NoError(t, err)

	// A closed store makes every lookup fail; recompute must swallow it
	require.NoError(t, s.Close())
	assert.NotPanics(t, func() {
		assert.Nil(t, acc.Recompute(ctx, "sess-1"))
	})
}

func TestAccumulator_ScoresAccumulateAcrossActions(t *testing.T) {
	s := newTestStore(t)
	acc := NewAccumulator(s, nil)
	acc.now = func() time.Time { return time.Unix(1700000000, 0) }
	ctx := context.Background()

	for _, at := range []string{ActionPageView, ActionScroll50, ActionFormFocus} {
		_, err := acc.Track(ctx, "sess-1", at, "")
		require.NoError(t, err)
	}

	score, err := s.GetLeadScore(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1+3+8, score.TotalScore)
	assert.Equal(t, 15, score.IntentScore) // one form focus
	assert.Equal(t, time.Unix(1700000000, 0).Unix(), score.LastCalculated.Unix())
}
