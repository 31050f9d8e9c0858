package scoring_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/imperius/imperius/internal/scoring"
	"github.com/imperius/imperius/internal/store"
)

func action(t0 time.Time, offset time.Duration, actionType, actionValue string) *store.Action {
	return &store.Action{
		SessionID:   "s1",
		ActionType:  actionType,
		ActionValue: actionValue,
		ScoreImpact: scoring.Impact(actionType, actionValue),
		CreatedAt:   t0.Add(offset),
	}
}

func TestCompute_Empty(t *testing.T) {
	b := scoring.Compute(nil)
	assert.Zero(t, b.Total)
	assert.Zero(t, b.Engagement)
	assert.Zero(t, b.Intent)
	assert.Zero(t, b.Quality)
}

func TestCompute_SingleVisitJourney(t *testing.T) {
	t0 := time.Now()
	actions := []*store.Action{
		action(t0, 0, scoring.ActionPageView, "/"),
		action(t0, 30*time.Second, scoring.ActionScroll50, "50"),
		action(t0, 2*time.Minute, scoring.ActionCTAClick, "hero-cta"),
	}

	b := scoring.Compute(actions)

	assert.Equal(t, 1+3+12, b.Total)
	assert.Equal(t, b.Total, b.Engagement)
	assert.Equal(t, 20, b.Intent) // one CTA click
	// Quality: 2 minutes on site (20) + 1 distinct page (15) + scroll 50 (5)
	assert.Equal(t, 40, b.Quality)
}

func TestCompute_IntentUsesTypedCalculatorAction(t *testing.T) {
	t0 := time.Now()
	actions := []*store.Action{
		action(t0, 0, scoring.ActionCalculatorUse, "roi-calculator"),
		action(t0, time.Second, scoring.ActionFormFocus, "email"),
	}

	b := scoring.Compute(actions)
	assert.Equal(t, 25+15, b.Intent)
}

func TestCompute_CategoriesClampAt100(t *testing.T) {
	t0 := time.Now()

	var actions []*store.Action
	for i := 0; i < 50; i++ {
		actions = append(actions, action(t0, time.Duration(i)*time.Hour, scoring.ActionCTAClick, "cta"))
		actions = append(actions, action(t0, time.Duration(i)*time.Hour, scoring.ActionCalculatorUse, ""))
		actions = append(actions, action(t0, time.Duration(i)*time.Hour, scoring.ActionPageView, string(rune('a'+i%20))))
		actions = append(actions, action(t0, time.Duration(i)*time.Hour, scoring.ActionScroll75, "75"))
	}

	b := scoring.Compute(actions)

	assert.Greater(t, b.Total, 100) // raw sum is unbounded
	assert.Equal(t, 100, b.Engagement)
	assert.Equal(t, 100, b.Intent)
	assert.LessOrEqual(t, b.Quality, 100)
	assert.GreaterOrEqual(t, b.Quality, 0)
}

func TestCompute_QualitySubTermCaps(t *testing.T) {
	t0 := time.Now()

	// Hours on site, a dozen distinct pages, deep scroll: every sub-term
	// hits its cap (40 + 30 + 7) before the final sum
	actions := []*store.Action{
		action(t0, 0, scoring.ActionScroll75, "75"),
	}
	for i := 0; i < 12; i++ {
		actions = append(actions, action(t0, time.Duration(i)*30*time.Minute, scoring.ActionPageView, string(rune('a'+i))))
	}

	b := scoring.Compute(actions)
	assert.Equal(t, 40+30+7, b.Quality)
}

func TestCompute_Idempotent(t *testing.T) {
	t0 := time.Now()
	actions := []*store.Action{
		action(t0, 0, scoring.ActionPageView, "/"),
		action(t0, time.Minute, scoring.ActionEmailFill, "ceo@acme.io"),
	}

	first := scoring.Compute(actions)
	second := scoring.Compute(actions)
	assert.Equal(t, first, second)
}
